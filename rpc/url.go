package rpc

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/cometbft/cometbft/libs/log"
)

const websocketPath = "/websocket"

func parseAddress(addr string) (*url.URL, error) {
	if !strings.Contains(addr, "://") {
		addr = "tcp://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid address %q: missing host", addr)
	}
	return u, nil
}

// WebSocketURL returns the websocket endpoint of a node address. A tcp or
// http address gets the /websocket path of a CometBFT node; ws and wss
// addresses are used as given.
func WebSocketURL(addr string) (string, error) {
	u, err := parseAddress(addr)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws", "wss":
		return u.String(), nil
	case "tcp", "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = websocketPath
	}
	return u.String(), nil
}

// HTTPURL returns the HTTP endpoint of a node address.
func HTTPURL(addr string) (string, error) {
	u, err := parseAddress(addr)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "https":
	case "tcp", "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, websocketPath)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// Dial returns a websocket client for ws and wss addresses and an HTTP client
// for anything else.
func Dial(ctx context.Context, addr string, cfg Config, logger log.Logger) (Client, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return NewWebSocketClient(ctx, addr, cfg, logger)
	}
	return NewHTTPClient(addr, cfg, logger)
}
