package conn

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/DOIDFoundation/tmrpc/types"
	"github.com/gorilla/websocket"
)

// ErrPeerClosed is returned by Stream.ReadMessage after the peer sent a close
// frame.
var ErrPeerClosed = errors.New("peer closed the stream")

// Stream is a message oriented duplex connection. ReadMessage is called from
// a single goroutine and WriteMessage from another; WritePing, WriteClose and
// Close may be called concurrently with both.
type Stream interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte, deadline time.Time) error
	WritePing(deadline time.Time) error
	WriteClose(deadline time.Time) error
	Close() error
}

// DialFunc opens a stream. The context bounds the handshake only.
type DialFunc func(ctx context.Context) (Stream, error)

// WebsocketDialer returns a DialFunc connecting to a websocket endpoint.
// Credentials in the url are sent as basic authorization.
func WebsocketDialer(endpoint string, cfg Config) DialFunc {
	return func(ctx context.Context) (Stream, error) {
		dialURL, header, err := wsClientHeaders(endpoint)
		if err != nil {
			return nil, err
		}
		for key, values := range cfg.Header {
			header[key] = values
		}
		dialer := &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
		c, resp, err := dialer.DialContext(ctx, dialURL, header)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("dial %s: %w (status %s)", dialURL, err, resp.Status)
			}
			return nil, fmt.Errorf("dial %s: %w", dialURL, err)
		}
		return newWSStream(c, cfg), nil
	}
}

func wsClientHeaders(endpoint string) (string, http.Header, error) {
	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return endpoint, nil, err
	}
	header := make(http.Header)
	if endpointURL.User != nil {
		b64auth := base64.StdEncoding.EncodeToString([]byte(endpointURL.User.String()))
		header.Add("authorization", "Basic "+b64auth)
		endpointURL.User = nil
	}
	return endpointURL.String(), header, nil
}

type wsStream struct {
	conn     *websocket.Conn
	pongWait time.Duration
}

func newWSStream(c *websocket.Conn, cfg Config) *wsStream {
	if cfg.ReadLimit > 0 {
		c.SetReadLimit(cfg.ReadLimit)
	}
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Time{})
	})
	return &wsStream{conn: c, pongWait: cfg.PongWait}
}

func (s *wsStream) ReadMessage() ([]byte, error) {
	for {
		typ, data, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil, fmt.Errorf("%w: %v", ErrPeerClosed, err)
			}
			return nil, fmt.Errorf("%w: %v", types.ErrTransport, err)
		}
		if typ == websocket.TextMessage || typ == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (s *wsStream) WriteMessage(data []byte, deadline time.Time) error {
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// WritePing sends a ping; the next frame must arrive within the pong wait.
func (s *wsStream) WritePing(deadline time.Time) error {
	if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		return err
	}
	if s.pongWait > 0 {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	}
	return nil
}

func (s *wsStream) WriteClose(deadline time.Time) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}
