package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DOIDFoundation/tmrpc/conn"
	"github.com/cometbft/cometbft/libs/log"
)

// WebSocketClient multiplexes calls and subscriptions over one websocket
// connection. It does not reconnect: once the connection is lost every call
// fails and every subscription is terminated with the same error.
type WebSocketClient struct {
	driver  *conn.Driver
	dialect Dialect
	timeout time.Duration
}

// NewWebSocketClient connects to the node at addr.
func NewWebSocketClient(ctx context.Context, addr string, cfg Config, logger log.Logger) (*WebSocketClient, error) {
	endpoint, err := WebSocketURL(addr)
	if err != nil {
		return nil, err
	}
	dialect, err := ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	var opts []conn.Option
	if cfg.Metrics != nil {
		opts = append(opts, conn.WithMetrics(cfg.Metrics))
	}
	d := conn.NewDriver(conn.WebsocketDialer(endpoint, cfg.Conn), cfg.Conn, logger, opts...)
	return NewWebSocketClientWithDriver(ctx, d, dialect, cfg.Timeout)
}

// NewWebSocketClientWithDriver opens d and wraps it.
func NewWebSocketClientWithDriver(ctx context.Context, d *conn.Driver, dialect Dialect, timeout time.Duration) (*WebSocketClient, error) {
	if err := d.Open(ctx); err != nil {
		return nil, err
	}
	return &WebSocketClient{driver: d, dialect: dialect, timeout: timeout}, nil
}

func (c *WebSocketClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.driver.Call(ctx, method, params)
	if err != nil {
		return nil, callError(method, err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// Subscribe subscribes to q. Events arrive on the subscription in the order
// the node sent them.
func (c *WebSocketClient) Subscribe(ctx context.Context, q string) (*Subscription, error) {
	if err := c.dialect.ValidateQuery(q); err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", q, err)
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	req := c.dialect.SubscribeRequest(q)
	sub, err := c.driver.Subscribe(ctx, req)
	if err != nil {
		return nil, callError(req.Method, err)
	}
	return sub, nil
}

// Unsubscribe closes sub right away and then tells the node. No event is
// delivered on sub afterwards, even when the node call fails.
func (c *WebSocketClient) Unsubscribe(ctx context.Context, sub *Subscription) error {
	sub.Close()
	method, params := c.dialect.UnsubscribeRequest(sub)
	_, err := c.Call(ctx, method, params)
	return err
}

func (c *WebSocketClient) Close() error {
	return c.driver.Close()
}

func (c *WebSocketClient) State() conn.State { return c.driver.State() }

// Err returns why the connection closed, nil while it is open.
func (c *WebSocketClient) Err() error { return c.driver.Err() }

// Done is closed once the connection is closed.
func (c *WebSocketClient) Done() <-chan struct{} { return c.driver.Done() }

// Driver returns the underlying connection.
func (c *WebSocketClient) Driver() *conn.Driver { return c.driver }
