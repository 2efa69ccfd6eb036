package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/DOIDFoundation/tmrpc/conn"
	"github.com/DOIDFoundation/tmrpc/types"
)

// Client answers calls with a Matcher instead of a node. Every request is
// recorded.
type Client struct {
	matcher Matcher
	ids     conn.CounterIDs

	mtx      sync.Mutex
	requests []*types.Request
	closed   bool
}

func NewClient(m Matcher) *Client {
	return &Client{matcher: m}
}

func (c *Client) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mtx.Lock()
	if c.closed {
		c.mtx.Unlock()
		return nil, &types.ClosedError{Reason: types.CloseReasonClient}
	}
	req, err := types.NewRequest(c.ids.NextID(nil), method, params)
	if err != nil {
		c.mtx.Unlock()
		return nil, err
	}
	c.requests = append(c.requests, req)
	c.mtx.Unlock()

	resp := Respond(c.matcher, req)
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// Requests returns the requests received so far.
func (c *Client) Requests() []*types.Request {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return append([]*types.Request(nil), c.requests...)
}

func (c *Client) Close() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.closed = true
	return nil
}

func (c *Client) isClosed() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.closed
}
