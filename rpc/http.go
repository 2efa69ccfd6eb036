package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DOIDFoundation/tmrpc/conn"
	"github.com/DOIDFoundation/tmrpc/types"
	"github.com/cometbft/cometbft/libs/log"
)

const maxResponseBytes = 64 << 20

// HTTPClient performs each call as its own HTTP POST. It can't subscribe.
type HTTPClient struct {
	logger  log.Logger
	address string
	client  *http.Client
	timeout time.Duration
	ids     conn.CounterIDs
}

// NewHTTPClient returns a client for the node at addr. Credentials in the
// address are sent as basic auth.
func NewHTTPClient(addr string, cfg Config, logger log.Logger) (*HTTPClient, error) {
	address, err := HTTPURL(addr)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{
		logger:  logger.With("module", "rpc"),
		address: address,
		client:  &http.Client{},
		timeout: cfg.Timeout,
	}, nil
}

func (c *HTTPClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	req, err := types.NewRequest(c.ids.NextID(nil), method, params)
	if err != nil {
		return nil, err
	}
	bz, err := req.Encode()
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.address, bytes.NewReader(bz))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("HTTP call", "method", method, "id", req.ID.Key())
	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, callError(method, fmt.Errorf("%w: %w", types.ErrTransport, err))
	}
	defer httpResp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, callError(method, fmt.Errorf("%w: %w", types.ErrTransport, err))
	}

	// Nodes answer some errors with a non 2xx status and a JSON-RPC body. A
	// result that looks like an event still decodes with its response.
	f := types.DecodeFrame(body)
	resp := f.Response
	if resp == nil {
		if httpResp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("%s: %w: unexpected status %s", method, types.ErrTransport, httpResp.Status)
		}
		if f.Err != nil {
			return nil, fmt.Errorf("%s: %w", method, f.Err)
		}
		return nil, fmt.Errorf("%s: %w: unexpected %s frame", method, types.ErrProtocol, f.Kind)
	}
	if resp.ID.Key() != req.ID.Key() {
		return nil, fmt.Errorf("%s: %w: response id %s, want %s", method, types.ErrProtocol, resp.ID.Key(), req.ID.Key())
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
