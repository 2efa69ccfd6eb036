package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DOIDFoundation/tmrpc/conn"
	"github.com/DOIDFoundation/tmrpc/types"
	cmtjson "github.com/cometbft/cometbft/libs/json"
)

// Client is implemented by every transport. A node error is returned as a
// *types.RPCError.
type Client interface {
	Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error)
	Close() error
}

// SubscriptionClient is implemented by transports that can carry pushed
// events.
type SubscriptionClient interface {
	Client
	Subscribe(ctx context.Context, query string) (*Subscription, error)
	Unsubscribe(ctx context.Context, sub *Subscription) error
}

type Subscription = conn.Subscription

var (
	_ SubscriptionClient = (*WebSocketClient)(nil)
	_ Client             = (*HTTPClient)(nil)
)

// Subscribe subscribes to query if c supports subscriptions and fails with
// types.ErrUnsupportedOperation otherwise.
func Subscribe(ctx context.Context, c Client, query string) (*Subscription, error) {
	sc, ok := c.(SubscriptionClient)
	if !ok {
		return nil, fmt.Errorf("%w: %T can't subscribe", types.ErrUnsupportedOperation, c)
	}
	return sc.Subscribe(ctx, query)
}

func Unsubscribe(ctx context.Context, c Client, sub *Subscription) error {
	sc, ok := c.(SubscriptionClient)
	if !ok {
		return fmt.Errorf("%w: %T can't unsubscribe", types.ErrUnsupportedOperation, c)
	}
	return sc.Unsubscribe(ctx, sub)
}

// CallResult calls method and decodes the result into result the way a
// CometBFT node encodes it.
func CallResult(ctx context.Context, c Client, method string, params, result interface{}) error {
	raw, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if err := cmtjson.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("%w: decode %s result: %v", types.ErrProtocol, method, err)
	}
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// callError reports a failed call, turning an expired deadline into
// types.ErrTimeout.
func callError(method string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", method, types.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", method, err)
}
