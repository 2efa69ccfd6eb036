package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/DOIDFoundation/tmrpc/conn"
	"github.com/DOIDFoundation/tmrpc/types"
	cmtevents "github.com/cometbft/cometbft/libs/events"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/libs/pubsub/query"
)

// SubscriptionClient is a Client with a programmable event feed. Events
// published for a query reach every subscription made with that exact query.
type SubscriptionClient struct {
	*Client
	logger   log.Logger
	registry *conn.Registry
	evsw     cmtevents.EventSwitch

	mtx       sync.Mutex
	next      int
	listeners map[string]struct{}
}

func NewSubscriptionClient(m Matcher, logger log.Logger) *SubscriptionClient {
	logger = logger.With("module", "mock")
	evsw := cmtevents.NewEventSwitch()
	evsw.SetLogger(logger)
	if err := evsw.Start(); err != nil {
		logger.Error("Failed to start event switch", "err", err)
	}
	return &SubscriptionClient{
		Client:    NewClient(m),
		logger:    logger,
		registry:  conn.NewRegistry(logger, conn.DefaultConfig, nil),
		evsw:      evsw,
		listeners: make(map[string]struct{}),
	}
}

// Subscribe binds a subscription with id "sub-N".
func (c *SubscriptionClient) Subscribe(ctx context.Context, q string) (*conn.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.isClosed() {
		return nil, &types.ClosedError{Reason: types.CloseReasonClient}
	}
	if _, err := query.New(q); err != nil {
		return nil, &types.RPCError{Code: types.CodeInvalidParams, Message: "Invalid params", Data: jsonString(err.Error())}
	}

	c.mtx.Lock()
	c.next++
	id := fmt.Sprintf("sub-%d", c.next)
	c.mtx.Unlock()

	sub, err := c.registry.Bind(id, q)
	if err != nil {
		return nil, err
	}
	err = c.evsw.AddListenerForEvent(id, q, func(data cmtevents.EventData) {
		c.registry.Route(types.Event{SubscriptionID: id, Query: q, Data: data.(json.RawMessage)})
	})
	if err != nil {
		c.registry.Unbind(id, nil)
		return nil, err
	}
	c.mtx.Lock()
	c.listeners[id] = struct{}{}
	c.mtx.Unlock()
	go func() {
		<-sub.Done()
		c.removeListener(id)
	}()
	return sub, nil
}

func (c *SubscriptionClient) removeListener(id string) {
	c.evsw.RemoveListener(id)
	c.mtx.Lock()
	delete(c.listeners, id)
	c.mtx.Unlock()
}

// Subscriptions returns the number of subscriptions still listening for
// published events.
func (c *SubscriptionClient) Subscriptions() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.listeners)
}

func (c *SubscriptionClient) Unsubscribe(ctx context.Context, sub *conn.Subscription) error {
	c.registry.Unbind(sub.ID(), nil)
	sub.Close()
	c.removeListener(sub.ID())
	return nil
}

// Publish delivers data to every subscription of query. It blocks while a
// subscriber's buffer is full.
func (c *SubscriptionClient) Publish(q string, data interface{}) error {
	raw, err := types.EncodeParams(data)
	if err != nil {
		return err
	}
	if raw == nil {
		raw = json.RawMessage("null")
	}
	c.evsw.FireEvent(q, raw)
	return nil
}

// Close terminates every subscription.
func (c *SubscriptionClient) Close() error {
	c.registry.UnbindAll(&types.ClosedError{Reason: types.CloseReasonClient})
	if err := c.evsw.Stop(); err != nil {
		c.logger.Debug("Failed to stop event switch", "err", err)
	}
	return c.Client.Close()
}
