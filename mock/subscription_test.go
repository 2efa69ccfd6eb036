package mock_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/DOIDFoundation/tmrpc/mock"
	"github.com/DOIDFoundation/tmrpc/rpc"
	"github.com/DOIDFoundation/tmrpc/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ rpc.SubscriptionClient = (*mock.SubscriptionClient)(nil)

func nextEvent(t *testing.T, sub *rpc.Subscription) types.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return types.Event{}
}

func TestSubscriptionClientPublish(t *testing.T) {
	c := mock.NewSubscriptionClient(mock.NewMethodMatcher(), testLogger())
	defer c.Close()
	ctx := context.Background()
	blocks := types.QueryForEvent(types.EventNewBlock)
	txs := types.QueryForEvent(types.EventTx)

	sub1, err := c.Subscribe(ctx, blocks)
	require.NoError(t, err)
	sub2, err := c.Subscribe(ctx, txs)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub1.ID())
	assert.Equal(t, "sub-2", sub2.ID())
	assert.Equal(t, blocks, sub1.Query())

	for i := 1; i <= 3; i++ {
		require.NoError(t, c.Publish(blocks, json.RawMessage(fmt.Sprintf(`{"height":%d}`, i))))
	}
	require.NoError(t, c.Publish(txs, "tx"))
	require.NoError(t, c.Publish("tm.event='Vote'", nil))

	for i := 1; i <= 3; i++ {
		ev := nextEvent(t, sub1)
		assert.Equal(t, "sub-1", ev.SubscriptionID)
		assert.Equal(t, blocks, ev.Query)
		assert.JSONEq(t, fmt.Sprintf(`{"height":%d}`, i), string(ev.Data))
	}
	ev := nextEvent(t, sub2)
	assert.JSONEq(t, `"tx"`, string(ev.Data))

	select {
	case ev := <-sub1.Events():
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestSubscriptionClientInvalidQuery(t *testing.T) {
	c := mock.NewSubscriptionClient(mock.NewMethodMatcher(), testLogger())
	defer c.Close()
	_, err := c.Subscribe(context.Background(), "tm.event=")
	rpcErr, ok := types.IsRPCError(err)
	require.True(t, ok)
	assert.Equal(t, types.CodeInvalidParams, rpcErr.Code)
}

func TestSubscriptionClientUnsubscribe(t *testing.T) {
	c := mock.NewSubscriptionClient(mock.NewMethodMatcher(), testLogger())
	defer c.Close()
	q := types.QueryForEvent(types.EventNewBlock)
	sub, err := c.Subscribe(context.Background(), q)
	require.NoError(t, err)

	require.NoError(t, c.Unsubscribe(context.Background(), sub))
	require.NoError(t, c.Publish(q, "block"))
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
}

func TestSubscriptionClientClose(t *testing.T) {
	c := mock.NewSubscriptionClient(mock.NewMethodMatcher().Map(types.MethodHealth, nil), testLogger())
	sub, err := c.Subscribe(context.Background(), types.QueryForEvent(types.EventNewBlock))
	require.NoError(t, err)

	_, err = c.Call(context.Background(), types.MethodHealth, nil)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subscription not terminated")
	}
	assert.ErrorIs(t, sub.Err(), types.ErrConnectionClosed)

	_, err = c.Call(context.Background(), types.MethodHealth, nil)
	assert.ErrorIs(t, err, types.ErrConnectionClosed)
	_, err = c.Subscribe(context.Background(), types.QueryForEvent(types.EventNewBlock))
	assert.ErrorIs(t, err, types.ErrConnectionClosed)
}

func TestSubscriptionClientHandleClosed(t *testing.T) {
	c := mock.NewSubscriptionClient(mock.NewMethodMatcher(), testLogger())
	defer c.Close()
	q := types.QueryForEvent(types.EventNewBlock)

	closed, err := c.Subscribe(context.Background(), q)
	require.NoError(t, err)
	live, err := c.Subscribe(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, 2, c.Subscriptions())

	closed.Close()
	assert.Eventually(t, func() bool { return c.Subscriptions() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Publish(q, "block"))
	ev := nextEvent(t, live)
	assert.Equal(t, live.ID(), ev.SubscriptionID)
	_, ok := <-closed.Events()
	assert.False(t, ok)

	require.NoError(t, c.Unsubscribe(context.Background(), live))
	assert.Equal(t, 0, c.Subscriptions())
}
