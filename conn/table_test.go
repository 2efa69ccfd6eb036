package conn_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DOIDFoundation/tmrpc/conn"
	"github.com/DOIDFoundation/tmrpc/types"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableResolve(t *testing.T) {
	metrics := conn.NopMetrics()
	table := conn.NewTable(log.NewNopLogger(), metrics)

	w, err := table.Register(types.NewIntID(1), nil)
	require.NoError(t, err)
	_, err = table.Register(types.NewIntID(1), nil)
	assert.ErrorIs(t, err, types.ErrDuplicateID)

	// 1 and "1" are different ids.
	ws, err := table.Register(types.NewStringID("1"), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.EqualValues(t, 2, testutil.ToFloat64(metrics.PendingCalls))

	assert.True(t, table.Resolve(types.NewResultResponse(types.NewStringID("1"), json.RawMessage(`"s"`))))
	resp, err := ws.Wait(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `"s"`, string(resp.Result))
	assert.True(t, table.Has(types.NewIntID(1)))

	// A second resolution for the same id is discarded.
	assert.False(t, table.Resolve(types.NewResultResponse(types.NewStringID("1"), nil)))

	assert.True(t, table.Resolve(types.NewResultResponse(types.NewIntID(1), json.RawMessage(`1`))))
	resp, err = w.Wait(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(resp.Result))
	assert.Equal(t, 0, table.Len())
}

func TestTableForget(t *testing.T) {
	table := conn.NewTable(log.NewNopLogger(), nil)
	w, err := table.Register(types.NewIntID(5), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = w.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, table.Has(types.NewIntID(5)))
	assert.False(t, table.Resolve(types.NewResultResponse(types.NewIntID(5), nil)))
	assert.False(t, table.Forget(types.NewIntID(5)))
}

func TestTableFailAll(t *testing.T) {
	table := conn.NewTable(log.NewNopLogger(), nil)
	var waiters []*conn.Waiter
	for i := int64(1); i <= 3; i++ {
		w, err := table.Register(types.NewIntID(i), nil)
		require.NoError(t, err)
		waiters = append(waiters, w)
	}

	closed := &types.ClosedError{Reason: types.CloseReasonTransport}
	table.FailAll(closed)
	table.FailAll(errors.New("second call is ignored"))
	for _, w := range waiters {
		_, err := w.Wait(context.Background())
		assert.Equal(t, closed, err)
	}
	_, err := table.Register(types.NewIntID(9), nil)
	assert.Equal(t, closed, err)
}

func TestTableBindHook(t *testing.T) {
	table := conn.NewTable(log.NewNopLogger(), nil)
	hookErr := errors.New("bind failed")
	calls := 0
	w, err := table.Register(types.NewIntID(1), func(*types.Response) error {
		calls++
		return hookErr
	})
	require.NoError(t, err)
	table.Resolve(types.NewResultResponse(types.NewIntID(1), json.RawMessage(`{}`)))
	_, err = w.Wait(context.Background())
	assert.ErrorIs(t, err, hookErr)
	assert.Equal(t, 1, calls)

	// Error responses skip the hook.
	w, err = table.Register(types.NewIntID(2), func(*types.Response) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	table.Resolve(types.NewErrorResponse(types.NewIntID(2), &types.RPCError{Code: 1, Message: "x"}))
	resp, err := w.Wait(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, 1, calls)
}
