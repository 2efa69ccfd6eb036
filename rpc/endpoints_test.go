package rpc_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DOIDFoundation/tmrpc/mock"
	"github.com/DOIDFoundation/tmrpc/rpc"
	"github.com/DOIDFoundation/tmrpc/types"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoints(t *testing.T) {
	m := mock.NewMethodMatcher().
		Map(types.MethodStatus, json.RawMessage(`{"node_info":{"network":"test-chain","moniker":"node0"},"sync_info":{"latest_block_height":"42","catching_up":false}}`)).
		Map(types.MethodABCIInfo, json.RawMessage(`{"response":{"data":"kvstore","last_block_height":"7"}}`)).
		Map(types.MethodBlock, json.RawMessage(`{"block":null}`)).
		Map(types.MethodBroadcastTxSync, json.RawMessage(`{"code":0,"data":"","log":"","codespace":"","hash":"ABCD"}`))
	c := mock.NewClient(m)
	ctx := context.Background()

	status, err := rpc.Status(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "test-chain", status.NodeInfo.Network)
	assert.Equal(t, int64(42), status.SyncInfo.LatestBlockHeight)

	info, err := rpc.ABCIInfo(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "kvstore", info.Response.Data)
	assert.Equal(t, int64(7), info.Response.LastBlockHeight)

	height := int64(5)
	_, err = rpc.Block(ctx, c, &height)
	require.NoError(t, err)
	_, err = rpc.Block(ctx, c, nil)
	require.NoError(t, err)

	res, err := rpc.BroadcastTxSync(ctx, c, cmttypes.Tx("k=v"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), res.Code)
	assert.Equal(t, []byte{0xAB, 0xCD}, []byte(res.Hash))

	reqs := c.Requests()
	require.Len(t, reqs, 5)
	assert.JSONEq(t, `{"height":"5"}`, string(reqs[2].Params))
	assert.Empty(t, reqs[3].Params)
	assert.JSONEq(t, `{"tx":"az12"}`, string(reqs[4].Params))

	_, err = rpc.Status(ctx, mock.NewClient(mock.NewMethodMatcher().Map(types.MethodStatus, json.RawMessage(`[1]`))))
	assert.ErrorIs(t, err, types.ErrProtocol)
}

func TestDecodeEvent(t *testing.T) {
	q := types.QueryForEvent(types.EventNewRound)
	bz, err := cmtjson.Marshal(&ctypes.ResultEvent{
		Query:  q,
		Data:   cmttypes.EventDataString("proposal"),
		Events: map[string][]string{types.EventTypeKey: {types.EventNewRound}},
	})
	require.NoError(t, err)

	res, err := rpc.DecodeEvent(types.Event{SubscriptionID: "1", Query: q, Data: bz})
	require.NoError(t, err)
	assert.Equal(t, q, res.Query)
	assert.Equal(t, cmttypes.EventDataString("proposal"), res.Data)
	assert.Equal(t, []string{types.EventNewRound}, res.Events[types.EventTypeKey])

	res, err = rpc.DecodeEvent(types.Event{Query: q, Data: json.RawMessage(`{"query":"","data":null,"events":{}}`)})
	require.NoError(t, err)
	assert.Equal(t, q, res.Query)
	assert.Nil(t, res.Data)

	_, err = rpc.DecodeEvent(types.Event{Data: json.RawMessage(`"oops"`)})
	assert.ErrorIs(t, err, types.ErrProtocol)
}
