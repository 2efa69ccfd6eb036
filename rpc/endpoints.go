package rpc

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/DOIDFoundation/tmrpc/types"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
)

func Status(ctx context.Context, c Client) (*ctypes.ResultStatus, error) {
	result := new(ctypes.ResultStatus)
	if err := CallResult(ctx, c, types.MethodStatus, nil, result); err != nil {
		return nil, err
	}
	return result, nil
}

func Health(ctx context.Context, c Client) error {
	return CallResult(ctx, c, types.MethodHealth, nil, new(ctypes.ResultHealth))
}

func ABCIInfo(ctx context.Context, c Client) (*ctypes.ResultABCIInfo, error) {
	result := new(ctypes.ResultABCIInfo)
	if err := CallResult(ctx, c, types.MethodABCIInfo, nil, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Block fetches the block at height, or the latest one when height is nil.
func Block(ctx context.Context, c Client, height *int64) (*ctypes.ResultBlock, error) {
	var params interface{}
	if height != nil {
		params = map[string]string{"height": strconv.FormatInt(*height, 10)}
	}
	result := new(ctypes.ResultBlock)
	if err := CallResult(ctx, c, types.MethodBlock, params, result); err != nil {
		return nil, err
	}
	return result, nil
}

// BroadcastTxSync submits tx and returns the CheckTx result.
func BroadcastTxSync(ctx context.Context, c Client, tx cmttypes.Tx) (*ctypes.ResultBroadcastTx, error) {
	params := map[string]string{"tx": base64.StdEncoding.EncodeToString(tx)}
	result := new(ctypes.ResultBroadcastTx)
	if err := CallResult(ctx, c, types.MethodBroadcastTxSync, params, result); err != nil {
		return nil, err
	}
	return result, nil
}

// DecodeEvent decodes the payload of an event pushed by a CometBFT node.
func DecodeEvent(ev types.Event) (*ctypes.ResultEvent, error) {
	result := &ctypes.ResultEvent{Query: ev.Query}
	if len(ev.Data) == 0 {
		return result, nil
	}
	if err := cmtjson.Unmarshal(ev.Data, result); err != nil {
		return nil, fmt.Errorf("%w: decode event: %v", types.ErrProtocol, err)
	}
	if result.Query == "" {
		result.Query = ev.Query
	}
	return result, nil
}
