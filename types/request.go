package types

import (
	"encoding/json"
	"fmt"

	cmtjson "github.com/cometbft/cometbft/libs/json"
)

// Request is a JSON-RPC request envelope. Params are already encoded and the
// request is not modified after construction.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func NewRequest(id ID, method string, params interface{}) (*Request, error) {
	raw, err := EncodeParams(params)
	if err != nil {
		return nil, err
	}
	return &Request{JSONRPC: Version, ID: id, Method: method, Params: raw}, nil
}

// EncodeParams encodes request parameters the way a CometBFT node expects them
// (64-bit integers as strings, byte slices as base64). json.RawMessage values
// are passed through untouched and nil yields no params at all.
func EncodeParams(params interface{}) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if len(p) == 0 {
			return nil, nil
		}
		if !json.Valid(p) {
			return nil, fmt.Errorf("%w: params are not valid JSON", ErrProtocol)
		}
		return append(json.RawMessage(nil), p...), nil
	}
	bz, err := cmtjson.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	return bz, nil
}

func (r *Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRequest parses a single request envelope.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if err := validateVersion(req.JSONRPC); err != nil {
		return nil, err
	}
	if req.Method == "" {
		return nil, fmt.Errorf("%w: request without method", ErrProtocol)
	}
	return &req, nil
}
