package types

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// RPCError is an error response produced by the node. It is local to the call
// that received it and never affects the connection.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) == 0 {
		return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
	}
	var data string
	if err := json.Unmarshal(e.Data, &data); err != nil {
		data = string(e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, data)
}

// Response is a JSON-RPC response envelope carrying either a result or an
// error, never both.
type Response struct {
	JSONRPC string
	ID      ID
	Result  json.RawMessage
	Error   *RPCError
}

type responseJSON struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func NewResultResponse(id ID, result json.RawMessage) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

func NewErrorResponse(id ID, err *RPCError) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: err}
}

func (r *Response) Encode() ([]byte, error) {
	out := responseJSON{JSONRPC: r.JSONRPC, ID: r.ID, Error: r.Error}
	if out.JSONRPC == "" {
		out.JSONRPC = Version
	}
	if r.Error == nil {
		out.Result = r.Result
		if len(out.Result) == 0 {
			out.Result = json.RawMessage("null")
		}
	}
	return json.Marshal(out)
}
