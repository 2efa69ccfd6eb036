package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// EventIDSuffix marks event frames of Tendermint nodes that predate 0.34.
// Such frames reuse the subscribe request id with this suffix appended.
const EventIDSuffix = "#event"

type FrameKind int

const (
	FrameMalformed FrameKind = iota
	FrameResponse
	FrameNotification
)

func (k FrameKind) String() string {
	switch k {
	case FrameResponse:
		return "response"
	case FrameNotification:
		return "notification"
	}
	return "malformed"
}

// Frame is one decoded inbound message.
//
// For notifications Err is set when the node terminated the subscription. A
// notification that reuses a plain request id (CometBFT 0.34 and later) also
// carries Response, so the reader can fall back to correlation when the id is
// not a known subscription.
type Frame struct {
	Kind     FrameKind
	Response *Response
	Event    *Event
	Err      error
}

func malformed(format string, args ...interface{}) Frame {
	return Frame{Kind: FrameMalformed, Err: fmt.Errorf("%w: "+format, append([]interface{}{ErrProtocol}, args...)...)}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// DecodeFrame classifies a single inbound message. It never fails: anything
// that is not a well formed response or notification yields FrameMalformed.
func DecodeFrame(data []byte) Frame {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return malformed("%v", err)
	}
	var version string
	if err := json.Unmarshal(fields["jsonrpc"], &version); err != nil {
		return malformed("missing jsonrpc version")
	}
	if err := validateVersion(version); err != nil {
		return Frame{Kind: FrameMalformed, Err: err}
	}

	rawID, hasID := fields["id"]
	if hasID && isNull(rawID) {
		hasID = false
	}
	if _, ok := fields["method"]; ok && !hasID {
		return decodeNotification(fields)
	}
	if !hasID {
		return malformed("frame without id or method")
	}
	var id ID
	if err := json.Unmarshal(rawID, &id); err != nil {
		return Frame{Kind: FrameMalformed, Err: err}
	}

	result, hasResult := fields["result"]
	rawErr, hasErr := fields["error"]
	if hasErr && isNull(rawErr) {
		hasErr = false
	}
	var rpcErr *RPCError
	if hasErr {
		rpcErr = new(RPCError)
		if err := json.Unmarshal(rawErr, rpcErr); err != nil {
			return malformed("invalid error object: %v", err)
		}
	}

	if id.IsString() && strings.HasSuffix(id.String(), EventIDSuffix) {
		subID := strings.TrimSuffix(id.String(), EventIDSuffix)
		ev := &Event{SubscriptionID: subID}
		if rpcErr != nil {
			return Frame{Kind: FrameNotification, Event: ev, Err: rpcErr}
		}
		if !hasResult {
			return malformed("event %s without result", id.Key())
		}
		ev.Query, ev.Data = eventQuery(result), result
		return Frame{Kind: FrameNotification, Event: ev}
	}

	if hasResult == hasErr {
		return malformed("response %s must carry exactly one of result and error", id.Key())
	}
	resp := &Response{JSONRPC: version, ID: id, Result: result, Error: rpcErr}
	if hasResult && isEventPayload(result) {
		ev := &Event{SubscriptionID: id.String(), Query: eventQuery(result), Data: result}
		return Frame{Kind: FrameNotification, Event: ev, Response: resp}
	}
	return Frame{Kind: FrameResponse, Response: resp}
}

type notificationParams struct {
	Subscription *ID            `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

func decodeNotification(fields map[string]json.RawMessage) Frame {
	var params notificationParams
	if err := json.Unmarshal(fields["params"], &params); err != nil {
		return malformed("invalid notification params: %v", err)
	}
	if params.Subscription == nil {
		return malformed("notification without subscription id")
	}
	return Frame{Kind: FrameNotification, Event: &Event{
		SubscriptionID: params.Subscription.String(),
		Data:           params.Result,
	}}
}

// isEventPayload reports whether a result object has the shape of a
// CometBFT ResultEvent.
func isEventPayload(result json.RawMessage) bool {
	trimmed := bytes.TrimSpace(result)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return false
	}
	_, hasQuery := keys["query"]
	_, hasData := keys["data"]
	return hasQuery && hasData
}

func eventQuery(result json.RawMessage) string {
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return ""
	}
	return payload.Query
}
