package types

import (
	"errors"
	"fmt"
)

var (
	ErrTransport            = errors.New("transport error")
	ErrProtocol             = errors.New("protocol error")
	ErrNotConnected         = errors.New("not connected")
	ErrDuplicateID          = errors.New("duplicate request id")
	ErrAlreadyBound         = errors.New("subscription id already bound")
	ErrTimeout              = errors.New("request timed out")
	ErrUnsupportedOperation = errors.New("operation not supported by client")
	ErrHandshakeFailed      = errors.New("handshake failed")
	ErrStreamCorrupted      = errors.New("stream corrupted")
	ErrRemoteClosed         = errors.New("closed by remote peer")
	ErrConnectionClosed     = errors.New("connection closed")
)

// CloseReason records why a connection reached its terminal state.
type CloseReason int

const (
	CloseReasonClient CloseReason = iota
	CloseReasonRemote
	CloseReasonTransport
	CloseReasonCorrupted
	CloseReasonHandshake
)

func (r CloseReason) String() string {
	switch r {
	case CloseReasonClient:
		return "client"
	case CloseReasonRemote:
		return "remote"
	case CloseReasonTransport:
		return "transport"
	case CloseReasonCorrupted:
		return "corrupted"
	case CloseReasonHandshake:
		return "handshake"
	}
	return fmt.Sprintf("CloseReason(%d)", int(r))
}

func (r CloseReason) sentinel() error {
	switch r {
	case CloseReasonRemote:
		return ErrRemoteClosed
	case CloseReasonTransport:
		return ErrTransport
	case CloseReasonCorrupted:
		return ErrStreamCorrupted
	case CloseReasonHandshake:
		return ErrHandshakeFailed
	}
	return nil
}

// ClosedError is the terminal error of a connection. Every pending call and
// subscription of that connection observes the same value.
//
// errors.Is reports true for ErrConnectionClosed and for the sentinel matching
// the reason, so callers can test either the generic or the specific kind.
type ClosedError struct {
	Reason CloseReason
	Cause  error
}

func (e *ClosedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("connection closed (%s)", e.Reason)
	}
	return fmt.Sprintf("connection closed (%s): %v", e.Reason, e.Cause)
}

func (e *ClosedError) Unwrap() error { return e.Cause }

func (e *ClosedError) Is(target error) bool {
	if target == ErrConnectionClosed {
		return true
	}
	if s := e.Reason.sentinel(); s != nil && target == s {
		return true
	}
	return false
}

// IsRPCError reports whether err carries an error response from the node.
func IsRPCError(err error) (*RPCError, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}
