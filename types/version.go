package types

import "fmt"

// Version is the only JSON-RPC protocol version spoken on the wire.
const Version = "2.0"

func validateVersion(v string) error {
	if v != Version {
		return fmt.Errorf("%w: unsupported jsonrpc version %q", ErrProtocol, v)
	}
	return nil
}
