package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a JSON-RPC request identifier. It is either an integer or a string;
// the two forms never compare equal, so 1 and "1" are distinct identifiers.
type ID struct {
	num   int64
	str   string
	isStr bool
}

func NewIntID(n int64) ID { return ID{num: n} }

func NewStringID(s string) ID { return ID{str: s, isStr: true} }

func (id ID) IsString() bool { return id.isStr }

// Int returns the numeric value of the identifier and whether it is numeric.
func (id ID) Int() (int64, bool) { return id.num, !id.isStr }

// String returns the identifier without JSON quoting.
func (id ID) String() string {
	if id.isStr {
		return id.str
	}
	return strconv.FormatInt(id.num, 10)
}

// Key returns the canonical correlation key, which is the JSON encoding of the
// identifier.
func (id ID) Key() string {
	if id.isStr {
		return strconv.Quote(id.str)
	}
	return strconv.FormatInt(id.num, 10)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.isStr {
		return json.Marshal(id.str)
	}
	return []byte(strconv.FormatInt(id.num, 10)), nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: missing id", ErrProtocol)
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: invalid id %s: %v", ErrProtocol, data, err)
		}
		*id = NewStringID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: id must be an integer or a string, got %s", ErrProtocol, data)
	}
	*id = NewIntID(n)
	return nil
}
