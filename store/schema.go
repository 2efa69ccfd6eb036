package store

var (
	fixturePrefix = []byte("f") // fixturePrefix + method + 0x00 + params -> fixture
	separator     = byte(0)
)

// methodKey = fixturePrefix + method + 0x00
func methodKey(method string) []byte {
	key := append([]byte{}, fixturePrefix...)
	key = append(key, method...)
	return append(key, separator)
}

// fixtureKey = fixturePrefix + method + 0x00 + params
func fixtureKey(method string, params []byte) []byte {
	return append(methodKey(method), params...)
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
