package conn

import (
	"fmt"
	"math"
	"sync"

	"github.com/DOIDFoundation/tmrpc/types"
	"github.com/google/uuid"
)

// IDSource hands out request identifiers. inUse reports identifiers that are
// still outstanding on the connection; a source must never return one of them.
type IDSource interface {
	NextID(inUse func(types.ID) bool) types.ID
}

// CounterIDs generates increasing integer ids, wrapping back to 1 after Max.
type CounterIDs struct {
	mtx  sync.Mutex
	next uint32

	// Max is the largest id handed out, math.MaxInt32 when zero.
	Max uint32
}

func (c *CounterIDs) NextID(inUse func(types.ID) bool) types.ID {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	limit := c.Max
	if limit == 0 {
		limit = math.MaxInt32
	}
	for {
		c.next++
		if c.next > limit || c.next == 0 {
			c.next = 1
		}
		id := types.NewIntID(int64(c.next))
		if inUse == nil || !inUse(id) {
			return id
		}
	}
}

// UUIDIDs generates random string ids.
type UUIDIDs struct{}

func (UUIDIDs) NextID(inUse func(types.ID) bool) types.ID {
	for {
		id := types.NewStringID(uuid.NewString())
		if inUse == nil || !inUse(id) {
			return id
		}
	}
}

const (
	IDSchemeCounter = "counter"
	IDSchemeUUID    = "uuid"
)

// NewIDSource returns the id source named by scheme.
func NewIDSource(scheme string) (IDSource, error) {
	switch scheme {
	case "", IDSchemeCounter:
		return &CounterIDs{}, nil
	case IDSchemeUUID:
		return UUIDIDs{}, nil
	}
	return nil, fmt.Errorf("unknown id scheme %q", scheme)
}
