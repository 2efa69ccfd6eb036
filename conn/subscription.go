package conn

import (
	"sync"

	"github.com/DOIDFoundation/tmrpc/types"
)

// Subscription is the consuming handle of a bound subscription.
//
// Events are delivered on Events in the order the node pushed them. The
// channel is closed exactly once, after which Err tells why.
type Subscription struct {
	id       string
	query    string
	registry *Registry

	out chan types.Event
	// sendMtx serializes delivery against closing out.
	sendMtx   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

func newSubscription(r *Registry, id, query string) *Subscription {
	return &Subscription{
		id:       id,
		query:    query,
		registry: r,
		out:      make(chan types.Event, r.cfg.EventBuffer),
		done:     make(chan struct{}),
	}
}

func (s *Subscription) ID() string { return s.id }

func (s *Subscription) Query() string { return s.query }

func (s *Subscription) Events() <-chan types.Event { return s.out }

// Done is closed when the subscription terminates.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the reason the subscription terminated. It is nil while the
// subscription is live and when the caller closed or unsubscribed it.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close removes the subscription from its registry without notifying the
// node. Events that arrive for it afterwards are discarded.
func (s *Subscription) Close() {
	s.registry.remove(s)
	s.terminate(nil)
}

// deliver forwards ev according to policy. It reports false if the
// subscription terminated first.
func (s *Subscription) deliver(ev types.Event, policy OverflowPolicy) (delivered bool, dropped int) {
	s.sendMtx.Lock()
	defer s.sendMtx.Unlock()

	select {
	case <-s.done:
		return false, 0
	default:
	}
	if policy != OverflowDropOldest {
		select {
		case s.out <- ev:
			return true, 0
		case <-s.done:
			return false, 0
		}
	}
	for {
		select {
		case s.out <- ev:
			return true, dropped
		default:
		}
		select {
		case <-s.out:
			dropped++
		default:
		}
	}
}

func (s *Subscription) terminate(err error) bool {
	closed := false
	s.closeOnce.Do(func() {
		s.err = err
		close(s.done)
		// A blocked deliver returns once done is closed.
		s.sendMtx.Lock()
		close(s.out)
		s.sendMtx.Unlock()
		closed = true
	})
	return closed
}
