package conn

import (
	"fmt"
	"sync"

	"github.com/DOIDFoundation/tmrpc/types"
	"github.com/cometbft/cometbft/libs/log"
)

// Registry routes pushed events to bound subscriptions.
//
// Ids of subscribe calls still in flight can be announced with Expect; events
// that arrive for them before Bind are queued (up to EarlyEventLimit) and
// delivered first once bound. Events for any other unknown id are dropped.
type Registry struct {
	mtx      sync.Mutex
	logger   log.Logger
	cfg      Config
	metrics  *Metrics
	subs     map[string]*Subscription
	expected map[string][]types.Event
	err      error
}

func NewRegistry(logger log.Logger, cfg Config, metrics *Metrics) *Registry {
	if metrics == nil {
		metrics = NopMetrics()
	}
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = 1
	}
	if cfg.EarlyEventLimit > cfg.EventBuffer {
		cfg.EarlyEventLimit = cfg.EventBuffer
	}
	return &Registry{
		logger:   logger,
		cfg:      cfg,
		metrics:  metrics,
		subs:     make(map[string]*Subscription),
		expected: make(map[string][]types.Event),
	}
}

// Expect marks id as the subscription id of a subscribe call in flight.
func (r *Registry) Expect(id string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.err != nil {
		return
	}
	if _, ok := r.expected[id]; !ok {
		r.expected[id] = nil
	}
}

// Unexpect forgets a subscribe call that failed, dropping queued events.
func (r *Registry) Unexpect(id string) {
	r.mtx.Lock()
	queued, ok := r.expected[id]
	delete(r.expected, id)
	r.mtx.Unlock()
	if ok && len(queued) > 0 {
		r.metrics.DroppedEvents.Add(float64(len(queued)))
	}
}

// Bind creates the subscription for id. Events queued for id are delivered
// before any event routed after Bind returns.
func (r *Registry) Bind(id, query string) (*Subscription, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	if _, ok := r.subs[id]; ok {
		r.logger.Error("Subscription id bound twice", "id", id, "query", query)
		return nil, fmt.Errorf("%w: %s", types.ErrAlreadyBound, id)
	}
	s := newSubscription(r, id, query)
	// The queue never exceeds the channel capacity, these sends do not block.
	for _, ev := range r.expected[id] {
		s.out <- ev
	}
	delete(r.expected, id)
	r.subs[id] = s
	r.metrics.Subscriptions.Set(float64(len(r.subs)))
	r.logger.Debug("Subscription bound", "id", id, "query", query)
	return s, nil
}

// Route forwards ev to its subscription. It reports whether the event was
// delivered or queued.
func (r *Registry) Route(ev types.Event) bool {
	r.mtx.Lock()
	s, ok := r.subs[ev.SubscriptionID]
	if !ok {
		queued, expected := r.expected[ev.SubscriptionID]
		if expected && len(queued) < r.cfg.EarlyEventLimit {
			r.expected[ev.SubscriptionID] = append(queued, ev)
			r.mtx.Unlock()
			return true
		}
		r.mtx.Unlock()
		r.metrics.DroppedEvents.Inc()
		r.logger.Debug("Dropping event", "subscription", ev.SubscriptionID, "expected", expected)
		return false
	}
	r.mtx.Unlock()

	delivered, dropped := s.deliver(ev, r.cfg.Overflow)
	if dropped > 0 {
		r.metrics.DroppedEvents.Add(float64(dropped))
		r.logger.Debug("Subscriber is slow, dropped oldest events", "subscription", s.id, "dropped", dropped)
	}
	if !delivered {
		r.metrics.DroppedEvents.Inc()
	}
	return delivered
}

// Unbind removes the subscription for id and closes it with err. It reports
// whether a subscription was bound.
func (r *Registry) Unbind(id string, err error) bool {
	r.mtx.Lock()
	s, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
		r.metrics.Subscriptions.Set(float64(len(r.subs)))
	}
	r.mtx.Unlock()
	if !ok {
		return false
	}
	s.terminate(err)
	return true
}

// UnbindAll closes every subscription with err and rejects later binds.
// Only the first call has any effect.
func (r *Registry) UnbindAll(err error) {
	r.mtx.Lock()
	if r.err != nil {
		r.mtx.Unlock()
		return
	}
	r.err = err
	subs := r.subs
	r.subs = make(map[string]*Subscription)
	r.expected = make(map[string][]types.Event)
	r.metrics.Subscriptions.Set(0)
	r.mtx.Unlock()

	for _, s := range subs {
		s.terminate(err)
	}
}

func (r *Registry) remove(s *Subscription) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if cur, ok := r.subs[s.id]; ok && cur == s {
		delete(r.subs, s.id)
		r.metrics.Subscriptions.Set(float64(len(r.subs)))
	}
}

// Has reports whether id is bound or expected.
func (r *Registry) Has(id string) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, ok := r.subs[id]; ok {
		return true
	}
	_, ok := r.expected[id]
	return ok
}

// Len returns the number of bound subscriptions.
func (r *Registry) Len() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return len(r.subs)
}
