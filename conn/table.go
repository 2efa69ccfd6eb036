package conn

import (
	"context"
	"fmt"
	"sync"

	"github.com/DOIDFoundation/tmrpc/types"
	"github.com/cometbft/cometbft/libs/log"
)

// BindHook runs when a successful response is resolved, before the waiter is
// woken. A non-nil error replaces the outcome seen by the waiter.
type BindHook func(resp *types.Response) error

type outcome struct {
	resp *types.Response
	err  error
}

// Waiter is the caller side of one outstanding request.
type Waiter struct {
	id    types.ID
	ch    chan outcome
	hook  BindHook
	table *Table
}

func (w *Waiter) ID() types.ID { return w.id }

// Wait suspends until the request is resolved, the table fails, or ctx is
// done. An error response from the node is returned as part of the response,
// not as err.
func (w *Waiter) Wait(ctx context.Context) (*types.Response, error) {
	select {
	case o := <-w.ch:
		return o.resp, o.err
	case <-ctx.Done():
		if w.table.Forget(w.id) {
			return nil, ctx.Err()
		}
		// Resolved concurrently, the outcome is on its way.
		o := <-w.ch
		return o.resp, o.err
	}
}

// Table correlates outstanding request ids with their waiters.
type Table struct {
	mtx     sync.Mutex
	logger  log.Logger
	metrics *Metrics
	pending map[string]*Waiter
	err     error
}

func NewTable(logger log.Logger, metrics *Metrics) *Table {
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &Table{
		logger:  logger,
		metrics: metrics,
		pending: make(map[string]*Waiter),
	}
}

// Register adds an outstanding request. It fails with ErrDuplicateID if id is
// already outstanding and with the terminal error once FailAll has run.
func (t *Table) Register(id types.ID, hook BindHook) (*Waiter, error) {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if t.err != nil {
		return nil, t.err
	}
	key := id.Key()
	if _, ok := t.pending[key]; ok {
		t.logger.Error("Request id already outstanding", "id", key)
		return nil, fmt.Errorf("%w: %s", types.ErrDuplicateID, key)
	}
	w := &Waiter{id: id, ch: make(chan outcome, 1), hook: hook, table: t}
	t.pending[key] = w
	t.metrics.PendingCalls.Set(float64(len(t.pending)))
	return w, nil
}

// Resolve delivers resp to its waiter. It returns false if no request with
// that id is outstanding, in which case the response is discarded.
func (t *Table) Resolve(resp *types.Response) bool {
	t.mtx.Lock()
	key := resp.ID.Key()
	w, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
		t.metrics.PendingCalls.Set(float64(len(t.pending)))
	}
	t.mtx.Unlock()
	if !ok {
		return false
	}

	o := outcome{resp: resp}
	if w.hook != nil && resp.Error == nil {
		o.err = w.hook(resp)
	}
	w.ch <- o
	return true
}

// Forget drops an outstanding request whose caller gave up. It reports
// whether the request was still outstanding.
func (t *Table) Forget(id types.ID) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	key := id.Key()
	if _, ok := t.pending[key]; !ok {
		return false
	}
	delete(t.pending, key)
	t.metrics.PendingCalls.Set(float64(len(t.pending)))
	return true
}

// FailAll wakes every outstanding waiter with err and rejects later
// registrations. Only the first call has any effect.
func (t *Table) FailAll(err error) {
	t.mtx.Lock()
	if t.err != nil {
		t.mtx.Unlock()
		return
	}
	t.err = err
	pending := t.pending
	t.pending = make(map[string]*Waiter)
	t.metrics.PendingCalls.Set(0)
	t.mtx.Unlock()

	for _, w := range pending {
		w.ch <- outcome{err: err}
	}
}

func (t *Table) Has(id types.ID) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	_, ok := t.pending[id.Key()]
	return ok
}

func (t *Table) Len() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return len(t.pending)
}
