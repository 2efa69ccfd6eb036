package conn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DOIDFoundation/tmrpc/events"
	"github.com/DOIDFoundation/tmrpc/types"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/libs/service"
)

// Driver owns one persistent connection. It multiplexes calls and
// subscriptions over a single stream: one goroutine reads and dispatches
// frames, another writes requests in submission order.
//
// A Driver goes through Disconnected, Connecting, Open, Closing and Closed
// exactly once. It never reconnects; a new connection needs a new Driver.
type Driver struct {
	service.BaseService

	cfg      Config
	dial     DialFunc
	ids      IDSource
	metrics  *Metrics
	table    *Table
	registry *Registry
	states   events.FeedOf[State]

	openCtx context.Context
	idMtx   sync.Mutex

	mtx   sync.RWMutex
	state State
	err   error

	stream     Stream
	sendq      chan []byte
	closing    chan struct{}
	closeOnce  sync.Once
	readerDone chan struct{}
	writerDone chan struct{}
	done       chan struct{}

	malformedRun int
}

// Option sets a parameter for the driver.
type Option func(*Driver)

func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

func WithIDSource(ids IDSource) Option {
	return func(d *Driver) { d.ids = ids }
}

// NewDriver returns a driver that connects with dial when started.
func NewDriver(dial DialFunc, cfg Config, logger log.Logger, opts ...Option) *Driver {
	d := &Driver{
		cfg:        cfg,
		dial:       dial,
		sendq:      make(chan []byte, cfg.WriteQueue),
		closing:    make(chan struct{}),
		readerDone: make(chan struct{}),
		writerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = NopMetrics()
	}
	if d.ids == nil {
		ids, err := NewIDSource(cfg.IDScheme)
		if err != nil {
			ids = &CounterIDs{}
		}
		d.ids = ids
	}
	logger = logger.With("module", "conn")
	d.table = NewTable(logger, d.metrics)
	d.registry = NewRegistry(logger, cfg, d.metrics)
	d.BaseService = *service.NewBaseService(logger, "Driver", d)
	return d
}

// Open starts the driver, using ctx for the handshake.
func (d *Driver) Open(ctx context.Context) error {
	d.openCtx = ctx
	return d.Start()
}

// OnStart dials the stream. It implements service.Service.
func (d *Driver) OnStart() error {
	if d.State() != StateDisconnected {
		return fmt.Errorf("%w: driver can't be reopened", types.ErrNotConnected)
	}
	d.setState(StateConnecting)

	ctx := d.openCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if d.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.HandshakeTimeout)
		defer cancel()
	}
	stream, err := d.dial(ctx)
	if err != nil {
		cerr := &types.ClosedError{Reason: types.CloseReasonHandshake, Cause: err}
		d.mtx.Lock()
		d.err = cerr
		d.mtx.Unlock()
		d.Logger.Error("Handshake failed", "err", err)
		d.registry.UnbindAll(cerr)
		d.table.FailAll(cerr)
		d.setState(StateClosed)
		close(d.done)
		d.states.Close()
		return cerr
	}

	d.stream = stream
	d.setState(StateOpen)
	go d.readLoop()
	go d.writeLoop()
	return nil
}

// OnStop closes the connection and waits until it is closed. It implements
// service.Service.
func (d *Driver) OnStop() {
	d.beginClose(types.CloseReasonClient, nil)
	<-d.done
}

// Close stops the driver. It is safe to call more than once.
func (d *Driver) Close() error {
	if err := d.Stop(); err != nil && !errors.Is(err, service.ErrAlreadyStopped) && !errors.Is(err, service.ErrNotStarted) {
		return err
	}
	if d.State() != StateDisconnected {
		<-d.done
	}
	return nil
}

func (d *Driver) State() State {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return d.state
}

// Err returns the terminal *types.ClosedError once the connection is closing.
func (d *Driver) Err() error {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	return d.err
}

// Done is closed when the connection reached StateClosed.
func (d *Driver) Done() <-chan struct{} { return d.done }

// SubscribeState calls cb with every state the driver enters afterwards.
func (d *Driver) SubscribeState(id string, cb func(State)) {
	d.states.Subscribe(id, cb)
}

func (d *Driver) UnsubscribeState(id string) {
	d.states.Unsubscribe(id).Wait()
}

// Pending returns the number of calls waiting for a response.
func (d *Driver) Pending() int { return d.table.Len() }

// Queued returns the number of requests waiting to be written.
func (d *Driver) Queued() int { return len(d.sendq) }

// Subscriptions returns the number of bound subscriptions.
func (d *Driver) Subscriptions() int { return d.registry.Len() }

func (d *Driver) setState(s State) {
	d.mtx.Lock()
	prev := d.state
	d.state = s
	d.mtx.Unlock()
	d.Logger.Info("Connection state changed", "from", prev, "to", s)
	d.states.Send(s)
}

func (d *Driver) ready() error {
	switch d.State() {
	case StateOpen:
		return nil
	case StateClosing, StateClosed:
		return fmt.Errorf("%w: %w", types.ErrNotConnected, d.Err())
	}
	return types.ErrNotConnected
}

func (d *Driver) inUse(id types.ID) bool {
	return d.table.Has(id) || d.registry.Has(id.String())
}

// Call sends a request and waits for its response. An error response from
// the node is returned in the response, err is reserved for failures of the
// call itself.
func (d *Driver) Call(ctx context.Context, method string, params interface{}) (*types.Response, error) {
	w, err := d.enqueue(ctx, method, params, nil)
	if err != nil {
		return nil, err
	}
	return w.Wait(ctx)
}

// SubscribeRequest describes a subscribe call.
type SubscribeRequest struct {
	Method string
	Params interface{}
	Query  string
	// IDFromRequest is set when the node uses the request id as subscription
	// id. Otherwise the id is read from the result.
	IDFromRequest bool
}

// Subscribe performs a subscribe call. The subscription is bound before the
// response is handed back, so no event pushed after the response is lost.
func (d *Driver) Subscribe(ctx context.Context, req SubscribeRequest) (*Subscription, error) {
	var (
		sub      *Subscription
		expected string
	)
	w, err := d.enqueue(ctx, req.Method, req.Params, func(id types.ID) BindHook {
		if req.IDFromRequest {
			expected = id.String()
			d.registry.Expect(expected)
		}
		return func(resp *types.Response) error {
			subID := expected
			if !req.IDFromRequest {
				var sid types.ID
				if err := json.Unmarshal(resp.Result, &sid); err != nil {
					return fmt.Errorf("invalid subscription id: %w", err)
				}
				subID = sid.String()
			}
			s, err := d.registry.Bind(subID, req.Query)
			if err != nil {
				return err
			}
			sub = s
			return nil
		}
	})
	if err != nil {
		if expected != "" {
			d.registry.Unexpect(expected)
		}
		return nil, err
	}

	resp, err := w.Wait(ctx)
	if err == nil && resp.Error != nil {
		err = resp.Error
	}
	if err != nil {
		if expected != "" {
			d.registry.Unexpect(expected)
		}
		if sub != nil {
			sub.Close()
		}
		return nil, err
	}
	return sub, nil
}

// Unbind closes the local subscription id without notifying the node.
func (d *Driver) Unbind(id string) bool {
	return d.registry.Unbind(id, nil)
}

func (d *Driver) enqueue(ctx context.Context, method string, params interface{}, prepare func(types.ID) BindHook) (*Waiter, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}

	d.idMtx.Lock()
	id := d.ids.NextID(d.inUse)
	req, err := types.NewRequest(id, method, params)
	if err != nil {
		d.idMtx.Unlock()
		return nil, err
	}
	bz, err := req.Encode()
	if err != nil {
		d.idMtx.Unlock()
		return nil, err
	}
	var hook BindHook
	if prepare != nil {
		hook = prepare(id)
	}
	w, err := d.table.Register(id, hook)
	d.idMtx.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case d.sendq <- bz:
		return w, nil
	case <-d.closing:
		// The waiter is failed by the close sequence.
		return w, nil
	case <-ctx.Done():
		d.table.Forget(id)
		return nil, ctx.Err()
	}
}

func (d *Driver) beginClose(reason types.CloseReason, cause error) {
	d.closeOnce.Do(func() {
		cerr := &types.ClosedError{Reason: reason, Cause: cause}
		d.mtx.Lock()
		d.err = cerr
		d.mtx.Unlock()
		if reason == types.CloseReasonClient {
			d.Logger.Info("Closing connection")
		} else {
			d.Logger.Error("Connection failed", "reason", reason, "err", cause)
		}
		d.setState(StateClosing)
		close(d.closing)
		go d.closeLoop()
	})
}

func (d *Driver) closeLoop() {
	<-d.writerDone
	if err := d.stream.Close(); err != nil {
		d.Logger.Debug("Failed to close stream", "err", err)
	}
	err := d.Err()
	d.registry.UnbindAll(err)
	d.table.FailAll(err)
	<-d.readerDone

	d.setState(StateClosed)
	close(d.done)
	d.states.Close()

	// Keep the service state in line when the connection died on its own.
	if err := d.Stop(); err != nil && !errors.Is(err, service.ErrAlreadyStopped) {
		d.Logger.Error("Failed to stop driver", "err", err)
	}
}

func (d *Driver) readLoop() {
	defer close(d.readerDone)
	for {
		data, err := d.stream.ReadMessage()
		if err != nil {
			select {
			case <-d.closing:
				return
			default:
			}
			if errors.Is(err, ErrPeerClosed) {
				d.beginClose(types.CloseReasonRemote, err)
			} else {
				d.beginClose(types.CloseReasonTransport, err)
			}
			return
		}
		d.metrics.FramesRead.Inc()
		if !d.dispatch(types.DecodeFrame(data)) {
			return
		}
	}
}

// dispatch handles one frame and reports whether reading should go on.
func (d *Driver) dispatch(f types.Frame) bool {
	if f.Kind == types.FrameMalformed {
		d.malformedRun++
		d.metrics.MalformedFrames.Inc()
		d.Logger.Error("Malformed frame", "err", f.Err, "run", d.malformedRun)
		if d.cfg.MaxMalformedRun > 0 && d.malformedRun > d.cfg.MaxMalformedRun {
			d.beginClose(types.CloseReasonCorrupted, f.Err)
			return false
		}
		return true
	}
	d.malformedRun = 0

	switch f.Kind {
	case types.FrameResponse:
		if d.table.Resolve(f.Response) {
			return true
		}
		// Newer nodes cancel a subscription with an error carrying the
		// subscribe request id.
		if subID := f.Response.ID.String(); f.Response.Error != nil && d.registry.Has(subID) {
			if d.registry.Unbind(subID, f.Response.Error) {
				d.Logger.Info("Subscription terminated by node", "subscription", subID, "err", f.Response.Error)
			}
		} else {
			d.metrics.LateResponses.Inc()
			d.Logger.Debug("Discarding response without waiter", "id", f.Response.ID.Key())
		}
	case types.FrameNotification:
		subID := f.Event.SubscriptionID
		// Event frames may reuse a request id; they only count as a response
		// when that id is not a subscription.
		if f.Response != nil && !d.registry.Has(subID) && d.table.Resolve(f.Response) {
			return true
		}
		if f.Err != nil {
			if d.registry.Unbind(subID, f.Err) {
				d.Logger.Info("Subscription terminated by node", "subscription", subID, "err", f.Err)
			}
			return true
		}
		d.registry.Route(*f.Event)
	}
	return true
}

func (d *Driver) writeLoop() {
	defer close(d.writerDone)

	var ping <-chan time.Time
	if d.cfg.PingPeriod > 0 {
		ticker := time.NewTicker(d.cfg.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case bz := <-d.sendq:
			if err := d.stream.WriteMessage(bz, time.Now().Add(d.cfg.WriteWait)); err != nil {
				d.beginClose(types.CloseReasonTransport, err)
				return
			}
		case <-ping:
			if err := d.stream.WritePing(time.Now().Add(d.cfg.WriteWait)); err != nil {
				d.beginClose(types.CloseReasonTransport, err)
				return
			}
		case <-d.closing:
			d.drain()
			return
		}
	}
}

// drain flushes queued requests within DrainTimeout and says goodbye to the
// peer. Only a locally initiated close leaves a stream worth draining.
func (d *Driver) drain() {
	var closed *types.ClosedError
	if !errors.As(d.Err(), &closed) {
		return
	}
	switch closed.Reason {
	case types.CloseReasonClient:
	case types.CloseReasonCorrupted:
		d.writeClose()
		return
	default:
		return
	}

	timer := time.NewTimer(d.cfg.DrainTimeout)
	defer timer.Stop()
	for {
		select {
		case bz := <-d.sendq:
			if err := d.stream.WriteMessage(bz, time.Now().Add(d.cfg.WriteWait)); err != nil {
				d.Logger.Debug("Drain interrupted", "err", err)
				return
			}
		case <-timer.C:
			d.Logger.Info("Drain timed out", "queued", len(d.sendq))
			d.writeClose()
			return
		default:
			d.writeClose()
			return
		}
	}
}

func (d *Driver) writeClose() {
	if err := d.stream.WriteClose(time.Now().Add(d.cfg.WriteWait)); err != nil {
		d.Logger.Debug("Failed to send close frame", "err", err)
	}
}
