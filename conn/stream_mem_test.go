package conn_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DOIDFoundation/tmrpc/conn"
	"github.com/DOIDFoundation/tmrpc/types"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/require"
)

// memStream is an in-memory Stream; the test plays the node on the other end.
type memStream struct {
	in         chan []byte
	out        chan []byte
	closed     chan struct{}
	closeOnce  sync.Once
	peerClosed chan struct{}
	peerOnce   sync.Once
	failWrites atomic.Bool
	closeSent  atomic.Bool

	// Set before the first write. Writes wait until gate is closed and take
	// writeDelay each.
	gate       chan struct{}
	writeDelay time.Duration
}

func newMemStream() *memStream {
	return &memStream{
		in:         make(chan []byte, 64),
		out:        make(chan []byte, 64),
		closed:     make(chan struct{}),
		peerClosed: make(chan struct{}),
	}
}

func (s *memStream) ReadMessage() ([]byte, error) {
	select {
	case b := <-s.in:
		return b, nil
	case <-s.peerClosed:
		return nil, fmt.Errorf("%w: going away", conn.ErrPeerClosed)
	case <-s.closed:
		return nil, io.EOF
	}
}

func (s *memStream) WriteMessage(data []byte, _ time.Time) error {
	if s.failWrites.Load() {
		return io.ErrClosedPipe
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-s.closed:
			return io.ErrClosedPipe
		}
	}
	if s.writeDelay > 0 {
		time.Sleep(s.writeDelay)
	}
	select {
	case s.out <- data:
		return nil
	case <-s.closed:
		return io.ErrClosedPipe
	}
}

func (s *memStream) WritePing(time.Time) error { return nil }

func (s *memStream) WriteClose(time.Time) error {
	s.closeSent.Store(true)
	return nil
}

func (s *memStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *memStream) closeFromPeer() {
	s.peerOnce.Do(func() { close(s.peerClosed) })
}

func (s *memStream) push(frame string) {
	s.in <- []byte(frame)
}

func (s *memStream) nextRequest(t *testing.T) *types.Request {
	t.Helper()
	select {
	case bz := <-s.out:
		req, err := types.DecodeRequest(bz)
		require.NoError(t, err)
		return req
	case <-time.After(5 * time.Second):
		t.Fatal("no request written")
		return nil
	}
}

func (s *memStream) respond(t *testing.T, id types.ID, result string) {
	t.Helper()
	bz, err := types.NewResultResponse(id, json.RawMessage(result)).Encode()
	require.NoError(t, err)
	s.in <- bz
}

func testConfig() conn.Config {
	cfg := conn.DefaultConfig
	cfg.PingPeriod = 0
	cfg.DrainTimeout = time.Second
	return cfg
}

func testLogger() log.Logger {
	return log.NewTMLogger(log.NewSyncWriter(os.Stdout))
}

func openDriver(t *testing.T, cfg conn.Config) (*conn.Driver, *memStream) {
	t.Helper()
	return openDriverOn(t, cfg, newMemStream())
}

func openDriverOn(t *testing.T, cfg conn.Config, s *memStream) (*conn.Driver, *memStream) {
	t.Helper()
	d := conn.NewDriver(func(context.Context) (conn.Stream, error) { return s, nil }, cfg, testLogger())
	require.NoError(t, d.Open(context.Background()))
	t.Cleanup(func() { d.Close() })
	return d, s
}

type callResult struct {
	resp *types.Response
	err  error
}

func callAsync(d *conn.Driver, ctx context.Context, method string, params interface{}) <-chan callResult {
	ch := make(chan callResult, 1)
	go func() {
		resp, err := d.Call(ctx, method, params)
		ch <- callResult{resp, err}
	}()
	return ch
}

func waitResult(t *testing.T, ch <-chan callResult) callResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("call did not return")
		return callResult{}
	}
}

func nextEvent(t *testing.T, sub *conn.Subscription) types.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
		return types.Event{}
	}
}
