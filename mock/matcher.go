package mock

import (
	"encoding/json"
	"sync"

	"github.com/DOIDFoundation/tmrpc/store"
	"github.com/DOIDFoundation/tmrpc/types"
)

// Outcome is the canned answer to a request: a result or an error.
type Outcome struct {
	Result json.RawMessage
	Err    *types.RPCError
}

// Matcher picks the outcome for a request. It reports false when it has no
// answer.
type Matcher interface {
	Match(req *types.Request) (Outcome, bool)
}

type MatcherFunc func(req *types.Request) (Outcome, bool)

func (f MatcherFunc) Match(req *types.Request) (Outcome, bool) { return f(req) }

// Matchers tries each matcher in order.
type Matchers []Matcher

func (ms Matchers) Match(req *types.Request) (Outcome, bool) {
	for _, m := range ms {
		if o, ok := m.Match(req); ok {
			return o, true
		}
	}
	return Outcome{}, false
}

// MethodMatcher answers by method name, ignoring params.
type MethodMatcher struct {
	mtx      sync.RWMutex
	outcomes map[string]Outcome
}

func NewMethodMatcher() *MethodMatcher {
	return &MethodMatcher{outcomes: make(map[string]Outcome)}
}

// Map answers method with result. It panics if result can't be encoded.
func (m *MethodMatcher) Map(method string, result interface{}) *MethodMatcher {
	raw, err := types.EncodeParams(result)
	if err != nil {
		panic(err)
	}
	if raw == nil {
		raw = json.RawMessage("null")
	}
	return m.set(method, Outcome{Result: raw})
}

// MapError answers method with an error response.
func (m *MethodMatcher) MapError(method string, err *types.RPCError) *MethodMatcher {
	return m.set(method, Outcome{Err: err})
}

func (m *MethodMatcher) set(method string, o Outcome) *MethodMatcher {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.outcomes[method] = o
	return m
}

func (m *MethodMatcher) Match(req *types.Request) (Outcome, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	o, ok := m.outcomes[req.Method]
	return o, ok
}

// FixtureMatcher answers from recorded fixtures.
func FixtureMatcher(s *store.FixtureStore) Matcher {
	return MatcherFunc(func(req *types.Request) (Outcome, bool) {
		f := s.ReadFixture(req.Method, req.Params)
		if f == nil {
			return Outcome{}, false
		}
		return Outcome{Result: f.Result, Err: f.Error}, true
	})
}

// Respond builds the response of m to req. Unmatched requests get a method
// not found error.
func Respond(m Matcher, req *types.Request) *types.Response {
	o, ok := m.Match(req)
	if !ok {
		return types.NewErrorResponse(req.ID, &types.RPCError{
			Code:    types.CodeMethodNotFound,
			Message: "Method not found",
			Data:    jsonString(req.Method),
		})
	}
	if o.Err != nil {
		return types.NewErrorResponse(req.ID, o.Err)
	}
	return types.NewResultResponse(req.ID, o.Result)
}

func jsonString(s string) json.RawMessage {
	bz, _ := json.Marshal(s)
	return bz
}
