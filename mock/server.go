package mock

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DOIDFoundation/tmrpc/types"
	cmtevents "github.com/cometbft/cometbft/libs/events"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/libs/pubsub/query"
	"github.com/cometbft/cometbft/libs/service"
	ctypes "github.com/cometbft/cometbft/rpc/core/types"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/websocket"
)

// Defines the configuration options for the stub node
type ServerConfig struct {
	// TCP address for the stub node to listen on
	ListenAddress string `mapstructure:"laddr"`
	// HTTPTimeouts allows for customization of the timeout values used by the
	// HTTP interface.
	HTTPTimeouts rpc.HTTPTimeouts
	// Maximum size of a request body
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// DefaultServerConfig returns a default configuration for the stub node
var DefaultServerConfig = ServerConfig{
	ListenAddress: "127.0.0.1:26657",
	HTTPTimeouts:  rpc.DefaultHTTPTimeouts,
	MaxBodyBytes:  1 << 20,
}

const wsWriteWait = 10 * time.Second

// Server is a stub node answering JSON-RPC over HTTP POST and over a
// websocket at /websocket, like a CometBFT node does. Calls are answered by a
// Matcher; subscriptions are fed with Publish and pushed in the CometBFT 0.34
// format, reusing the subscribe request id.
type Server struct {
	service.BaseService
	config   *ServerConfig
	matcher  Matcher
	server   *http.Server
	listener net.Listener
	evsw     cmtevents.EventSwitch
	upgrader websocket.Upgrader

	connSeq atomic.Uint64
	mtx     sync.Mutex
	conns   map[*wsConn]struct{}
}

func NewServer(m Matcher, config ServerConfig, logger log.Logger) *Server {
	s := &Server{
		config:  &config,
		matcher: m,
		evsw:    cmtevents.NewEventSwitch(),
		conns:   make(map[*wsConn]struct{}),
	}
	s.BaseService = *service.NewBaseService(logger.With("module", "stub"), "Server", s)
	s.evsw.SetLogger(s.Logger)
	return s
}

func (s *Server) OnStart() error {
	if err := s.evsw.Start(); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", s.serveWebsocket)
	mux.HandleFunc("/", s.serveHTTP)
	s.server = &http.Server{
		Handler:           mux,
		ReadTimeout:       s.config.HTTPTimeouts.ReadTimeout,
		ReadHeaderTimeout: s.config.HTTPTimeouts.ReadHeaderTimeout,
		WriteTimeout:      s.config.HTTPTimeouts.WriteTimeout,
		IdleTimeout:       s.config.HTTPTimeouts.IdleTimeout,
	}

	s.Logger.Debug("try listening", "listenAddr", s.config.ListenAddress)
	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return err
	}
	s.listener = listener
	s.Logger.Info("listening", "listenAddr", listener.Addr().String())
	go s.server.Serve(listener)
	return nil
}

func (s *Server) OnStop() {
	s.server.Close()
	s.mtx.Lock()
	for c := range s.conns {
		c.conn.Close()
	}
	s.mtx.Unlock()
	if err := s.evsw.Stop(); err != nil {
		s.Logger.Debug("Failed to stop event switch", "err", err)
	}
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Publish pushes data to every websocket subscription of query, encoded the
// way a node encodes a ResultEvent.
func (s *Server) Publish(q string, data cmttypes.TMEventData, events map[string][]string) error {
	if events == nil {
		events = map[string][]string{}
	}
	bz, err := cmtjson.Marshal(&ctypes.ResultEvent{Query: q, Data: data, Events: events})
	if err != nil {
		return err
	}
	s.evsw.FireEvent(q, json.RawMessage(bz))
	return nil
}

func writeResponse(w http.ResponseWriter, resp *types.Response) {
	bz, err := resp.Encode()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(bz)
}

func parseError(err error) *types.Response {
	return types.NewErrorResponse(types.NewIntID(-1), &types.RPCError{
		Code:    types.CodeParseError,
		Message: "Parse error",
		Data:    jsonString(err.Error()),
	})
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	req, err := types.DecodeRequest(body)
	if err != nil {
		writeResponse(w, parseError(err))
		return
	}
	s.Logger.Debug("HTTP request", "method", req.Method, "id", req.ID.Key())
	writeResponse(w, Respond(s.matcher, req))
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Error("Failed to upgrade connection", "err", err)
		return
	}
	wc := &wsConn{
		id:     fmt.Sprintf("conn-%d", s.connSeq.Add(1)),
		conn:   c,
		server: s,
		subs:   make(map[string]string),
	}
	s.mtx.Lock()
	s.conns[wc] = struct{}{}
	s.mtx.Unlock()
	defer func() {
		s.mtx.Lock()
		delete(s.conns, wc)
		s.mtx.Unlock()
	}()
	wc.serve()
}

type wsConn struct {
	id     string
	conn   *websocket.Conn
	server *Server

	writeMtx sync.Mutex
	// query -> listener id, used by the serve goroutine only
	subs map[string]string
}

func (wc *wsConn) write(resp *types.Response) {
	bz, err := resp.Encode()
	if err != nil {
		wc.server.Logger.Error("Failed to encode response", "err", err)
		return
	}
	wc.writeMtx.Lock()
	defer wc.writeMtx.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := wc.conn.WriteMessage(websocket.TextMessage, bz); err != nil {
		wc.server.Logger.Debug("Failed to write to websocket", "conn", wc.id, "err", err)
	}
}

func (wc *wsConn) serve() {
	defer func() {
		for _, listenerID := range wc.subs {
			wc.server.evsw.RemoveListener(listenerID)
		}
		wc.conn.Close()
	}()
	for {
		_, data, err := wc.conn.ReadMessage()
		if err != nil {
			return
		}
		req, err := types.DecodeRequest(data)
		if err != nil {
			wc.write(parseError(err))
			continue
		}
		switch req.Method {
		case types.MethodSubscribe:
			wc.write(wc.subscribe(req))
		case types.MethodUnsubscribe:
			wc.write(wc.unsubscribe(req))
		case types.MethodUnsubscribeAll:
			for q, listenerID := range wc.subs {
				wc.server.evsw.RemoveListener(listenerID)
				delete(wc.subs, q)
			}
			wc.write(types.NewResultResponse(req.ID, json.RawMessage(`{}`)))
		default:
			wc.write(Respond(wc.server.matcher, req))
		}
	}
}

func queryParam(req *types.Request) (string, *types.RPCError) {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return "", &types.RPCError{Code: types.CodeInvalidParams, Message: "Invalid params", Data: jsonString(err.Error())}
	}
	return params.Query, nil
}

func (wc *wsConn) subscribe(req *types.Request) *types.Response {
	q, rpcErr := queryParam(req)
	if rpcErr != nil {
		return types.NewErrorResponse(req.ID, rpcErr)
	}
	if _, err := query.New(q); err != nil {
		return types.NewErrorResponse(req.ID, &types.RPCError{Code: types.CodeInvalidParams, Message: "Invalid params", Data: jsonString(err.Error())})
	}
	if _, ok := wc.subs[q]; ok {
		return types.NewErrorResponse(req.ID, &types.RPCError{Code: types.CodeInternalError, Message: "Internal error", Data: json.RawMessage(`"already subscribed"`)})
	}

	id := req.ID
	listenerID := wc.id + "/" + id.Key()
	err := wc.server.evsw.AddListenerForEvent(listenerID, q, func(data cmtevents.EventData) {
		wc.write(types.NewResultResponse(id, data.(json.RawMessage)))
	})
	if err != nil {
		return types.NewErrorResponse(req.ID, &types.RPCError{Code: types.CodeInternalError, Message: "Internal error", Data: jsonString(err.Error())})
	}
	wc.subs[q] = listenerID
	return types.NewResultResponse(req.ID, json.RawMessage(`{}`))
}

func (wc *wsConn) unsubscribe(req *types.Request) *types.Response {
	q, rpcErr := queryParam(req)
	if rpcErr != nil {
		return types.NewErrorResponse(req.ID, rpcErr)
	}
	listenerID, ok := wc.subs[q]
	if !ok {
		return types.NewErrorResponse(req.ID, &types.RPCError{Code: types.CodeInternalError, Message: "Internal error", Data: json.RawMessage(`"subscription not found"`)})
	}
	wc.server.evsw.RemoveListener(listenerID)
	delete(wc.subs, q)
	return types.NewResultResponse(req.ID, json.RawMessage(`{}`))
}
