package mock

import (
	"net"
	"net/http"

	"github.com/cometbft/cometbft/libs/log"
	"github.com/cometbft/cometbft/libs/service"
	ethlog "github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// EthereumServer is a stub node speaking the Ethereum subscription dialect.
// It serves the registered APIs over HTTP and websocket on the same address.
type EthereumServer struct {
	service.BaseService
	config   *ServerConfig
	apis     []rpc.API
	rpc      *rpc.Server
	server   *http.Server
	listener net.Listener
}

func NewEthereumServer(config ServerConfig, logger log.Logger) *EthereumServer {
	s := &EthereumServer{config: &config}
	s.BaseService = *service.NewBaseService(logger.With("module", "stub"), "EthereumServer", s)
	return s
}

// RegisterName adds the public methods of receiver under namespace. It must be
// called before Start.
func (s *EthereumServer) RegisterName(namespace string, receiver interface{}) {
	s.apis = append(s.apis, rpc.API{Namespace: namespace, Service: receiver})
}

func (s *EthereumServer) OnStart() error {
	ethlog.Root().SetHandler(
		ethlog.FuncHandler(func(record *ethlog.Record) error {
			fn := s.Logger.Info
			switch record.Lvl {
			case ethlog.LvlTrace, ethlog.LvlDebug:
				fn = s.Logger.Debug
			case ethlog.LvlError, ethlog.LvlCrit:
				fn = s.Logger.Error
			}
			fn(record.Msg, record.Ctx...)
			return nil
		}))

	s.rpc = rpc.NewServer()
	for _, api := range s.apis {
		if err := s.rpc.RegisterName(api.Namespace, api.Service); err != nil {
			return err
		}
	}

	ws := s.rpc.WebsocketHandler([]string{"*"})
	s.server = &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				ws.ServeHTTP(w, r)
				return
			}
			s.rpc.ServeHTTP(w, r)
		}),
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

func (s *EthereumServer) OnStop() {
	s.server.Close()
	s.rpc.Stop()
}

// Addr returns the address the server listens on.
func (s *EthereumServer) Addr() string {
	return s.listener.Addr().String()
}
