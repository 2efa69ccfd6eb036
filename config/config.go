package config

import (
	"os"
	"path/filepath"

	"github.com/DOIDFoundation/tmrpc/conn"
	"github.com/DOIDFoundation/tmrpc/flags"
	"github.com/DOIDFoundation/tmrpc/mock"
	"github.com/DOIDFoundation/tmrpc/rpc"
	"github.com/spf13/viper"
)

func init() {
	SetDefaults()
}

// SetDefaults registers the default of every setting with viper.
func SetDefaults() {
	viper.SetDefault(flags.Home, os.ExpandEnv(filepath.Join("$HOME", ".tmrpc")))
	viper.SetDefault(flags.Log_Level, "info")

	viper.SetDefault(flags.RPC_Addr, "tcp://127.0.0.1:26657")
	viper.SetDefault(flags.RPC_Timeout, rpc.DefaultConfig.Timeout)
	viper.SetDefault(flags.RPC_Dialect, rpc.DefaultConfig.Dialect)

	ws := conn.DefaultConfig
	viper.SetDefault(flags.WS_HandshakeTimeout, ws.HandshakeTimeout)
	viper.SetDefault(flags.WS_PingPeriod, ws.PingPeriod)
	viper.SetDefault(flags.WS_PongWait, ws.PongWait)
	viper.SetDefault(flags.WS_DrainTimeout, ws.DrainTimeout)
	viper.SetDefault(flags.WS_EventBuffer, ws.EventBuffer)
	viper.SetDefault(flags.WS_MaxMalformed, ws.MaxMalformedRun)
	viper.SetDefault(flags.WS_Overflow, string(ws.Overflow))
	viper.SetDefault(flags.WS_IDScheme, ws.IDScheme)

	viper.SetDefault(flags.Fixtures_Engine, "goleveldb")
	viper.SetDefault(flags.Serve_Addr, mock.DefaultServerConfig.ListenAddress)
}

// Address returns the node address to connect to.
func Address() string {
	return viper.GetString(flags.RPC_Addr)
}

// RPC returns the client configuration set by flags and the config file.
func RPC() (rpc.Config, error) {
	cfg := rpc.DefaultConfig
	cfg.Timeout = viper.GetDuration(flags.RPC_Timeout)
	cfg.Dialect = viper.GetString(flags.RPC_Dialect)

	cfg.Conn.HandshakeTimeout = viper.GetDuration(flags.WS_HandshakeTimeout)
	cfg.Conn.PingPeriod = viper.GetDuration(flags.WS_PingPeriod)
	cfg.Conn.PongWait = viper.GetDuration(flags.WS_PongWait)
	cfg.Conn.DrainTimeout = viper.GetDuration(flags.WS_DrainTimeout)
	cfg.Conn.EventBuffer = viper.GetInt(flags.WS_EventBuffer)
	cfg.Conn.MaxMalformedRun = viper.GetInt(flags.WS_MaxMalformed)
	cfg.Conn.IDScheme = viper.GetString(flags.WS_IDScheme)
	overflow, err := conn.ParseOverflowPolicy(viper.GetString(flags.WS_Overflow))
	if err != nil {
		return cfg, err
	}
	cfg.Conn.Overflow = overflow
	if cfg.Conn.EarlyEventLimit > cfg.Conn.EventBuffer {
		cfg.Conn.EarlyEventLimit = cfg.Conn.EventBuffer
	}
	return cfg, cfg.ValidateBasic()
}

// Server returns the configuration of the stub node.
func Server() mock.ServerConfig {
	cfg := mock.DefaultServerConfig
	cfg.ListenAddress = viper.GetString(flags.Serve_Addr)
	return cfg
}
