package config_test

import (
	"testing"
	"time"

	"github.com/DOIDFoundation/tmrpc/config"
	"github.com/DOIDFoundation/tmrpc/conn"
	"github.com/DOIDFoundation/tmrpc/flags"
	"github.com/DOIDFoundation/tmrpc/rpc"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCDefaults(t *testing.T) {
	viper.Reset()
	config.SetDefaults()

	cfg, err := config.RPC()
	require.NoError(t, err)
	assert.Equal(t, rpc.DefaultConfig.Timeout, cfg.Timeout)
	assert.Equal(t, rpc.DefaultConfig.Dialect, cfg.Dialect)
	assert.Equal(t, conn.DefaultConfig, cfg.Conn)
	assert.Equal(t, "tcp://127.0.0.1:26657", config.Address())
}

func TestRPCOverrides(t *testing.T) {
	viper.Reset()
	config.SetDefaults()
	viper.Set(flags.RPC_Timeout, "3s")
	viper.Set(flags.RPC_Dialect, "ethereum:doid")
	viper.Set(flags.WS_PingPeriod, "0s")
	viper.Set(flags.WS_EventBuffer, 8)
	viper.Set(flags.WS_Overflow, "drop-oldest")
	viper.Set(flags.WS_IDScheme, "uuid")
	viper.Set(flags.Serve_Addr, "127.0.0.1:0")

	cfg, err := config.RPC()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "ethereum:doid", cfg.Dialect)
	assert.Zero(t, cfg.Conn.PingPeriod)
	assert.Equal(t, 8, cfg.Conn.EventBuffer)
	assert.Equal(t, 8, cfg.Conn.EarlyEventLimit)
	assert.Equal(t, conn.OverflowDropOldest, cfg.Conn.Overflow)
	assert.Equal(t, conn.IDSchemeUUID, cfg.Conn.IDScheme)
	assert.Equal(t, "127.0.0.1:0", config.Server().ListenAddress)

	viper.Set(flags.WS_Overflow, "drop-newest")
	_, err = config.RPC()
	assert.Error(t, err)

	viper.Set(flags.WS_Overflow, "block")
	viper.Set(flags.RPC_Dialect, "grpc")
	_, err = config.RPC()
	assert.Error(t, err)
}
