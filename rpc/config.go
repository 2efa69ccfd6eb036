package rpc

import (
	"fmt"
	"time"

	"github.com/DOIDFoundation/tmrpc/conn"
)

// Defines the configuration options for the RPC clients
type Config struct {
	// Timeout of a single call, 0 waits as long as the caller's context
	Timeout time.Duration `mapstructure:"timeout"`
	// Subscription dialect of the node, "tendermint" or "ethereum[:namespace]"
	Dialect string `mapstructure:"dialect"`
	// Websocket connection options
	Conn conn.Config `mapstructure:"ws"`
	// Metrics of the websocket connection, nil disables them
	Metrics *conn.Metrics `mapstructure:"-"`
}

// DefaultConfig returns a default configuration for the RPC clients
var DefaultConfig = Config{
	Timeout: 30 * time.Second,
	Dialect: DialectTendermint,
	Conn:    conn.DefaultConfig,
}

func (cfg Config) ValidateBasic() error {
	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout can't be negative")
	}
	if _, err := ParseDialect(cfg.Dialect); err != nil {
		return err
	}
	return cfg.Conn.ValidateBasic()
}
