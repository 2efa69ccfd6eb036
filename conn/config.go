package conn

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// OverflowPolicy decides what happens when a subscriber does not keep up.
type OverflowPolicy string

const (
	// OverflowBlock blocks the read loop until the subscriber catches up. No
	// event is ever lost, but nothing else is read meanwhile: calls wait for
	// their responses and pongs go unread. A subscriber that stalls longer
	// than PongWait gets the connection closed with a transport error.
	OverflowBlock OverflowPolicy = "block"
	// OverflowDropOldest discards the oldest buffered event to make room.
	OverflowDropOldest OverflowPolicy = "drop-oldest"
)

func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(s); p {
	case "":
		return OverflowBlock, nil
	case OverflowBlock, OverflowDropOldest:
		return p, nil
	}
	return "", fmt.Errorf("unknown overflow policy %q", s)
}

// Config of a persistent connection.
type Config struct {
	// Maximum time allowed for dialing and the websocket handshake
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	// Interval between pings, zero disables keepalive
	PingPeriod time.Duration `mapstructure:"ping_period"`
	// Time allowed to read the next pong (or any frame) from the peer
	PongWait time.Duration `mapstructure:"pong_wait"`
	// Time allowed to write a single frame
	WriteWait time.Duration `mapstructure:"write_wait"`
	// Time allowed to flush queued requests when closing
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
	// Maximum size of an inbound frame in bytes, zero means unlimited
	ReadLimit int64 `mapstructure:"read_limit"`

	// Capacity of each subscription channel
	EventBuffer int `mapstructure:"event_buffer"`
	// Events queued for a subscription whose subscribe call is in flight
	EarlyEventLimit int            `mapstructure:"early_event_limit"`
	Overflow        OverflowPolicy `mapstructure:"overflow"`

	// Consecutive malformed frames tolerated before the stream is considered
	// corrupted, zero disables the check
	MaxMalformedRun int `mapstructure:"max_malformed"`
	// Capacity of the outgoing request queue
	WriteQueue int `mapstructure:"write_queue"`
	// "counter" or "uuid"
	IDScheme string `mapstructure:"id_scheme"`

	// Extra headers sent with the handshake request
	Header http.Header `mapstructure:"-"`
}

// DefaultConfig returns a default configuration for a persistent connection
var DefaultConfig = Config{
	HandshakeTimeout: 10 * time.Second,
	PingPeriod:       27 * time.Second,
	PongWait:         30 * time.Second,
	WriteWait:        10 * time.Second,
	DrainTimeout:     5 * time.Second,
	ReadLimit:        16 << 20,
	EventBuffer:      100,
	EarlyEventLimit:  16,
	Overflow:         OverflowBlock,
	MaxMalformedRun:  10,
	WriteQueue:       64,
	IDScheme:         IDSchemeCounter,
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg *Config) ValidateBasic() error {
	if cfg.HandshakeTimeout <= 0 {
		return errors.New("handshake_timeout must be positive")
	}
	if cfg.PingPeriod < 0 {
		return errors.New("ping_period can't be negative")
	}
	if cfg.PingPeriod > 0 && cfg.PongWait <= cfg.PingPeriod {
		return errors.New("pong_wait must be greater than ping_period")
	}
	if cfg.WriteWait <= 0 {
		return errors.New("write_wait must be positive")
	}
	if cfg.DrainTimeout < 0 {
		return errors.New("drain_timeout can't be negative")
	}
	if cfg.EventBuffer < 1 {
		return errors.New("event_buffer must be at least 1")
	}
	if cfg.EarlyEventLimit < 0 || cfg.EarlyEventLimit > cfg.EventBuffer {
		return fmt.Errorf("early_event_limit must be between 0 and event_buffer (%d)", cfg.EventBuffer)
	}
	if _, err := ParseOverflowPolicy(string(cfg.Overflow)); err != nil {
		return err
	}
	if cfg.MaxMalformedRun < 0 {
		return errors.New("max_malformed can't be negative")
	}
	if cfg.WriteQueue < 0 {
		return errors.New("write_queue can't be negative")
	}
	if _, err := NewIDSource(cfg.IDScheme); err != nil {
		return err
	}
	return nil
}
