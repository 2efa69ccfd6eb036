package flags

const (
	Home  = "home"
	Trace = "trace"

	Log_Level = "log.level"

	RPC_Addr    = "rpc.addr"
	RPC_Timeout = "rpc.timeout"
	RPC_Dialect = "rpc.dialect"

	WS_HandshakeTimeout = "ws.handshake_timeout"
	WS_PingPeriod       = "ws.ping_period"
	WS_PongWait         = "ws.pong_wait"
	WS_DrainTimeout     = "ws.drain_timeout"
	WS_EventBuffer      = "ws.event_buffer"
	WS_MaxMalformed     = "ws.max_malformed"
	WS_Overflow         = "ws.overflow"
	WS_IDScheme         = "ws.id_scheme"

	Fixtures_Dir    = "fixtures.dir"
	Fixtures_Engine = "fixtures.engine"

	Metrics_Addr = "metrics.addr"

	Serve_Addr = "serve.addr"
)
