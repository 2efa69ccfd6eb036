package conn

import (
	"github.com/prometheus/client_golang/prometheus"
)

const MetricsSubsystem = "conn"

// Metrics contains the connection metrics exposed by a driver.
type Metrics struct {
	// Requests waiting for a response.
	PendingCalls prometheus.Gauge
	// Bound subscriptions.
	Subscriptions prometheus.Gauge
	// Frames read from the stream.
	FramesRead prometheus.Counter
	// Frames that could not be decoded.
	MalformedFrames prometheus.Counter
	// Events dropped for unknown subscriptions or by the overflow policy.
	DroppedEvents prometheus.Counter
	// Responses for requests nobody waits for anymore.
	LateResponses prometheus.Counter
}

// PrometheusMetrics returns Metrics registered with reg.
func PrometheusMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := newMetrics(namespace)
	reg.MustRegister(
		m.PendingCalls,
		m.Subscriptions,
		m.FramesRead,
		m.MalformedFrames,
		m.DroppedEvents,
		m.LateResponses,
	)
	return m
}

// NopMetrics returns unregistered metrics.
func NopMetrics() *Metrics {
	return newMetrics("")
}

func newMetrics(namespace string) *Metrics {
	return &Metrics{
		PendingCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "pending_calls",
			Help:      "Number of requests waiting for a response.",
		}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "subscriptions",
			Help:      "Number of bound subscriptions.",
		}),
		FramesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "frames_read_total",
			Help:      "Number of frames read from the stream.",
		}),
		MalformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "malformed_frames_total",
			Help:      "Number of frames that could not be decoded.",
		}),
		DroppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "dropped_events_total",
			Help:      "Number of events that were not delivered to a subscriber.",
		}),
		LateResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "late_responses_total",
			Help:      "Number of responses without an outstanding request.",
		}),
	}
}
