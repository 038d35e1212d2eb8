package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters the pipeline updates while fetching and pacing.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	bytesFetched      prometheus.Counter
	segmentsPublished prometheus.Counter
	stalls            prometheus.Counter
	lagCompensated    prometheus.Counter
	sessions          *prometheus.CounterVec
}

// NewMetrics creates the pipeline metrics and registers them on reg. Pass a
// nil registerer for unregistered (test) metrics.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		bytesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_bytes_total",
			Help:      "Bytes read from media streams.",
		}),
		segmentsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_segments_total",
			Help:      "Timed segments published by fetch workers.",
		}),
		stalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_stalls_total",
			Help:      "Stall watchdog activations.",
		}),
		lagCompensated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_lag_compensated_seconds_total",
			Help:      "Playback end time pushed forward due to late segments.",
		}),
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_sessions_total",
			Help:      "Playback sessions by final state.",
		}, []string{"state"}),
	}
}

func (m *Metrics) addBytes(n int) {
	if m != nil {
		m.bytesFetched.Add(float64(n))
	}
}

func (m *Metrics) addSegment() {
	if m != nil {
		m.segmentsPublished.Inc()
	}
}

func (m *Metrics) addStall() {
	if m != nil {
		m.stalls.Inc()
	}
}

func (m *Metrics) addLag(seconds float64) {
	if m != nil {
		m.lagCompensated.Add(seconds)
	}
}

func (m *Metrics) addSession(state State) {
	if m != nil {
		m.sessions.WithLabelValues(state.String()).Inc()
	}
}
