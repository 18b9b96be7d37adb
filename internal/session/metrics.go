package session

import "github.com/prometheus/client_golang/prometheus"

const outcomeNotFound = "not_found"

var outcomeLabels = map[State]string{
	StateCompleted:    "completed",
	StateCancelled:    "cancelled",
	StateDisconnected: "disconnected",
	StateFailed:       "failed",
}

type metrics struct {
	requests *prometheus.CounterVec
	bytes    prometheus.Counter
	active   prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zipstream_archive_requests_total",
			Help: "Archive requests handled, by outcome",
		}, []string{"outcome"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zipstream_archive_bytes_total",
			Help: "Archive bytes written to clients",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zipstream_active_streams",
			Help: "Archive streams currently in flight",
		}),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.requests, m.bytes, m.active} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *metrics) outcome(s State) prometheus.Counter {
	label, ok := outcomeLabels[s]
	if !ok {
		label = "failed"
	}
	return m.requests.WithLabelValues(label)
}
