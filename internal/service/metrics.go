package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts points flowing through the service.
type Metrics struct {
	pointsWritten prometheus.Counter
	pointsRead    *prometheus.CounterVec
}

// NewMetrics creates the service collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		pointsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paustdb",
			Name:      "points_written_total",
			Help:      "Total number of points stored.",
		}),
		pointsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paustdb",
			Name:      "points_read_total",
			Help:      "Total number of points returned, by operation.",
		}, []string{"op"}),
	}

	if err := reg.Register(m.pointsWritten); err != nil {
		return nil, err
	}
	if err := reg.Register(m.pointsRead); err != nil {
		return nil, err
	}
	return m, nil
}

func newUnregisteredMetrics() *Metrics {
	m, _ := NewMetrics(prometheus.NewRegistry())
	return m
}
