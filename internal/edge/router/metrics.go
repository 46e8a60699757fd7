package router

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kgellert/nextjs-split-deploy/internal/edge"
)

type Metrics struct {
	requests *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "edge",
			Name:      "requests_total",
			Help:      "Requests routed by the local edge, by origin and status code.",
		}, []string{"origin", "code"}),
	}
	reg.MustRegister(m.requests)
	return m
}

func (m *Metrics) observe(origin edge.Origin, status int) {
	if status == 0 {
		status = 200
	}
	m.requests.WithLabelValues(string(origin), strconv.Itoa(status)).Inc()
}
