package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the pipeline's Prometheus metrics. It satisfies the
// orchestrator's RunMetrics interface.
type Collector struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	publishAttempts *prometheus.CounterVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reelcast",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		publishAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reelcast",
			Name:      "publish_attempts_total",
			Help:      "Publish attempts by platform and result.",
		}, []string{"platform", "result"}),
	}
}

func (c *Collector) RunCompleted(outcome string) {
	c.runsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) PublishAttempted(platform string, success bool) {
	result := "error"
	if success {
		result = "success"
	}
	c.publishAttempts.WithLabelValues(platform, result).Inc()
}

// Handler serves the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
