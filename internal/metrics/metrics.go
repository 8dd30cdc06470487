package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"site-assistant/internal/domain"
)

const namespace = "site_assistant"

// Recorder exports workflow metrics from its own registry.
type Recorder struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	categories    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	unlistedLinks *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Chat requests by final workflow state.",
		}, []string{"state"}),
		categories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "category_total",
			Help:      "Dispatched requests by category.",
		}, []string{"category"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Completion call latency by workflow stage.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"stage", "outcome"}),
		unlistedLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlisted_links_total",
			Help:      "Links in replies that are not on the profile allow-list.",
		}, []string{"category"}),
	}
	r.registry.MustRegister(
		r.requests,
		r.categories,
		r.stageDuration,
		r.unlistedLinks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveStage(stage string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.stageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

func (r *Recorder) ObserveCategory(c domain.Category) {
	r.categories.WithLabelValues(string(c)).Inc()
}

func (r *Recorder) ObserveResult(state string) {
	r.requests.WithLabelValues(state).Inc()
}

func (r *Recorder) ObserveUnlistedLinks(c domain.Category, n int) {
	if n <= 0 {
		return
	}
	r.unlistedLinks.WithLabelValues(string(c)).Add(float64(n))
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
