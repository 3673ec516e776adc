// Package prometheus wraps client_golang behind small interfaces so pipelines
// can record metrics without importing the Prometheus types, and so tests and
// disabled deployments can swap in the no-op collector.
package prometheus

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
)

// MetricsCollector registers NoticeFlow series and serves them.
type MetricsCollector interface {
	RegisterCounter(name, help string, labels ...string) CounterVec
	RegisterGauge(name, help string, labels ...string) GaugeVec
	// RegisterHistogram uses DefaultHTTPDurationBuckets when buckets is nil.
	RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec
	Handler() http.Handler
}

type CounterVec interface{ WithLabelValues(lvs ...string) Counter }
type GaugeVec interface{ WithLabelValues(lvs ...string) Gauge }
type HistogramVec interface{ WithLabelValues(lvs ...string) Histogram }

// Counter, Gauge and Histogram are satisfied by the client_golang types
// directly.
type Counter interface {
	Inc()
	Add(delta float64)
}

type Gauge interface{ Set(value float64) }

type Histogram interface{ Observe(value float64) }

// CollectorConfig configures NewMetricsCollector.
type CollectorConfig struct {
	// Namespace prefixes every series. Required.
	Namespace string
	// RuntimeMetrics adds the process and Go runtime collectors.
	RuntimeMetrics bool
}

type prometheusCollector struct {
	registry  *prometheus.Registry
	namespace string
	logger    logging.Logger

	mu   sync.Mutex
	vecs map[string]prometheus.Collector
}

// NewMetricsCollector returns a collector backed by its own registry.
// Registering a name twice returns the vector registered first.
func NewMetricsCollector(cfg CollectorConfig, logger logging.Logger) (MetricsCollector, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	registry := prometheus.NewRegistry()
	if cfg.RuntimeMetrics {
		registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Namespace}),
			collectors.NewGoCollector(),
		)
	}

	return &prometheusCollector{
		registry:  registry,
		namespace: cfg.Namespace,
		logger:    logger,
		vecs:      make(map[string]prometheus.Collector),
	}, nil
}

func (c *prometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (c *prometheusCollector) RegisterCounter(name, help string, labels ...string) CounterVec {
	vec, ok := registerVec(c, name, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.namespace, Name: name, Help: help,
	}, labels))
	if !ok {
		return nopVec[Counter]{}
	}
	return labelled[Counter](func(lvs ...string) Counter { return vec.WithLabelValues(lvs...) })
}

func (c *prometheusCollector) RegisterGauge(name, help string, labels ...string) GaugeVec {
	vec, ok := registerVec(c, name, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.namespace, Name: name, Help: help,
	}, labels))
	if !ok {
		return nopVec[Gauge]{}
	}
	return labelled[Gauge](func(lvs ...string) Gauge { return vec.WithLabelValues(lvs...) })
}

func (c *prometheusCollector) RegisterHistogram(name, help string, buckets []float64, labels ...string) HistogramVec {
	if buckets == nil {
		buckets = DefaultHTTPDurationBuckets
	}
	vec, ok := registerVec(c, name, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.namespace, Name: name, Help: help, Buckets: buckets,
	}, labels))
	if !ok {
		return nopVec[Histogram]{}
	}
	return labelled[Histogram](func(lvs ...string) Histogram { return vec.WithLabelValues(lvs...) })
}

// registerVec returns the vector already registered under name, or registers
// fresh. ok is false when registration failed or name holds another kind.
func registerVec[V prometheus.Collector](c *prometheusCollector, name string, fresh V) (vec V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, found := c.vecs[name]; found {
		vec, ok = existing.(V)
		if !ok {
			c.logger.Warn("Metric already registered with another type",
				logging.String("name", name), logging.String("existing", fmt.Sprintf("%T", existing)))
		}
		return vec, ok
	}
	if err := c.registry.Register(fresh); err != nil {
		c.logger.Error("Failed to register metric", logging.String("name", name), logging.Err(err))
		return vec, false
	}
	c.vecs[name] = fresh
	return fresh, true
}

type labelled[M any] func(lvs ...string) M

func (f labelled[M]) WithLabelValues(lvs ...string) M { return f(lvs...) }

type nopMetric struct{}

func (nopMetric) Inc()            {}
func (nopMetric) Add(float64)     {}
func (nopMetric) Set(float64)     {}
func (nopMetric) Observe(float64) {}

type nopVec[M any] struct{}

func (nopVec[M]) WithLabelValues(...string) M {
	var m any = nopMetric{}
	return m.(M)
}

// nopCollector hands out no-op vectors. Used when metrics.enabled is false.
type nopCollector struct{}

// NewNopCollector returns a MetricsCollector whose metrics record nothing.
func NewNopCollector() MetricsCollector { return nopCollector{} }

func (nopCollector) RegisterCounter(string, string, ...string) CounterVec { return nopVec[Counter]{} }
func (nopCollector) RegisterGauge(string, string, ...string) GaugeVec     { return nopVec[Gauge]{} }
func (nopCollector) RegisterHistogram(string, string, []float64, ...string) HistogramVec {
	return nopVec[Histogram]{}
}

func (nopCollector) Handler() http.Handler {
	return http.NotFoundHandler()
}

// Timer measures one operation into a Histogram.
type Timer struct {
	histogram Histogram
	start     time.Time
}

// NewTimer starts a Timer; ObserveDuration records the elapsed seconds.
func NewTimer(histogram Histogram) *Timer {
	return &Timer{histogram: histogram, start: time.Now()}
}

func (t *Timer) ObserveDuration() {
	if t.histogram == nil {
		return
	}
	t.histogram.Observe(time.Since(t.start).Seconds())
}
