package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/prometheus"
)

// Metrics is an AppMetrics on a private registry whose exposition can be
// read back. Series are prefixed "test_".
type Metrics struct {
	*prometheus.AppMetrics
	collector prometheus.MetricsCollector
	t         testing.TB
}

func NewMetrics(t testing.TB) *Metrics {
	t.Helper()
	c, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "test"}, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("metrics collector: %v", err)
	}
	return &Metrics{AppMetrics: prometheus.NewAppMetrics(c), collector: c, t: t}
}

// Scrape returns the text exposition of every registered series.
func (m *Metrics) Scrape() string {
	m.t.Helper()
	w := httptest.NewRecorder()
	m.collector.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		m.t.Fatalf("scrape status %d", w.Code)
	}
	return w.Body.String()
}
