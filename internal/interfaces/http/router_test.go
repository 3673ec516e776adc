package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NoticeFlow/internal/application/dispatch"
	"github.com/turtacn/NoticeFlow/internal/application/inbound"
	"github.com/turtacn/NoticeFlow/internal/application/ingestion"
	"github.com/turtacn/NoticeFlow/internal/domain/notice"
	"github.com/turtacn/NoticeFlow/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/NoticeFlow/internal/interfaces/http/handlers"
	"github.com/turtacn/NoticeFlow/internal/testutil"
)

type fixedRouter struct{ calls int }

func (f *fixedRouter) Handle(context.Context, inbound.Event) inbound.RouteResult {
	f.calls++
	return inbound.RouteResult{Action: inbound.ActionFallback}
}

type noopRuns struct{}

func (noopRuns) Run(context.Context) (*ingestion.RunReport, error) {
	return &ingestion.RunReport{Status: notice.RunSuccess}, nil
}

func (noopRuns) RunPending(context.Context) (*dispatch.DispatchReport, error) {
	return &dispatch.DispatchReport{}, nil
}

func testRouter(t *testing.T, events *fixedRouter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := testutil.NewMockLogger()
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "noticeflow"}, log)
	require.NoError(t, err)
	store := testutil.NewMemoryStore(notice.Recipient{ID: "r1", Name: "Ana", Active: true})
	return NewRouter(RouterConfig{
		HealthHandler:       handlers.NewHealthHandler("test"),
		WebhookHandler:      handlers.NewWebhookHandler(events, log),
		NotificationHandler: handlers.NewNotificationHandler(store, store, time.UTC),
		OperationsHandler:   handlers.NewOperationsHandler(noopRuns{}, noopRuns{}, log),
		WebhookPath:         "/webhook/whatsapp",
		WebhookToken:        "hook-secret",
		APIToken:            "api-secret",
		Metrics:             collector,
		AppMetrics:          prometheus.NewAppMetrics(collector),
		Logger:              log,
	})
}

func send(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func do(r http.Handler, method, path, body string, headers map[string]string) int {
	return send(r, method, path, body, headers).Code
}

func TestNewRouter_ProbesWithoutAuth(t *testing.T) {
	r := testRouter(t, &fixedRouter{})
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/healthz", "", nil))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/readyz", "", nil))

	w := send(r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "noticeflow_http_requests_total")
}

func TestNewRouter_WebhookRequiresToken(t *testing.T) {
	events := &fixedRouter{}
	r := testRouter(t, events)
	body := `{"key":{"remoteJid":"5531990000001@s.whatsapp.net","id":"A1"},"message":{"conversation":"oi"}}`

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/webhook/whatsapp", body, nil))
	assert.Equal(t, 0, events.calls)

	code := do(r, http.MethodPost, "/webhook/whatsapp", body, map[string]string{"X-Webhook-Token": "hook-secret"})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, events.calls)
}

func TestNewRouter_APIRequiresBearer(t *testing.T) {
	r := testRouter(t, &fixedRouter{})
	auth := map[string]string{"Authorization": "Bearer api-secret"}

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/notifications?recipientId=r1", "", nil))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/notifications?recipientId=r1", "", auth))
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/ingestions", "", auth))
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/dispatches", "", auth))
}

func TestNewRouter_NilHandlersNoPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(RouterConfig{})
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/healthz", "", nil))
}
