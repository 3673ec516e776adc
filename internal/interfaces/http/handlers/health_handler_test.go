package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NoticeFlow/pkg/types/common"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Name() string                  { return s.name }
func (s stubChecker) Check(_ context.Context) error { return s.err }

func healthEngine(checkers ...HealthChecker) *gin.Engine {
	r := gin.New()
	NewHealthHandler("1.2.3", checkers...).RegisterRoutes(r)
	return r
}

func TestHealthHandler_Liveness(t *testing.T) {
	w := httptest.NewRecorder()
	healthEngine(stubChecker{name: "postgres", err: errors.New("down")}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHealthHandler_Readiness(t *testing.T) {
	w := httptest.NewRecorder()
	healthEngine(stubChecker{name: "postgres"}, stubChecker{name: "redis"}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, common.HealthUp, resp.Status)
	assert.Len(t, resp.Components, 2)
}

func TestHealthHandler_ReadinessDegraded(t *testing.T) {
	w := httptest.NewRecorder()
	healthEngine(stubChecker{name: "postgres"}, stubChecker{name: "redis", err: errors.New("connection refused")}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, common.HealthDown, resp.Status)
	assert.Equal(t, common.HealthUp, resp.Components["postgres"].Status)
	assert.Equal(t, "connection refused", resp.Components["redis"].Message)
}

func TestHealthHandler_ReadinessWithoutCheckers(t *testing.T) {
	w := httptest.NewRecorder()
	healthEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
