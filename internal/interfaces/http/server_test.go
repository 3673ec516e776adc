package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NoticeFlow/internal/config"
	"github.com/turtacn/NoticeFlow/internal/testutil"
)

func TestNewServer(t *testing.T) {
	cfg := config.ServerConfig{Port: 8080, ReadTimeout: 5 * time.Second, WriteTimeout: 7 * time.Second}
	server := NewServer(cfg, http.NewServeMux(), testutil.NewMockLogger())

	assert.Equal(t, ":8080", server.Addr())
	assert.Equal(t, 5*time.Second, server.httpServer.ReadTimeout)
	assert.Equal(t, 7*time.Second, server.httpServer.WriteTimeout)
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	log := testutil.NewMockLogger()
	server := NewServer(config.ServerConfig{Port: 0, ShutdownTimeout: time.Second}, http.NewServeMux(), log)

	require.NoError(t, server.Shutdown(context.Background()))
	assert.True(t, log.HasMessage("info", "HTTP server stopped"))
	assert.NoError(t, server.Start(), "a closed server returns without error")
}
