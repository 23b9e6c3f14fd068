package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhub/eventchat/internal/config"
	"github.com/eventhub/eventchat/internal/slogging"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := slogging.Initialize(slogging.Config{Level: slogging.LogLevelError, Output: io.Discard}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// writeConfig writes a minimal YAML file and loads it through config.Load
func writeConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "eventchat.yaml")
	body := fmt.Sprintf(`auth:
  jwt:
    secret: wiring-secret
database:
  type: sqlite
  sqlite:
    path: %s
logging:
  is_test: true
telemetry:
  service_name: eventchat-test
  trace_exporter: none
  metrics_enabled: true
%s`, filepath.Join(dir, "chat.db"), extra)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestNewApplication_SQLiteOnly(t *testing.T) {
	cfg := writeConfig(t, "")

	app, err := newApplication(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	components := body["components"].(map[string]any)
	assert.Contains(t, components, "database")
	assert.NotContains(t, components, "redis")

	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, app.hub.Shutdown(ctx))
	assert.NoError(t, app.telemetry.Shutdown(ctx))
}

func TestNewApplication_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := writeConfig(t, "  otlp_insecure: true\n")
	cfg.Database.Redis.Enabled = true
	cfg.Database.Redis.Host = mr.Host()
	cfg.Database.Redis.Port = mr.Port()

	app, err := newApplication(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis"`)
}

func TestNewApplication_RedisUnreachable(t *testing.T) {
	cfg := writeConfig(t, "")
	cfg.Database.Redis.Enabled = true
	cfg.Database.Redis.Host = "127.0.0.1"
	cfg.Database.Redis.Port = "1"

	app, err := newApplication(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "redis")
}

func TestApplicationAbort_FlushesTelemetryAndClosesStorage(t *testing.T) {
	cfg := writeConfig(t, "")
	app, err := newApplication(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, app.telemetry)

	cause := errors.New("listener setup failed")
	assert.Same(t, cause, app.abort(cause))
	assert.Nil(t, app.telemetry)
	assert.Nil(t, app.database)
	assert.Nil(t, app.redis)
}

func TestHubConfig_MapsSettings(t *testing.T) {
	cfg := writeConfig(t, "")
	cfg.Server.AllowedOrigins = []string{"https://events.example.com"}
	cfg.WebSocket.LogMessages = true

	hc := hubConfig(cfg)

	assert.Equal(t, 50, hc.HistoryLimit)
	assert.Equal(t, 1000, hc.MaxMessageLength)
	assert.Equal(t, 256, hc.SendBufferSize)
	assert.Equal(t, []string{"https://events.example.com"}, hc.AllowedOrigins)
	assert.True(t, hc.FrameLogging.Enabled)
	assert.True(t, hc.FrameLogging.RedactTokens)
}

func TestTelemetryConfig_TestEnvironment(t *testing.T) {
	cfg := writeConfig(t, "")

	tc := telemetryConfig(cfg)

	assert.Equal(t, "eventchat-test", tc.ServiceName)
	assert.Equal(t, "test", tc.Environment)
	assert.False(t, tc.TracingEnabled())
}
