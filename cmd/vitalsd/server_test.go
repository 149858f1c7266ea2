package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/psantana5/vitals-engine/pkg/api"
	"github.com/psantana5/vitals-engine/pkg/config"
	"github.com/psantana5/vitals-engine/pkg/engine"
	"github.com/psantana5/vitals-engine/pkg/jobs"
	"github.com/psantana5/vitals-engine/pkg/metrics"
	"github.com/psantana5/vitals-engine/pkg/storage"
	"github.com/psantana5/vitals-engine/pkg/store"
	tlsutil "github.com/psantana5/vitals-engine/pkg/tls"
	"github.com/psantana5/vitals-engine/pkg/tracing"
)

func newTestRouter(t *testing.T, metricsEnabled bool) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	cfg := &config.Config{}
	cfg.Server.CORSOrigin = "https://dashboard.example"
	cfg.Metrics.Enabled = metricsEnabled

	eng := engine.NewUnavailableEngine("disabled")
	m := metrics.New()
	controller := jobs.NewController(eng, "", store.NewMemoryStore(), logger, jobs.WithObserver(m))
	t.Cleanup(func() { controller.Close() })

	videos, err := storage.NewVideoStore(storage.Config{Dir: t.TempDir(), MaxBytes: 1 << 20}, logger)
	require.NoError(t, err)

	tp, err := tracing.InitTracer(tracing.Config{ServiceName: serviceName}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	handler := api.NewVitalsHandler(controller, videos, api.CameraConfig{Device: "/nonexistent/video0"}, "disabled", logger)
	handler.SetUploadRecorder(m)
	return newRouter(cfg, handler, m, tp)
}

func TestRouterServesAPIAndMetrics(t *testing.T) {
	router := newTestRouter(t, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "https://dashboard.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "vitals_http_requests_total")
	assert.Contains(t, string(body), `route="/health"`)
}

func TestRouterWithoutMetrics(t *testing.T) {
	router := newTestRouter(t, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterPreflight(t *testing.T) {
	router := newTestRouter(t, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/process-video", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestGenerateCert(t *testing.T) {
	dir := t.TempDir()
	cfg := config.ServerConfig{
		TLSCert: filepath.Join(dir, "certs", "server.crt"),
		TLSKey:  filepath.Join(dir, "certs", "server.key"),
	}

	require.NoError(t, generateCert(cfg, []string{"10.0.0.5"}, zap.NewNop()))

	_, err := tlsutil.LoadServerConfig(cfg.TLSCert, cfg.TLSKey)
	assert.NoError(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"10.0.0.5", "vitals.local"}, splitList(" 10.0.0.5, ,vitals.local "))
	assert.Nil(t, splitList(""))
}

func TestRootFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "port", "api-key", "engine", "upload-dir", "generate-cert", "tls-cert"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}
