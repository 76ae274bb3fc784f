package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/sunes26/SummaryGenie-Page-sub000/pkg/config"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/metrics"
)

func newTestRoutes(t *testing.T, cfg *cfgpkg.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	log := zap.NewNop().Sugar()
	r := newEngine(cfg)
	registerRoutes(routeDeps{
		Engine: r,
		Log:    log,
		Cfg:    cfg,
		Prom:   metrics.NewPrometheus(metrics.NewPrometheusOptions{Subsystem: "http", Logger: log, Registerer: reg, Gatherer: reg}),
	})
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRoutes_SwaggerDocument(t *testing.T) {
	r := newTestRoutes(t, cfgpkg.Default())

	w := get(r, "/swagger/doc.json")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"/api/v1/webhook/paddle"`)
	require.Contains(t, w.Body.String(), `"/api/v1/admin/retry_items"`)
}

func TestRoutes_HealthAndMetrics(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.MetricsAddr = ""
	r := newTestRoutes(t, cfg)

	require.Equal(t, http.StatusOK, get(r, "/healthz").Code)
	w := get(r, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "http_req_total")
}

func TestRoutes_ProtectedGroupsNeedBearer(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Auth.JWTSecret = "jwt_test"
	r := newTestRoutes(t, cfg)

	for _, path := range []string{"/api/v1/subscription/sync", "/api/v1/admin/sync"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}
