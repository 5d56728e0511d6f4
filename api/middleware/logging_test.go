package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/studyhub-backend/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routeLabels(t *testing.T, reg *prometheus.Registry) []string {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)

	var routes []string
	for _, mf := range mfs {
		if mf.GetName() != "studyhub_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "route" {
					routes = append(routes, lp.GetValue())
				}
			}
		}
	}
	return routes
}

func TestLoggingLabelsRequestsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := chi.NewRouter()
	r.Use(Logging(nil, metrics.NewHTTPMetrics(reg)))
	r.Get("/api/resources/{resourceId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/resources/res-42", nil))
	require.Equal(t, http.StatusNoContent, resp.Code)

	assert.Equal(t, []string{"/api/resources/{resourceId}"}, routeLabels(t, reg))
}

func TestLoggingFallsBackToPathOutsideRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	handler := Logging(nil, metrics.NewHTTPMetrics(reg))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, []string{"/health/live"}, routeLabels(t, reg))
}

func TestCORSAnswersPreflight(t *testing.T) {
	handler := CORS([]string{"https://studyhub.example"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/resources", nil)
	req.Header.Set("Origin", "https://studyhub.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "https://studyhub.example", resp.Header().Get("Access-Control-Allow-Origin"))
}
