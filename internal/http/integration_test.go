//go:build integration
// +build integration

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/worldbank-dashboard/internal/cache"
	"github.com/kjstillabower/worldbank-dashboard/internal/charts"
	"github.com/kjstillabower/worldbank-dashboard/internal/lifecycle"
	"github.com/kjstillabower/worldbank-dashboard/internal/observability"
)

var testLogger *zap.Logger

func init() {
	var err error
	testLogger, err = observability.NewLogger()
	if err != nil {
		panic(err)
	}
}

// setupIntegrationRouter assembles the full request stack the way the binary
// wires it: real chart renderer, in-memory chart cache, correlation and
// metrics middleware, and the chart/api subrouters with rate limiting and
// timeouts. Returns the router, the chart cache for test seeding, and a
// cleanup function.
func setupIntegrationRouter(t *testing.T, limiter *rate.Limiter) (*mux.Router, cache.Cache, func()) {
	t.Helper()
	lifecycle.SetReady(true)

	provider := &mockProvider{ds: handlerTestDataset()}
	renderer := charts.NewRenderer(testLogger)
	chartCache := cache.NewInMemoryCache()
	handler := NewHandler(provider, renderer, chartCache, time.Minute, nil, testLogger)

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(testLogger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/", handler.GetDashboard).Methods("GET")
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")

	chartRouter := router.PathPrefix("/charts").Subrouter()
	chartRouter.Use(RateLimitMiddleware(limiter))
	chartRouter.Use(TimeoutMiddleware(5 * time.Second))
	chartRouter.HandleFunc("/{chart}", handler.GetChart).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(RateLimitMiddleware(limiter))
	apiRouter.Use(TimeoutMiddleware(5 * time.Second))
	apiRouter.HandleFunc("/observations", handler.GetObservations).Methods("GET")
	apiRouter.HandleFunc("/countries", handler.GetCountries).Methods("GET")
	apiRouter.HandleFunc("/indicators", handler.GetIndicators).Methods("GET")

	return router, chartCache, func() { lifecycle.SetReady(false) }
}

func makeIntegrationRequest(router *mux.Router, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestIntegration_Dashboard_FullStack verifies the dashboard page renders
// through the full middleware chain with picker options and chart panels.
func TestIntegration_Dashboard_FullStack(t *testing.T) {
	router, _, cleanup := setupIntegrationRouter(t, nil)
	defer cleanup()

	w := makeIntegrationRequest(router, "GET", "/")

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d. Body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{
		"World Development Indicators",
		`value="NY.GDP.PCAP.CD"`,
		`data-kind="worldmap"`,
		`data-kind="regions"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Dashboard body missing %q", want)
		}
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID header missing")
	}
}

// TestIntegration_Chart_RenderAndCache verifies a chart renders with the real
// renderer on the first request and that the second request serves the same
// document from the cache.
func TestIntegration_Chart_RenderAndCache(t *testing.T) {
	router, chartCache, cleanup := setupIntegrationRouter(t, nil)
	defer cleanup()

	w := makeIntegrationRequest(router, "GET", "/charts/worldmap?indicator=NY.GDP.PCAP.CD&year=2021")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d. Body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "echarts") {
		t.Error("Chart document missing echarts markup")
	}
	if !strings.Contains(body, "GDP per Capita") {
		t.Error("Chart document missing indicator title")
	}

	// The document should now sit in the cache under the canonical key.
	key := cache.Key(charts.KindWorldMap, "NY.GDP.PCAP.CD", 2021, nil)
	if _, ok, err := chartCache.Get(context.Background(), key); err != nil || !ok {
		t.Fatalf("Cache entry missing after render: ok=%v err=%v", ok, err)
	}

	w2 := makeIntegrationRequest(router, "GET", "/charts/worldmap?indicator=NY.GDP.PCAP.CD&year=2021")
	if w2.Code != http.StatusOK {
		t.Fatalf("Second request status = %d, want %d", w2.Code, http.StatusOK)
	}
	if w2.Body.String() != body {
		t.Error("Second request should serve the identical cached document")
	}
}

// TestIntegration_ChartWarming_ServesWarmedDocuments verifies that documents
// the warmer produces are served to a paramless first request: the default
// selection and the warmed selection resolve to the same cache key.
func TestIntegration_ChartWarming_ServesWarmedDocuments(t *testing.T) {
	router, chartCache, cleanup := setupIntegrationRouter(t, nil)
	defer cleanup()

	ds := handlerTestDataset()
	renderer := charts.NewRenderer(testLogger)
	warmer := cache.NewChartWarmer(renderer, chartCache, time.Minute, testLogger)
	if err := warmer.Warm(context.Background(), ds, "NY.GDP.PCAP.CD"); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}

	// A fresh browser session requests every chart with no parameters.
	for _, kind := range charts.Kinds() {
		w := makeIntegrationRequest(router, "GET", "/charts/"+kind)
		if w.Code != http.StatusOK {
			t.Errorf("Chart %s status = %d, want %d", kind, w.Code, http.StatusOK)
		}
		if !strings.Contains(w.Body.String(), "echarts") {
			t.Errorf("Chart %s missing echarts markup", kind)
		}
	}
}

// TestIntegration_API_Observations verifies the JSON data API end to end,
// including filter handling through the subrouter.
func TestIntegration_API_Observations(t *testing.T) {
	router, _, cleanup := setupIntegrationRouter(t, nil)
	defer cleanup()

	w := makeIntegrationRequest(router, "GET", "/api/observations?indicator=NY.GDP.PCAP.CD&countries=USA,DEU&from=2021")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d. Body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if count, _ := resp["count"].(float64); count != 2 {
		t.Errorf("Count = %v, want 2", resp["count"])
	}
}

// TestIntegration_Health_And_Metrics verifies the health endpoint and the
// Prometheus exposition after chart traffic has flowed.
func TestIntegration_Health_And_Metrics(t *testing.T) {
	router, _, cleanup := setupIntegrationRouter(t, nil)
	defer cleanup()

	makeIntegrationRequest(router, "GET", "/charts/top20")

	w := makeIntegrationRequest(router, "GET", "/health")
	if w.Code != http.StatusOK {
		t.Errorf("Health status = %d, want %d. Body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var health map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if health["status"] != "healthy" && health["status"] != "degraded" {
		t.Errorf("Health status = %v, want healthy or degraded", health["status"])
	}

	w = makeIntegrationRequest(router, "GET", "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("Metrics status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	for _, metric := range []string{"httpRequestsTotal", "chartRendersTotal", "chartCacheHitsTotal"} {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics missing %s", metric)
		}
	}
}

// TestIntegration_RateLimiting_Enforcement verifies that a tight limiter on
// the chart subrouter denies burst traffic with 429 responses.
func TestIntegration_RateLimiting_Enforcement(t *testing.T) {
	router, _, cleanup := setupIntegrationRouter(t, rate.NewLimiter(1, 2))
	defer cleanup()

	var denied int
	for i := 0; i < 5; i++ {
		w := makeIntegrationRequest(router, "GET", "/charts/worldmap")
		if w.Code == http.StatusTooManyRequests {
			denied++
		}
	}
	if denied == 0 {
		t.Error("Expected at least one 429 from a burst of 5 requests")
	}

	// The dashboard page sits outside the limited subrouters.
	w := makeIntegrationRequest(router, "GET", "/")
	if w.Code != http.StatusOK {
		t.Errorf("Dashboard status = %d, want %d (not rate limited)", w.Code, http.StatusOK)
	}
}
