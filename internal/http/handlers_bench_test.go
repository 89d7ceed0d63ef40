package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/worldbank-dashboard/internal/cache"
	"github.com/kjstillabower/worldbank-dashboard/internal/charts"
	"github.com/kjstillabower/worldbank-dashboard/internal/lifecycle"
	"github.com/kjstillabower/worldbank-dashboard/internal/observability"
)

// discardCache misses every Get and drops every Set, so miss-path benchmarks
// stay miss-path across iterations.
type discardCache struct{}

func (discardCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (discardCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

// setupBenchmarkHandler creates a handler with a canned renderer for benchmarking.
func setupBenchmarkHandler(b *testing.B, chartCache cache.Cache) *Handler {
	lifecycle.SetReady(true)
	b.Cleanup(func() { lifecycle.SetReady(false) })

	provider := &mockProvider{ds: handlerTestDataset()}
	renderer := &mockChartRenderer{doc: []byte("<html><body>chart</body></html>")}
	logger, _ := zap.NewDevelopment()
	return NewHandler(provider, renderer, chartCache, time.Minute, nil, logger)
}

// createBenchmarkRequest creates an HTTP request for benchmarking.
func createBenchmarkRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	logger, _ := zap.NewDevelopment()
	req = req.WithContext(context.WithValue(req.Context(), "correlation_id", "bench-id"))
	req = req.WithContext(context.WithValue(req.Context(), "logger", logger))
	return req
}

// BenchmarkHandler_GetChart_CacheHit benchmarks the chart handler when the
// document is already cached under the canonical default key.
func BenchmarkHandler_GetChart_CacheHit(b *testing.B) {
	chartCache := cache.NewInMemoryCache()
	handler := setupBenchmarkHandler(b, chartCache)

	key := cache.Key(charts.KindWorldMap, "NY.GDP.PCAP.CD", 2021, nil)
	_ = chartCache.Set(context.Background(), key, []byte("<html>cached</html>"), time.Minute)

	router := mux.NewRouter()
	router.HandleFunc("/charts/{chart}", handler.GetChart)
	req := createBenchmarkRequest("GET", "/charts/worldmap")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHandler_GetChart_CacheMiss benchmarks the miss path with a canned
// renderer, isolating parse, key, and write overhead from echarts itself.
func BenchmarkHandler_GetChart_CacheMiss(b *testing.B) {
	handler := setupBenchmarkHandler(b, discardCache{})

	router := mux.NewRouter()
	router.HandleFunc("/charts/{chart}", handler.GetChart)
	req := createBenchmarkRequest("GET", "/charts/worldmap?indicator=NY.GDP.PCAP.CD&year=2021")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHandler_GetChart_RealRender benchmarks the full render path with
// the echarts renderer.
func BenchmarkHandler_GetChart_RealRender(b *testing.B) {
	if testing.Short() {
		b.Skip("skipping real render benchmark in short mode")
	}
	lifecycle.SetReady(true)
	b.Cleanup(func() { lifecycle.SetReady(false) })

	provider := &mockProvider{ds: handlerTestDataset()}
	logger, _ := observability.NewLogger()
	handler := NewHandler(provider, charts.NewRenderer(logger), discardCache{}, time.Minute, nil, logger)

	router := mux.NewRouter()
	router.HandleFunc("/charts/{chart}", handler.GetChart)
	req := createBenchmarkRequest("GET", "/charts/worldmap?indicator=NY.GDP.PCAP.CD&year=2021")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHandler_GetChart_ValidationError benchmarks validation error handling.
func BenchmarkHandler_GetChart_ValidationError(b *testing.B) {
	handler := setupBenchmarkHandler(b, cache.NewInMemoryCache())

	router := mux.NewRouter()
	router.HandleFunc("/charts/{chart}", handler.GetChart)
	req := createBenchmarkRequest("GET", "/charts/worldmap?year=20x1")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHandler_GetObservations benchmarks the JSON data API with filters.
func BenchmarkHandler_GetObservations(b *testing.B) {
	handler := setupBenchmarkHandler(b, cache.NewInMemoryCache())

	router := mux.NewRouter()
	router.HandleFunc("/api/observations", handler.GetObservations)
	req := createBenchmarkRequest("GET", "/api/observations?indicator=NY.GDP.PCAP.CD&from=2020&to=2021")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHandler_GetDashboard benchmarks the page template execution.
func BenchmarkHandler_GetDashboard(b *testing.B) {
	handler := setupBenchmarkHandler(b, cache.NewInMemoryCache())

	router := mux.NewRouter()
	router.HandleFunc("/", handler.GetDashboard)
	req := createBenchmarkRequest("GET", "/")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// BenchmarkHandler_GetHealth benchmarks health check endpoint.
func BenchmarkHandler_GetHealth(b *testing.B) {
	lifecycle.SetReady(true)
	b.Cleanup(func() { lifecycle.SetReady(false) })

	provider := &mockProvider{ds: handlerTestDataset()}
	renderer := &mockChartRenderer{doc: []byte("<html></html>")}

	healthConfig := &HealthConfig{
		OverloadWindow:       60 * time.Second,
		OverloadThresholdPct: 80,
		RateLimitRPS:         100,
		RateLimitBurst:       250,
		DegradedWindow:       5 * time.Minute,
		DegradedErrorPct:     5,
	}

	logger, _ := observability.NewLogger()
	handler := NewHandler(provider, renderer, cache.NewInMemoryCache(), time.Minute, healthConfig, logger)

	router := mux.NewRouter()
	router.HandleFunc("/health", handler.GetHealth)
	req := createBenchmarkRequest("GET", "/health")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
