package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/worldbank-dashboard/internal/cache"
	"github.com/kjstillabower/worldbank-dashboard/internal/charts"
	"github.com/kjstillabower/worldbank-dashboard/internal/dataset"
	"github.com/kjstillabower/worldbank-dashboard/internal/lifecycle"
	"github.com/kjstillabower/worldbank-dashboard/internal/observability"
	"github.com/kjstillabower/worldbank-dashboard/internal/traffic"
	"github.com/kjstillabower/worldbank-dashboard/internal/validation"
)

// maxSelectedCountries caps the country multi-select. It also bounds chart
// cache key length.
const maxSelectedCountries = 30

// DataProvider is the slice of the data layer the handlers read from.
type DataProvider interface {
	// Dataset returns the current snapshot, or nil before the first load.
	Dataset() *dataset.Dataset
	// Stale reports whether the snapshot was served from cache because the
	// World Bank API was unreachable at refresh time.
	Stale() bool
}

// ChartRenderer renders one chart kind into a standalone HTML document.
type ChartRenderer interface {
	Render(kind string, ds *dataset.Dataset, req charts.Request) ([]byte, error)
}

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	RateLimitBurst       int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	// CachePing, when set, is called to check chart cache reachability.
	// Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	data             DataProvider
	renderer         ChartRenderer
	chartCache       cache.Cache
	cacheTTL         time.Duration
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	data DataProvider,
	renderer ChartRenderer,
	chartCache cache.Cache,
	cacheTTL time.Duration,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		data:         data,
		renderer:     renderer,
		chartCache:   chartCache,
		cacheTTL:     cacheTTL,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetChart handles GET /charts/{chart}. The document comes from the chart
// cache when possible and is rendered on a miss. Selections that are
// well-formed but match no data still render as a placeholder document, so
// only malformed input is rejected.
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["chart"]
	if !validChartKind(kind) {
		writeError(w, r, http.StatusNotFound, "UNKNOWN_CHART", "unknown chart kind: "+kind)
		return
	}

	ds := h.currentDataset(w, r)
	if ds == nil {
		return
	}
	req, ok := h.parseChartRequest(w, r, ds)
	if !ok {
		return
	}
	observability.ChartRequestsByIndicatorTotal.WithLabelValues(req.Indicator).Inc()

	key := cache.Key(kind, req.Indicator, req.Year, req.Countries)
	doc, hit, err := h.chartCache.Get(r.Context(), key)
	if err != nil {
		observability.ChartCacheErrorsTotal.WithLabelValues("get").Inc()
		requestLogger(r, h.logger).Debug("chart cache get failed", zap.String("key", key), zap.Error(err))
	}
	if hit {
		observability.ChartCacheHitsTotal.Inc()
		traffic.RecordSuccess()
		writeHTML(w, doc)
		return
	}

	doc, err = h.renderer.Render(kind, ds, req)
	if err != nil {
		traffic.RecordError()
		requestLogger(r, h.logger).Error("chart render failed",
			zap.String("chart", kind),
			zap.String("indicator", req.Indicator),
			zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "chart could not be rendered")
		return
	}
	if err := h.chartCache.Set(r.Context(), key, doc, h.cacheTTL); err != nil {
		observability.ChartCacheErrorsTotal.WithLabelValues("set").Inc()
		requestLogger(r, h.logger).Debug("chart cache set failed", zap.String("key", key), zap.Error(err))
	}
	traffic.RecordSuccess()
	writeHTML(w, doc)
}

// parseChartRequest reads indicator, year, and country from the query string.
// On validation failure it writes the error response and returns ok=false.
func (h *Handler) parseChartRequest(w http.ResponseWriter, r *http.Request, ds *dataset.Dataset) (charts.Request, bool) {
	q := r.URL.Query()
	var req charts.Request

	if raw := q.Get("indicator"); raw != "" {
		code, err := validation.ValidateIndicatorCode(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_INDICATOR", err.Error())
			return charts.Request{}, false
		}
		// Membership is enforced here rather than in the charts layer: the
		// indicator code becomes a metric label, and free-form codes would
		// blow up cardinality.
		if !ds.HasIndicator(code) {
			writeError(w, r, http.StatusBadRequest, "UNKNOWN_INDICATOR", "indicator is not in the configured set: "+code)
			return charts.Request{}, false
		}
		req.Indicator = code
	} else {
		req.Indicator = defaultIndicator(ds)
	}

	// Year is checked for shape only. A well-formed year outside the dataset
	// range yields an empty selection and a placeholder chart, not a 400.
	if raw := q.Get("year"); raw != "" {
		year, err := validation.ValidateYear(raw, 0, 0)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_YEAR", err.Error())
			return charts.Request{}, false
		}
		req.Year = year
	} else if latest, ok := ds.LatestYear(); ok {
		// An absent year pins to the latest year so the default selection
		// and an explicit latest-year selection share one cache key. The
		// warmer populates exactly that key.
		req.Year = latest
	}

	if raw := q.Get("country"); raw != "" {
		codes, err := validation.ValidateCountryCodes(raw, maxSelectedCountries)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_COUNTRY", err.Error())
			return charts.Request{}, false
		}
		req.Countries = codes
	}

	return req, true
}

// GetObservations handles GET /api/observations. Supported filters:
// indicator, countries (comma separated), from, to.
func (h *Handler) GetObservations(w http.ResponseWriter, r *http.Request) {
	ds := h.currentDataset(w, r)
	if ds == nil {
		return
	}

	q := r.URL.Query()
	var filter dataset.Filter

	if raw := q.Get("indicator"); raw != "" {
		code, err := validation.ValidateIndicatorCode(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_INDICATOR", err.Error())
			return
		}
		filter.Indicator = code
	}
	if raw := q.Get("countries"); raw != "" {
		codes, err := validation.ValidateCountryCodes(raw, maxSelectedCountries)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_COUNTRY", err.Error())
			return
		}
		filter.Countries = codes
	}
	if raw := q.Get("from"); raw != "" {
		year, err := validation.ValidateYear(raw, 0, 0)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_YEAR", err.Error())
			return
		}
		filter.FromYear = year
	}
	if raw := q.Get("to"); raw != "" {
		year, err := validation.ValidateYear(raw, 0, 0)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_YEAR", err.Error())
			return
		}
		filter.ToYear = year
	}

	rows := ds.Query(filter)
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":        len(rows),
		"stale":        h.data.Stale(),
		"observations": rows,
	})
}

// GetCountries handles GET /api/countries. Aggregates are excluded; the list
// matches the dashboard's country picker.
func (h *Handler) GetCountries(w http.ResponseWriter, r *http.Request) {
	ds := h.currentDataset(w, r)
	if ds == nil {
		return
	}
	countries := ds.Countries()
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(countries),
		"countries": countries,
	})
}

// GetIndicators handles GET /api/indicators.
func (h *Handler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	ds := h.currentDataset(w, r)
	if ds == nil {
		return
	}
	indicators := ds.Indicators()
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(indicators),
		"indicators": indicators,
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	switch {
	case !lifecycle.IsReady():
		checks["worldBankData"] = "loading"
	case h.data.Stale():
		checks["worldBankData"] = "stale"
	default:
		checks["worldBankData"] = "fresh"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "worldbank-dashboard",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus determines the current health status by evaluating
// multiple conditions in priority order. Returns healthResult with status,
// HTTP status code, and reason.
// Decision order: shutting-down > starting > overloaded > degraded > healthy.
// A stale snapshot reports degraded with HTTP 200: the service is still
// serving and a 503 would have orchestrators restart a process that cannot
// fix an unreachable upstream by restarting.
func (h *Handler) computeHealthStatus() healthResult {
	// Priority 1: Check if service is shutting down
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	// Priority 2: Check if the startup dataset has loaded
	if !lifecycle.IsReady() {
		return healthResult{"starting", http.StatusServiceUnavailable, "dataset_loading"}
	}
	// If no health config, only check dataset freshness
	if h.healthConfig == nil {
		if h.data.Stale() {
			return healthResult{"degraded", http.StatusOK, "stale_dataset"}
		}
		return healthResult{"healthy", http.StatusOK, ""}
	}
	// Priority 3: Check overload threshold (rate limit denials exceed configured percentage)
	threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
	if threshold > 0 && float64(traffic.DenialCount(h.healthConfig.OverloadWindow)) > threshold {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
	}
	// Priority 4: Check degraded state (render/query error rate exceeds configured threshold)
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errors, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	// Priority 5: Check dataset freshness (stale data still serves)
	if h.data.Stale() {
		return healthResult{"degraded", http.StatusOK, "stale_dataset"}
	}
	// Default: All checks passed, service is healthy
	return healthResult{"healthy", http.StatusOK, ""}
}

// currentDataset returns the live snapshot, or writes a 503 and returns nil
// when the first load has not completed.
func (h *Handler) currentDataset(w http.ResponseWriter, r *http.Request) *dataset.Dataset {
	if !lifecycle.IsReady() {
		writeError(w, r, http.StatusServiceUnavailable, "STARTING", "dataset is still loading")
		return nil
	}
	ds := h.data.Dataset()
	if ds == nil {
		writeError(w, r, http.StatusServiceUnavailable, "STARTING", "dataset is still loading")
		return nil
	}
	return ds
}

// validChartKind reports whether kind names a known chart.
func validChartKind(kind string) bool {
	for _, k := range charts.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// defaultIndicator returns the first configured indicator, the selection a
// fresh dashboard session starts on.
func defaultIndicator(ds *dataset.Dataset) string {
	indicators := ds.Indicators()
	if len(indicators) == 0 {
		return ""
	}
	return indicators[0].Code
}

// requestLogger returns the correlation-aware logger stored in the request
// context by the middleware, falling back to the handler's own.
func requestLogger(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}

// writeHTML writes a rendered chart document.
func writeHTML(w http.ResponseWriter, doc []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// writeJSON writes a JSON response with the specified HTTP status code.
// Sets Content-Type header to application/json and encodes the provided value.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
