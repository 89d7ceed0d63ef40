package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kjstillabower/worldbank-dashboard/internal/models"
	"github.com/kjstillabower/worldbank-dashboard/internal/observability"
)

// WorldBankClient fetches indicator observations and country metadata from
// the World Bank API.
type WorldBankClient interface {
	FetchIndicator(ctx context.Context, code string, from, to int) ([]models.Observation, error)
	FetchCountries(ctx context.Context) ([]models.Country, error)
}

var (
	ErrInvalidIndicator = errors.New("invalid indicator code")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
)

const (
	defaultPerPage = 1000

	// Pagination safety net. The largest annual series over a full year
	// range is well under 100 pages at 1000 rows per page.
	maxPages = 500
)

type RestClient struct {
	baseURL        string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	perPage        int
}

func NewRestClient(baseURL string, timeout time.Duration) *RestClient {
	return NewRestClientWithRetry(baseURL, timeout, 3, 200*time.Millisecond, 5*time.Second)
}

func NewRestClientWithRetry(baseURL string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) *RestClient {
	return &RestClient{
		baseURL:        baseURL,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		perPage:        defaultPerPage,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchIndicator retrieves all observations for one indicator across all
// countries for the year range [from, to]. Pages are fetched sequentially;
// rows with a null value are absent observations and are skipped.
func (c *RestClient) FetchIndicator(ctx context.Context, code string, from, to int) ([]models.Observation, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("per_page", strconv.Itoa(c.perPage))
	params.Set("date", fmt.Sprintf("%d:%d", from, to))

	var all []models.Observation
	for page := 1; page <= maxPages; page++ {
		params.Set("page", strconv.Itoa(page))
		body, err := c.getWithRetry(ctx, "/country/all/indicator/"+url.PathEscape(code), params)
		if err != nil {
			return nil, fmt.Errorf("fetch indicator %s page %d: %w", code, page, err)
		}
		obs, pages, err := parseIndicatorPage(body, code)
		if err != nil {
			return nil, fmt.Errorf("indicator %s page %d: %w", code, page, err)
		}
		all = append(all, obs...)
		if pages <= 0 || page >= pages {
			return all, nil
		}
	}
	return nil, fmt.Errorf("%w: page limit exceeded for indicator %s", ErrUpstreamFailure, code)
}

// FetchCountries retrieves country and aggregate metadata: names, regions and
// income levels. Aggregates (region id NA) are flagged so the dataset can
// exclude them from country-level charts.
func (c *RestClient) FetchCountries(ctx context.Context) ([]models.Country, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("per_page", strconv.Itoa(c.perPage))

	var all []models.Country
	for page := 1; page <= maxPages; page++ {
		params.Set("page", strconv.Itoa(page))
		body, err := c.getWithRetry(ctx, "/country", params)
		if err != nil {
			return nil, fmt.Errorf("fetch countries page %d: %w", page, err)
		}
		countries, pages, err := parseCountriesPage(body)
		if err != nil {
			return nil, fmt.Errorf("countries page %d: %w", page, err)
		}
		all = append(all, countries...)
		if pages <= 0 || page >= pages {
			return all, nil
		}
	}
	return nil, fmt.Errorf("%w: page limit exceeded for countries", ErrUpstreamFailure)
}

func (c *RestClient) getWithRetry(ctx context.Context, path string, params url.Values) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.WorldBankAPIRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.get(ctx, path, params)
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !c.isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *RestClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, path, params)
	if err != nil {
		observability.WorldBankAPICallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	corrID := extractCorrelationID(ctx)
	if corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WorldBankAPICallsTotal.WithLabelValues("error").Inc()
		observability.WorldBankAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WorldBankAPICallsTotal.WithLabelValues(status).Inc()
	observability.WorldBankAPIDuration.WithLabelValues(status).Observe(duration)

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}

func (c *RestClient) buildRequest(ctx context.Context, path string, params url.Values) (*http.Request, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	ref := *base
	ref.Path = strings.TrimRight(base.Path, "/") + path
	ref.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *RestClient) handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusNotFound:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidIndicator, resp.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

func (c *RestClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "context canceled") {
		return true
	}

	return false
}

func (c *RestClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// parseIndicatorPage decodes one page of the two-element response envelope
// [meta, rows]. API-level errors arrive as HTTP 200 with a message array in
// place of meta. Returns observations and the total page count.
func parseIndicatorPage(body []byte, fallbackCode string) ([]models.Observation, int, error) {
	meta, rows, err := splitEnvelope(body)
	if err != nil {
		return nil, 0, err
	}

	pages := int(meta.Get("pages").Int())

	var obs []models.Observation
	rows.ForEach(func(_, row gjson.Result) bool {
		v := row.Get("value")
		if !v.Exists() || v.Type == gjson.Null {
			// No observation for this country-year.
			return true
		}
		year, convErr := strconv.Atoi(row.Get("date").String())
		if convErr != nil {
			// Non-annual granularity (quarterly, monthly); not served here.
			return true
		}
		country := row.Get("countryiso3code").String()
		if country == "" {
			country = row.Get("country.id").String()
		}
		indicator := row.Get("indicator.id").String()
		if indicator == "" {
			indicator = fallbackCode
		}
		obs = append(obs, models.Observation{
			Country:   country,
			Indicator: indicator,
			Year:      year,
			Value:     v.Float(),
		})
		return true
	})

	return obs, pages, nil
}

// parseCountriesPage decodes one page of /country rows. Region and income
// level names carry trailing whitespace in the upstream payload and are trimmed.
func parseCountriesPage(body []byte) ([]models.Country, int, error) {
	meta, rows, err := splitEnvelope(body)
	if err != nil {
		return nil, 0, err
	}

	pages := int(meta.Get("pages").Int())

	var countries []models.Country
	rows.ForEach(func(_, row gjson.Result) bool {
		regionID := strings.TrimSpace(row.Get("region.id").String())
		countries = append(countries, models.Country{
			Code:        row.Get("id").String(),
			Name:        strings.TrimSpace(row.Get("name").String()),
			Region:      strings.TrimSpace(row.Get("region.value").String()),
			IncomeLevel: strings.TrimSpace(row.Get("incomeLevel.value").String()),
			Aggregate:   regionID == "NA",
		})
		return true
	})

	return countries, pages, nil
}

// splitEnvelope validates and splits the [meta, rows] response array. An
// error payload replaces meta with {"message": [{id, key, value}]}.
func splitEnvelope(body []byte) (meta, rows gjson.Result, err error) {
	if !gjson.ValidBytes(body) {
		return meta, rows, fmt.Errorf("%w: response is not valid JSON", ErrUpstreamFailure)
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return meta, rows, fmt.Errorf("%w: unexpected response shape", ErrUpstreamFailure)
	}
	arr := root.Array()
	if len(arr) == 0 {
		return meta, rows, fmt.Errorf("%w: empty response array", ErrUpstreamFailure)
	}

	meta = arr[0]
	if msg := meta.Get("message"); msg.Exists() {
		return meta, rows, apiMessageError(msg)
	}
	if len(arr) > 1 && arr[1].IsArray() {
		rows = arr[1]
	}
	return meta, rows, nil
}

// apiMessageError maps the API message envelope to a sentinel error.
// Message id 120 is "Invalid value" for a request parameter, which for our
// request shapes means the indicator code.
func apiMessageError(msg gjson.Result) error {
	id := msg.Get("0.id").String()
	text := msg.Get("0.value").String()
	if id == "120" {
		return fmt.Errorf("%w: %s", ErrInvalidIndicator, text)
	}
	return fmt.Errorf("%w: API message %s: %s", ErrUpstreamFailure, id, text)
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
