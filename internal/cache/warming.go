package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/worldbank-dashboard/internal/charts"
	"github.com/kjstillabower/worldbank-dashboard/internal/dataset"
	"github.com/kjstillabower/worldbank-dashboard/internal/observability"
)

// Renderer is the slice of the chart renderer the warmer needs. Implemented
// by charts.Renderer.
type Renderer interface {
	Render(kind string, ds *dataset.Dataset, req charts.Request) ([]byte, error)
}

// ChartWarmer pre-renders the dashboard's default chart set into the cache,
// so the first page load after a dataset swap is served from cache. The
// default set is every chart kind at the dataset's latest year with no
// country selection, which is exactly what a fresh browser session requests.
type ChartWarmer struct {
	renderer Renderer
	cache    Cache
	ttl      time.Duration
	logger   *zap.Logger
}

// NewChartWarmer creates a ChartWarmer that renders with the given renderer
// and stores into the given cache.
func NewChartWarmer(renderer Renderer, cache Cache, ttl time.Duration, logger *zap.Logger) *ChartWarmer {
	return &ChartWarmer{renderer: renderer, cache: cache, ttl: ttl, logger: logger}
}

// Warm renders every chart kind for the indicator concurrently and caches the
// results. Returns an aggregated error if any kind failed; the kinds that
// succeeded are cached regardless.
func (w *ChartWarmer) Warm(ctx context.Context, ds *dataset.Dataset, indicator string) error {
	year, ok := ds.LatestYear()
	if !ok {
		if w.logger != nil {
			w.logger.Debug("skipping chart warming, dataset has no years")
		}
		return nil
	}

	start := time.Now()
	observability.ChartWarmingTotal.Inc()
	kinds := charts.Kinds()
	if w.logger != nil {
		w.logger.Info("warming chart cache",
			zap.Int("charts", len(kinds)),
			zap.String("indicator", indicator),
			zap.Int("year", year))
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(kinds))
	for _, kind := range kinds {
		wg.Add(1)
		go func(kind string) {
			defer wg.Done()
			req := charts.Request{Indicator: indicator, Year: year}
			doc, err := w.renderer.Render(kind, ds, req)
			if err != nil {
				errCh <- fmt.Errorf("warm %s: %w", kind, err)
				return
			}
			if err := w.cache.Set(ctx, Key(kind, indicator, year, nil), doc, w.ttl); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", kind, err)
			}
		}(kind)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.ChartWarmingDuration.Observe(duration)
	if w.logger != nil {
		w.logger.Info("chart warming complete",
			zap.Int("charts", len(kinds)),
			zap.Int("errors", len(errs)),
			zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.ChartWarmingErrorsTotal.Inc()
		return fmt.Errorf("chart warming: %v", errs)
	}
	return nil
}
