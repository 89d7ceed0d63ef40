// Package provider owns the dataset lifecycle: load the snapshot at startup,
// fetch from the World Bank API when there is none, write the snapshot back
// wholesale, and swap in refreshed datasets without blocking readers.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/worldbank-dashboard/internal/client"
	"github.com/kjstillabower/worldbank-dashboard/internal/dataset"
	"github.com/kjstillabower/worldbank-dashboard/internal/models"
	"github.com/kjstillabower/worldbank-dashboard/internal/observability"
	"github.com/kjstillabower/worldbank-dashboard/internal/snapshot"
)

// ErrDataUnavailable means there is nothing to serve: no snapshot on disk and
// every configured indicator fetch failed.
var ErrDataUnavailable = errors.New("no snapshot and no indicator data could be fetched")

// Options configures a Provider.
type Options struct {
	Indicators []models.Indicator
	StartYear  int
	EndYear    int

	// MaxAge is how old a snapshot may grow before Load refetches instead of
	// serving it. Zero means snapshots never go stale.
	MaxAge time.Duration

	// OnSwap runs after each dataset swap, outside any lock. Optional; used
	// to invalidate rendered-chart caches.
	OnSwap func(*dataset.Dataset)
}

// Provider loads the indicator dataset and publishes it through an atomic
// pointer so request handlers read without locking.
type Provider struct {
	client client.WorldBankClient
	store  snapshot.Store
	logger *zap.Logger
	opts   Options

	current atomic.Pointer[dataset.Dataset]
	stale   atomic.Bool

	mu        sync.Mutex
	countries []models.Country

	refreshChan   chan struct{}
	refreshChanMu sync.Mutex
	refreshing    atomic.Bool
}

// New creates a Provider. The dataset is nil until Load runs.
func New(wb client.WorldBankClient, store snapshot.Store, logger *zap.Logger, opts Options) *Provider {
	if len(opts.Indicators) == 0 {
		opts.Indicators = models.DefaultIndicators()
	}
	return &Provider{client: wb, store: store, logger: logger, opts: opts}
}

// Dataset returns the dataset currently being served, nil before Load.
func (p *Provider) Dataset() *dataset.Dataset {
	return p.current.Load()
}

// Stale reports whether the served dataset came from a snapshot older than
// MaxAge whose refetch failed.
func (p *Provider) Stale() bool {
	return p.stale.Load()
}

// Load populates the dataset. Snapshot present and fresh: serve it with zero
// indicator fetches. Snapshot absent: fetch every configured indicator and
// persist the result, zero rows included. Snapshot stale: refetch, and fall
// back to the stale contents when the refetch fails. Country metadata is
// fetched best-effort on every path. Call once before the server starts.
func (p *Provider) Load(ctx context.Context) (*dataset.Dataset, error) {
	snap, ok, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	countries := p.fetchCountries(ctx)
	p.mu.Lock()
	p.countries = countries
	p.mu.Unlock()

	if !ok {
		observability.SnapshotLoadsTotal.WithLabelValues("miss").Inc()
		p.logger.Info("no snapshot, fetching indicators",
			zap.Int("indicators", len(p.opts.Indicators)),
			zap.Int("startYear", p.opts.StartYear),
			zap.Int("endYear", p.opts.EndYear))
		obs, fetchErr := p.fetchAll(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}
		p.save(ctx, obs)
		return p.swap(obs, countries), nil
	}

	age := time.Since(snap.SavedAt)
	if p.opts.MaxAge > 0 && age > p.opts.MaxAge {
		p.logger.Info("snapshot stale, refetching",
			zap.Duration("age", age),
			zap.Duration("maxAge", p.opts.MaxAge))
		obs, fetchErr := p.fetchAll(ctx)
		if fetchErr == nil {
			observability.SnapshotLoadsTotal.WithLabelValues("stale_refreshed").Inc()
			p.save(ctx, obs)
			return p.swap(obs, countries), nil
		}
		observability.SnapshotLoadsTotal.WithLabelValues("stale_served").Inc()
		p.stale.Store(true)
		p.logger.Warn("refetch failed, serving stale snapshot",
			zap.Duration("age", age),
			zap.Int("observations", len(snap.Observations)),
			zap.Error(fetchErr))
		p.NotifyStale()
		return p.swap(snap.Observations, countries), nil
	}

	observability.SnapshotLoadsTotal.WithLabelValues("hit").Inc()
	p.logger.Info("snapshot loaded",
		zap.Int("observations", len(snap.Observations)),
		zap.Duration("age", age))
	return p.swap(snap.Observations, countries), nil
}

// fetchAll pulls every configured indicator sequentially. Indicators that
// yield nothing are skipped with a warning; the load only fails when every
// indicator does.
func (p *Provider) fetchAll(ctx context.Context) ([]models.Observation, error) {
	all := make([]models.Observation, 0, 4096)
	failed := 0
	for _, ind := range p.opts.Indicators {
		obs, err := p.fetchIndicator(ctx, ind.Code)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("fetch %s: %w", ind.Code, err)
			}
			failed++
			p.logger.Warn("indicator fetch failed, skipping",
				zap.String("indicator", ind.Code),
				zap.Error(err))
			continue
		}
		p.logger.Info("indicator fetched",
			zap.String("indicator", ind.Code),
			zap.Int("observations", len(obs)))
		all = append(all, obs...)
	}
	if failed == len(p.opts.Indicators) {
		return nil, fmt.Errorf("%w: all %d indicators failed", ErrDataUnavailable, failed)
	}
	return all, nil
}

// fetchIndicator fetches one indicator across the configured range, falling
// back to one request per year when the ranged request fails. Years that fail
// inside the fallback are skipped; the indicator only fails when every year
// does.
func (p *Provider) fetchIndicator(ctx context.Context, code string) ([]models.Observation, error) {
	obs, err := p.client.FetchIndicator(ctx, code, p.opts.StartYear, p.opts.EndYear)
	if err == nil {
		return obs, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	if errors.Is(err, client.ErrInvalidIndicator) {
		// A rejected code fails identically for every year; splitting the
		// range would just repeat the refusal.
		return nil, err
	}
	p.logger.Warn("ranged fetch failed, retrying year by year",
		zap.String("indicator", code),
		zap.Int("startYear", p.opts.StartYear),
		zap.Int("endYear", p.opts.EndYear),
		zap.Error(err))

	var all []models.Observation
	fetchedAny := false
	for year := p.opts.StartYear; year <= p.opts.EndYear; year++ {
		yearObs, yearErr := p.client.FetchIndicator(ctx, code, year, year)
		if yearErr != nil {
			if ctx.Err() != nil {
				return nil, yearErr
			}
			p.logger.Warn("year fetch failed, skipping",
				zap.String("indicator", code),
				zap.Int("year", year),
				zap.Error(yearErr))
			continue
		}
		fetchedAny = true
		all = append(all, yearObs...)
	}
	if !fetchedAny {
		return nil, err
	}
	return all, nil
}

// fetchCountries pulls economy metadata. Best-effort: on failure the charts
// label countries by ISO3 code and the regional chart renders a placeholder.
func (p *Provider) fetchCountries(ctx context.Context) []models.Country {
	countries, err := p.client.FetchCountries(ctx)
	if err != nil {
		p.logger.Warn("country metadata fetch failed, falling back to code labels",
			zap.Error(err))
		return nil
	}
	p.logger.Info("country metadata fetched", zap.Int("countries", len(countries)))
	return countries
}

// save writes the observation table wholesale. A zero-row table is still
// written: knowing the source had nothing is itself worth caching. Write
// failures are logged, not fatal, since the fetched data is already in hand.
func (p *Provider) save(ctx context.Context, obs []models.Observation) {
	start := time.Now()
	if err := p.store.Save(ctx, obs); err != nil {
		p.logger.Warn("snapshot save failed", zap.Error(err))
		return
	}
	observability.SnapshotSaveDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("snapshot saved", zap.Int("observations", len(obs)))
}

// swap builds an immutable dataset and publishes it.
func (p *Provider) swap(obs []models.Observation, countries []models.Country) *dataset.Dataset {
	ds := dataset.New(obs, countries, p.opts.Indicators)
	p.current.Store(ds)
	observability.DatasetObservations.Set(float64(ds.Len()))
	if p.opts.OnSwap != nil {
		p.opts.OnSwap(ds)
	}
	return ds
}
