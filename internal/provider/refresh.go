package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/worldbank-dashboard/internal/observability"
)

// refreshAttemptTimeout bounds one full refetch (all indicators, all pages).
const refreshAttemptTimeout = 5 * time.Minute

// NotifyStale signals that the served dataset is a stale snapshot. Triggers a
// background refetch if one is not already running. Non-blocking; safe before
// StartRefreshListener.
func (p *Provider) NotifyStale() {
	p.refreshChanMu.Lock()
	ch := p.refreshChan
	p.refreshChanMu.Unlock()
	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// StartRefreshListener starts a goroutine that refetches the dataset when
// NotifyStale fires. Call from main with the app context. Attempts follow the
// Fibonacci sequence from initial (1m, 2m, 3m, 5m, 8m, ...) capped at max;
// once the sequence is exhausted the dataset stays stale until the next
// process start.
func (p *Provider) StartRefreshListener(ctx context.Context, initial, max time.Duration) {
	ch := make(chan struct{}, 1)
	p.refreshChanMu.Lock()
	p.refreshChan = ch
	p.refreshChanMu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				if p.refreshing.Swap(true) {
					continue
				}
				go func() {
					defer p.refreshing.Store(false)
					p.runRefresh(ctx, initial, max)
				}()
			}
		}
	}()
}

// runRefresh retries the full indicator fetch on Fibonacci delays until one
// attempt succeeds or the sequence is exhausted.
func (p *Provider) runRefresh(ctx context.Context, initial, max time.Duration) {
	if initial <= 0 || max < initial {
		return
	}
	delays := fibDelays(initial, max)
	for i, d := range delays {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
		attemptCtx, cancel := context.WithTimeout(ctx, refreshAttemptTimeout)
		ok := p.refreshOnce(attemptCtx)
		cancel()
		if ok {
			return
		}
		if i == len(delays)-1 {
			p.logger.Warn("refresh attempts exhausted, dataset stays stale",
				zap.Int("attempts", len(delays)))
		}
	}
}

// refreshOnce runs one full refetch attempt and, on success, persists and
// publishes the fresh dataset. Country metadata is retried too when the
// startup fetch came back empty.
func (p *Provider) refreshOnce(ctx context.Context) bool {
	obs, err := p.fetchAll(ctx)
	if err != nil {
		p.logger.Warn("background refresh failed", zap.Error(err))
		return false
	}

	p.mu.Lock()
	countries := p.countries
	p.mu.Unlock()
	if len(countries) == 0 {
		if fresh := p.fetchCountries(ctx); fresh != nil {
			countries = fresh
			p.mu.Lock()
			p.countries = fresh
			p.mu.Unlock()
		}
	}

	p.save(ctx, obs)
	p.swap(obs, countries)
	p.stale.Store(false)
	observability.SnapshotLoadsTotal.WithLabelValues("stale_refreshed").Inc()
	p.logger.Info("background refresh succeeded", zap.Int("observations", len(obs)))
	return true
}

// fibDelays expands initial into the Fibonacci delay sequence, stopping at
// the first term past max. fibDelays(1m, 13m) = 1m 2m 3m 5m 8m 13m.
func fibDelays(initial, max time.Duration) []time.Duration {
	var out []time.Duration
	for a, b := initial, 2*initial; a <= max; a, b = b, a+b {
		out = append(out, a)
	}
	return out
}
