// Package traffic tracks request outcomes in a sliding window.
// It is the single source of truth for the health endpoint (error rate,
// overload detection) and the rate-limit gauges exported to Prometheus.
package traffic

import (
	"sync"
	"time"
)

var defaultTracker Tracker

// RecordSuccess records a successful request outcome.
func RecordSuccess() {
	defaultTracker.RecordSuccess()
}

// RecordError records a failed request outcome (render error, timeout, etc.).
func RecordError() {
	defaultTracker.RecordError()
}

// RecordDenied records a rate-limit denial (429).
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// RequestCount returns the number of outcomes (success + error + denied) within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// ErrorRate returns (errorCount, totalCount) within the window.
// totalCount = successes + errors; denials are excluded.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

type outcome uint8

const (
	outcomeSuccess outcome = iota
	outcomeError
	outcomeDenied
)

type event struct {
	at   time.Time
	kind outcome
}

// Tracker maintains a sliding window of request outcomes. Events are
// appended in arrival order, so pruning is a single scan from the front.
type Tracker struct {
	mu     sync.Mutex
	events []event
}

// RecordSuccess records a successful request outcome in the tracker.
func (t *Tracker) RecordSuccess() {
	t.record(outcomeSuccess)
}

// RecordError records a failed request outcome in the tracker.
func (t *Tracker) RecordError() {
	t.record(outcomeError)
}

// RecordDenied records a rate-limit denial (429) in the tracker.
func (t *Tracker) RecordDenied() {
	t.record(outcomeDenied)
}

func (t *Tracker) record(kind outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.events = append(t.events, event{at: now, kind: kind})
	t.pruneLocked(now)
}

// RequestCount returns the total number of outcomes (success + error + denied) within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	s, e, d := t.counts(window)
	return s + e + d
}

// DenialCount returns the number of rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	_, _, d := t.counts(window)
	return d
}

// ErrorRate returns (errorCount, totalCount) within the window.
// totalCount includes successes and errors only; denials do not affect error rate.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	s, e, _ := t.counts(window)
	return e, e + s
}

// Reset clears all recorded outcomes from the tracker.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

// counts tallies outcomes within the window by kind.
func (t *Tracker) counts(window time.Duration) (successes, errors, denials int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	for _, ev := range t.events {
		if ev.at.Before(cutoff) {
			continue
		}
		switch ev.kind {
		case outcomeSuccess:
			successes++
		case outcomeError:
			errors++
		case outcomeDenied:
			denials++
		}
	}
	return successes, errors, denials
}

// pruneLocked drops events older than maxAge (5 minutes), the largest window
// any caller evaluates. Must be called with the mutex held.
func (t *Tracker) pruneLocked(now time.Time) {
	const maxAge = 5 * time.Minute
	cutoff := now.Add(-maxAge)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}
