// Package snapshot persists fetched observations so restarts serve from disk
// instead of refetching the World Bank API.
package snapshot

import (
	"context"
	"time"

	"github.com/kjstillabower/worldbank-dashboard/internal/models"
)

// Snapshot is a persisted observation set plus the time it was written.
// A snapshot with zero observations is still a snapshot: it records that a
// fetch completed and found nothing, and it loads normally.
type Snapshot struct {
	Observations []models.Observation
	SavedAt      time.Time
}

// Store loads and saves observation snapshots.
type Store interface {
	// Load returns the stored snapshot. ok is false when no snapshot exists,
	// which is not an error.
	Load(ctx context.Context) (snap *Snapshot, ok bool, err error)

	// Save atomically replaces the stored snapshot. Readers never observe a
	// partially written snapshot.
	Save(ctx context.Context, obs []models.Observation) error

	// Close releases underlying resources.
	Close() error
}
