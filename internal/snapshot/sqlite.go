package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kjstillabower/worldbank-dashboard/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS observations (
	country   TEXT NOT NULL,
	indicator TEXT NOT NULL,
	year      INTEGER NOT NULL,
	value     REAL NOT NULL,
	PRIMARY KEY (country, indicator, year)
);
CREATE INDEX IF NOT EXISTS idx_observations_indicator_year ON observations(indicator, year);

CREATE TABLE IF NOT EXISTS snapshot_meta (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	saved_at INTEGER NOT NULL
);
`

// SQLiteStore persists snapshots in a local SQLite database. Save replaces
// the observation set and the meta row in one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the snapshot database at path and
// applies pragmas and schema.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply snapshot schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping snapshot db: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, bool, error) {
	var savedAtUnix int64
	err := s.db.QueryRowContext(ctx, `SELECT saved_at FROM snapshot_meta WHERE id = 1`).Scan(&savedAtUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot meta: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT country, indicator, year, value
		FROM observations
		ORDER BY indicator, country, year
	`)
	if err != nil {
		return nil, false, fmt.Errorf("read observations: %w", err)
	}
	defer rows.Close()

	obs := []models.Observation{}
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.Country, &o.Indicator, &o.Year, &o.Value); err != nil {
			return nil, false, fmt.Errorf("scan observation: %w", err)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate observations: %w", err)
	}

	return &Snapshot{Observations: obs, SavedAt: time.Unix(savedAtUnix, 0)}, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, obs []models.Observation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM observations`); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO observations (country, indicator, year, value)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, o.Country, o.Indicator, o.Year, o.Value); err != nil {
			return fmt.Errorf("insert observation %s/%s/%d: %w", o.Country, o.Indicator, o.Year, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshot_meta (id, saved_at) VALUES (1, ?)
	`, time.Now().Unix()); err != nil {
		return fmt.Errorf("write snapshot meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
