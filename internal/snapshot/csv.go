package snapshot

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kjstillabower/worldbank-dashboard/internal/models"
)

var csvHeader = []string{"country", "indicator", "year", "value"}

// CSVStore persists snapshots as a single CSV file with one row per
// observation. Saves write to a temp file in the same directory and rename
// over the target, so a crash mid-save leaves the previous snapshot intact.
type CSVStore struct {
	path string
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Load(ctx context.Context) (*Snapshot, bool, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return nil, false, fmt.Errorf("snapshot %s is empty", s.path)
	}
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot header: %w", err)
	}
	if !headerMatches(header) {
		return nil, false, fmt.Errorf("snapshot %s has unexpected columns %v", s.path, header)
	}

	obs := []models.Observation{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("read snapshot row: %w", err)
		}
		o, ok := parseRecord(rec)
		if !ok {
			// Blank or non-numeric cells mean no observation for the row.
			continue
		}
		obs = append(obs, o)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, false, fmt.Errorf("stat snapshot: %w", err)
	}

	return &Snapshot{Observations: obs, SavedAt: info.ModTime()}, true, nil
}

func (s *CSVStore) Save(ctx context.Context, obs []models.Observation) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}

	if err := writeAll(tmp, obs); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *CSVStore) Close() error {
	return nil
}

func writeAll(f *os.File, obs []models.Observation) error {
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}
	for _, o := range obs {
		rec := []string{
			o.Country,
			o.Indicator,
			strconv.Itoa(o.Year),
			strconv.FormatFloat(o.Value, 'g', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write snapshot row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	return nil
}

func headerMatches(header []string) bool {
	if len(header) != len(csvHeader) {
		return false
	}
	for i, col := range csvHeader {
		if header[i] != col {
			return false
		}
	}
	return true
}

func parseRecord(rec []string) (models.Observation, bool) {
	if len(rec) != 4 || rec[0] == "" || rec[1] == "" {
		return models.Observation{}, false
	}
	year, err := strconv.Atoi(rec[2])
	if err != nil {
		return models.Observation{}, false
	}
	value, err := strconv.ParseFloat(rec[3], 64)
	if err != nil {
		return models.Observation{}, false
	}
	return models.Observation{
		Country:   rec[0],
		Indicator: rec[1],
		Year:      year,
		Value:     value,
	}, true
}
