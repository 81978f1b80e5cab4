package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoDataset is returned when no CSV has been loaded yet.
var ErrNoDataset = errors.New("no dataset loaded; upload a CSV first")

// Store holds the process-wide dataset snapshot. The whole table is replaced
// atomically on upload; readers get whichever snapshot was current when they
// asked and can use it for the rest of the request without locking.
type Store struct {
	mu      sync.RWMutex
	table   *Table
	csvPath string
}

func NewStore(csvPath string) *Store {
	return &Store{csvPath: csvPath}
}

// Load reads the canonical CSV from disk into memory. Called at startup
// when auto-reload is enabled.
func (s *Store) Load() (int, error) {
	f, err := os.Open(s.csvPath)
	if err != nil {
		return 0, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	t, err := ParseCSV(f)
	if err != nil {
		return 0, fmt.Errorf("parse dataset: %w", err)
	}

	s.mu.Lock()
	s.table = t
	s.mu.Unlock()
	return t.RowCount(), nil
}

// Replace promotes a staged CSV file to the canonical path and swaps the
// in-memory snapshot. The staged file must already have been validated by
// parsing; parse failure leaves the current snapshot untouched.
func (s *Store) Replace(stagedPath string) (int, error) {
	f, err := os.Open(stagedPath)
	if err != nil {
		return 0, fmt.Errorf("open staged file: %w", err)
	}
	t, err := ParseCSV(f)
	f.Close()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.csvPath), 0o755); err != nil {
		return 0, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.Rename(stagedPath, s.csvPath); err != nil {
		return 0, fmt.Errorf("promote staged file: %w", err)
	}

	s.table = t
	return t.RowCount(), nil
}

// Snapshot returns the current table. The caller must treat it as read-only.
func (s *Store) Snapshot() (*Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.table == nil {
		return nil, ErrNoDataset
	}
	return s.table, nil
}
