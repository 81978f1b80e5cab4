package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestStoreSnapshotBeforeLoad(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "transactions.csv"))
	if _, err := s.Snapshot(); err != ErrNoDataset {
		t.Errorf("expected ErrNoDataset, got %v", err)
	}
}

func TestStoreLoad(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "transactions.csv")
	writeFile(t, csvPath, sampleCSV)

	s := NewStore(csvPath)
	rows, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rows != 3 {
		t.Errorf("expected 3 rows, got %d", rows)
	}

	tbl, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if tbl.RowCount() != 3 {
		t.Errorf("expected 3 rows in snapshot, got %d", tbl.RowCount())
	}
}

func TestStoreReplacePromotesStagedFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "transactions.csv")
	staged := filepath.Join(dir, "staged.csv")
	writeFile(t, staged, sampleCSV)

	s := NewStore(csvPath)
	rows, err := s.Replace(staged)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if rows != 3 {
		t.Errorf("expected 3 rows, got %d", rows)
	}

	if _, err := os.Stat(csvPath); err != nil {
		t.Errorf("canonical file missing after promote: %v", err)
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Errorf("staged file should be gone after promote, stat: %v", err)
	}
}

func TestStoreReplaceRejectsBadCSV(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "transactions.csv")
	writeFile(t, csvPath, sampleCSV)

	s := NewStore(csvPath)
	if _, err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	staged := filepath.Join(dir, "staged.csv")
	writeFile(t, staged, "not,a,transaction\nfile,at,all\n")
	if _, err := s.Replace(staged); err == nil {
		t.Fatal("expected error for invalid CSV")
	}

	// Current snapshot survives a failed replace.
	tbl, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if tbl.RowCount() != 3 {
		t.Errorf("expected original 3 rows, got %d", tbl.RowCount())
	}
}
