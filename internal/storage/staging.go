package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Staging writes uploaded CSV files to a holding directory before they are
// validated and promoted to the canonical dataset path.
type Staging struct {
	dir string
}

func NewStaging(dir string) *Staging {
	return &Staging{dir: dir}
}

// Stage copies the upload into a uniquely named file and returns its path.
func (s *Staging) Stage(filename string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	path := filepath.Join(s.dir, uuid.NewString()+"_"+filepath.Base(filename))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write staged file: %w", err)
	}
	return path, nil
}

// Discard removes a staged file that will not be promoted.
func (s *Staging) Discard(path string) {
	_ = os.Remove(path)
}
