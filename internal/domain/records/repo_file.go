package records

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileRepo reads the dataset from a JSON file.
type FileRepo struct {
	path string
}

// NewFileRepo returns a repository reading the dataset document at path.
func NewFileRepo(path string) *FileRepo {
	return &FileRepo{path: path}
}

func (r *FileRepo) Source() string { return "file" }

func (r *FileRepo) Load(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read dataset file: %w", err)
	}
	ds, err := ParseDataset(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(r.path), err)
	}
	return ds, nil
}

// Store writes the document through a temporary file and renames it into
// place so concurrent readers never observe a partial document.
func (r *FileRepo) Store(ctx context.Context, document []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".records-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(document); err != nil {
		tmp.Close()
		return fmt.Errorf("write dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close dataset: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace dataset file: %w", err)
	}
	return nil
}

func (r *FileRepo) Ping(_ context.Context) error {
	if _, err := os.Stat(r.path); err != nil {
		return fmt.Errorf("stat dataset file: %w", err)
	}
	return nil
}
