package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelRepo reads the dataset document stored under a single LevelDB key.
type LevelRepo struct {
	db  *leveldb.DB
	key []byte
}

// OpenLevelRepo opens (or creates) the LevelDB at path. The caller closes
// the repository when done.
func OpenLevelRepo(path, key string) (*LevelRepo, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelRepo{db: db, key: []byte(key)}, nil
}

func (r *LevelRepo) Source() string { return "leveldb" }

func (r *LevelRepo) Load(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := r.db.Get(r.key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("dataset key %q not present", r.key)
	}
	if err != nil {
		return nil, fmt.Errorf("leveldb get: %w", err)
	}

	ds, err := ParseDataset(doc)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %q: %w", r.key, err)
	}
	return ds, nil
}

func (r *LevelRepo) Store(ctx context.Context, document []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.db.Put(r.key, document, nil); err != nil {
		return fmt.Errorf("leveldb put: %w", err)
	}
	return nil
}

func (r *LevelRepo) Ping(_ context.Context) error {
	if _, err := r.db.GetProperty("leveldb.stats"); err != nil {
		return fmt.Errorf("leveldb stats: %w", err)
	}
	return nil
}

func (r *LevelRepo) Close() error {
	return r.db.Close()
}
