package records

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// -- File repository --

func TestFileRepo_StoreAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "healthRecords.json")
	repo := NewFileRepo(path)
	ctx := context.Background()

	if err := repo.Ping(ctx); err == nil {
		t.Error("expected ping to fail before the file exists")
	}
	if err := repo.Store(ctx, []byte(`{"records":{"P1":{"diagnosis":"Flu"}}}`)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}

	ds, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Shape() != ShapeWrapped {
		t.Errorf("expected wrapped shape, got %s", ds.Shape())
	}
	if _, ok := ds.Resolve("P1"); !ok {
		t.Error("expected P1 to resolve")
	}
}

func TestFileRepo_LoadReadsFreshEachTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	repo := NewFileRepo(path)
	ctx := context.Background()

	os.WriteFile(path, []byte(`[]`), 0o644)
	ds, _ := repo.Load(ctx)
	if ds.Len() != 0 {
		t.Fatalf("expected empty dataset, got %d", ds.Len())
	}

	os.WriteFile(path, []byte(`[{"patientId":"P1"}]`), 0o644)
	ds, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Len() != 1 {
		t.Errorf("expected updated dataset, got %d records", ds.Len())
	}
}

func TestFileRepo_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	if _, err := NewFileRepo(filepath.Join(dir, "missing.json")).Load(ctx); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"P1":`), 0o644)
	if _, err := NewFileRepo(bad).Load(ctx); err == nil {
		t.Error("expected error for malformed file")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := NewFileRepo(bad).Load(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// -- LevelDB repository --

func TestLevelRepo_StoreAndLoad(t *testing.T) {
	repo, err := OpenLevelRepo(filepath.Join(t.TempDir(), "records.ldb"), "healthRecords")
	if err != nil {
		t.Fatalf("OpenLevelRepo: %v", err)
	}
	defer repo.Close()
	ctx := context.Background()

	if _, err := repo.Load(ctx); err == nil {
		t.Error("expected error before the key is written")
	}
	if err := repo.Store(ctx, []byte(`[{"patientId":7,"diagnosis":"Asthma"}]`)); err != nil {
		t.Fatalf("Store: %v", err)
	}

	ds, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := ds.Resolve("7"); !ok {
		t.Error("expected numeric id 7 to resolve")
	}
	if err := repo.Ping(ctx); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
	if repo.Source() != "leveldb" {
		t.Errorf("unexpected source %q", repo.Source())
	}
}

// -- Postgres repository --

type fakeRow struct {
	val []byte
	err error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	switch d := dest[0].(type) {
	case *[]byte:
		*d = r.val
	case *int:
		*d = 1
	}
	return nil
}

type fakeQuerier struct {
	row   fakeRow
	execs []string
	args  [][]interface{}
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	q.execs = append(q.execs, sql)
	q.args = append(q.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (q *fakeQuerier) QueryRow(_ context.Context, _ string, _ ...interface{}) pgx.Row {
	return q.row
}

func TestPGRepo_Load(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{val: []byte(`{"P1":{"diagnosis":"Flu"}}`)}}
	repo := NewPGRepo(q, "healthRecords")

	ds, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Shape() != ShapeKeyedMap {
		t.Errorf("expected keyed shape, got %s", ds.Shape())
	}
}

func TestPGRepo_LoadMissingRow(t *testing.T) {
	repo := NewPGRepo(&fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}, "healthRecords")

	_, err := repo.Load(context.Background())
	if err == nil || !strings.Contains(err.Error(), "not present") {
		t.Errorf("expected missing dataset error, got %v", err)
	}
}

func TestPGRepo_Store(t *testing.T) {
	q := &fakeQuerier{}
	repo := NewPGRepo(q, "healthRecords")

	if err := repo.Store(context.Background(), []byte(`[]`)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if len(q.execs) != 2 {
		t.Fatalf("expected DDL and upsert, got %d statements", len(q.execs))
	}
	if !strings.Contains(q.execs[0], "document   JSON NOT NULL") || strings.Contains(q.execs[1], "jsonb") {
		t.Errorf("expected a json column that keeps the document text, got %s / %s", q.execs[0], q.execs[1])
	}
	if !strings.Contains(q.execs[1], "ON CONFLICT") {
		t.Errorf("expected upsert, got %s", q.execs[1])
	}
	if q.args[1][0] != "healthRecords" || q.args[1][1] != "[]" {
		t.Errorf("unexpected args %v", q.args[1])
	}
}
