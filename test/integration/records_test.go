package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/uhra/uhra/internal/config"
	"github.com/uhra/uhra/internal/domain/records"
	"github.com/uhra/uhra/internal/platform/auth"
	"github.com/uhra/uhra/internal/platform/metrics"
	"github.com/uhra/uhra/internal/platform/sandbox"
	"github.com/uhra/uhra/internal/server"
)

func TestPGRepo_StoreAndLoadEveryShape(t *testing.T) {
	ctx := context.Background()

	for _, shape := range []records.Shape{records.ShapeSequence, records.ShapeKeyedMap, records.ShapeWrapped} {
		t.Run(shape.String(), func(t *testing.T) {
			name := datasetName(t)
			defer dropDataset(t, ctx, name)

			doc, recs, err := sandbox.Generate(sandbox.SeedConfig{SyntheticCount: 5, Shape: shape, Seed: 3})
			if err != nil {
				t.Fatalf("generate: %v", err)
			}

			repo := records.NewPGRepo(globalDB.Pool, name)
			if err := repo.Store(ctx, doc); err != nil {
				t.Fatalf("Store: %v", err)
			}

			ds, err := repo.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if ds.Shape() != shape {
				t.Errorf("expected shape %s, got %s", shape, ds.Shape())
			}
			if ds.Len() != len(recs) {
				t.Errorf("expected %d records, got %d", len(recs), ds.Len())
			}
			if _, ok := ds.Resolve("P1004"); !ok {
				t.Error("expected P1004 to resolve")
			}
		})
	}
}

func TestPGRepo_StoreReplacesDocument(t *testing.T) {
	ctx := context.Background()
	name := datasetName(t)
	defer dropDataset(t, ctx, name)

	repo := records.NewPGRepo(globalDB.Pool, name)
	if err := repo.Store(ctx, []byte(`{"P1": {"v": 1}}`)); err != nil {
		t.Fatalf("first Store: %v", err)
	}
	if err := repo.Store(ctx, []byte(`{"P2": {"v": 2}}`)); err != nil {
		t.Fatalf("second Store: %v", err)
	}

	ds, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := ds.Resolve("P1"); ok {
		t.Error("expected P1 to be gone after replace")
	}
	if _, ok := ds.Resolve("P2"); !ok {
		t.Error("expected P2 after replace")
	}
}

func TestPGRepo_RecordTextRoundTrips(t *testing.T) {
	ctx := context.Background()
	name := datasetName(t)
	defer dropDataset(t, ctx, name)

	record := `{"z": 1,  "a": {"b":2}}`
	repo := records.NewPGRepo(globalDB.Pool, name)
	if err := repo.Store(ctx, []byte(`{"P1": `+record+`}`)); err != nil {
		t.Fatalf("Store: %v", err)
	}

	ds, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := ds.Resolve("P1")
	if !ok {
		t.Fatal("expected P1 to resolve")
	}
	if string(got) != record {
		t.Errorf("expected record text %s unchanged, got %s", record, got)
	}
}

func TestPGRepo_MissingDataset(t *testing.T) {
	ctx := context.Background()
	repo := records.NewPGRepo(globalDB.Pool, datasetName(t))

	// Store once under another name so the table exists.
	other := datasetName(t) + "_other"
	defer dropDataset(t, ctx, other)
	if err := records.NewPGRepo(globalDB.Pool, other).Store(ctx, []byte(`[]`)); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if _, err := repo.Load(ctx); err == nil {
		t.Fatal("expected error for missing dataset row")
	}
	if err := repo.Ping(ctx); err != nil {
		t.Errorf("Ping should succeed while the database is up: %v", err)
	}
}

func TestServer_PostgresSource(t *testing.T) {
	ctx := context.Background()
	name := datasetName(t)
	defer dropDataset(t, ctx, name)

	repo := records.NewPGRepo(globalDB.Pool, name)
	doc, _, err := sandbox.Generate(sandbox.SeedConfig{Shape: records.ShapeKeyedMap, Seed: 9})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := repo.Store(ctx, doc); err != nil {
		t.Fatalf("Store: %v", err)
	}

	cfg := &config.Config{
		RecordsSource:   config.SourcePostgres,
		RecordsKey:      name,
		MetricsEnabled:  true,
		RequestTimeout:  5 * time.Second,
		ShutdownTimeout: time.Second,
	}
	m := metrics.New()
	e := server.New(server.Deps{
		Config:  cfg,
		Logger:  zerolog.Nop(),
		Service: records.NewService(repo, m),
		Metrics: m,
		Pool:    globalDB.Pool,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/records/patient/P1002", nil)
	req.Header.Set(auth.HeaderUserID, "P1002")
	req.Header.Set(auth.HeaderUserRole, "patient")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body sandbox.HealthRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if body.Name != "Marcus Lee" {
		t.Errorf("expected Marcus Lee, got %q", body.Name)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", rec.Code)
	}
	var health struct {
		Source string          `json:"source"`
		Pool   json.RawMessage `json:"pool"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Source != "postgres" || len(health.Pool) == 0 {
		t.Errorf("expected postgres health with pool stats, got %s", rec.Body.String())
	}
}
