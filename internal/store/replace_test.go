package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/vats98754/aus-job-fetcher/common/database"
	"github.com/vats98754/aus-job-fetcher/common/database/postgres"
	"github.com/vats98754/aus-job-fetcher/common/database/schema"
	"github.com/vats98754/aus-job-fetcher/common/database/schema/migrations"
)

// assertSaveReplaces checks that a second Save drops ids the first one wrote
// and that saving nothing empties the store.
func assertSaveReplaces(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()
	records := sampleRecords()

	if err := st.Save(ctx, records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Save(ctx, records[1:]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != records[1].ID {
		t.Fatalf("expected only %s after replace, got %+v", records[1].ID, loaded)
	}

	if err := st.Save(ctx, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err = st.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty store, got %+v", loaded)
	}
}

func TestMemorySaveReplaces(t *testing.T) {
	t.Parallel()
	assertSaveReplaces(t, NewMemory())
}

func TestFileStoreSaveReplaces(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assertSaveReplaces(t, NewFileStore(filepath.Join(dir, "jobs.json"), filepath.Join(dir, "jobs.csv"), zaptest.NewLogger(t)))
}

// The SQL stores need a live server; set AJF_TEST_DATABASE_URL or
// AJF_TEST_CLICKHOUSE_DSN to a disposable database to run them.

func TestPostgresSaveReplaces(t *testing.T) {
	url := os.Getenv("AJF_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("AJF_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, url, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pool.Close()

	st := NewPostgresStore(pool, zaptest.NewLogger(t))
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSaveReplaces(t, st)
}

func TestClickHouseSaveReplaces(t *testing.T) {
	dsn := os.Getenv("AJF_TEST_CLICKHOUSE_DSN")
	if dsn == "" {
		t.Skip("AJF_TEST_CLICKHOUSE_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := zaptest.NewLogger(t)
	db, err := database.New(ctx, database.Options{
		DSN:      dsn,
		Username: "default",
		Database: "default",
	}, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer db.Close()

	if _, err := schema.NewMigrator(db.Conn(), logger).Up(ctx, migrations.All()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSaveReplaces(t, NewClickHouseStore(db.Conn(), logger))
}

func TestRecordIDsNeverNil(t *testing.T) {
	t.Parallel()

	if ids := recordIDs(nil); ids == nil || len(ids) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", ids)
	}
	ids := recordIDs(sampleRecords())
	if len(ids) != 2 || ids[0] != "0123456789abcdef" || ids[1] != "fedcba9876543210" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}
