package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rcliao/guardia-ai/internal/model"
)

func newSQLiteBackend(t *testing.T, path string) *SQLiteBackend {
	t.Helper()
	b, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatalf("create backend: %v", err)
	}
	return b
}

func TestSQLiteReadEmpty(t *testing.T) {
	b := newSQLiteBackend(t, filepath.Join(t.TempDir(), "test.db"))
	defer b.Close()

	data, err := b.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if data != nil {
		t.Errorf("expected nil blob, got %q", data)
	}
}

func TestSQLiteWriteOverwrites(t *testing.T) {
	ctx := context.Background()
	b := newSQLiteBackend(t, filepath.Join(t.TempDir(), "test.db"))
	defer b.Close()

	if err := b.Write(ctx, []byte(`[1]`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := b.Write(ctx, []byte(`[2]`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, _ := b.Read(ctx)
	if string(data) != `[2]` {
		t.Errorf("expected [2], got %q", data)
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s := Open(ctx, newSQLiteBackend(t, path))
	r := rec("a", "Ana", 1, model.StatusPending)
	r.PendingItems = []string{"ecg", "laboratorio"}
	r.Vitals.HR = "110"
	s.Upsert(ctx, r)
	s.Upsert(ctx, rec("b", "Bruno", 2, model.StatusSeen))
	s.Close()

	s2 := Open(ctx, newSQLiteBackend(t, path))
	defer s2.Close()

	if s2.Len() != 2 {
		t.Fatalf("expected 2 records after reopen, got %d", s2.Len())
	}
	got, ok := s2.Get("a")
	if !ok {
		t.Fatal("record a missing after reopen")
	}
	if got.Vitals.HR != "110" || len(got.PendingItems) != 2 {
		t.Errorf("record not persisted correctly: %+v", got)
	}
	if ids(s2.All())[0] != "b" {
		t.Errorf("order not preserved: %v", ids(s2.All()))
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	b, err := NewSQLiteBackend(dbPath)
	if err != nil {
		t.Fatalf("create backend: %v", err)
	}
	b.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "patients.json")
	b := NewFileBackend(path)

	data, err := b.Read(ctx)
	if err != nil || data != nil {
		t.Fatalf("expected empty read, got %q, %v", data, err)
	}

	s := Open(ctx, b)
	s.Upsert(ctx, rec("a", "Ana", 1, model.StatusPending))

	s2 := Open(ctx, NewFileBackend(path))
	if s2.Len() != 1 {
		t.Errorf("expected 1 record, got %d", s2.Len())
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the data file, found %d entries", len(entries))
	}
}

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("GUARDIA_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("GUARDIA_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	b, err := NewPostgresBackend(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer b.Close()

	s := Open(ctx, b)
	s.Upsert(ctx, rec("pg-a", "Ana", 1, model.StatusPending))

	data, err := b.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected stored blob")
	}
}
