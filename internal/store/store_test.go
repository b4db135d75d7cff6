package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/rcliao/guardia-ai/internal/model"
)

func newTestStore(t *testing.T) (*Store, *MemoryBackend) {
	t.Helper()
	b := NewMemoryBackend(nil)
	s := Open(context.Background(), b, WithRetryDelay(0))
	t.Cleanup(func() { s.Close() })
	return s, b
}

func rec(id, name string, ts int64, status model.Status) model.PatientRecord {
	r := model.NewRecord()
	r.ID = id
	r.Name = name
	r.Timestamp = ts
	r.Status = status
	return r
}

func ids(records []model.PatientRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func decodeBlob(t *testing.T, b *MemoryBackend) []model.PatientRecord {
	t.Helper()
	var out []model.PatientRecord
	if err := json.Unmarshal(b.Data(), &out); err != nil {
		t.Fatalf("decode blob: %v", err)
	}
	return out
}

func TestUpsertInsertsAtFront(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	s.Upsert(ctx, rec("a", "Ana", 1, model.StatusPending))
	s.Upsert(ctx, rec("b", "Bruno", 2, model.StatusPending))

	got := ids(s.All())
	if fmt.Sprint(got) != "[b a]" {
		t.Errorf("expected [b a], got %v", got)
	}
}

func TestUpsertReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	s.Upsert(ctx, rec("a", "Ana", 1, model.StatusPending))
	s.Upsert(ctx, rec("b", "Bruno", 2, model.StatusPending))
	s.Upsert(ctx, rec("c", "Carla", 3, model.StatusPending))

	updated := rec("b", "Bruno Díaz", 9, model.StatusSeen)
	s.Upsert(ctx, updated)

	all := s.All()
	if fmt.Sprint(ids(all)) != "[c b a]" {
		t.Fatalf("position changed: %v", ids(all))
	}
	if all[1].Name != "Bruno Díaz" || all[1].Status != model.StatusSeen {
		t.Errorf("record not replaced: %+v", all[1])
	}
}

func TestUpsertOneRecordPerID(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	seq := []struct {
		id, name string
	}{
		{"x", "v1"}, {"y", "v1"}, {"x", "v2"}, {"z", "v1"}, {"y", "v2"}, {"x", "v3"},
	}
	for i, op := range seq {
		s.Upsert(ctx, rec(op.id, op.name, int64(i), model.StatusPending))
	}

	if s.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", s.Len())
	}
	want := map[string]string{"x": "v3", "y": "v2", "z": "v1"}
	for id, name := range want {
		r, ok := s.Get(id)
		if !ok {
			t.Fatalf("missing %s", id)
		}
		if r.Name != name {
			t.Errorf("%s: expected %s, got %s", id, name, r.Name)
		}
	}
}

func TestUpsertRequiresID(t *testing.T) {
	s, b := newTestStore(t)
	if err := s.Upsert(context.Background(), model.NewRecord()); err == nil {
		t.Error("expected error for record without id")
	}
	if b.Writes() != 0 {
		t.Errorf("expected no writes, got %d", b.Writes())
	}
}

func TestEveryMutationWritesWholeCollection(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t)

	s.Upsert(ctx, rec("a", "Ana", 1, model.StatusPending))
	s.Upsert(ctx, rec("b", "Bruno", 2, model.StatusPending))
	if b.Writes() != 2 {
		t.Fatalf("expected 2 writes, got %d", b.Writes())
	}
	if got := decodeBlob(t, b); len(got) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(got))
	}

	s.Delete(ctx, "a")
	if b.Writes() != 3 {
		t.Fatalf("expected 3 writes, got %d", b.Writes())
	}
	if got := decodeBlob(t, b); fmt.Sprint(ids(got)) != "[b]" {
		t.Errorf("expected [b] persisted, got %v", ids(got))
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t)
	s.Upsert(ctx, rec("a", "Ana", 1, model.StatusPending))

	if s.Delete(ctx, "nope") {
		t.Error("expected false for missing id")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 record, got %d", s.Len())
	}
	if b.Writes() != 1 {
		t.Errorf("missing delete should not write, got %d writes", b.Writes())
	}
}

func TestFilterByStatus(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	s.Upsert(ctx, rec("a", "Ana", 1, model.StatusPending))
	s.Upsert(ctx, rec("b", "Bruno", 2, model.StatusSeen))
	s.Upsert(ctx, rec("c", "Carla", 3, model.StatusPending))

	var pending []string
	for r := range s.FilterByStatus(model.StatusPending) {
		pending = append(pending, r.ID)
	}
	if fmt.Sprint(pending) != "[c a]" {
		t.Errorf("expected [c a], got %v", pending)
	}
	if n := s.CountByStatus(model.StatusSeen); n != 1 {
		t.Errorf("expected 1 seen, got %d", n)
	}
}

func TestFilterViewIsLazy(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.Upsert(ctx, rec("a", "Ana", 1, model.StatusPending))

	view := s.FilterByStatus(model.StatusPending)
	s.Upsert(ctx, rec("b", "Bruno", 2, model.StatusPending))

	n := 0
	for range view {
		n++
	}
	if n != 2 {
		t.Errorf("view should reflect the collection at iteration time, got %d", n)
	}
}

func TestFilterAllowsMutationWhileRanging(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.Upsert(ctx, rec("a", "Ana", 1, model.StatusPending))
	s.Upsert(ctx, rec("b", "Bruno", 2, model.StatusPending))

	for r := range s.FilterByStatus(model.StatusPending) {
		s.Delete(ctx, r.ID)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}

func TestYieldedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	r := rec("a", "Ana", 1, model.StatusPending)
	r.PendingItems = []string{"ecg"}
	s.Upsert(ctx, r)

	for got := range s.FilterByStatus(model.StatusPending) {
		got.PendingItems[0] = "tampered"
	}
	stored, _ := s.Get("a")
	if stored.PendingItems[0] != "ecg" {
		t.Errorf("store was mutated through the view: %v", stored.PendingItems)
	}
}

func TestOpenLoadsExistingBlob(t *testing.T) {
	blob := `[{"id":"1","name":"Ana","status":"pending","timestamp":5,"pendingItems":["ecg"]},{"id":"2","name":"Bruno","status":"seen"}]`
	s := Open(context.Background(), NewMemoryBackend([]byte(blob)))

	if s.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", s.Len())
	}
	r, _ := s.Get("1")
	if r.Name != "Ana" || len(r.PendingItems) != 1 {
		t.Errorf("unexpected record %+v", r)
	}
}

func TestOpenFailsOpenOnReadError(t *testing.T) {
	b := NewMemoryBackend([]byte(`[{"id":"1"}]`))
	b.FailReads(errors.New("storage unavailable"))

	s := Open(context.Background(), b)
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}

func TestOpenFailsOpenOnCorruptBlob(t *testing.T) {
	s := Open(context.Background(), NewMemoryBackend([]byte(`{not json`)))
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}

func TestOpenNormalizesIDs(t *testing.T) {
	blob := `[{"name":"sin id"},{"id":"1","name":"first"},{"id":"1","name":"dup"}]`
	s := Open(context.Background(), NewMemoryBackend([]byte(blob)))

	if s.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", s.Len())
	}
	all := s.All()
	if all[0].ID == "" {
		t.Error("expected id assigned to id-less record")
	}
	if r, _ := s.Get("1"); r.Name != "first" {
		t.Errorf("expected first occurrence kept, got %q", r.Name)
	}
}

func TestOpenPersistsAssignedIDs(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend([]byte(`[{"name":"sin id"},{"id":"1","name":"first"},{"id":"1","name":"dup"}]`))
	s := Open(ctx, b, WithRetryDelay(0))

	if b.Writes() != 1 {
		t.Fatalf("expected normalized collection written once, got %d writes", b.Writes())
	}
	stored := decodeBlob(t, b)
	if len(stored) != 2 || stored[0].ID != s.All()[0].ID {
		t.Fatalf("stored blob does not match loaded store: %+v", stored)
	}

	reopened := Open(ctx, b, WithRetryDelay(0))
	if got, want := ids(reopened.All()), ids(s.All()); !slices.Equal(got, want) {
		t.Errorf("ids changed across restart: %v, want %v", got, want)
	}
	if b.Writes() != 1 {
		t.Errorf("a clean collection should not be rewritten, got %d writes", b.Writes())
	}
}

func TestWriteFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(nil)
	s := Open(ctx, b, WithRetryDelay(0), WithWriteRetries(2))
	b.FailWrites(errors.New("disk full"))

	if err := s.Upsert(ctx, rec("a", "Ana", 1, model.StatusPending)); err != nil {
		t.Fatalf("write failure must not surface: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected in-memory record, got %d", s.Len())
	}
	if b.Writes() != 3 {
		t.Errorf("expected 1 attempt + 2 retries, got %d", b.Writes())
	}

	b.FailWrites(nil)
	s.Upsert(ctx, rec("b", "Bruno", 2, model.StatusPending))
	if got := decodeBlob(t, b); len(got) != 2 {
		t.Errorf("next successful write should carry the full collection, got %d", len(got))
	}
}

func TestNewIDUnique(t *testing.T) {
	s, _ := newTestStore(t)
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := s.NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
