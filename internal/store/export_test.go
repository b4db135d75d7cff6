package store

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/rcliao/guardia-ai/internal/model"
)

func TestImportMergeCounts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.Upsert(ctx, rec("a", "Ana", 10, model.StatusPending))
	s.Upsert(ctx, rec("b", "Bruno", 20, model.StatusSeen))

	res := s.ImportMerge(ctx, []model.PatientRecord{
		rec("a", "Ana Importada", 30, model.StatusSeen),
		rec("c", "Carla", 5, model.StatusPending),
	})

	if res.Updated != 1 || res.Added != 1 {
		t.Errorf("expected updated=1 added=1, got %+v", res)
	}
	if s.Len() != 3 {
		t.Errorf("store should grow by exactly one, got %d", s.Len())
	}
	a, _ := s.Get("a")
	if a.Name != "Ana Importada" || a.Status != model.StatusSeen {
		t.Errorf("whole record should be overwritten, got %+v", a)
	}
}

func TestImportMergeOverwritesWholeRecord(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	existing := rec("a", "Ana", 10, model.StatusPending)
	existing.Labs = "Hb 12"
	existing.PendingItems = []string{"ecg"}
	s.Upsert(ctx, existing)

	incoming := rec("a", "Ana", 11, model.StatusPending)
	s.ImportMerge(ctx, []model.PatientRecord{incoming})

	got, _ := s.Get("a")
	if got.Labs != "" || len(got.PendingItems) != 0 {
		t.Errorf("expected no field-level merge, got %+v", got)
	}
}

func TestImportMergeSortsByTimestampDesc(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.Upsert(ctx, rec("old", "old", 100, model.StatusSeen))
	s.Upsert(ctx, rec("none", "none", 0, model.StatusSeen))

	s.ImportMerge(ctx, []model.PatientRecord{
		rec("new", "new", 300, model.StatusPending),
		rec("mid", "mid", 200, model.StatusPending),
		rec("none2", "none2", 0, model.StatusPending),
	})

	got := ids(s.All())
	want := []string{"new", "mid", "old", "none", "none2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestImportMergeIdempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	s.Upsert(ctx, rec("a", "Ana", 10, model.StatusPending))

	batch := []model.PatientRecord{
		rec("a", "Ana v2", 40, model.StatusSeen),
		rec("b", "Bruno", 20, model.StatusPending),
		rec("c", "Carla", 0, model.StatusPending),
	}
	s.ImportMerge(ctx, batch)
	first := s.All()

	res := s.ImportMerge(ctx, batch)
	if res.Added != 0 || res.Updated != 3 {
		t.Errorf("second run should only update, got %+v", res)
	}
	if !reflect.DeepEqual(first, s.All()) {
		t.Errorf("second run changed the collection:\n%v\n%v", first, s.All())
	}
}

func TestImportMergeDuplicateIDsInBatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	res := s.ImportMerge(ctx, []model.PatientRecord{
		rec("a", "first", 1, model.StatusPending),
		rec("a", "second", 2, model.StatusPending),
	})
	if res.Added != 1 || res.Updated != 1 {
		t.Errorf("expected added=1 updated=1, got %+v", res)
	}
	if got, _ := s.Get("a"); got.Name != "second" {
		t.Errorf("last writer should win, got %q", got.Name)
	}
}

func TestImportMergeAssignsMissingIDs(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	noID := model.NewRecord()
	noID.Name = "sin id"
	res := s.ImportMerge(ctx, []model.PatientRecord{noID, noID})
	if res.Added != 2 {
		t.Errorf("id-less records never match, expected 2 added, got %+v", res)
	}
	for _, r := range s.All() {
		if r.ID == "" {
			t.Error("record stored without id")
		}
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, _ := newTestStore(t)
	for i, st := range []model.Status{model.StatusPending, model.StatusSeen, model.StatusPending} {
		r := rec(fmt.Sprintf("id-%d", i), fmt.Sprintf("Paciente %d", i), int64(100*(i+1)), st)
		r.Vitals.BP = "120/80"
		if st == model.StatusPending {
			r.PendingItems = []string{"laboratorio"}
		}
		src.Upsert(ctx, r)
	}

	dst, _ := newTestStore(t)
	dst.ImportMerge(ctx, src.Export())

	if !reflect.DeepEqual(src.All(), dst.All()) {
		t.Errorf("round trip mismatch:\n%+v\n%+v", src.All(), dst.All())
	}
}
