package exchange

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rcliao/guardia-ai/internal/model"
)

var when = time.Date(2025, 3, 4, 22, 15, 9, 0, time.UTC)

func TestBackupFileName(t *testing.T) {
	if got := BackupFileName(when); got != "guardiaai_backup_2025-03-04.json" {
		t.Errorf("unexpected name %q", got)
	}
}

func TestWriteBackupIsIndentedArray(t *testing.T) {
	r := model.NewRecord()
	r.ID = "a"
	r.Name = "Ana"

	var buf bytes.Buffer
	if err := WriteBackup(&buf, []model.PatientRecord{r}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "[\n  {\n    \"id\": \"a\"") {
		t.Errorf("expected 2-space indented array, got:\n%s", out)
	}

	buf.Reset()
	WriteBackup(&buf, nil)
	if buf.String() != "[]" {
		t.Errorf("empty backup should be [], got %q", buf.String())
	}
}

func TestBackupRoundTrip(t *testing.T) {
	a := model.NewRecord()
	a.ID, a.Name, a.Timestamp, a.Status = "a", "Ana", 20, model.StatusPending
	a.PendingItems = []string{"ecg"}
	a.Vitals.BP = "120/80"
	b := model.NewRecord()
	b.ID, b.Name, b.Timestamp, b.Status = "b", "Beto", 10, model.StatusSeen
	b.GeneratedClinicalHistory = "nota"

	var buf bytes.Buffer
	WriteBackup(&buf, []model.PatientRecord{a, b})
	got, err := ReadBackup(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0].Vitals.BP != "120/80" || got[1].GeneratedClinicalHistory != "nota" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestReadBackupToleratesUnknownAndMissingFields(t *testing.T) {
	in := `[{"id":"x","name":"Eva","legacyField":true},{"id":"y"}]`
	got, err := ReadBackup(strings.NewReader(in))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Eva" || got[1].Name != "" {
		t.Errorf("unexpected records %+v", got)
	}
}

func TestReadBackupRejectsNonSequences(t *testing.T) {
	for _, in := range []string{
		``,
		`null`,
		`{"id":"a"}`,
		`"texto"`,
		`[1, 2]`,
		`[{"id":"a"}, "b"]`,
		`[{"id":"a"`,
		`[{"timestamp":"ayer"}]`,
	} {
		_, err := ReadBackup(strings.NewReader(in))
		var fe *model.ImportFormatError
		if !errors.As(err, &fe) {
			t.Errorf("%q: expected ImportFormatError, got %v", in, err)
		}
	}
}

func TestNoteFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Juan Carlos Pérez", "250304 - PÉREZ, Juan Carlos.txt"},
		{"  ana  ", "250304 - ANA.txt"},
		{"", "250304 - PACIENTE.txt"},
		{"María   López", "250304 - LÓPEZ, María.txt"},
	}
	for _, tt := range tests {
		if got := NoteFileName(tt.name, when); got != tt.want {
			t.Errorf("NoteFileName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestWriteNote(t *testing.T) {
	r := model.NewRecord()
	r.Name = "Juan Pérez"
	r.Age = "54"

	var buf bytes.Buffer
	if err := WriteNote(&buf, NoteHeader{}, r, "Cuerpo de la nota.", when); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := `GUARDIA AI - HISTORIA CLÍNICA DE EMERGENCIA
============================================================
PACIENTE: Juan Pérez
DNI: NO REGISTRADO
EDAD: 54 | GÉNERO: ?
FECHA Y HORA: 04/03/2025, 22:15:09
============================================================

Cuerpo de la nota.

------------------------------------------------------------
Generado por GuardiaAI - Asistente de Decisión Clínica
`
	if buf.String() != want {
		t.Errorf("unexpected note:\n%s", buf.String())
	}
}

func TestWriteNoteFacility(t *testing.T) {
	var buf bytes.Buffer
	WriteNote(&buf, NoteHeader{Facility: "HOSPITAL CENTRAL"}, model.NewRecord(), "", when)
	if !strings.HasPrefix(buf.String(), "HOSPITAL CENTRAL - HISTORIA") {
		t.Errorf("facility not applied: %q", buf.String())
	}
}
