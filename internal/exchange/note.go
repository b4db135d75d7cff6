package exchange

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/rcliao/guardia-ai/internal/model"
)

// DefaultFacility heads every note unless configured otherwise.
const DefaultFacility = "GUARDIA AI"

// NoteHeader carries the fixed parts of the note document.
type NoteHeader struct {
	Facility string
}

const rule = "============================================================"

var noteTmpl = template.Must(template.New("note").Parse(
	`{{.Facility}} - HISTORIA CLÍNICA DE EMERGENCIA
` + rule + `
PACIENTE: {{.Name}}
DNI: {{.DNI}}
EDAD: {{.Age}} | GÉNERO: {{.Gender}}
FECHA Y HORA: {{.When}}
` + rule + `

{{.Body}}

------------------------------------------------------------
Generado por GuardiaAI - Asistente de Decisión Clínica
`))

type noteData struct {
	Facility, Name, DNI, Age, Gender, When, Body string
}

// WriteNote renders the clinical note for rec with the given body, stamped
// with t in its own location.
func WriteNote(w io.Writer, h NoteHeader, rec model.PatientRecord, body string, t time.Time) error {
	facility := h.Facility
	if facility == "" {
		facility = DefaultFacility
	}
	err := noteTmpl.Execute(w, noteData{
		Facility: facility,
		Name:     orDefault(rec.Name, "NO REGISTRADO"),
		DNI:      orDefault(rec.DNI, "NO REGISTRADO"),
		Age:      orDefault(rec.Age, "?"),
		Gender:   orDefault(rec.Gender, "?"),
		When:     t.Format("02/01/2006, 15:04:05"),
		Body:     body,
	})
	if err != nil {
		return fmt.Errorf("write note: %w", err)
	}
	return nil
}

// NoteFileName returns "<YYMMDD> - <LASTNAME, First Names>.txt". A single
// name is uppercased whole; no name gives PACIENTE.
func NoteFileName(name string, t time.Time) string {
	formatted := "PACIENTE"
	if parts := strings.Fields(name); len(parts) > 1 {
		last := strings.ToUpper(parts[len(parts)-1])
		formatted = last + ", " + strings.Join(parts[:len(parts)-1], " ")
	} else if len(parts) == 1 {
		formatted = strings.ToUpper(parts[0])
	}
	return t.Format("060102") + " - " + formatted + ".txt"
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
