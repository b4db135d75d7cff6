// Package exchange reads and writes the files users move in and out of the
// app: the full backup and the single-patient clinical note.
package exchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rcliao/guardia-ai/internal/model"
)

// WriteBackup writes records as a pretty-printed JSON array.
func WriteBackup(w io.Writer, records []model.PatientRecord) error {
	if records == nil {
		records = []model.PatientRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// BackupFileName returns the download name for a backup taken at t.
func BackupFileName(t time.Time) string {
	return "guardiaai_backup_" + t.Format("2006-01-02") + ".json"
}

// ReadBackup parses a backup file. Anything other than a JSON array of
// objects is an ImportFormatError. Unknown fields are ignored.
func ReadBackup(r io.Reader) ([]model.PatientRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &model.ImportFormatError{Err: err}
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, &model.ImportFormatError{Err: errors.New("expected a JSON array of records")}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &model.ImportFormatError{Err: err}
	}
	records := make([]model.PatientRecord, 0, len(raw))
	for i, item := range raw {
		if len(item) == 0 || item[0] != '{' {
			return nil, &model.ImportFormatError{Err: fmt.Errorf("element %d is not a record", i)}
		}
		var rec model.PatientRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, &model.ImportFormatError{Err: fmt.Errorf("element %d: %w", i, err)}
		}
		records = append(records, rec)
	}
	return records, nil
}
