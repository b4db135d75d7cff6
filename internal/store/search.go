package store

import (
	"iter"
	"strings"

	"github.com/rcliao/guardia-ai/internal/model"
)

// SearchParams holds parameters for searching records.
type SearchParams struct {
	Query  string
	Status model.Status // empty matches every status
	Limit  int          // 0 means no limit
}

// Search returns a lazy view of records whose name, dni or chief complaint
// contain the query, case-insensitively. An empty query matches everything.
func (s *Store) Search(p SearchParams) iter.Seq[model.PatientRecord] {
	q := strings.ToLower(strings.TrimSpace(p.Query))
	matches := s.filter(func(r *model.PatientRecord) bool {
		if p.Status != "" && r.Status != p.Status {
			return false
		}
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(r.Name), q) ||
			strings.Contains(strings.ToLower(r.DNI), q) ||
			strings.Contains(strings.ToLower(r.ChiefComplaint), q)
	})
	if p.Limit <= 0 {
		return matches
	}
	return func(yield func(model.PatientRecord) bool) {
		n := 0
		for r := range matches {
			if !yield(r) {
				return
			}
			n++
			if n >= p.Limit {
				return
			}
		}
	}
}
