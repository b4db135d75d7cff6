package store

import (
	"context"
	"slices"

	"github.com/rcliao/guardia-ai/internal/model"
)

// Export returns the whole collection in order, ready for a backup file.
func (s *Store) Export() []model.PatientRecord {
	return s.All()
}

// ImportMerge overwrites records whose id matches an incoming record and
// appends the rest, then sorts the collection newest first. Records without
// a timestamp sort last. Callers must obtain user confirmation first.
func (s *Store) ImportMerge(ctx context.Context, incoming []model.PatientRecord) MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res MergeResult
	next := slices.Clone(s.records)
	index := make(map[string]int, len(next))
	for i, r := range next {
		index[r.ID] = i
	}
	for _, r := range incoming {
		r = r.Clone()
		if r.ID == "" {
			r.ID = s.NewID()
		}
		if i, ok := index[r.ID]; ok {
			next[i] = r
			res.Updated++
			continue
		}
		index[r.ID] = len(next)
		next = append(next, r)
		res.Added++
	}
	slices.SortStableFunc(next, func(a, b model.PatientRecord) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		}
		return 0
	})
	s.records = next
	s.persist(ctx)

	s.log.Info().Int("added", res.Added).Int("updated", res.Updated).Msg("import merged")
	return res
}
