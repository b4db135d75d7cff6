// Package store provides the patient record store and its persistence backends.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/rcliao/guardia-ai/internal/model"
)

// BlobKey names the blob that holds the whole record collection.
const BlobKey = "guardiaai_patients"

// Backend persists the encoded record collection as a single blob.
type Backend interface {
	// Read returns the stored blob, or nil with no error when nothing is stored.
	Read(ctx context.Context) ([]byte, error)

	// Write replaces the stored blob.
	Write(ctx context.Context, data []byte) error

	// Name describes the backend for logs and stats.
	Name() string

	// Close releases the backend.
	Close() error
}

// MergeResult counts the outcome of an import merge.
type MergeResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for persistence diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithWriteRetries sets how many times a failed write is retried.
func WithWriteRetries(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithRetryDelay sets the base delay between write attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Store) { s.retryDelay = d }
}

// Store is the ordered, in-process record collection. Every mutation
// rewrites the whole collection to the backend.
//
// Mutations build a new slice instead of editing the current one, so
// iterators returned by FilterByStatus and Search read a stable snapshot
// without holding the lock.
type Store struct {
	mu      sync.RWMutex
	records []model.PatientRecord

	backend    Backend
	log        zerolog.Logger
	retries    int
	retryDelay time.Duration

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open loads the collection from backend. A read or decode failure is
// logged and yields an empty store; Open never fails.
func Open(ctx context.Context, backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		log:        zerolog.Nop(),
		retries:    3,
		retryDelay: 50 * time.Millisecond,
		entropy:    ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	for _, o := range opts {
		o(s)
	}

	data, err := backend.Read(ctx)
	if err != nil {
		s.log.Warn().Err(&model.PersistenceError{Op: "read", Err: err}).
			Str("backend", backend.Name()).Msg("starting with empty store")
		return s
	}
	if len(data) == 0 {
		return s
	}
	var records []model.PatientRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.log.Warn().Err(&model.PersistenceError{Op: "decode", Err: err}).
			Str("backend", backend.Name()).Msg("stored collection is corrupt, starting with empty store")
		return s
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed bool
	s.records, changed = s.normalize(records)
	if changed {
		s.persist(ctx)
	}
	s.log.Debug().Int("records", len(s.records)).Str("backend", backend.Name()).Msg("store loaded")
	return s
}

// normalize gives id-less records an id and drops later duplicates of an id.
// It reports whether the collection differs from what was stored.
func (s *Store) normalize(records []model.PatientRecord) ([]model.PatientRecord, bool) {
	out := make([]model.PatientRecord, 0, len(records))
	seen := make(map[string]bool, len(records))
	changed := false
	for _, r := range records {
		if r.ID == "" {
			r.ID = s.NewID()
			changed = true
		}
		if seen[r.ID] {
			s.log.Warn().Str("id", r.ID).Msg("dropping duplicate record id")
			changed = true
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out, changed
}

// NewID returns a fresh, time-ordered record id.
func (s *Store) NewID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Backend returns the persistence backend.
func (s *Store) Backend() Backend { return s.backend }

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Upsert replaces the record with the same id in place, or inserts it at
// the front of the collection.
func (s *Store) Upsert(ctx context.Context, rec model.PatientRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("upsert: record has no id")
	}
	rec = rec.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.PatientRecord, 0, len(s.records)+1)
	if i := indexOf(s.records, rec.ID); i >= 0 {
		next = append(next, s.records...)
		next[i] = rec
	} else {
		next = append(next, rec)
		next = append(next, s.records...)
	}
	s.records = next
	s.persist(ctx)
	return nil
}

// Delete removes the record with the given id. It reports whether a record
// was removed; a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.records, id)
	if i < 0 {
		return false
	}
	s.records = slices.Delete(slices.Clone(s.records), i, i+1)
	s.persist(ctx)
	return true
}

// FilterByStatus returns a lazy view of the records with the given status,
// in collection order.
func (s *Store) FilterByStatus(status model.Status) iter.Seq[model.PatientRecord] {
	return s.filter(func(r *model.PatientRecord) bool { return r.Status == status })
}

// CountByStatus returns how many records have the given status.
func (s *Store) CountByStatus(status model.Status) int {
	n := 0
	for range s.FilterByStatus(status) {
		n++
	}
	return n
}

func (s *Store) filter(match func(*model.PatientRecord) bool) iter.Seq[model.PatientRecord] {
	return func(yield func(model.PatientRecord) bool) {
		for _, r := range s.snapshot() {
			if !match(&r) {
				continue
			}
			if !yield(r.Clone()) {
				return
			}
		}
	}
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (model.PatientRecord, bool) {
	records := s.snapshot()
	if i := indexOf(records, id); i >= 0 {
		return records[i].Clone(), true
	}
	return model.PatientRecord{}, false
}

// All returns a copy of the whole collection in order.
func (s *Store) All() []model.PatientRecord {
	records := s.snapshot()
	out := make([]model.PatientRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	return len(s.snapshot())
}

func (s *Store) snapshot() []model.PatientRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// persist writes the whole collection. Failures are retried and logged but
// never returned. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) {
	records := s.records
	if records == nil {
		records = []model.PatientRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		s.log.Error().Err(&model.PersistenceError{Op: "encode", Err: err}).Msg("persist failed")
		return
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if lastErr = s.backend.Write(ctx, data); lastErr == nil {
			return
		}
		s.log.Debug().Err(lastErr).Int("attempt", attempt).Msg("persist attempt failed")
		if attempt > s.retries || ctx.Err() != nil {
			break
		}
		if s.retryDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(attempt) * s.retryDelay):
			}
		}
	}
	s.log.Error().Err(&model.PersistenceError{Op: "write", Err: lastErr}).
		Str("backend", s.backend.Name()).Int("records", len(records)).
		Msg("persist failed, in-memory state kept")
}

func indexOf(records []model.PatientRecord, id string) int {
	return slices.IndexFunc(records, func(r model.PatientRecord) bool { return r.ID == id })
}
