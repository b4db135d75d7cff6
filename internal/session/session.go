// Package session holds the single in-progress patient record and the
// transient artifacts produced while working on it: the last analysis, the
// drafted note and the follow-up chat transcript.
package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rcliao/guardia-ai/internal/llm"
	"github.com/rcliao/guardia-ai/internal/model"
)

// User-visible texts shown in place of missing or failed model output.
const (
	AnalysisFailedMessage = "Hubo un problema al analizar el caso. Verifica tu conexión o intenta nuevamente."
	NoteFailedPlaceholder = "Error al generar texto. Por favor intente nuevamente."
	NoteEmptyFallback     = "No se pudo generar el texto."
	ChatGreeting          = "Entendido. He procesado la historia clínica. Estoy listo para responder consultas médicas sobre este paciente: dosis, interacciones, criterios de internación o diagnósticos diferenciales."
	ChatEmptyFallback     = "Lo siento, no pude generar una respuesta."
	ChatFailedMessage     = "Error de conexión con el servidor. Intenta nuevamente."
)

var (
	// ErrBusy is returned when the same kind of external call is already
	// in flight for this session.
	ErrBusy = errors.New("session: operation already in progress")

	// ErrSuperseded is returned by a call whose session was reset or
	// replaced before the call resolved. Its result is discarded.
	ErrSuperseded = errors.New("session: superseded by a newer session")
)

// Saver is the slice of the record store the session writes through.
type Saver interface {
	Upsert(ctx context.Context, rec model.PatientRecord) error
	Get(id string) (model.PatientRecord, bool)
	NewID() string
}

// Option configures a Session.
type Option func(*Session)

// WithRequireNameOnSeen makes CommitAsSeen reject records without a name,
// the same way CommitAsPending does. Off by default.
func WithRequireNameOnSeen(require bool) Option {
	return func(s *Session) { s.requireNameOnSeen = require }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the logger used for external call failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Session is safe for concurrent use. Its mutex is never held while an
// external call is in flight.
type Session struct {
	saver             Saver
	llm               llm.Client
	log               zerolog.Logger
	now               func() time.Time
	requireNameOnSeen bool

	mu             sync.Mutex
	id             uuid.UUID
	rec            model.PatientRecord
	analysis       *model.Analysis
	analysisErr    string
	analyzing      bool
	note           string
	noteFailed     bool
	generatingNote bool
	transcript     []model.ChatMessage
	chatCtx        *model.PatientRecord
	chatting       bool
}

// New returns an empty session writing through saver and reasoning with c.
func New(saver Saver, c llm.Client, opts ...Option) *Session {
	s := &Session{
		saver: saver,
		llm:   c,
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.clear(model.NewRecord())
	return s
}

// clear replaces the record and drops every transient artifact under a
// fresh identity. Callers hold s.mu.
func (s *Session) clear(rec model.PatientRecord) {
	if rec.PendingItems == nil {
		rec.PendingItems = []string{}
	}
	s.id = uuid.New()
	s.rec = rec
	s.analysis = nil
	s.analysisErr = ""
	s.analyzing = false
	s.note = rec.GeneratedClinicalHistory
	s.noteFailed = false
	s.generatingNote = false
	s.transcript = nil
	s.chatCtx = nil
	s.chatting = false
}

// ID returns the current session identity.
func (s *Session) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Record returns a copy of the in-progress record.
func (s *Session) Record() model.PatientRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Clone()
}

// Reset discards the in-progress record and starts a new empty one.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear(model.NewRecord())
}

// LoadFromRecord replaces the in-progress record with rec. Analysis and chat
// start over; the note is carried from the record.
func (s *Session) LoadFromRecord(rec model.PatientRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear(rec.Clone())
}

// Edit sets one text field of the in-progress record. Vital signs use dotted
// names such as "vitals.bp".
func (s *Session) Edit(field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.rec.Set(field, value); err != nil {
		return &model.ValidationError{Reason: err.Error()}
	}
	return nil
}

// SetPendingItems replaces the pending work list. Blank and repeated labels
// are dropped.
func (s *Session) SetPendingItems(items []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" || slices.Contains(out, it) {
			continue
		}
		out = append(out, it)
	}
	s.rec.PendingItems = out
}

// TogglePendingItem adds item if absent or removes it if present, and
// reports whether it is now in the list.
func (s *Session) TogglePendingItem(item string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item = strings.TrimSpace(item)
	if item == "" {
		return false
	}
	if i := slices.Index(s.rec.PendingItems, item); i >= 0 {
		s.rec.PendingItems = slices.Delete(slices.Clone(s.rec.PendingItems), i, i+1)
		return false
	}
	s.rec.PendingItems = append(slices.Clone(s.rec.PendingItems), item)
	return true
}

// CommitAsPending saves the record with status pending. A name is required.
func (s *Session) CommitAsPending(ctx context.Context) (model.PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(s.rec.Name) == "" {
		return model.PatientRecord{}, &model.ValidationError{Reason: "missing name"}
	}
	return s.commit(ctx, model.StatusPending)
}

// CommitAsSeen closes the case: status seen, pending items cleared. Calling
// it again re-saves with a new timestamp.
func (s *Session) CommitAsSeen(ctx context.Context) (model.PatientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requireNameOnSeen && strings.TrimSpace(s.rec.Name) == "" {
		return model.PatientRecord{}, &model.ValidationError{Reason: "missing name"}
	}
	return s.commit(ctx, model.StatusSeen)
}

func (s *Session) commit(ctx context.Context, status model.Status) (model.PatientRecord, error) {
	rec := s.rec.Clone()
	if rec.ID == "" {
		rec.ID = s.saver.NewID()
	}
	rec.Timestamp = s.now().UnixMilli()
	rec.Status = status
	if status == model.StatusSeen || rec.PendingItems == nil {
		rec.PendingItems = []string{}
	}
	if !s.noteFailed {
		rec.GeneratedClinicalHistory = s.note
	}
	if err := s.saver.Upsert(ctx, rec); err != nil {
		return model.PatientRecord{}, err
	}
	s.rec = rec
	return rec.Clone(), nil
}

// EditNote overwrites the note text. If the record was saved before, the
// stored copy is updated too.
func (s *Session) EditNote(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.note = text
	s.noteFailed = false
	return s.persistNote(ctx)
}

// persistNote writes the note onto the stored copy of the record, leaving
// its other fields as last saved. Callers hold s.mu.
func (s *Session) persistNote(ctx context.Context) error {
	s.rec.GeneratedClinicalHistory = s.note
	if s.rec.ID == "" {
		return nil
	}
	stored, ok := s.saver.Get(s.rec.ID)
	if !ok {
		return nil
	}
	stored.GeneratedClinicalHistory = s.note
	return s.saver.Upsert(ctx, stored)
}

// Call is an external request started by the session. Run performs it and
// applies the result unless the session moved on in the meantime.
type Call struct {
	Op  string
	run func(ctx context.Context) error
}

// Run performs the call. It returns ErrSuperseded when the result was
// discarded, or the service error after recording it on the session.
func (c *Call) Run(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.run(ctx)
}

// StartAnalysis validates the record and marks an analysis in flight. The
// returned call sends the record to the reasoning service.
func (s *Session) StartAnalysis() (*Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rec.HasClinicalContent() {
		return nil, &model.ValidationError{Reason: "chief complaint, symptoms and signs are all empty"}
	}
	if s.analyzing {
		return nil, ErrBusy
	}
	s.analyzing = true
	s.analysis = nil
	s.analysisErr = ""
	token, rec := s.id, s.rec.Clone()

	return &Call{Op: "analyze", run: func(ctx context.Context) error {
		a, err := s.llm.Analyze(ctx, rec)
		if err == nil && a == nil {
			err = errors.New("empty analysis")
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.id != token {
			s.log.Debug().Str("op", "analyze").Msg("discarding stale response")
			return ErrSuperseded
		}
		s.analyzing = false
		if err != nil {
			s.analysisErr = AnalysisFailedMessage
			s.log.Warn().Err(err).Str("op", "analyze").Msg("reasoning service failed")
			return &model.ExternalServiceError{Op: "analyze", Err: err}
		}
		s.analysis = a
		s.chatCtx = &rec
		return nil
	}}, nil
}

// RequestAnalysis runs StartAnalysis and waits for the result.
func (s *Session) RequestAnalysis(ctx context.Context) error {
	c, err := s.StartAnalysis()
	if err != nil {
		return err
	}
	return c.Run(ctx)
}

// StartNoteGeneration marks a note draft in flight.
func (s *Session) StartNoteGeneration() (*Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generatingNote {
		return nil, ErrBusy
	}
	s.generatingNote = true
	token, rec := s.id, s.rec.Clone()

	return &Call{Op: "note", run: func(ctx context.Context) error {
		text, err := s.llm.GenerateNote(ctx, rec)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.id != token {
			s.log.Debug().Str("op", "note").Msg("discarding stale response")
			return ErrSuperseded
		}
		s.generatingNote = false
		if err != nil {
			s.note = NoteFailedPlaceholder
			s.noteFailed = true
			s.log.Warn().Err(err).Str("op", "note").Msg("reasoning service failed")
			return &model.ExternalServiceError{Op: "note", Err: err}
		}
		if strings.TrimSpace(text) == "" {
			text = NoteEmptyFallback
		}
		s.note = strings.ReplaceAll(text, "*", "")
		s.noteFailed = false
		return s.persistNote(ctx)
	}}, nil
}

// RequestNoteGeneration runs StartNoteGeneration and waits for the result.
func (s *Session) RequestNoteGeneration(ctx context.Context) error {
	c, err := s.StartNoteGeneration()
	if err != nil {
		return err
	}
	return c.Run(ctx)
}

// StartChat opens the chat for the current record. The record is captured
// as chat context the first time, and the greeting is added to an empty
// transcript.
func (s *Session) StartChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openChat()
}

func (s *Session) openChat() {
	if s.chatCtx == nil {
		rec := s.rec.Clone()
		s.chatCtx = &rec
	}
	if len(s.transcript) == 0 {
		s.appendTurn(model.ChatMessage{Role: model.RoleModel, Text: ChatGreeting})
	}
}

func (s *Session) appendTurn(m model.ChatMessage) {
	m.At = s.now()
	s.transcript = append(slices.Clip(s.transcript), m)
}

// StartSend appends the user turn and marks a reply in flight. Blank text
// yields a nil call.
func (s *Session) StartSend(text string) (*Call, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatting {
		return nil, ErrBusy
	}
	s.openChat()
	s.chatting = true
	s.appendTurn(model.ChatMessage{Role: model.RoleUser, Text: text})
	token, rec, history := s.id, s.chatCtx.Clone(), slices.Clone(s.transcript)

	return &Call{Op: "chat", run: func(ctx context.Context) error {
		reply, err := s.llm.Chat(ctx, rec, history)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.id != token {
			s.log.Debug().Str("op", "chat").Msg("discarding stale response")
			return ErrSuperseded
		}
		s.chatting = false
		if err != nil {
			s.appendTurn(model.ChatMessage{Role: model.RoleModel, Text: ChatFailedMessage, Error: true})
			s.log.Warn().Err(err).Str("op", "chat").Msg("reasoning service failed")
			return &model.ExternalServiceError{Op: "chat", Err: err}
		}
		if strings.TrimSpace(reply) == "" {
			reply = ChatEmptyFallback
		}
		s.appendTurn(model.ChatMessage{Role: model.RoleModel, Text: reply})
		return nil
	}}, nil
}

// SendChat runs StartSend and waits for the reply.
func (s *Session) SendChat(ctx context.Context, text string) error {
	c, err := s.StartSend(text)
	if err != nil {
		return err
	}
	return c.Run(ctx)
}
