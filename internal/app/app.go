// Package app is the application root. It owns the record store, the
// session and the navigation state, and exposes every user action as one
// method that updates all three consistently.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/guardia-ai/internal/exchange"
	"github.com/rcliao/guardia-ai/internal/model"
	"github.com/rcliao/guardia-ai/internal/nav"
	"github.com/rcliao/guardia-ai/internal/session"
	"github.com/rcliao/guardia-ai/internal/store"
)

// ErrNotFound is returned for an unknown record id, or for a record that the
// open list does not show.
var ErrNotFound = errors.New("record not found")

// Option configures an App.
type Option func(*App)

// WithFacility sets the facility name printed on exported notes.
func WithFacility(name string) Option {
	return func(a *App) { a.facility = name }
}

// WithLogger sets the application logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithClock replaces time.Now for file names and note stamps.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// App wires the store, session and navigation together.
type App struct {
	store    *store.Store
	session  *session.Session
	nav      *nav.Machine
	facility string
	log      zerolog.Logger
	now      func() time.Time

	mu            sync.Mutex
	pendingDelete *DeleteRequest
	pendingImport *ImportPlan

	wg sync.WaitGroup
}

// New builds the application root over an opened store and a session
// writing through it.
func New(st *store.Store, s *session.Session, opts ...Option) *App {
	a := &App{
		store:    st,
		session:  s,
		nav:      nav.New(),
		facility: exchange.DefaultFacility,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *App) Store() *store.Store       { return a.store }
func (a *App) Session() *session.Session { return a.session }

// View returns the current screen.
func (a *App) View() nav.View { return a.nav.Current() }

// Pending lists pending records in store order.
func (a *App) Pending() iter.Seq[model.PatientRecord] {
	return a.store.FilterByStatus(model.StatusPending)
}

// Seen lists closed records in store order.
func (a *App) Seen() iter.Seq[model.PatientRecord] {
	return a.store.FilterByStatus(model.StatusSeen)
}

// PendingCount is the dashboard badge count.
func (a *App) PendingCount() int {
	return a.store.CountByStatus(model.StatusPending)
}

// fire moves to the next view. Callers check legality before mutating
// anything, so a failure here is unexpected.
func (a *App) fire(act nav.Action) (nav.View, error) {
	v, err := a.nav.Fire(act)
	if err != nil {
		a.log.Error().Err(err).Str("action", string(act)).Msg("navigation")
	}
	return v, err
}

func (a *App) check(act nav.Action) error {
	_, err := nav.Next(a.nav.Current(), act)
	return err
}

// NewPatient resets the session and opens an empty form.
func (a *App) NewPatient() nav.View {
	a.session.Reset()
	v, _ := a.fire(nav.NewPatient)
	return v
}

// Home returns to the dashboard. The session is kept.
func (a *App) Home() nav.View {
	v, _ := a.fire(nav.Home)
	return v
}

// OpenPending shows the pending list.
func (a *App) OpenPending() (nav.View, error) { return a.nav.Fire(nav.OpenPending) }

// OpenSeen shows the closed-case list.
func (a *App) OpenSeen() (nav.View, error) { return a.nav.Fire(nav.OpenSeen) }

// Back goes to the previous logical screen.
func (a *App) Back() (nav.View, error) { return a.nav.Fire(nav.Back) }

// Select loads a stored record from the open list. Pending records open the
// form, closed ones open the note editor. A record of the other status is
// not in the list and is reported as not found.
func (a *App) Select(id string) (nav.View, error) {
	if err := a.check(nav.Select); err != nil {
		return a.nav.Current(), err
	}
	rec, ok := a.store.Get(id)
	if !ok || !listed(a.nav.Current(), rec.Status) {
		return a.nav.Current(), fmt.Errorf("select %s: %w", id, ErrNotFound)
	}
	a.session.LoadFromRecord(rec)
	return a.fire(nav.Select)
}

// listed reports whether a record with status shows up in the list view v.
func listed(v nav.View, status model.Status) bool {
	switch v {
	case nav.ListPending:
		return status == model.StatusPending
	case nav.ListSeen:
		return status == model.StatusSeen
	}
	return false
}

// SavePending stores the session record as pending and returns to the
// dashboard. The saved record stays loaded in the session.
func (a *App) SavePending(ctx context.Context) (model.PatientRecord, error) {
	if err := a.check(nav.SavePending); err != nil {
		return model.PatientRecord{}, err
	}
	rec, err := a.session.CommitAsPending(ctx)
	if err != nil {
		return model.PatientRecord{}, err
	}
	a.fire(nav.SavePending)
	a.log.Info().Str("id", rec.ID).Msg("saved as pending")
	return rec, nil
}

// FinishCase closes the session record as seen and returns to the
// dashboard with a fresh session.
func (a *App) FinishCase(ctx context.Context) (model.PatientRecord, error) {
	if err := a.check(nav.FinishCase); err != nil {
		return model.PatientRecord{}, err
	}
	rec, err := a.session.CommitAsSeen(ctx)
	if err != nil {
		return model.PatientRecord{}, err
	}
	a.session.Reset()
	a.fire(nav.FinishCase)
	a.log.Info().Str("id", rec.ID).Msg("case closed")
	return rec, nil
}

// SubmitAnalysis validates the record, moves to the results screen and
// returns the pending call. The view changes before the call resolves.
func (a *App) SubmitAnalysis() (*session.Call, error) {
	if err := a.check(nav.SubmitAnalysis); err != nil {
		return nil, err
	}
	call, err := a.session.StartAnalysis()
	if err != nil {
		return nil, err
	}
	a.fire(nav.SubmitAnalysis)
	return call, nil
}

// OpenNote shows the note editor without generating anything.
func (a *App) OpenNote() (nav.View, error) { return a.nav.Fire(nav.OpenNote) }

// GenerateNote starts a note draft. From the form it also opens the note
// editor; from results and the editor the view is kept.
func (a *App) GenerateNote() (*session.Call, error) {
	switch v := a.nav.Current(); v {
	case nav.Editing, nav.Results, nav.HistoryEditor:
	default:
		return nil, fmt.Errorf("%w: generate note from %s", nav.ErrIllegalTransition, v)
	}
	call, err := a.session.StartNoteGeneration()
	if err != nil {
		return nil, err
	}
	if a.nav.Current() == nav.Editing {
		a.fire(nav.OpenNote)
	}
	return call, nil
}

// StartChat opens the chat screen for the session record.
func (a *App) StartChat() (nav.View, error) {
	v, err := a.nav.Fire(nav.StartChat)
	if err != nil {
		return v, err
	}
	a.session.StartChat()
	return v, nil
}

// Go runs call in the background. Failures are already recorded on the
// session; they are logged here.
func (a *App) Go(ctx context.Context, call *session.Call) {
	if call == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := call.Run(ctx); err != nil && !errors.Is(err, session.ErrSuperseded) {
			a.log.Warn().Err(err).Str("op", call.Op).Msg("background call failed")
		}
	}()
}

// Wait blocks until background calls started with Go have finished.
func (a *App) Wait() { a.wg.Wait() }

// ExportNote closes the case and writes the clinical note for the session
// record to w. Nothing is written when closing fails. It returns the suggested file name.
func (a *App) ExportNote(ctx context.Context, w io.Writer) (string, error) {
	if err := a.check(nav.FinishCase); err != nil {
		return "", err
	}
	st := a.session.Snapshot()
	now := a.now()
	var buf bytes.Buffer
	if err := exchange.WriteNote(&buf, exchange.NoteHeader{Facility: a.facility}, st.Record, st.Note, now); err != nil {
		return "", err
	}
	if _, err := a.FinishCase(ctx); err != nil {
		return "", err
	}
	if _, err := buf.WriteTo(w); err != nil {
		return "", fmt.Errorf("write note: %w", err)
	}
	return exchange.NoteFileName(st.Record.Name, now), nil
}

// ExportBackup writes every stored record to w and returns the suggested
// file name.
func (a *App) ExportBackup(w io.Writer) (string, error) {
	if err := exchange.WriteBackup(w, a.store.Export()); err != nil {
		return "", err
	}
	return exchange.BackupFileName(a.now()), nil
}
