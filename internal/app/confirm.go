package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/rcliao/guardia-ai/internal/exchange"
	"github.com/rcliao/guardia-ai/internal/model"
	"github.com/rcliao/guardia-ai/internal/nav"
	"github.com/rcliao/guardia-ai/internal/store"
)

// ErrNoConfirmation is returned when confirming with nothing awaiting
// confirmation, or with a stale plan.
var ErrNoConfirmation = errors.New("nothing awaiting confirmation")

// DeleteRequest is a delete awaiting confirmation.
type DeleteRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Current bool   `json:"current"` // the record open in the session
}

// RequestDelete asks to delete a stored record. Nothing is removed until
// ConfirmDelete.
func (a *App) RequestDelete(id string) (DeleteRequest, error) {
	rec, ok := a.store.Get(id)
	if !ok {
		return DeleteRequest{}, fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	req := DeleteRequest{
		ID:      rec.ID,
		Name:    rec.Name,
		Current: a.session.Record().ID == rec.ID,
	}
	a.mu.Lock()
	a.pendingDelete = &req
	a.mu.Unlock()
	return req, nil
}

// RequestDeleteCurrent asks to delete the record open in the session. The
// record must have been saved.
func (a *App) RequestDeleteCurrent() (DeleteRequest, error) {
	rec := a.session.Record()
	if rec.ID == "" {
		return DeleteRequest{}, &model.ValidationError{Reason: "record not saved"}
	}
	req := DeleteRequest{ID: rec.ID, Name: rec.Name, Current: true}
	a.mu.Lock()
	a.pendingDelete = &req
	a.mu.Unlock()
	return req, nil
}

// PendingDelete returns the delete awaiting confirmation, if any.
func (a *App) PendingDelete() (DeleteRequest, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pendingDelete == nil {
		return DeleteRequest{}, false
	}
	return *a.pendingDelete, true
}

// CancelDelete drops the pending delete.
func (a *App) CancelDelete() {
	a.mu.Lock()
	a.pendingDelete = nil
	a.mu.Unlock()
}

// ConfirmDelete executes the pending delete. Deleting the session record
// resets the session and returns to the dashboard.
func (a *App) ConfirmDelete(ctx context.Context) (DeleteRequest, error) {
	a.mu.Lock()
	req := a.pendingDelete
	a.pendingDelete = nil
	a.mu.Unlock()
	if req == nil {
		return DeleteRequest{}, ErrNoConfirmation
	}

	a.store.Delete(ctx, req.ID)
	a.log.Info().Str("id", req.ID).Msg("record deleted")

	if req.Current || a.session.Record().ID == req.ID {
		a.session.Reset()
		if a.nav.Can(nav.DeleteCurrent) {
			a.fire(nav.DeleteCurrent)
		} else {
			a.fire(nav.Home)
		}
	}
	return *req, nil
}

// ImportPlan is a parsed backup awaiting confirmation.
type ImportPlan struct {
	ID      string                `json:"id"`
	Count   int                   `json:"count"`
	Prompt  string                `json:"prompt"`
	Records []model.PatientRecord `json:"-"`
}

// PrepareImport parses a backup file and holds it until ConfirmImport. A
// malformed file is rejected with an ImportFormatError and nothing is held.
func (a *App) PrepareImport(r io.Reader) (*ImportPlan, error) {
	records, err := exchange.ReadBackup(r)
	if err != nil {
		return nil, err
	}
	plan := &ImportPlan{
		ID:      uuid.NewString(),
		Count:   len(records),
		Prompt:  fmt.Sprintf("Se encontraron %d pacientes en el archivo. Esto combinará los datos con los actuales. ¿Desea continuar?", len(records)),
		Records: records,
	}
	a.mu.Lock()
	a.pendingImport = plan
	a.mu.Unlock()
	return plan, nil
}

// PendingImport returns the plan awaiting confirmation, if any.
func (a *App) PendingImport() (*ImportPlan, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pendingImport, a.pendingImport != nil
}

// CancelImport drops the pending plan.
func (a *App) CancelImport() {
	a.mu.Lock()
	a.pendingImport = nil
	a.mu.Unlock()
}

// ConfirmImport merges the pending plan with the given id into the store.
func (a *App) ConfirmImport(ctx context.Context, planID string) (store.MergeResult, error) {
	a.mu.Lock()
	plan := a.pendingImport
	if plan == nil || plan.ID != planID {
		a.mu.Unlock()
		return store.MergeResult{}, ErrNoConfirmation
	}
	a.pendingImport = nil
	a.mu.Unlock()

	return a.store.ImportMerge(ctx, plan.Records), nil
}
