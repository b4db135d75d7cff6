// Package llm is the clinical reasoning collaborator: case analysis, note
// drafting and follow-up chat, backed by a chat-completions API.
package llm

import (
	"context"

	"github.com/rcliao/guardia-ai/internal/model"
)

// Client defines the three calls the intake core makes to the model.
type Client interface {
	// Analyze returns a structured syndromic evaluation of the record.
	Analyze(ctx context.Context, rec model.PatientRecord) (*model.Analysis, error)

	// GenerateNote drafts a formal clinical history from the record.
	GenerateNote(ctx context.Context, rec model.PatientRecord) (string, error)

	// Chat answers the last user turn in history. rec is the record the
	// chat was opened for and is sent as context on every turn.
	Chat(ctx context.Context, rec model.PatientRecord, history []model.ChatMessage) (string, error)
}
