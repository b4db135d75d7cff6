package session

import (
	"slices"

	"github.com/google/uuid"

	"github.com/rcliao/guardia-ai/internal/model"
)

// State is a point-in-time copy of everything a view renders.
type State struct {
	ID             uuid.UUID           `json:"sessionId"`
	Record         model.PatientRecord `json:"record"`
	Analyzing      bool                `json:"analyzing"`
	Analysis       *model.Analysis     `json:"analysis,omitempty"`
	AnalysisError  string              `json:"analysisError,omitempty"`
	TriageColor    string              `json:"triageColor"`
	GeneratingNote bool                `json:"generatingNote"`
	Note           string              `json:"note"`
	NoteFailed     bool                `json:"noteFailed,omitempty"`
	ChatOpen       bool                `json:"chatOpen"`
	Chatting       bool                `json:"chatting"`
	Transcript     []model.ChatMessage `json:"transcript"`
}

// Snapshot returns a copy of the visible session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		ID:             s.id,
		Record:         s.rec.Clone(),
		Analyzing:      s.analyzing,
		AnalysisError:  s.analysisErr,
		GeneratingNote: s.generatingNote,
		Note:           s.note,
		NoteFailed:     s.noteFailed,
		ChatOpen:       len(s.transcript) > 0,
		Chatting:       s.chatting,
		Transcript:     slices.Clone(s.transcript),
	}
	if st.Transcript == nil {
		st.Transcript = []model.ChatMessage{}
	}
	if s.analysis != nil {
		a := *s.analysis
		st.Analysis = &a
		st.TriageColor = model.TriageColor(a.TriageLevel)
	} else {
		st.TriageColor = model.TriageColor("")
	}
	return st
}
