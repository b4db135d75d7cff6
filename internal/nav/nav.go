// Package nav routes between the intake screens.
package nav

import (
	"errors"
	"fmt"
	"sync"
)

// View is a screen.
type View string

const (
	Dashboard     View = "dashboard"
	Editing       View = "editing"
	Results       View = "results"
	Chat          View = "chat"
	HistoryEditor View = "historyEditor"
	ListSeen      View = "listSeen"
	ListPending   View = "listPending"
)

// Action is a user intent that may change the screen.
type Action string

const (
	NewPatient     Action = "new-patient"
	Home           Action = "home"
	OpenPending    Action = "open-pending"
	OpenSeen       Action = "open-seen"
	Select         Action = "select"
	Back           Action = "back"
	SubmitAnalysis Action = "submit-analysis"
	OpenNote       Action = "open-note"
	SavePending    Action = "save-pending"
	FinishCase     Action = "finish-case"
	DeleteCurrent  Action = "delete-current"
	StartChat      Action = "start-chat"
)

// ErrIllegalTransition is returned when an action is not allowed from the
// current view.
var ErrIllegalTransition = errors.New("illegal transition")

// Actions allowed from every view.
var global = map[Action]View{
	NewPatient: Editing,
	Home:       Dashboard,
}

var transitions = map[View]map[Action]View{
	Dashboard: {
		OpenPending: ListPending,
		OpenSeen:    ListSeen,
	},
	ListPending: {
		Select: Editing,
		Back:   Dashboard,
	},
	ListSeen: {
		Select: HistoryEditor,
		Back:   Dashboard,
	},
	Editing: {
		SubmitAnalysis: Results,
		OpenNote:       HistoryEditor,
		SavePending:    Dashboard,
		FinishCase:     Dashboard,
		DeleteCurrent:  Dashboard,
	},
	Results: {
		StartChat:  Chat,
		Back:       Editing,
		FinishCase: Dashboard,
	},
	Chat: {
		Back: Results,
	},
	HistoryEditor: {
		Back:          Editing,
		FinishCase:    Dashboard,
		DeleteCurrent: Dashboard,
	},
}

// Next returns the view reached by firing a from the given view, without changing
// any state.
func Next(from View, a Action) (View, error) {
	if to, ok := transitions[from][a]; ok {
		return to, nil
	}
	if to, ok := global[a]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s from %s", ErrIllegalTransition, a, from)
}

// Allowed lists the actions legal from v.
func Allowed(v View) []Action {
	out := make([]Action, 0, len(transitions[v])+len(global))
	for a := range transitions[v] {
		out = append(out, a)
	}
	for a := range global {
		if _, dup := transitions[v][a]; !dup {
			out = append(out, a)
		}
	}
	return out
}

// Machine tracks the current view. The zero value is not usable; call New.
type Machine struct {
	mu      sync.Mutex
	current View
}

// New returns a machine on the dashboard.
func New() *Machine {
	return &Machine{current: Dashboard}
}

// Current returns the current view.
func (m *Machine) Current() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Fire applies a and returns the new view. An illegal action leaves the
// view unchanged.
func (m *Machine) Fire(a Action) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	to, err := Next(m.current, a)
	if err != nil {
		return m.current, err
	}
	m.current = to
	return to, nil
}

// Can reports whether a is legal from the current view.
func (m *Machine) Can(a Action) bool {
	_, err := Next(m.Current(), a)
	return err == nil
}
