// Package llmtest provides a scriptable llm.Client for tests.
package llmtest

import (
	"context"
	"slices"
	"sync"

	"github.com/rcliao/guardia-ai/internal/model"
)

// Call records one invocation of the fake.
type Call struct {
	Op      string // "analyze", "note" or "chat"
	Record  model.PatientRecord
	History []model.ChatMessage
}

// Fake answers every call with the configured results. Set the exported
// fields before the fake is used concurrently.
type Fake struct {
	Analysis   *model.Analysis
	Note       string
	Reply      string
	AnalyzeErr error
	NoteErr    error
	ChatErr    error

	mu      sync.Mutex
	calls   []Call
	gate    chan struct{}
	started chan string
}

// New returns a fake with a canned analysis, note and chat reply.
func New() *Fake {
	return &Fake{
		Analysis: SampleAnalysis(),
		Note:     "**Anamnesis**: paciente de 54 años con *dolor torácico* opresivo.",
		Reply:    "Considerar score HEART.",
	}
}

// SampleAnalysis returns a well-formed analysis result.
func SampleAnalysis() *model.Analysis {
	return &model.Analysis{
		SyndromeName: "Síndrome coronario agudo",
		TriageLevel:  "Rojo",
		Reasoning:    "Dolor torácico opresivo con factores de riesgo.",
		DifferentialDiagnoses: []string{
			"IAM sin elevación del ST", "Disección aórtica", "TEP",
		},
		ImmediateManagement: []string{
			"ECG en 10 minutos", "Monitorización", "Acceso venoso", "AAS 300 mg", "Troponinas seriadas",
		},
		RecommendedExams: []string{"ECG", "Troponina", "Rx tórax"},
		RedFlags:         []string{"Dolor irradiado a espalda"},
	}
}

// Hold makes subsequent calls block after they start until release is
// called. Each started call sends its op on the returned channel.
func (f *Fake) Hold() (started <-chan string, release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	ch := make(chan string, 16)
	f.gate = gate
	f.started = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gate == gate {
				f.gate = nil
				f.started = nil
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Calls returns the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallCount returns how many calls of the given op were made.
func (f *Fake) CallCount(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *Fake) enter(ctx context.Context, c Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if gate == nil {
		return nil
	}
	started <- c.Op
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fake) Analyze(ctx context.Context, rec model.PatientRecord) (*model.Analysis, error) {
	if err := f.enter(ctx, Call{Op: "analyze", Record: rec.Clone()}); err != nil {
		return nil, err
	}
	if f.AnalyzeErr != nil {
		return nil, f.AnalyzeErr
	}
	return f.Analysis, nil
}

func (f *Fake) GenerateNote(ctx context.Context, rec model.PatientRecord) (string, error) {
	if err := f.enter(ctx, Call{Op: "note", Record: rec.Clone()}); err != nil {
		return "", err
	}
	if f.NoteErr != nil {
		return "", f.NoteErr
	}
	return f.Note, nil
}

func (f *Fake) Chat(ctx context.Context, rec model.PatientRecord, history []model.ChatMessage) (string, error) {
	if err := f.enter(ctx, Call{Op: "chat", Record: rec.Clone(), History: slices.Clone(history)}); err != nil {
		return "", err
	}
	if f.ChatErr != nil {
		return "", f.ChatErr
	}
	return f.Reply, nil
}
