package generator

import (
	"context"
	"fmt"
	"sync"

	"soulreflect/pkg/domain"
)

// Fake is a deterministic Generator for tests and offline runs. Setting one of
// the *Err fields makes the matching call fail; Gate, when non-nil, blocks
// every call until a value is received from it or ctx ends.
type Fake struct {
	mu sync.Mutex

	QuestionsErr error
	DiagnoseErr  error
	FullErr      error
	Gate         chan struct{}

	questionCalls  int
	diagnoseCalls  int
	fullCalls      int
	lastMode       domain.QuestionMode
	lastTranscript []domain.QuestionAnswer
}

// NewFake returns a Fake that always succeeds.
func NewFake() *Fake { return &Fake{} }

func (f *Fake) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.Gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return &Error{Op: "fake", Err: ctx.Err()}
	}
}

// SetGate installs or clears the blocking gate.
func (f *Fake) SetGate(gate chan struct{}) {
	f.mu.Lock()
	f.Gate = gate
	f.mu.Unlock()
}

// SetErrors replaces the configured failures.
func (f *Fake) SetErrors(questions, diagnose, full error) {
	f.mu.Lock()
	f.QuestionsErr, f.DiagnoseErr, f.FullErr = questions, diagnose, full
	f.mu.Unlock()
}

// GenerateQuestions implements Generator.
func (f *Fake) GenerateQuestions(ctx context.Context, situation string, transcript []domain.QuestionAnswer, mode domain.QuestionMode, lang domain.LanguageCode) ([]domain.QuestionWithOptions, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.questionCalls++
	f.lastMode = mode
	f.lastTranscript = append([]domain.QuestionAnswer(nil), transcript...)
	round := f.questionCalls
	failure := f.QuestionsErr
	f.mu.Unlock()
	if failure != nil {
		return nil, &Error{Op: "questions", Err: failure}
	}
	out := make([]domain.QuestionWithOptions, 0, QuestionsPerBatch)
	for i := 0; i < QuestionsPerBatch; i++ {
		q := domain.QuestionWithOptions{Question: fmt.Sprintf("[%s] round %d (%s) question %d about %q", lang, round, mode, i+1, situation)}
		for j := 0; j < OptionsPerQuestion; j++ {
			q.Options = append(q.Options, fmt.Sprintf("option %d.%d", i+1, j+1))
		}
		out = append(out, q)
	}
	return out, nil
}

// Diagnose implements Generator.
func (f *Fake) Diagnose(ctx context.Context, situation string, transcript []domain.QuestionAnswer, lang domain.LanguageCode) (domain.KarmaDiagnostic, error) {
	if err := f.wait(ctx); err != nil {
		return domain.KarmaDiagnostic{}, err
	}
	f.mu.Lock()
	f.diagnoseCalls++
	f.lastTranscript = append([]domain.QuestionAnswer(nil), transcript...)
	failure := f.DiagnoseErr
	f.mu.Unlock()
	if failure != nil {
		return domain.KarmaDiagnostic{}, &Error{Op: "diagnose", Err: failure}
	}
	growth := float64(len(transcript) % 11)
	return domain.KarmaDiagnostic{
		SimpleSummary:  fmt.Sprintf("[%s] %s", lang, situation),
		Remedy:         "Take one honest step today.",
		Wisdom:         "What we plant, we harvest.",
		Intent:         "A wish to be understood.",
		Action:         "Words spoken in haste.",
		Ripening:       "Distance that can be repaired.",
		SoulAdvice:     "Be patient with yourself.",
		OverallBalance: domain.BalanceConstructive,
		Scores: domain.KarmaScores{
			IntentionClarity: 6,
			ActionIntegrity:  5,
			PositiveImpact:   4,
			LessonDepth:      7,
			SpiritualGrowth:  growth,
		},
	}, nil
}

// DiagnoseFull implements Generator.
func (f *Fake) DiagnoseFull(ctx context.Context, history []domain.StoredResult, lang domain.LanguageCode) (domain.FullSoulDiagnostic, error) {
	if err := f.wait(ctx); err != nil {
		return domain.FullSoulDiagnostic{}, err
	}
	f.mu.Lock()
	f.fullCalls++
	failure := f.FullErr
	f.mu.Unlock()
	if failure != nil {
		return domain.FullSoulDiagnostic{}, &Error{Op: "diagnose full", Err: failure}
	}
	return domain.FullSoulDiagnostic{
		DeepInsights:     fmt.Sprintf("[%s] %d reflections show a pattern.", lang, len(history)),
		HarshTruth:       "You already know what to change.",
		HardInstructions: "Forgive first.",
		DivineConnection: "Sit in silence each morning.",
	}, nil
}

// Calls reports how many times each operation ran.
func (f *Fake) Calls() (questions, diagnose, full int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.questionCalls, f.diagnoseCalls, f.fullCalls
}

// LastMode is the mode of the most recent question request.
func (f *Fake) LastMode() domain.QuestionMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMode
}

// LastTranscript is the transcript passed to the most recent call.
func (f *Fake) LastTranscript() []domain.QuestionAnswer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.QuestionAnswer(nil), f.lastTranscript...)
}
