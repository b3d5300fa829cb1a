package app_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"soulreflect/pkg/auth"
	"soulreflect/pkg/domain"
	"soulreflect/pkg/generator"
	"soulreflect/pkg/store"
	"soulreflect/services/reflection/internal/app"
	"soulreflect/services/reflection/internal/sessions"
)

type harness struct {
	app      *app.App
	gen      *generator.Fake
	profiles *store.DocumentStore
	google   *auth.SimulatedGoogle
	sessions *sessions.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		gen:      generator.NewFake(),
		profiles: store.NewMemoryStore(),
		google:   auth.NewSimulatedGoogle("", ""),
		sessions: sessions.NewMemoryStore(time.Hour),
	}
	a, err := app.New(app.Config{
		Profiles:    h.profiles,
		Generator:   h.gen,
		Social:      h.google,
		Sessions:    h.sessions,
		CallTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	h.app = a
	return h
}

// must fails the test on error; call it as must(t)(h.app.X(...)).
func must(t *testing.T) func(app.Session, error) app.Session {
	t.Helper()
	return func(s app.Session, err error) app.Session {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return s
	}
}

func expectPhase(t *testing.T, s app.Session, want app.Phase) {
	t.Helper()
	if s.Phase != want {
		t.Fatalf("expected phase %s, got %s (error=%q)", want, s.Phase, s.Error)
	}
	if s.Loading {
		t.Fatalf("expected loading to be cleared in %s", s.Phase)
	}
}

// signedIn walks a fresh session to the dashboard with a password account.
func (h *harness) signedIn(t *testing.T, email string) app.Session {
	t.Helper()
	ctx := context.Background()
	s := must(t)(h.app.Create(ctx))
	s = must(t)(h.app.SelectLanguage(ctx, s.ID, "en"))
	s = must(t)(h.app.ChooseAuthMethod(ctx, s.ID, "password"))
	s = must(t)(h.app.ShowSignUp(ctx, s.ID))
	s = must(t)(h.app.SignUp(ctx, s.ID, "Mira", email, "s3cret"))
	expectPhase(t, s, app.PhaseDashboard)
	return s
}

func (h *harness) answerBatch(t *testing.T, s app.Session) app.Session {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < generator.QuestionsPerBatch; i++ {
		option := s.Questions[len(s.BatchAnswers)].Options[1]
		if i%2 == 1 {
			option = strconv.Itoa(1)
		}
		s = must(t)(h.app.AnswerQuestion(ctx, s.ID, option))
	}
	return s
}

func TestFullReflectionFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s := must(t)(h.app.Create(ctx))
	expectPhase(t, s, app.PhaseLanguageSelect)
	s = must(t)(h.app.SelectLanguage(ctx, s.ID, "de-AT"))
	expectPhase(t, s, app.PhaseAuthChoice)
	if s.Language != "de" {
		t.Fatalf("expected de, got %s", s.Language)
	}
	s = must(t)(h.app.ChooseAuthMethod(ctx, s.ID, "PASSWORD"))
	expectPhase(t, s, app.PhaseAuthInput)
	s = must(t)(h.app.SignUp(ctx, s.ID, "Mira", "mira@example.com", "s3cret"))
	expectPhase(t, s, app.PhaseDashboard)
	if s.User == nil || len(s.User.History) != 0 || s.User.Language != "de" {
		t.Fatalf("unexpected user after sign up: %+v", s.User)
	}

	s = must(t)(h.app.BeginReflection(ctx, s.ID))
	expectPhase(t, s, app.PhaseChoice)
	s = must(t)(h.app.StartReflection(ctx, s.ID, "  I shouted at my brother  "))
	expectPhase(t, s, app.PhaseQuestioning)
	if s.Situation != "I shouted at my brother" || len(s.Questions) != 5 || len(s.Transcript) != 0 {
		t.Fatalf("unexpected questioning state: %+v", s)
	}

	s = h.answerBatch(t, s)
	expectPhase(t, s, app.PhaseResult)
	if len(s.Transcript) != 5 || len(s.BatchAnswers) != 0 || s.Result == nil {
		t.Fatalf("unexpected result state: transcript=%d batch=%d", len(s.Transcript), len(s.BatchAnswers))
	}
	if s.Transcript[0].Answer != "option 1.2" || s.Transcript[1].Answer != "option 2.2" {
		t.Fatalf("text and index answers should both pick the second option: %+v", s.Transcript[:2])
	}
	if len(s.User.History) != 1 || s.User.LastReflectionAt == nil {
		t.Fatalf("expected in-memory history to be updated: %+v", s.User)
	}

	s = must(t)(h.app.Refine(ctx, s.ID, "wide"))
	expectPhase(t, s, app.PhaseQuestioning)
	if h.gen.LastMode() != domain.ModeWide || len(s.Transcript) != 5 || s.Result != nil {
		t.Fatalf("unexpected refine state: mode=%s transcript=%d", h.gen.LastMode(), len(s.Transcript))
	}
	if len(h.gen.LastTranscript()) != 5 {
		t.Fatalf("refine should send the cumulative transcript")
	}
	stored, _, _ := h.profiles.Inspect(ctx, "mira@example.com")
	if len(stored.History) != 1 {
		t.Fatalf("refine must not persist, history=%d", len(stored.History))
	}

	s = h.answerBatch(t, s)
	expectPhase(t, s, app.PhaseResult)
	if len(s.Transcript) != 10 || len(h.gen.LastTranscript()) != 10 {
		t.Fatalf("expected transcript of 10, got %d", len(s.Transcript))
	}
	stored, _, _ = h.profiles.Inspect(ctx, "mira@example.com")
	if len(stored.History) != 2 {
		t.Fatalf("expected two stored reflections, got %d", len(stored.History))
	}

	s = must(t)(h.app.GoBack(ctx, s.ID))
	expectPhase(t, s, app.PhaseDashboard)
	s = must(t)(h.app.RunFullDiagnostic(ctx, s.ID))
	expectPhase(t, s, app.PhaseFullResult)
	if s.FullResult == nil {
		t.Fatalf("expected full result")
	}
	if summary := h.app.Dashboard(s); summary == nil || summary.ReflectionCount != 2 {
		t.Fatalf("unexpected dashboard summary: %+v", summary)
	}
}

func TestValidationNeverCallsCollaborators(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := must(t)(h.app.Create(ctx))
	s = must(t)(h.app.SelectLanguage(ctx, s.ID, "en"))
	s = must(t)(h.app.ChooseAuthMethod(ctx, s.ID, "PASSWORD"))

	s = must(t)(h.app.SignUp(ctx, s.ID, "Mira", " ", "s3cret"))
	expectPhase(t, s, app.PhaseAuthInput)
	if s.Error != app.MsgFieldsRequired {
		t.Fatalf("expected fields error, got %q", s.Error)
	}
	if ok, _ := h.profiles.Exists(ctx, "mira@example.com"); ok {
		t.Fatalf("no profile should be written")
	}

	s = h.signedIn(t, "mira@example.com")
	s = must(t)(h.app.BeginReflection(ctx, s.ID))
	s = must(t)(h.app.StartReflection(ctx, s.ID, "   "))
	expectPhase(t, s, app.PhaseChoice)
	if s.Error != app.MsgSituationRequired {
		t.Fatalf("expected situation error, got %q", s.Error)
	}
	if q, _, _ := h.gen.Calls(); q != 0 {
		t.Fatalf("generator must not be called, got %d calls", q)
	}

	s = must(t)(h.app.StartReflection(ctx, s.ID, "late again"))
	s = must(t)(h.app.AnswerQuestion(ctx, s.ID, "not an option"))
	if s.Error != app.MsgUnknownOption || len(s.BatchAnswers) != 0 {
		t.Fatalf("expected option error, got %q batch=%d", s.Error, len(s.BatchAnswers))
	}
	s = must(t)(h.app.AnswerQuestion(ctx, s.ID, "7"))
	if s.Error != app.MsgUnknownOption {
		t.Fatalf("expected out-of-range index to be rejected, got %q", s.Error)
	}
}

func TestLogInWrongSecret(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signedIn(t, "x@x.com")

	s := must(t)(h.app.Create(ctx))
	s = must(t)(h.app.SelectLanguage(ctx, s.ID, "en"))
	s = must(t)(h.app.ChooseAuthMethod(ctx, s.ID, "PASSWORD"))
	s = must(t)(h.app.LogIn(ctx, s.ID, "x@x.com", "wrong"))
	expectPhase(t, s, app.PhaseAuthInput)
	if s.Error != app.MsgProfileNotFound || s.User != nil {
		t.Fatalf("expected auth failure, got error=%q user=%v", s.Error, s.User)
	}

	s = must(t)(h.app.LogIn(ctx, s.ID, "X@X.com", "s3cret"))
	expectPhase(t, s, app.PhaseDashboard)
	if s.Error != "" || s.User == nil {
		t.Fatalf("expected login to succeed and clear the error: %+v", s)
	}
}

func TestSignUpExistingAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signedIn(t, "mira@example.com")

	s := must(t)(h.app.Create(ctx))
	s = must(t)(h.app.SelectLanguage(ctx, s.ID, "en"))
	s = must(t)(h.app.ChooseAuthMethod(ctx, s.ID, "PASSWORD"))
	s = must(t)(h.app.SignUp(ctx, s.ID, "Other", "MIRA@example.com", "pw"))
	expectPhase(t, s, app.PhaseAuthInput)
	if s.Error != app.MsgAccountExists {
		t.Fatalf("expected account exists, got %q", s.Error)
	}
}

func TestGoogleSignIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.google.Fail = true
	s := must(t)(h.app.Create(ctx))
	s = must(t)(h.app.SelectLanguage(ctx, s.ID, "fr"))
	s = must(t)(h.app.ChooseAuthMethod(ctx, s.ID, "google"))
	expectPhase(t, s, app.PhaseAuthChoice)
	if s.Error != app.MsgSocialSyncFailed {
		t.Fatalf("expected social failure message, got %q", s.Error)
	}

	h.google.Fail = false
	s = must(t)(h.app.ChooseAuthMethod(ctx, s.ID, "google"))
	expectPhase(t, s, app.PhaseDashboard)
	if s.User == nil || s.User.Email != "traveler@gmail.com" || s.User.AuthMethod != domain.AuthGoogle || s.User.Language != "fr" {
		t.Fatalf("unexpected google profile: %+v", s.User)
	}

	again := must(t)(h.app.Create(ctx))
	again = must(t)(h.app.SelectLanguage(ctx, again.ID, "en"))
	again = must(t)(h.app.ChooseAuthMethod(ctx, again.ID, "GOOGLE"))
	expectPhase(t, again, app.PhaseDashboard)
	if again.User.Language != "fr" {
		t.Fatalf("existing profile should be loaded, got language %s", again.User.Language)
	}
}

func TestBiometricLoadsOrCreates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	enroll := func() app.Session {
		s := must(t)(h.app.Create(ctx))
		s = must(t)(h.app.SelectLanguage(ctx, s.ID, "en"))
		s = must(t)(h.app.ChooseAuthMethod(ctx, s.ID, "BIOMETRIC"))
		expectPhase(t, s, app.PhaseBiometricSetup)
		return must(t)(h.app.RegisterBiometric(ctx, s.ID, "Noor", "noor@example.com"))
	}
	first := enroll()
	expectPhase(t, first, app.PhaseDashboard)
	second := enroll()
	expectPhase(t, second, app.PhaseDashboard)
	if second.User.Name != "Noor" || second.User.AuthMethod != domain.AuthBiometric {
		t.Fatalf("unexpected biometric profile: %+v", second.User)
	}

	s := must(t)(h.app.Create(ctx))
	s = must(t)(h.app.SelectLanguage(ctx, s.ID, "en"))
	s = must(t)(h.app.ChooseAuthMethod(ctx, s.ID, "BIOMETRIC"))
	s = must(t)(h.app.RegisterBiometric(ctx, s.ID, "", "noor@example.com"))
	if s.Error != app.MsgFieldsRequired {
		t.Fatalf("expected fields error, got %q", s.Error)
	}
}

func TestStartReflectionFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.signedIn(t, "mira@example.com")
	s = must(t)(h.app.BeginReflection(ctx, s.ID))

	h.gen.SetErrors(errors.New("upstream 503"), nil, nil)
	s = must(t)(h.app.StartReflection(ctx, s.ID, "late again"))
	expectPhase(t, s, app.PhaseChoice)
	if s.Error != app.MsgConnectionLost {
		t.Fatalf("expected connection message, got %q", s.Error)
	}
}

func TestFinishBatchFailureKeepsAnswers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.signedIn(t, "mira@example.com")
	s = must(t)(h.app.BeginReflection(ctx, s.ID))
	s = must(t)(h.app.StartReflection(ctx, s.ID, "late again"))

	h.gen.SetErrors(nil, errors.New("model overloaded"), nil)
	s = h.answerBatch(t, s)
	expectPhase(t, s, app.PhaseQuestioning)
	if s.Error != app.MsgSyncFailed || len(s.BatchAnswers) != 5 || len(s.Transcript) != 0 {
		t.Fatalf("expected unmerged batch after failure: error=%q batch=%d transcript=%d", s.Error, len(s.BatchAnswers), len(s.Transcript))
	}
	if _, err := h.app.AnswerQuestion(ctx, s.ID, "0"); !errors.Is(err, app.ErrIntentNotAllowed) {
		t.Fatalf("a complete batch takes no more answers, got %v", err)
	}

	h.gen.SetErrors(nil, nil, nil)
	s = must(t)(h.app.FinishBatch(ctx, s.ID))
	expectPhase(t, s, app.PhaseResult)
	if len(s.Transcript) != 5 {
		t.Fatalf("retry must not duplicate answers, transcript=%d", len(s.Transcript))
	}
}

func TestGoBackNavigation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	s := must(t)(h.app.Create(ctx))
	if _, err := h.app.GoBack(ctx, s.ID); !errors.Is(err, app.ErrIntentNotAllowed) {
		t.Fatalf("language select is a root, got %v", err)
	}
	s = must(t)(h.app.SelectLanguage(ctx, s.ID, "en"))
	s = must(t)(h.app.GoBack(ctx, s.ID))
	expectPhase(t, s, app.PhaseLanguageSelect)

	s = must(t)(h.app.SelectLanguage(ctx, s.ID, "en"))
	s = must(t)(h.app.ChooseAuthMethod(ctx, s.ID, "PASSWORD"))
	s = must(t)(h.app.ShowSignUp(ctx, s.ID))
	s = must(t)(h.app.GoBack(ctx, s.ID))
	expectPhase(t, s, app.PhaseAuthInput)
	s = must(t)(h.app.GoBack(ctx, s.ID))
	expectPhase(t, s, app.PhaseAuthChoice)
	s = must(t)(h.app.ChooseAuthMethod(ctx, s.ID, "BIOMETRIC"))
	s = must(t)(h.app.GoBack(ctx, s.ID))
	expectPhase(t, s, app.PhaseAuthChoice)

	s = h.signedIn(t, "mira@example.com")
	if _, err := h.app.GoBack(ctx, s.ID); !errors.Is(err, app.ErrIntentNotAllowed) {
		t.Fatalf("dashboard is a root, got %v", err)
	}
	s = must(t)(h.app.BeginReflection(ctx, s.ID))
	s = must(t)(h.app.StartReflection(ctx, s.ID, "late again"))
	s = must(t)(h.app.AnswerQuestion(ctx, s.ID, "0"))
	s = must(t)(h.app.AnswerQuestion(ctx, s.ID, "0"))
	s = must(t)(h.app.GoBack(ctx, s.ID))
	expectPhase(t, s, app.PhaseQuestioning)
	if len(s.BatchAnswers) != 1 {
		t.Fatalf("expected one answer popped, batch=%d", len(s.BatchAnswers))
	}
	s = must(t)(h.app.GoBack(ctx, s.ID))
	s = must(t)(h.app.GoBack(ctx, s.ID))
	expectPhase(t, s, app.PhaseChoice)
	if s.Situation != "late again" || len(s.Questions) != 0 {
		t.Fatalf("expected situation kept and questions dropped: %+v", s)
	}
	s = must(t)(h.app.GoBack(ctx, s.ID))
	expectPhase(t, s, app.PhaseDashboard)
}

func TestResetIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.signedIn(t, "mira@example.com")
	s = must(t)(h.app.BeginReflection(ctx, s.ID))
	s = must(t)(h.app.StartReflection(ctx, s.ID, "late again"))

	first := must(t)(h.app.ResetForNewReflection(ctx, s.ID))
	expectPhase(t, first, app.PhaseChoice)
	if first.Situation != "" || len(first.Questions) != 0 {
		t.Fatalf("expected cleared reflection: %+v", first)
	}
	second := must(t)(h.app.ResetForNewReflection(ctx, s.ID))
	if second.Epoch != first.Epoch || !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Fatalf("second reset should change nothing: epoch %d→%d", first.Epoch, second.Epoch)
	}

	if _, err := h.app.ResetForNewReflection(ctx, must(t)(h.app.Create(ctx)).ID); !errors.Is(err, app.ErrIntentNotAllowed) {
		t.Fatalf("reset before sign-in is not allowed, got %v", err)
	}
}

func waitLoading(t *testing.T, a *app.App, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s, err := a.Get(context.Background(), id)
		if err == nil && s.Loading {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never entered loading")
}

func TestStaleResultIsDiscarded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.signedIn(t, "mira@example.com")
	s = must(t)(h.app.BeginReflection(ctx, s.ID))

	gate := make(chan struct{})
	h.gen.SetGate(gate)
	type outcome struct {
		s   app.Session
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := h.app.StartReflection(ctx, s.ID, "late again")
		done <- outcome{res, err}
	}()
	waitLoading(t, h.app, s.ID)

	if _, err := h.app.StartReflection(ctx, s.ID, "again"); !errors.Is(err, app.ErrBusy) {
		t.Fatalf("expected ErrBusy while in flight, got %v", err)
	}
	if _, err := h.app.BeginReflection(ctx, s.ID); !errors.Is(err, app.ErrBusy) {
		t.Fatalf("expected ErrBusy for guarded intents, got %v", err)
	}

	back := must(t)(h.app.GoBack(ctx, s.ID))
	expectPhase(t, back, app.PhaseDashboard)

	close(gate)
	res := <-done
	if res.err != nil {
		t.Fatalf("start reflection: %v", res.err)
	}
	expectPhase(t, res.s, app.PhaseDashboard)
	if len(res.s.Questions) != 0 || res.s.Situation != "" {
		t.Fatalf("late questions must be discarded: %+v", res.s)
	}
	if q, _, _ := h.gen.Calls(); q != 1 {
		t.Fatalf("expected one generator call, got %d", q)
	}
}

func TestDiscardedDiagnosisIsNotStored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.signedIn(t, "mira@example.com")
	s = must(t)(h.app.BeginReflection(ctx, s.ID))
	s = must(t)(h.app.StartReflection(ctx, s.ID, "late again"))
	for i := 0; i < generator.QuestionsPerBatch-1; i++ {
		s = must(t)(h.app.AnswerQuestion(ctx, s.ID, "0"))
	}

	gate := make(chan struct{})
	h.gen.SetGate(gate)
	done := make(chan app.Session, 1)
	go func() {
		res, err := h.app.AnswerQuestion(ctx, s.ID, "0")
		if err != nil {
			t.Errorf("answer last question: %v", err)
		}
		done <- res
	}()
	waitLoading(t, h.app, s.ID)

	back := must(t)(h.app.GoBack(ctx, s.ID))
	if len(back.BatchAnswers) != generator.QuestionsPerBatch-1 {
		t.Fatalf("expected the last answer to be taken back, batch=%d", len(back.BatchAnswers))
	}
	close(gate)
	res := <-done
	expectPhase(t, res, app.PhaseQuestioning)
	if len(res.User.History) != 0 || res.Result != nil {
		t.Fatalf("discarded diagnosis leaked into the session: %+v", res)
	}
	stored, _, err := h.profiles.Inspect(ctx, "mira@example.com")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(stored.History) != 0 {
		t.Fatalf("discarded diagnosis was stored, history=%d", len(stored.History))
	}

	s = must(t)(h.app.AnswerQuestion(ctx, s.ID, "1"))
	expectPhase(t, s, app.PhaseResult)
	stored, _, _ = h.profiles.Inspect(ctx, "mira@example.com")
	if len(stored.History) != 1 || len(s.User.History) != 1 {
		t.Fatalf("expected exactly one stored reflection, store=%d session=%d", len(stored.History), len(s.User.History))
	}
}

func TestLeftoverLoadingFlagIsCleared(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := must(t)(h.app.Create(ctx))

	stuck := s.Clone()
	stuck.Loading = true
	if err := h.sessions.Save(ctx, stuck); err != nil {
		t.Fatalf("save stuck session: %v", err)
	}
	s = must(t)(h.app.SelectLanguage(ctx, s.ID, "en"))
	expectPhase(t, s, app.PhaseAuthChoice)

	stuck = s.Clone()
	stuck.Loading = true
	if err := h.sessions.Save(ctx, stuck); err != nil {
		t.Fatalf("save stuck session: %v", err)
	}
	s = must(t)(h.app.ChooseAuthMethod(ctx, s.ID, "nope"))
	if s.Loading || s.Error != app.MsgUnknownMethod {
		t.Fatalf("rejected input should still clear loading: loading=%v error=%q", s.Loading, s.Error)
	}
	got := must(t)(h.app.Get(ctx, s.ID))
	if got.Loading {
		t.Fatalf("stored snapshot still loading")
	}
}

func TestFullDiagnostic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.signedIn(t, "mira@example.com")

	s = must(t)(h.app.RunFullDiagnostic(ctx, s.ID))
	expectPhase(t, s, app.PhaseDashboard)
	if _, _, full := h.gen.Calls(); full != 0 {
		t.Fatalf("empty history must not call the generator")
	}

	s = must(t)(h.app.BeginReflection(ctx, s.ID))
	s = must(t)(h.app.StartReflection(ctx, s.ID, "late again"))
	s = h.answerBatch(t, s)
	s = must(t)(h.app.GoBack(ctx, s.ID))

	h.gen.SetErrors(nil, nil, errors.New("boom"))
	s = must(t)(h.app.RunFullDiagnostic(ctx, s.ID))
	expectPhase(t, s, app.PhaseDashboard)
	if s.Error != app.MsgPatternFailed {
		t.Fatalf("expected pattern failure, got %q", s.Error)
	}
	h.gen.SetErrors(nil, nil, nil)
	s = must(t)(h.app.RunFullDiagnostic(ctx, s.ID))
	expectPhase(t, s, app.PhaseFullResult)
	s = must(t)(h.app.GoBack(ctx, s.ID))
	if s.FullResult != nil {
		t.Fatalf("full result is shown once")
	}
}

func TestViewStoredResultAndSignOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.signedIn(t, "mira@example.com")
	s = must(t)(h.app.BeginReflection(ctx, s.ID))
	s = must(t)(h.app.StartReflection(ctx, s.ID, "late again"))
	s = h.answerBatch(t, s)
	s = must(t)(h.app.GoBack(ctx, s.ID))

	s = must(t)(h.app.ViewStoredResult(ctx, s.ID, "nope"))
	if s.Error != app.MsgUnknownResult {
		t.Fatalf("expected unknown result error, got %q", s.Error)
	}
	entry := s.User.History[0]
	s = must(t)(h.app.ViewStoredResult(ctx, s.ID, entry.ID))
	expectPhase(t, s, app.PhaseResult)
	if s.Situation != "late again" || len(s.Transcript) != 0 || s.Result == nil {
		t.Fatalf("unexpected stored result view: %+v", s)
	}

	s = must(t)(h.app.SignOut(ctx, s.ID))
	expectPhase(t, s, app.PhaseAuthChoice)
	if s.User != nil || s.Result != nil {
		t.Fatalf("sign out must clear the user: %+v", s)
	}
	if _, err := h.app.SignOut(ctx, s.ID); !errors.Is(err, app.ErrIntentNotAllowed) {
		t.Fatalf("sign out twice is not allowed, got %v", err)
	}
}

func TestIntentNotAllowed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.signedIn(t, "mira@example.com")
	calls := []struct {
		name string
		run  func() (app.Session, error)
	}{
		{"answer", func() (app.Session, error) { return h.app.AnswerQuestion(ctx, s.ID, "0") }},
		{"refine", func() (app.Session, error) { return h.app.Refine(ctx, s.ID, "wide") }},
		{"finish", func() (app.Session, error) { return h.app.FinishBatch(ctx, s.ID) }},
		{"language", func() (app.Session, error) { return h.app.SelectLanguage(ctx, s.ID, "en") }},
		{"signup", func() (app.Session, error) { return h.app.SignUp(ctx, s.ID, "a", "b", "c") }},
		{"start", func() (app.Session, error) { return h.app.StartReflection(ctx, s.ID, "x") }},
	}
	for _, c := range calls {
		got, err := c.run()
		if !errors.Is(err, app.ErrIntentNotAllowed) {
			t.Fatalf("%s: expected ErrIntentNotAllowed, got %v", c.name, err)
		}
		if got.Phase != app.PhaseDashboard {
			t.Fatalf("%s: phase changed to %s", c.name, got.Phase)
		}
	}
	if _, err := h.app.Get(ctx, "missing"); !errors.Is(err, app.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := error(&app.Error{Kind: app.KindSync, Message: app.MsgSyncFailed, Err: cause})
	if app.KindOf(err) != app.KindSync || !errors.Is(err, cause) {
		t.Fatalf("unexpected error classification for %v", err)
	}
	if app.KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors have no kind")
	}
}
