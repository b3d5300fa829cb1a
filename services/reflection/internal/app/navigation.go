package app

import (
	"context"
	"strconv"
	"strings"

	"soulreflect/pkg/domain"
)

// SelectLanguage picks the display language. Unknown tags fall back to English.
func (a *App) SelectLanguage(ctx context.Context, id, code string) (Session, error) {
	return a.apply(ctx, id, func(s Session) (Session, error) {
		return selectLanguage(s, code)
	})
}

func selectLanguage(s Session, code string) (Session, error) {
	if err := requirePhase(s, PhaseLanguageSelect); err != nil {
		return s, err
	}
	out := s.Clone()
	out.Language = domain.MatchLanguage(code)
	out.Phase = PhaseAuthChoice
	if out.User != nil {
		out.Phase = PhaseDashboard
	}
	return out, nil
}

// ShowSignUp switches the password form to account creation.
func (a *App) ShowSignUp(ctx context.Context, id string) (Session, error) {
	return a.apply(ctx, id, func(s Session) (Session, error) {
		if err := requirePhase(s, PhaseAuthInput); err != nil {
			return s, err
		}
		out := s.Clone()
		out.Phase = PhaseSignUp
		return out, nil
	})
}

// BeginReflection opens a blank reflection form from the dashboard.
func (a *App) BeginReflection(ctx context.Context, id string) (Session, error) {
	return a.apply(ctx, id, func(s Session) (Session, error) {
		if err := requirePhase(s, PhaseDashboard); err != nil {
			return s, err
		}
		out := s.Clone()
		out.clearReflection()
		out.Phase = PhaseChoice
		return out, nil
	})
}

// ViewStoredResult reopens a past diagnostic from the profile history.
func (a *App) ViewStoredResult(ctx context.Context, id, resultID string) (Session, error) {
	return a.apply(ctx, id, func(s Session) (Session, error) {
		return viewStoredResult(s, resultID)
	})
}

func viewStoredResult(s Session, resultID string) (Session, error) {
	if err := requirePhase(s, PhaseDashboard); err != nil {
		return s, err
	}
	if s.User == nil {
		return s, ErrIntentNotAllowed
	}
	entry, ok := s.User.FindResult(strings.TrimSpace(resultID))
	if !ok {
		return s, validationError(MsgUnknownResult)
	}
	out := s.Clone()
	out.clearReflection()
	diag := entry.Diagnostic
	out.Result = &diag
	out.Situation = entry.Situation
	out.Phase = PhaseResult
	return out, nil
}

// AnswerQuestion records the chosen option for the current question, given
// either as the option text or as its zero-based index. The answer that
// completes the batch triggers FinishBatch.
func (a *App) AnswerQuestion(ctx context.Context, id, option string) (Session, error) {
	release, ok := a.tryBegin(id)
	if !ok {
		return Session{}, ErrBusy
	}
	defer release()
	s, err := a.applyHeld(ctx, id, func(s Session) (Session, error) {
		return answerQuestion(s, option)
	})
	if err != nil || !s.BatchComplete() || s.Error != "" {
		return s, err
	}
	return a.finishHeld(ctx, id)
}

func answerQuestion(s Session, option string) (Session, error) {
	if err := requirePhase(s, PhaseQuestioning); err != nil {
		return s, err
	}
	q, _, ok := s.CurrentQuestion()
	if !ok {
		return s, ErrIntentNotAllowed
	}
	answer, ok := matchOption(q, option)
	if !ok {
		return s, validationError(MsgUnknownOption)
	}
	out := s.Clone()
	out.BatchAnswers = append(out.BatchAnswers, domain.QuestionAnswer{Question: q.Question, Answer: answer})
	return out, nil
}

func matchOption(q domain.QuestionWithOptions, option string) (string, bool) {
	option = strings.TrimSpace(option)
	if option == "" {
		return "", false
	}
	for _, candidate := range q.Options {
		if candidate == option {
			return candidate, true
		}
	}
	if idx, err := strconv.Atoi(option); err == nil && idx >= 0 && idx < len(q.Options) {
		return q.Options[idx], true
	}
	return "", false
}

// GoBack navigates one step back. Inside a batch it first takes back the last
// answer. Any in-flight collaborator result is discarded.
func (a *App) GoBack(ctx context.Context, id string) (Session, error) {
	return a.navigate(ctx, id, goBack)
}

func goBack(s Session) (Session, error) {
	target, ok := s.Phase.backTarget()
	if !ok {
		return s, ErrIntentNotAllowed
	}
	out := s.Clone()
	out.Error = ""
	switch s.Phase {
	case PhaseQuestioning:
		if n := len(out.BatchAnswers); n > 0 {
			out.BatchAnswers = out.BatchAnswers[:n-1]
			out.invalidate()
			return out, nil
		}
		out.Questions = nil
		out.Transcript = nil
	case PhaseFullResult:
		out.FullResult = nil
	}
	out.Phase = target
	out.invalidate()
	return out, nil
}

// ResetForNewReflection clears all reflection state and opens a blank form.
// Resetting an already blank form changes nothing.
func (a *App) ResetForNewReflection(ctx context.Context, id string) (Session, error) {
	return a.navigate(ctx, id, resetForNewReflection)
}

func resetForNewReflection(s Session) (Session, error) {
	if err := requirePhase(s, PhaseDashboard, PhaseChoice, PhaseQuestioning, PhaseResult, PhaseFullResult); err != nil {
		return s, err
	}
	if s.Phase == PhaseChoice && !s.Loading && s.reflectionCleared() {
		return s, errNoop
	}
	out := s.Clone()
	out.clearReflection()
	out.Phase = PhaseChoice
	out.invalidate()
	return out, nil
}

// SignOut detaches the profile and returns to the sign-in choice.
func (a *App) SignOut(ctx context.Context, id string) (Session, error) {
	return a.navigate(ctx, id, signOut)
}

func signOut(s Session) (Session, error) {
	if s.User == nil {
		return s, ErrIntentNotAllowed
	}
	out := s.Clone()
	out.User = nil
	out.clearReflection()
	out.Phase = PhaseAuthChoice
	out.invalidate()
	return out, nil
}
