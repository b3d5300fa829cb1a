package app

import (
	"context"
	"errors"
	"strings"

	"soulreflect/pkg/domain"
)

// StartReflection asks for the first batch of questions about the situation.
func (a *App) StartReflection(ctx context.Context, id, text string) (Session, error) {
	situation := strings.TrimSpace(text)
	return a.collaborate(ctx, id, "reflection.start", func(s Session) error {
		if err := requirePhase(s, PhaseChoice); err != nil {
			return err
		}
		if situation == "" {
			return validationError(MsgSituationRequired)
		}
		return nil
	}, func(ctx context.Context, s Session) (commit, *Error) {
		questions, err := a.gen.GenerateQuestions(ctx, situation, nil, domain.ModeSpecific, s.Language)
		if err != nil {
			return nil, generationError(MsgConnectionLost, err)
		}
		return replace(func(s Session) Session {
			s.clearReflection()
			s.Situation = situation
			s.Questions = questions
			s.Phase = PhaseQuestioning
			return s
		}), nil
	})
}

// FinishBatch folds the completed batch into the transcript, diagnoses it and
// appends the result to the profile history. The history is only written when
// the result is committed. On failure the batch stays unmerged so a retry does
// not count the answers twice.
func (a *App) FinishBatch(ctx context.Context, id string) (Session, error) {
	release, ok := a.tryBegin(id)
	if !ok {
		return Session{}, ErrBusy
	}
	defer release()
	return a.finishHeld(ctx, id)
}

func (a *App) finishHeld(ctx context.Context, id string) (Session, error) {
	return a.collaborateHeld(ctx, id, "reflection.finish", func(s Session) error {
		if err := requirePhase(s, PhaseQuestioning); err != nil {
			return err
		}
		if !s.BatchComplete() {
			return ErrIntentNotAllowed
		}
		if s.User == nil {
			return errNoop
		}
		return nil
	}, func(ctx context.Context, s Session) (commit, *Error) {
		transcript := append(append([]domain.QuestionAnswer(nil), s.Transcript...), s.BatchAnswers...)
		diag, err := a.gen.Diagnose(ctx, s.Situation, transcript, s.Language)
		if err != nil {
			return nil, generationError(MsgSyncFailed, err)
		}
		return func(ctx context.Context, s Session) (Session, *Error) {
			if s.User == nil {
				return s, syncError(MsgSyncFailed, errors.New("profile detached before commit"))
			}
			stored, err := a.profiles.AppendReflection(ctx, s.User.Email, s.Situation, diag)
			if err != nil {
				return s, syncError(MsgSyncFailed, err)
			}
			u := s.User.AppendResult(stored)
			s.User = &u
			s.Transcript = transcript
			s.BatchAnswers = nil
			s.Questions = nil
			s.Result = &diag
			s.Phase = PhaseResult
			return s, nil
		}, nil
	})
}

// Refine asks for another batch on the same situation. "specific" deepens the
// topic, "wide" broadens to character patterns. Nothing is persisted.
func (a *App) Refine(ctx context.Context, id, mode string) (Session, error) {
	m, ok := domain.ParseQuestionMode(mode)
	return a.collaborate(ctx, id, "reflection.refine", func(s Session) error {
		if err := requirePhase(s, PhaseResult); err != nil {
			return err
		}
		if !ok {
			return validationError(MsgUnknownMode)
		}
		return nil
	}, func(ctx context.Context, s Session) (commit, *Error) {
		questions, err := a.gen.GenerateQuestions(ctx, s.Situation, s.Transcript, m, s.Language)
		if err != nil {
			return nil, generationError(MsgRefineFailed, err)
		}
		return replace(func(s Session) Session {
			s.Questions = questions
			s.BatchAnswers = nil
			s.Result = nil
			s.Phase = PhaseQuestioning
			return s
		}), nil
	})
}

// RunFullDiagnostic analyzes the whole history. Without history it does nothing.
func (a *App) RunFullDiagnostic(ctx context.Context, id string) (Session, error) {
	return a.collaborate(ctx, id, "diagnostic.full", func(s Session) error {
		if err := requirePhase(s, PhaseDashboard); err != nil {
			return err
		}
		if s.User == nil || len(s.User.History) == 0 {
			return errNoop
		}
		return nil
	}, func(ctx context.Context, s Session) (commit, *Error) {
		full, err := a.gen.DiagnoseFull(ctx, s.User.History, s.Language)
		if err != nil {
			return nil, generationError(MsgPatternFailed, err)
		}
		return replace(func(s Session) Session {
			s.FullResult = &full
			s.Phase = PhaseFullResult
			return s
		}), nil
	})
}
