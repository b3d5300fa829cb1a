package app

import (
	"time"

	"soulreflect/pkg/domain"
)

// Session is one immutable snapshot of a client's journey. Intents never
// mutate a Session they are given; they return a new one.
type Session struct {
	ID           string                       `json:"id"`
	Epoch        uint64                       `json:"epoch"`
	Loading      bool                         `json:"loading"`
	Phase        Phase                        `json:"phase"`
	Language     domain.LanguageCode          `json:"language"`
	User         *domain.UserProfile          `json:"user,omitempty"`
	Situation    string                       `json:"situation"`
	Transcript   []domain.QuestionAnswer      `json:"transcript"`
	Questions    []domain.QuestionWithOptions `json:"questions"`
	BatchAnswers []domain.QuestionAnswer      `json:"batchAnswers"`
	Result       *domain.KarmaDiagnostic      `json:"result,omitempty"`
	FullResult   *domain.FullSoulDiagnostic   `json:"fullResult,omitempty"`
	Error        string                       `json:"error,omitempty"`
	UpdatedAt    time.Time                    `json:"updatedAt"`
}

// NewSession is the initial snapshot: unauthenticated, choosing a language.
func NewSession(id string, now time.Time) Session {
	return Session{
		ID:        id,
		Phase:     PhaseLanguageSelect,
		Language:  domain.DefaultLanguage,
		UpdatedAt: now.UTC(),
	}
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	out := s
	if s.User != nil {
		u := s.User.Clone()
		out.User = &u
	}
	out.Transcript = append([]domain.QuestionAnswer(nil), s.Transcript...)
	out.BatchAnswers = append([]domain.QuestionAnswer(nil), s.BatchAnswers...)
	if s.Questions != nil {
		out.Questions = make([]domain.QuestionWithOptions, len(s.Questions))
		for i, q := range s.Questions {
			out.Questions[i] = domain.QuestionWithOptions{
				Question: q.Question,
				Options:  append([]string(nil), q.Options...),
			}
		}
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	if s.FullResult != nil {
		f := *s.FullResult
		out.FullResult = &f
	}
	return out
}

// Authenticated reports whether a profile is attached.
func (s Session) Authenticated() bool { return s.User != nil }

// CurrentQuestion is the unanswered question of the batch, if any.
func (s Session) CurrentQuestion() (domain.QuestionWithOptions, int, bool) {
	idx := len(s.BatchAnswers)
	if idx >= len(s.Questions) {
		return domain.QuestionWithOptions{}, idx, false
	}
	return s.Questions[idx], idx, true
}

// BatchComplete reports whether every question of the batch has an answer.
func (s Session) BatchComplete() bool {
	return len(s.Questions) > 0 && len(s.BatchAnswers) == len(s.Questions)
}

func (s Session) withError(err *Error) Session {
	out := s.Clone()
	out.Error = err.Message
	out.Loading = false
	return out
}

func (s *Session) clearReflection() {
	s.Situation = ""
	s.Transcript = nil
	s.Questions = nil
	s.BatchAnswers = nil
	s.Result = nil
	s.FullResult = nil
	s.Error = ""
}

func (s Session) reflectionCleared() bool {
	return s.Situation == "" &&
		len(s.Transcript) == 0 &&
		len(s.Questions) == 0 &&
		len(s.BatchAnswers) == 0 &&
		s.Result == nil &&
		s.FullResult == nil &&
		s.Error == ""
}

// invalidate marks the snapshot as a new timeline so any in-flight
// collaborator result started before it is discarded on commit.
func (s *Session) invalidate() {
	s.Epoch++
	s.Loading = false
}
