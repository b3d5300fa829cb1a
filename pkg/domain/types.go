package domain

import (
	"strconv"
	"strings"
	"time"
)

type AuthMethod string

const (
	AuthPassword  AuthMethod = "PASSWORD"
	AuthBiometric AuthMethod = "BIOMETRIC"
	AuthGoogle    AuthMethod = "GOOGLE"
)

// ParseAuthMethod accepts any casing of a known method.
func ParseAuthMethod(raw string) (AuthMethod, bool) {
	switch AuthMethod(strings.ToUpper(strings.TrimSpace(raw))) {
	case AuthPassword:
		return AuthPassword, true
	case AuthBiometric:
		return AuthBiometric, true
	case AuthGoogle:
		return AuthGoogle, true
	default:
		return "", false
	}
}

type Balance string

const (
	BalancePositive     Balance = "Positive"
	BalanceNeutral      Balance = "Neutral"
	BalanceConstructive Balance = "Constructive"
)

// Valid reports whether b is one of the three known balances.
func (b Balance) Valid() bool {
	switch b {
	case BalancePositive, BalanceNeutral, BalanceConstructive:
		return true
	}
	return false
}

type QuestionMode string

const (
	ModeSpecific QuestionMode = "specific"
	ModeWide     QuestionMode = "wide"
)

// ParseQuestionMode accepts "specific" or "wide" in any casing.
func ParseQuestionMode(raw string) (QuestionMode, bool) {
	switch QuestionMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeSpecific:
		return ModeSpecific, true
	case ModeWide:
		return ModeWide, true
	default:
		return "", false
	}
}

// Score bounds for every KarmaScores field.
const (
	MinScore = 0.0
	MaxScore = 10.0
)

type KarmaScores struct {
	IntentionClarity float64 `json:"intentionClarity"`
	ActionIntegrity  float64 `json:"actionIntegrity"`
	PositiveImpact   float64 `json:"positiveImpact"`
	LessonDepth      float64 `json:"lessonDepth"`
	SpiritualGrowth  float64 `json:"spiritualGrowth"`
}

type KarmaDiagnostic struct {
	SimpleSummary  string      `json:"simpleSummary"`
	Remedy         string      `json:"remedy"`
	Wisdom         string      `json:"wisdom"`
	Intent         string      `json:"intent"`
	Action         string      `json:"action"`
	Ripening       string      `json:"ripening"`
	SoulAdvice     string      `json:"soulAdvice"`
	OverallBalance Balance     `json:"overallBalance"`
	Scores         KarmaScores `json:"scores"`
}

// FullSoulDiagnostic is shown once and never persisted.
type FullSoulDiagnostic struct {
	DeepInsights     string `json:"deepInsights"`
	HarshTruth       string `json:"harshTruth"`
	HardInstructions string `json:"hardInstructions"`
	DivineConnection string `json:"divineConnection"`
}

type QuestionWithOptions struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// StoredResult is one persisted reflection. Entries are never edited.
type StoredResult struct {
	ID         string          `json:"id"`
	CreatedAt  time.Time       `json:"date"`
	Situation  string          `json:"situation"`
	Diagnostic KarmaDiagnostic `json:"diagnostic"`
}

type UserProfile struct {
	Name             string         `json:"name"`
	Email            string         `json:"email"`
	Language         LanguageCode   `json:"language"`
	AuthMethod       AuthMethod     `json:"authMethod"`
	LastReflectionAt *time.Time     `json:"lastReflectionDate,omitempty"`
	History          []StoredResult `json:"history"`
}

// Clone returns a deep copy so callers can hand profiles across goroutines.
func (p UserProfile) Clone() UserProfile {
	out := p
	if p.LastReflectionAt != nil {
		t := *p.LastReflectionAt
		out.LastReflectionAt = &t
	}
	out.History = make([]StoredResult, len(p.History))
	copy(out.History, p.History)
	return out
}

// FindResult looks up a history entry by id.
func (p UserProfile) FindResult(id string) (StoredResult, bool) {
	for _, r := range p.History {
		if r.ID == id {
			return r, true
		}
	}
	return StoredResult{}, false
}

// NormalizeEmail is the key form used by every profile store.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewStoredResult builds the next history entry for the profile. The id is the
// creation time in Unix milliseconds, bumped past the newest existing id so two
// reflections saved within the same millisecond stay distinct.
func NewStoredResult(history []StoredResult, now time.Time, situation string, diag KarmaDiagnostic) StoredResult {
	ms := now.UnixMilli()
	if n := len(history); n > 0 {
		if last, err := strconv.ParseInt(history[n-1].ID, 10, 64); err == nil && last >= ms {
			ms = last + 1
		}
	}
	return StoredResult{
		ID:         strconv.FormatInt(ms, 10),
		CreatedAt:  now.UTC(),
		Situation:  situation,
		Diagnostic: diag,
	}
}

// AppendResult returns a copy of the profile with the result appended and the
// last reflection time updated.
func (p UserProfile) AppendResult(r StoredResult) UserProfile {
	out := p.Clone()
	out.History = append(out.History, r)
	at := r.CreatedAt
	out.LastReflectionAt = &at
	return out
}
