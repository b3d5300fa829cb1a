package generator

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"soulreflect/pkg/domain"
)

// Models sometimes wrap JSON in markdown fences even when asked not to.
var (
	fenceRe     = regexp.MustCompile("(?s)^(?:`{3}|~{3})[^\\n]*\\n(.*?)(?:`{3}|~{3})\\s*$")
	openFenceRe = regexp.MustCompile("^(?:`{3}|~{3})[^\\n]*\\n")
)

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := openFenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// decodeJSON unmarshals raw model output into out, allowing one repair pass
// for syntactically broken JSON (trailing commas, unquoted keys, truncation).
func decodeJSON(op, raw string, out any) error {
	raw = stripFences(raw)
	if raw == "" {
		return invalid(op, "response", "empty")
	}
	err := json.Unmarshal([]byte(raw), out)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return &Error{Op: op, Field: "response", Message: "malformed JSON", Err: err}
	}
	repaired, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return &Error{Op: op, Field: "response", Message: "malformed JSON", Err: err}
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return &Error{Op: op, Field: "response", Message: "malformed JSON after repair", Err: err}
	}
	return nil
}

type rawQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// parseQuestions accepts either {"questions":[...]} or a bare array.
func parseQuestions(raw string) ([]domain.QuestionWithOptions, error) {
	const op = "questions"
	var items []rawQuestion
	trimmed := stripFences(raw)
	if strings.HasPrefix(trimmed, "[") {
		if err := decodeJSON(op, trimmed, &items); err != nil {
			return nil, err
		}
	} else {
		var wrapper struct {
			Questions []rawQuestion `json:"questions"`
		}
		if err := decodeJSON(op, trimmed, &wrapper); err != nil {
			return nil, err
		}
		items = wrapper.Questions
	}
	if len(items) != QuestionsPerBatch {
		return nil, invalid(op, "questions", "want %d questions, got %d", QuestionsPerBatch, len(items))
	}
	out := make([]domain.QuestionWithOptions, 0, len(items))
	for i, item := range items {
		q := strings.TrimSpace(item.Question)
		if q == "" {
			return nil, invalid(op, "questions", "question %d is empty", i)
		}
		if len(item.Options) != OptionsPerQuestion {
			return nil, invalid(op, "options", "question %d: want %d options, got %d", i, OptionsPerQuestion, len(item.Options))
		}
		opts := make([]string, 0, len(item.Options))
		for j, o := range item.Options {
			o = strings.TrimSpace(o)
			if o == "" {
				return nil, invalid(op, "options", "question %d option %d is empty", i, j)
			}
			opts = append(opts, o)
		}
		out = append(out, domain.QuestionWithOptions{Question: q, Options: opts})
	}
	return out, nil
}

type rawScores struct {
	IntentionClarity *float64 `json:"intentionClarity"`
	ActionIntegrity  *float64 `json:"actionIntegrity"`
	PositiveImpact   *float64 `json:"positiveImpact"`
	LessonDepth      *float64 `json:"lessonDepth"`
	SpiritualGrowth  *float64 `json:"spiritualGrowth"`
}

type rawDiagnostic struct {
	SimpleSummary  string     `json:"simpleSummary"`
	Remedy         string     `json:"remedy"`
	Wisdom         string     `json:"wisdom"`
	Intent         string     `json:"intent"`
	Action         string     `json:"action"`
	Ripening       string     `json:"ripening"`
	SoulAdvice     string     `json:"soulAdvice"`
	OverallBalance string     `json:"overallBalance"`
	Scores         *rawScores `json:"scores"`
}

func parseDiagnostic(raw string) (domain.KarmaDiagnostic, error) {
	const op = "diagnose"
	var d rawDiagnostic
	if err := decodeJSON(op, raw, &d); err != nil {
		return domain.KarmaDiagnostic{}, err
	}
	texts := []struct {
		field string
		value *string
	}{
		{"simpleSummary", &d.SimpleSummary},
		{"remedy", &d.Remedy},
		{"wisdom", &d.Wisdom},
		{"intent", &d.Intent},
		{"action", &d.Action},
		{"ripening", &d.Ripening},
		{"soulAdvice", &d.SoulAdvice},
	}
	for _, tf := range texts {
		*tf.value = strings.TrimSpace(*tf.value)
		if *tf.value == "" {
			return domain.KarmaDiagnostic{}, invalid(op, tf.field, "missing")
		}
	}
	balance := domain.Balance(strings.TrimSpace(d.OverallBalance))
	if !balance.Valid() {
		return domain.KarmaDiagnostic{}, invalid(op, "overallBalance", "unknown value %q", d.OverallBalance)
	}
	if d.Scores == nil {
		return domain.KarmaDiagnostic{}, invalid(op, "scores", "missing")
	}
	scores := []struct {
		field string
		value *float64
	}{
		{"intentionClarity", d.Scores.IntentionClarity},
		{"actionIntegrity", d.Scores.ActionIntegrity},
		{"positiveImpact", d.Scores.PositiveImpact},
		{"lessonDepth", d.Scores.LessonDepth},
		{"spiritualGrowth", d.Scores.SpiritualGrowth},
	}
	for _, sf := range scores {
		if sf.value == nil {
			return domain.KarmaDiagnostic{}, invalid(op, "scores."+sf.field, "missing")
		}
		if *sf.value < domain.MinScore || *sf.value > domain.MaxScore {
			return domain.KarmaDiagnostic{}, invalid(op, "scores."+sf.field, "%v outside [0,10]", *sf.value)
		}
	}
	return domain.KarmaDiagnostic{
		SimpleSummary:  d.SimpleSummary,
		Remedy:         d.Remedy,
		Wisdom:         d.Wisdom,
		Intent:         d.Intent,
		Action:         d.Action,
		Ripening:       d.Ripening,
		SoulAdvice:     d.SoulAdvice,
		OverallBalance: balance,
		Scores: domain.KarmaScores{
			IntentionClarity: *d.Scores.IntentionClarity,
			ActionIntegrity:  *d.Scores.ActionIntegrity,
			PositiveImpact:   *d.Scores.PositiveImpact,
			LessonDepth:      *d.Scores.LessonDepth,
			SpiritualGrowth:  *d.Scores.SpiritualGrowth,
		},
	}, nil
}

func parseFullDiagnostic(raw string) (domain.FullSoulDiagnostic, error) {
	const op = "diagnose full"
	var d domain.FullSoulDiagnostic
	if err := decodeJSON(op, raw, &d); err != nil {
		return domain.FullSoulDiagnostic{}, err
	}
	fields := []struct {
		field string
		value *string
	}{
		{"deepInsights", &d.DeepInsights},
		{"harshTruth", &d.HarshTruth},
		{"hardInstructions", &d.HardInstructions},
		{"divineConnection", &d.DivineConnection},
	}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if *f.value == "" {
			return domain.FullSoulDiagnostic{}, invalid(op, f.field, "missing")
		}
	}
	return d, nil
}
