// Package generator turns LLM output into validated reflection content:
// question batches, single-reflection diagnostics and the full history
// diagnostic. Every failure, whether transport or validation, wraps ErrGeneration.
package generator

import (
	"context"
	"fmt"
	"log/slog"

	"soulreflect/pkg/ai"
	"soulreflect/pkg/domain"
)

// Generator is the content boundary the session core depends on.
type Generator interface {
	GenerateQuestions(ctx context.Context, situation string, transcript []domain.QuestionAnswer, mode domain.QuestionMode, lang domain.LanguageCode) ([]domain.QuestionWithOptions, error)
	Diagnose(ctx context.Context, situation string, transcript []domain.QuestionAnswer, lang domain.LanguageCode) (domain.KarmaDiagnostic, error)
	DiagnoseFull(ctx context.Context, history []domain.StoredResult, lang domain.LanguageCode) (domain.FullSoulDiagnostic, error)
}

// Client implements Generator over any structured LLM provider.
type Client struct {
	llm ai.StructuredGenerator
}

// New wraps a provider.
func New(llm ai.StructuredGenerator) (*Client, error) {
	if llm == nil {
		return nil, fmt.Errorf("generator: llm provider required")
	}
	return &Client{llm: llm}, nil
}

// GenerateQuestions returns exactly five questions with five options each.
func (c *Client) GenerateQuestions(ctx context.Context, situation string, transcript []domain.QuestionAnswer, mode domain.QuestionMode, lang domain.LanguageCode) ([]domain.QuestionWithOptions, error) {
	if mode == "" {
		mode = domain.ModeSpecific
	}
	raw, err := c.llm.GenerateJSON(ctx, questionsInstruction, questionsPrompt(situation, transcript, mode, lang), questionsSchema)
	if err != nil {
		return nil, &Error{Op: "questions", Message: "provider call failed", Err: err}
	}
	questions, err := parseQuestions(raw)
	if err != nil {
		slog.Warn("generator: invalid questions response", "mode", mode, "err", err)
		return nil, err
	}
	return questions, nil
}

// Diagnose analyzes one reflection.
func (c *Client) Diagnose(ctx context.Context, situation string, transcript []domain.QuestionAnswer, lang domain.LanguageCode) (domain.KarmaDiagnostic, error) {
	raw, err := c.llm.GenerateJSON(ctx, diagnosisInstruction, diagnosisPrompt(situation, transcript, lang), diagnosisSchema)
	if err != nil {
		return domain.KarmaDiagnostic{}, &Error{Op: "diagnose", Message: "provider call failed", Err: err}
	}
	diag, err := parseDiagnostic(raw)
	if err != nil {
		slog.Warn("generator: invalid diagnosis response", "err", err)
		return domain.KarmaDiagnostic{}, err
	}
	return diag, nil
}

// DiagnoseFull looks for patterns across the whole history.
func (c *Client) DiagnoseFull(ctx context.Context, history []domain.StoredResult, lang domain.LanguageCode) (domain.FullSoulDiagnostic, error) {
	if len(history) == 0 {
		return domain.FullSoulDiagnostic{}, invalid("diagnose full", "history", "empty")
	}
	raw, err := c.llm.GenerateJSON(ctx, fullDiagnosisInstruction, fullDiagnosisPrompt(history, lang), fullDiagnosisSchema)
	if err != nil {
		return domain.FullSoulDiagnostic{}, &Error{Op: "diagnose full", Message: "provider call failed", Err: err}
	}
	full, err := parseFullDiagnostic(raw)
	if err != nil {
		slog.Warn("generator: invalid full diagnosis response", "entries", len(history), "err", err)
		return domain.FullSoulDiagnostic{}, err
	}
	return full, nil
}
