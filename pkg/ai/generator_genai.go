package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAIGenerator uses the official google.golang.org/genai SDK.
type GenAIGenerator struct {
	client      *genai.Client
	model       string
	temperature *float32
}

// NewGenAIGenerator connects to the Gemini API backend of the SDK.
func NewGenAIGenerator(ctx context.Context, apiKey, model string, temperature float64) (*GenAIGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("genai api key required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, fmt.Errorf("genai generation model required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init genai client: %w", err)
	}
	g := &GenAIGenerator{client: client, model: normalizeModel(model)}
	if temperature > 0 {
		t := float32(temperature)
		g.temperature = &t
	}
	return g, nil
}

// GenerateText implements TextGenerator.
func (g *GenAIGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.generate(ctx, g.config(systemPrompt), userPrompt)
}

// GenerateJSON implements StructuredGenerator via ResponseSchema.
func (g *GenAIGenerator) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, schema *Schema) (string, error) {
	cfg := g.config(systemPrompt)
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = schema.genaiSchema()
	return g.generate(ctx, cfg, userPrompt)
}

func (g *GenAIGenerator) config(systemPrompt string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{Temperature: g.temperature}
	if strings.TrimSpace(systemPrompt) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	return cfg
}

func (g *GenAIGenerator) generate(ctx context.Context, cfg *genai.GenerateContentConfig, userPrompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(userPrompt), cfg)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from genai")
	}
	return text, nil
}
