package ai

import (
	"context"
	"fmt"
	"strings"
)

// Provider names accepted by NewStructuredGenerator.
const (
	ProviderGemini       = "gemini"
	ProviderGenAI        = "genai"
	ProviderOpenAI       = "openai"
	ProviderAnthropic    = "anthropic"
	ProviderOpenAICompat = "openai-compat"
	ProviderOllama       = "ollama"
)

// ProviderConfig selects and configures one LLM backend.
type ProviderConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// NewStructuredGenerator builds the generator named by cfg.Provider.
func NewStructuredGenerator(ctx context.Context, cfg ProviderConfig) (StructuredGenerator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderGemini
	}
	switch provider {
	case ProviderGemini:
		client, err := NewGeminiClient(cfg.APIKey, cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(cfg.Model) == "" {
			return nil, fmt.Errorf("gemini generation model required")
		}
		return NewGeminiGenerator(client, cfg.Model), nil
	case ProviderGenAI:
		return NewGenAIGenerator(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
	case ProviderOpenAI:
		return NewOpenAIGenerator(cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature)
	case ProviderAnthropic:
		return NewAnthropicGenerator(cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature)
	case ProviderOpenAICompat:
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("openai-compat base url required")
		}
		return NewOpenAICompatGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case ProviderOllama:
		return NewOllamaGenerator(cfg.BaseURL, cfg.Model, cfg.MaxTokens, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", provider)
	}
}
