package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOllamaBaseURL = "http://127.0.0.1:11434"

// OllamaGenerator talks to a local Ollama server through /api/chat. Requests
// are bounded by the caller's context; the generator sets no timeout itself.
type OllamaGenerator struct {
	baseURL    string
	model      string
	options    ollamaOptions
	httpClient *http.Client
}

// NewOllamaGenerator builds an Ollama generator. An empty baseURL means the
// default local daemon; maxTokens and temperature map to num_predict and
// temperature and are omitted when zero.
func NewOllamaGenerator(baseURL, model string, maxTokens int, temperature float64) *OllamaGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &OllamaGenerator{
		baseURL:    baseURL,
		model:      strings.TrimSpace(model),
		options:    ollamaOptions{NumPredict: maxTokens, Temperature: temperature},
		httpClient: &http.Client{},
	}
}

// GenerateText implements TextGenerator.
func (g *OllamaGenerator) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return g.chat(ctx, systemPrompt, userPrompt, nil)
}

// GenerateJSON passes the schema as Ollama's structured output "format".
func (g *OllamaGenerator) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, schema *Schema) (string, error) {
	var format any = "json"
	if schema != nil {
		format = schema.JSONSchema()
	}
	return g.chat(ctx, systemPrompt, userPrompt, format)
}

func (g *OllamaGenerator) chat(ctx context.Context, systemPrompt, userPrompt string, format any) (string, error) {
	if g.model == "" {
		return "", fmt.Errorf("ollama generation model required")
	}
	messages := make([]ollamaMessage, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: userPrompt})

	req := ollamaChatRequest{
		Model:    g.model,
		Messages: messages,
		Format:   format,
	}
	if g.options != (ollamaOptions{}) {
		opts := g.options
		req.Options = &opts
	}
	var resp ollamaChatResponse
	if err := g.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty response from ollama")
	}
	return content, nil
}

func (g *OllamaGenerator) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("ollama api error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("ollama api error: %s", resp.Status)
	}
	return json.Unmarshal(raw, out)
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   any             `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}
