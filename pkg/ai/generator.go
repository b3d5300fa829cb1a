package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt.
// Every LLM provider implements this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// StructuredGenerator asks the model for a single JSON document shaped by schema.
// Providers that support constrained decoding pass the schema to the API;
// the rest embed it in the system prompt. The returned text is the raw model
// output and still needs validating by the caller.
type StructuredGenerator interface {
	TextGenerator
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, schema *Schema) (string, error)
}
