// Package llm provides an abstraction for LLM API clients.
package llm

import "context"

// LLMClient defines the interface for LLM API operations.
type LLMClient interface {
	// CreateChatCompletion sends a chat completion request (non-streaming).
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)

	// ListModels retrieves the list of available models.
	ListModels(ctx context.Context) ([]Model, error)
}

// Ensure Client implements LLMClient interface.
var _ LLMClient = (*Client)(nil)

// JSONObjectFormat asks the model for a single JSON object.
var JSONObjectFormat = map[string]interface{}{"type": "json_object"}

// Complete sends a system and user prompt and returns the first choice's content.
func Complete(ctx context.Context, client LLMClient, model string, temperature float64, system, user string, format map[string]interface{}) (string, error) {
	req := &ChatCompletionRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    &temperature,
		ResponseFormat: format,
	}
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content()
}
