package research

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/researcher/internal/adapter/llm"
	"github.com/xiaot623/gogo/researcher/internal/domain"
)

// LLMExtractor summarizes the sources of one platform with the specialist model.
type LLMExtractor struct {
	client   llm.LLMClient
	model    string
	platform domain.AgentID
}

var _ domain.Extractor = (*LLMExtractor)(nil)

func NewLLMExtractor(client llm.LLMClient, model string, platform domain.AgentID) *LLMExtractor {
	return &LLMExtractor{client: client, model: model, platform: platform}
}

// Extract returns bullet point findings for urls.
func (e *LLMExtractor) Extract(ctx context.Context, query string, urls []string) (string, error) {
	return e.summarize(ctx, query, urls, "")
}

func (e *LLMExtractor) summarize(ctx context.Context, query string, urls []string, pageText string) (string, error) {
	out, err := llm.Complete(ctx, e.client, e.model, specialistTemperature,
		specialistSystemPrompt(e.platform), specialistUserPrompt(query, urls, pageText), nil)
	if err != nil {
		return "", fmt.Errorf("failed to summarize %s sources: %w", e.platform, err)
	}
	return out, nil
}
