package research

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/researcher/internal/adapter/llm"
	"github.com/xiaot623/gogo/researcher/internal/domain"
)

// LLMSynthesizer writes the final markdown report with the response model.
type LLMSynthesizer struct {
	client llm.LLMClient
	model  string
}

var _ domain.Synthesizer = (*LLMSynthesizer)(nil)

func NewLLMSynthesizer(client llm.LLMClient, model string) *LLMSynthesizer {
	return &LLMSynthesizer{client: client, model: model}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, query, searchSummary string, findings []domain.Finding) (string, error) {
	out, err := llm.Complete(ctx, s.client, s.model, responseTemperature,
		synthesisSystemPrompt, synthesisUserPrompt(query, searchSummary, findings), nil)
	if err != nil {
		return "", fmt.Errorf("failed to synthesize report: %w", err)
	}
	return out, nil
}
