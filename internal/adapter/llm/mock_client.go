package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// MockClient is an offline LLMClient used in mock mode and tests.
// JSON requests get URL buckets for every platform; everything else gets a
// canned markdown answer echoing the prompt.
type MockClient struct {
	// Latency is waited before every answer, honoring ctx.
	Latency time.Duration
}

// NewMockClient creates a new mock LLM client.
func NewMockClient(latency time.Duration) *MockClient {
	return &MockClient{Latency: latency}
}

// Ensure MockClient implements LLMClient interface.
var _ LLMClient = (*MockClient)(nil)

// CreateChatCompletion returns a mock response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if m.Latency > 0 {
		timer := time.NewTimer(m.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	content := m.generateMockResponse(req)

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		Usage: &Usage{
			PromptTokens:     m.estimateTokens(req),
			CompletionTokens: len(content) / 4,
			TotalTokens:      m.estimateTokens(req) + len(content)/4,
		},
	}, nil
}

// ListModels returns a list of mock models.
func (m *MockClient) ListModels(ctx context.Context) ([]Model, error) {
	return []Model{
		{ID: "mock-search", Object: "model", Created: time.Now().Unix(), OwnedBy: "mock"},
		{ID: "mock-specialist", Object: "model", Created: time.Now().Unix(), OwnedBy: "mock"},
		{ID: "mock-response", Object: "model", Created: time.Now().Unix(), OwnedBy: "mock"},
	}, nil
}

func (m *MockClient) generateMockResponse(req *ChatCompletionRequest) string {
	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	if req.ResponseFormat != nil {
		return mockBuckets(lastUserMessage)
	}

	if lastUserMessage == "" {
		return "[MOCK] This is a mock response from the LLM client."
	}
	return fmt.Sprintf("## [MOCK] Findings\n\n- Received: %q\n- This is a mock response.", truncate(lastUserMessage, 100))
}

func mockBuckets(prompt string) string {
	// prompts quote the query; use it when present
	if start := strings.IndexByte(prompt, '"'); start >= 0 {
		if end := strings.IndexByte(prompt[start+1:], '"'); end >= 0 {
			prompt = prompt[start+1 : start+1+end]
		}
	}
	slug := url.PathEscape(strings.Join(strings.Fields(strings.ToLower(truncate(prompt, 40))), "-"))
	buckets := map[string][]string{
		"instagram": {"https://www.instagram.com/explore/tags/" + slug},
		"linkedin":  {"https://www.linkedin.com/pulse/" + slug},
		"youtube":   {"https://www.youtube.com/results?search_query=" + slug},
		"x":         {"https://x.com/search?q=" + slug},
		"web":       {"https://example.com/articles/" + slug},
	}
	out, _ := json.Marshal(buckets)
	return string(out)
}

func (m *MockClient) estimateTokens(req *ChatCompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	return total
}

// truncate truncates a string to the given number of runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
