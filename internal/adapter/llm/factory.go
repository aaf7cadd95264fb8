package llm

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// ModeMock selects the offline mock client.
	ModeMock = "mock"
	// ModeLive selects the HTTP client.
	ModeLive = "live"

	mockLatency = 400 * time.Millisecond
)

// NewLLMClient creates an LLM client for mode.
// If mode is "mock" (any case), returns a MockClient; otherwise returns a real Client.
func NewLLMClient(mode, baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) LLMClient {
	if strings.EqualFold(mode, ModeMock) {
		if logger != nil {
			logger.Info("research mode is mock, using mock LLM client")
		}
		return NewMockClient(mockLatency)
	}

	return NewClient(baseURL, apiKey, timeout)
}
