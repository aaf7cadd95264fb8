// Package research implements the search, extraction and synthesis agents on
// top of an OpenAI-compatible LLM gateway.
package research

import (
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/researcher/internal/adapter/llm"
	"github.com/xiaot623/gogo/researcher/internal/domain"
)

// Config selects the models used by each agent role.
type Config struct {
	SearchModel           string
	SpecialistModel       string
	ResponseModel         string
	MaxSourcesPerPlatform int
	FetchTimeout          time.Duration
	// Offline disables fetching web pages; the web agent summarizes URLs only.
	Offline bool
}

// NewToolkit wires one agent per role.
func NewToolkit(client llm.LLMClient, cfg Config, logger *zap.Logger) domain.Toolkit {
	extractors := make(map[domain.AgentID]domain.Extractor, len(domain.ExtractionAgents))
	for _, id := range domain.ExtractionAgents {
		extractors[id] = NewLLMExtractor(client, cfg.SpecialistModel, id)
	}
	if !cfg.Offline {
		extractors[domain.AgentWeb] = NewWebExtractor(client, cfg.SpecialistModel, cfg.FetchTimeout, logger)
	}

	return domain.Toolkit{
		Searcher:    NewLLMSearcher(client, cfg.SearchModel, cfg.MaxSourcesPerPlatform),
		Extractors:  extractors,
		Synthesizer: NewLLMSynthesizer(client, cfg.ResponseModel),
	}
}
