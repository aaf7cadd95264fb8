package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/xiaot623/gogo/researcher/internal/adapter/llm"
	"github.com/xiaot623/gogo/researcher/internal/domain"
)

// DefaultMaxSourcesPerPlatform caps each platform bucket.
const DefaultMaxSourcesPerPlatform = 3

// LLMSearcher asks the search model for platform URL buckets.
type LLMSearcher struct {
	client      llm.LLMClient
	model       string
	perPlatform int
}

var _ domain.Searcher = (*LLMSearcher)(nil)

func NewLLMSearcher(client llm.LLMClient, model string, perPlatform int) *LLMSearcher {
	if perPlatform <= 0 {
		perPlatform = DefaultMaxSourcesPerPlatform
	}
	return &LLMSearcher{client: client, model: model, perPlatform: perPlatform}
}

// Search returns the discovered sources grouped by extraction agent.
func (s *LLMSearcher) Search(ctx context.Context, query string) (*domain.SearchResult, error) {
	raw, err := llm.Complete(ctx, s.client, s.model, searchTemperature,
		searchSystemPrompt, searchUserPrompt(query, s.perPlatform), llm.JSONObjectFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to search sources: %w", err)
	}

	candidates, err := ParseURLBuckets(raw)
	if err != nil {
		return nil, err
	}

	sources := BucketSources(candidates, s.perPlatform)
	return &domain.SearchResult{
		Summary: SummarizeSources(sources),
		Sources: sources,
	}, nil
}

// ParseURLBuckets extracts every URL string from the model output, repairing
// malformed JSON first. Bucket keys are ignored; URLs are reclassified by host.
func ParseURLBuckets(raw string) ([]string, error) {
	text := stripCodeFence(raw)

	var decoded interface{}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(text)
		if repairErr != nil {
			return nil, fmt.Errorf("failed to parse search output: %w", repairErr)
		}
		if err := json.Unmarshal([]byte(repaired), &decoded); err != nil {
			return nil, fmt.Errorf("failed to parse repaired search output: %w", err)
		}
	}

	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("search output is not a JSON object")
	}

	// walk in platform order so the result is deterministic
	var urls []string
	seen := make(map[string]bool, len(obj))
	for _, id := range domain.ExtractionAgents {
		if v, ok := obj[string(id)]; ok {
			urls = append(urls, collectStrings(v)...)
			seen[string(id)] = true
		}
	}
	for key, v := range obj {
		if !seen[key] {
			urls = append(urls, collectStrings(v)...)
		}
	}
	return urls, nil
}

func collectStrings(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []interface{}:
		var out []string
		for _, item := range val {
			out = append(out, collectStrings(item)...)
		}
		return out
	case map[string]interface{}:
		if u, ok := val["url"].(string); ok {
			return []string{u}
		}
	}
	return nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// ClassifyURL returns the extraction agent responsible for rawURL.
// Only absolute https URLs are accepted.
func ClassifyURL(rawURL string) (domain.AgentID, string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme != "https" || u.Hostname() == "" {
		return "", "", false
	}
	u.Fragment = ""
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	switch {
	case matchHost(host, "instagram.com"):
		return domain.AgentInstagram, u.String(), true
	case matchHost(host, "linkedin.com"):
		return domain.AgentLinkedIn, u.String(), true
	case matchHost(host, "youtube.com"), matchHost(host, "youtu.be"):
		return domain.AgentYouTube, u.String(), true
	case matchHost(host, "x.com"), matchHost(host, "twitter.com"):
		return domain.AgentX, u.String(), true
	}
	return domain.AgentWeb, u.String(), true
}

func matchHost(host, domainName string) bool {
	return host == domainName || strings.HasSuffix(host, "."+domainName)
}

// BucketSources classifies, deduplicates and caps the candidate URLs.
func BucketSources(candidates []string, perPlatform int) map[domain.AgentID][]string {
	sources := make(map[domain.AgentID][]string, len(domain.ExtractionAgents))
	seen := make(map[string]bool)
	for _, raw := range candidates {
		id, normalized, ok := ClassifyURL(raw)
		if !ok || seen[normalized] {
			continue
		}
		seen[normalized] = true
		if len(sources[id]) >= perPlatform {
			continue
		}
		sources[id] = append(sources[id], normalized)
	}
	return sources
}

// SummarizeSources renders the per-platform source counts.
func SummarizeSources(sources map[domain.AgentID][]string) string {
	total := 0
	parts := make([]string, 0, len(domain.ExtractionAgents))
	for _, id := range domain.ExtractionAgents {
		n := len(sources[id])
		total += n
		parts = append(parts, fmt.Sprintf("%s %d", id, n))
	}
	if total == 0 {
		return "No sources found"
	}
	return fmt.Sprintf("Found %d sources (%s)", total, strings.Join(parts, ", "))
}
