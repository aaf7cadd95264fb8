package domain

import "context"

// Searcher discovers sources for a query, grouped by platform.
type Searcher interface {
	Search(ctx context.Context, query string) (*SearchResult, error)
}

// Extractor produces text findings for one platform from its sources.
type Extractor interface {
	Extract(ctx context.Context, query string, urls []string) (string, error)
}

// Synthesizer writes the final report from the search summary and findings.
type Synthesizer interface {
	Synthesize(ctx context.Context, query, searchSummary string, findings []Finding) (string, error)
}

// Toolkit bundles the collaborators used by one research flow.
// Implementations must honor ctx cancellation.
type Toolkit struct {
	Searcher    Searcher
	Extractors  map[AgentID]Extractor
	Synthesizer Synthesizer
}
