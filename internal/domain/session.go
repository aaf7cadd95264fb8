package domain

import "time"

// AgentState is the current state of one agent.
type AgentState struct {
	Platform string      `json:"platform"`
	Status   AgentStatus `json:"status"`
	Message  string      `json:"message,omitempty"`
}

// TableSnapshot is a consistent copy of a session's agent state table.
type TableSnapshot struct {
	Status     SessionStatus          `json:"status"`
	Agents     map[AgentID]AgentState `json:"agents"`
	Result     string                 `json:"result,omitempty"`
	Error      string                 `json:"error,omitempty"`
	TerminalAt *time.Time             `json:"completed_at,omitempty"`
}

// SessionSnapshot is the externally visible view of a research session.
type SessionSnapshot struct {
	SessionID   string                 `json:"session_id"`
	Query       string                 `json:"query"`
	Status      SessionStatus          `json:"status"`
	Agents      map[AgentID]AgentState `json:"agents"`
	Result      *string                `json:"result"`
	Error       string                 `json:"error,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Subscribers int                    `json:"subscribers"`
}

// SearchResult is the output of the search agent.
type SearchResult struct {
	Summary string
	Sources map[AgentID][]string
}

// SourceCount returns the total number of sources across platforms.
func (r *SearchResult) SourceCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, urls := range r.Sources {
		n += len(urls)
	}
	return n
}

// Finding is the text produced by one successful extraction agent.
type Finding struct {
	AgentID AgentID
	Content string
}

// SessionRecord is the trace store row of a session.
type SessionRecord struct {
	SessionID   string        `json:"session_id"`
	Query       string        `json:"query"`
	Status      SessionStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}
