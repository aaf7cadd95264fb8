// Package domain defines the core domain models for the research orchestrator.
package domain

// SessionStatus represents the lifecycle status of a research session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusError     SessionStatus = "error"
)

// IsTerminal reports whether no further session transitions are possible.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusError
}

// CanTransition reports whether the session may move from s to next.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	switch s {
	case SessionStatusPending:
		return next == SessionStatusRunning || next == SessionStatusError
	case SessionStatusRunning:
		return next == SessionStatusCompleted || next == SessionStatusError
	}
	return false
}

// AgentStatus represents the status of one agent within a session.
type AgentStatus string

const (
	AgentStatusWaiting AgentStatus = "waiting"
	AgentStatusRunning AgentStatus = "running"
	AgentStatusDone    AgentStatus = "done"
	AgentStatusError   AgentStatus = "error"
)

// Valid reports whether s is one of the known agent statuses.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusWaiting, AgentStatusRunning, AgentStatusDone, AgentStatusError:
		return true
	}
	return false
}

// IsTerminal reports whether the agent has finished.
func (s AgentStatus) IsTerminal() bool {
	return s == AgentStatusDone || s == AgentStatusError
}

// CanTransition reports whether an agent may move from s to next.
// Statuses only move forward: waiting -> running -> {done, error}.
// waiting -> error is allowed so cancelled agents can be closed out.
func (s AgentStatus) CanTransition(next AgentStatus) bool {
	switch s {
	case AgentStatusWaiting:
		return next == AgentStatusRunning || next == AgentStatusError
	case AgentStatusRunning:
		return next == AgentStatusDone || next == AgentStatusError
	}
	return false
}

// AgentID identifies one of the fixed agent roles of a session.
type AgentID string

const (
	AgentSearch    AgentID = "search"
	AgentInstagram AgentID = "instagram"
	AgentLinkedIn  AgentID = "linkedin"
	AgentYouTube   AgentID = "youtube"
	AgentX         AgentID = "x"
	AgentWeb       AgentID = "web"
	AgentSynthesis AgentID = "synthesis"
)

// AgentRole groups agents by their position in the research flow.
type AgentRole string

const (
	RoleSearch     AgentRole = "search"
	RoleExtraction AgentRole = "extraction"
	RoleSynthesis  AgentRole = "synthesis"
)

// ExtractionAgents lists the platform extraction agents in report order.
var ExtractionAgents = []AgentID{AgentInstagram, AgentLinkedIn, AgentYouTube, AgentX, AgentWeb}

// AllAgents returns every agent of a session in flow order.
func AllAgents() []AgentID {
	ids := make([]AgentID, 0, len(ExtractionAgents)+2)
	ids = append(ids, AgentSearch)
	ids = append(ids, ExtractionAgents...)
	ids = append(ids, AgentSynthesis)
	return ids
}

// Role returns the role of the agent, or "" for unknown ids.
func (a AgentID) Role() AgentRole {
	switch a {
	case AgentSearch:
		return RoleSearch
	case AgentSynthesis:
		return RoleSynthesis
	case AgentInstagram, AgentLinkedIn, AgentYouTube, AgentX, AgentWeb:
		return RoleExtraction
	}
	return ""
}

// EventType represents the type of a session event.
type EventType string

const (
	EventTypeInitialState     EventType = "initial_state"
	EventTypeAgentUpdate      EventType = "agent_update"
	EventTypeFlowStarted      EventType = "flow_started"
	EventTypeResearchComplete EventType = "research_complete"
	EventTypeError            EventType = "error"
	EventTypeHeartbeat        EventType = "heartbeat"
)

// IsTerminal reports whether the event ends a session's stream.
func (t EventType) IsTerminal() bool {
	return t == EventTypeResearchComplete || t == EventTypeError
}
