package domain

// Event is an immutable record of one state change in a session.
// Seq and Ts are assigned by the event bus at publish time.
type Event struct {
	Type          EventType              `json:"type"`
	Seq           uint64                 `json:"seq,omitempty"`
	Ts            int64                  `json:"ts,omitempty"` // Unix milliseconds
	AgentID       AgentID                `json:"agent_id,omitempty"`
	Status        AgentStatus            `json:"status,omitempty"`
	Message       string                 `json:"message,omitempty"`
	Result        string                 `json:"result,omitempty"`
	Query         string                 `json:"query,omitempty"`
	Agents        map[AgentID]AgentState `json:"agents,omitempty"`
	SessionStatus SessionStatus          `json:"session_status,omitempty"`
}

// NewAgentUpdate builds an agent_update event.
func NewAgentUpdate(id AgentID, status AgentStatus, message string) Event {
	return Event{
		Type:    EventTypeAgentUpdate,
		AgentID: id,
		Status:  status,
		Message: message,
	}
}

// NewInitialState builds the initial_state event sent to a new subscriber.
func NewInitialState(snap TableSnapshot) Event {
	return Event{
		Type:          EventTypeInitialState,
		Agents:        snap.Agents,
		SessionStatus: snap.Status,
		Result:        snap.Result,
		Message:       snap.Error,
	}
}
