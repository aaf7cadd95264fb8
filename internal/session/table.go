package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/xiaot623/gogo/researcher/internal/domain"
)

// Table is the agent state table of one session: the source of truth for
// snapshots. It is written only through Bus.Publish.
type Table struct {
	mu         sync.RWMutex
	status     domain.SessionStatus
	agents     map[domain.AgentID]domain.AgentState
	result     string
	errMsg     string
	terminalAt time.Time
}

// NewTable creates a table with the session pending and every agent waiting.
func NewTable() *Table {
	agents := make(map[domain.AgentID]domain.AgentState)
	for _, id := range domain.AllAgents() {
		agents[id] = domain.AgentState{
			Platform: string(id),
			Status:   domain.AgentStatusWaiting,
		}
	}
	return &Table{
		status: domain.SessionStatusPending,
		agents: agents,
	}
}

// Apply validates ev against the current state and applies it atomically.
func (t *Table) Apply(ev domain.Event, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case domain.EventTypeFlowStarted:
		return t.setStatus(domain.SessionStatusRunning, now)

	case domain.EventTypeAgentUpdate:
		if t.status.IsTerminal() {
			return fmt.Errorf("%w: session already %s", domain.ErrInvalidTransition, t.status)
		}
		state, ok := t.agents[ev.AgentID]
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownAgent, ev.AgentID)
		}
		if !state.Status.CanTransition(ev.Status) {
			return fmt.Errorf("%w: agent %s %s -> %s", domain.ErrInvalidTransition, ev.AgentID, state.Status, ev.Status)
		}
		state.Status = ev.Status
		state.Message = ev.Message
		t.agents[ev.AgentID] = state
		return nil

	case domain.EventTypeResearchComplete:
		if err := t.setStatus(domain.SessionStatusCompleted, now); err != nil {
			return err
		}
		t.result = ev.Result
		return nil

	case domain.EventTypeError:
		if err := t.setStatus(domain.SessionStatusError, now); err != nil {
			return err
		}
		t.errMsg = ev.Message
		return nil
	}

	return fmt.Errorf("event type %q cannot be applied to the state table", ev.Type)
}

func (t *Table) setStatus(next domain.SessionStatus, now time.Time) error {
	if !t.status.CanTransition(next) {
		return fmt.Errorf("%w: session %s -> %s", domain.ErrInvalidTransition, t.status, next)
	}
	t.status = next
	if next.IsTerminal() {
		t.terminalAt = now
	}
	return nil
}

// Snapshot returns a deep copy of the table.
func (t *Table) Snapshot() domain.TableSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	agents := make(map[domain.AgentID]domain.AgentState, len(t.agents))
	for id, st := range t.agents {
		agents[id] = st
	}
	snap := domain.TableSnapshot{
		Status: t.status,
		Agents: agents,
		Result: t.result,
		Error:  t.errMsg,
	}
	if !t.terminalAt.IsZero() {
		at := t.terminalAt
		snap.TerminalAt = &at
	}
	return snap
}

// agent returns the state of a single agent.
func (t *Table) agent(id domain.AgentID) (domain.AgentState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.agents[id]
	return st, ok
}

// Status returns the session status and, once terminal, when it got there.
func (t *Table) Status() (domain.SessionStatus, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status, t.terminalAt
}
