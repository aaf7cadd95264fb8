package session

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/researcher/internal/domain"
)

// Session is one research request together with its state table and event bus.
type Session struct {
	ID        string
	Query     string
	CreatedAt time.Time

	table  *Table
	bus    *Bus
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(parent context.Context, id, query string, now func() time.Time, bufferSize int, observer Observer) *Session {
	ctx, cancel := context.WithCancel(parent)
	table := NewTable()
	bus := NewBus(table, bufferSize, observer)
	bus.now = now
	return &Session{
		ID:        id,
		Query:     query,
		CreatedAt: now(),
		table:     table,
		bus:       bus,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// New creates a detached session. The registry is the usual way to get one;
// New exists for running a flow outside of it.
func New(ctx context.Context, id, query string, bufferSize int) *Session {
	return newSession(ctx, id, query, time.Now, bufferSize, nil)
}

func (s *Session) Table() *Table { return s.table }

func (s *Session) Bus() *Bus { return s.bus }

// Context is cancelled when the session is cancelled or evicted.
func (s *Session) Context() context.Context { return s.ctx }

// Cancel stops the research flow. Already finished sessions are unaffected.
func (s *Session) Cancel() { s.cancel() }

// Done is closed once the runner goroutine has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Snapshot returns the externally visible view of the session.
func (s *Session) Snapshot() domain.SessionSnapshot {
	t := s.table.Snapshot()
	snap := domain.SessionSnapshot{
		SessionID:   s.ID,
		Query:       s.Query,
		Status:      t.Status,
		Agents:      t.Agents,
		Error:       t.Error,
		CreatedAt:   s.CreatedAt,
		CompletedAt: t.TerminalAt,
		Subscribers: s.bus.SubscriberCount(),
	}
	if t.Status == domain.SessionStatusCompleted {
		result := t.Result
		snap.Result = &result
	}
	return snap
}
