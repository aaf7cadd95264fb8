package repository

import (
	"context"
	"testing"
	"time"

	"github.com/xiaot623/gogo/researcher/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created := time.Now().UTC().Truncate(time.Second)
	if err := store.CreateSession(ctx, &domain.SessionRecord{
		SessionID: "s1",
		Query:     "AI trends",
		Status:    domain.SessionStatusPending,
		CreatedAt: created,
	}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil || got.Query != "AI trends" || got.Status != domain.SessionStatusPending {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.CompletedAt != nil {
		t.Fatalf("expected no completed_at, got %v", got.CompletedAt)
	}

	done := created.Add(time.Minute)
	if err := store.UpdateSessionStatus(ctx, "s1", domain.SessionStatusError, "search failed", &done); err != nil {
		t.Fatalf("UpdateSessionStatus failed: %v", err)
	}
	got, err = store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != domain.SessionStatusError || got.Error != "search failed" {
		t.Fatalf("unexpected session after update: %+v", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Fatalf("unexpected completed_at: %v", got.CompletedAt)
	}

	missing, err := store.GetSession(ctx, "nope")
	if err != nil {
		t.Fatalf("GetSession(missing) failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing session")
	}
}

func TestSQLiteStoreEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateSession(ctx, &domain.SessionRecord{SessionID: "s1", Query: "q", Status: domain.SessionStatusRunning, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	events := []domain.Event{
		{Type: domain.EventTypeFlowStarted, Seq: 1, Ts: 100},
		{Type: domain.EventTypeAgentUpdate, Seq: 2, Ts: 101, AgentID: domain.AgentSearch, Status: domain.AgentStatusRunning, Message: "Searching for relevant sources..."},
		{Type: domain.EventTypeAgentUpdate, Seq: 3, Ts: 102, AgentID: domain.AgentSearch, Status: domain.AgentStatusDone},
		{Type: domain.EventTypeResearchComplete, Seq: 4, Ts: 103, Result: "# Report"},
	}
	for _, ev := range events {
		if err := store.CreateEvent(ctx, "s1", ev); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
	}

	if err := store.CreateEvent(ctx, "s1", events[0]); err == nil {
		t.Fatalf("expected duplicate seq to be rejected")
	}

	got, err := store.GetEvents(ctx, "s1", 0, 0)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d", len(got))
	}
	if got[1].AgentID != domain.AgentSearch || got[1].Message != "Searching for relevant sources..." {
		t.Fatalf("unexpected event: %+v", got[1])
	}
	if got[3].Result != "# Report" {
		t.Fatalf("expected result to round-trip, got %+v", got[3])
	}

	page, err := store.GetEvents(ctx, "s1", 2, 1)
	if err != nil {
		t.Fatalf("GetEvents(after) failed: %v", err)
	}
	if len(page) != 1 || page[0].Seq != 3 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestSQLiteStoreDeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.CreateSession(ctx, &domain.SessionRecord{SessionID: "s1", Query: "q", Status: domain.SessionStatusRunning, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if err := store.CreateEvent(ctx, "s1", domain.Event{Type: domain.EventTypeFlowStarted, Seq: 1}); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	events, err := store.GetEvents(ctx, "s1", 0, 10)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected events to be deleted, got %d", len(events))
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}
