// Package repository holds the session trace store.
package repository

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/researcher/internal/domain"
)

// Store records sessions and their published events for as long as the
// session lives in the registry.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.SessionRecord) error
	GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error)
	UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus, errMsg string, completedAt *time.Time) error
	DeleteSession(ctx context.Context, sessionID string) error

	// Event operations
	CreateEvent(ctx context.Context, sessionID string, event domain.Event) error
	GetEvents(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]domain.Event, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
