package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/researcher/internal/domain"
	"github.com/xiaot623/gogo/researcher/internal/session"
)

// publish applies ev to the session and broadcasts it, then appends it to the trace.
func (s *Service) publish(sess *session.Session, ev domain.Event) error {
	published, err := sess.Bus().Publish(ev)
	if err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("session_id", sess.ID),
			zap.String("type", string(ev.Type)),
			zap.String("agent_id", string(ev.AgentID)),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish %s: %w", ev.Type, err)
	}

	if err := s.recordEvent(sess.ID, published); err != nil {
		s.logger.Warn("failed to record event",
			zap.String("session_id", sess.ID),
			zap.Uint64("seq", published.Seq),
			zap.Error(err),
		)
	}
	if published.Type.IsTerminal() {
		s.recordTerminal(sess)
	}
	return nil
}

func (s *Service) recordEvent(sessionID string, ev domain.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	return s.store.CreateEvent(ctx, sessionID, ev)
}

func (s *Service) recordTerminal(sess *session.Session) {
	snap := sess.Table().Snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.UpdateSessionStatus(ctx, sess.ID, snap.Status, snap.Error, snap.TerminalAt); err != nil {
		s.logger.Warn("failed to record session status", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

func (s *Service) onSessionCreated(sess *session.Session) {
	s.metrics.SessionCreated()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	rec := &domain.SessionRecord{
		SessionID: sess.ID,
		Query:     sess.Query,
		Status:    domain.SessionStatusPending,
		CreatedAt: sess.CreatedAt,
	}
	if err := s.store.CreateSession(ctx, rec); err != nil {
		s.logger.Warn("failed to record session", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// GetEvents returns the recorded events of a live session after afterSeq.
func (s *Service) GetEvents(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]domain.Event, error) {
	if _, err := s.registry.Get(sessionID); err != nil {
		return nil, err
	}
	events, err := s.store.GetEvents(ctx, sessionID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}
