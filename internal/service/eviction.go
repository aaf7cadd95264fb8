package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/researcher/internal/session"
)

func (s *Service) onSessionEvicted(sess *session.Session) {
	s.metrics.SessionEvicted()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	fields := []zap.Field{zap.String("session_id", sess.ID)}
	if rec, err := s.store.GetSession(ctx, sess.ID); err == nil && rec != nil {
		fields = append(fields, zap.String("status", string(rec.Status)))
		if rec.CompletedAt != nil {
			fields = append(fields, zap.Duration("lifetime", rec.CompletedAt.Sub(rec.CreatedAt)))
		}
	}
	s.logger.Info("session evicted", fields...)

	if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
		s.logger.Warn("failed to delete session trace", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// RunSweeper evicts expired sessions every SweepInterval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context) {
	s.logger.Info("session sweeper started",
		zap.Duration("interval", s.config.SweepInterval),
		zap.Duration("ttl", s.config.SessionTTL),
		zap.Duration("max_age", s.config.SessionMaxAge),
	)
	s.registry.RunSweeper(ctx, s.config.SweepInterval)
}

// Shutdown cancels every running flow and waits for them to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.registry.Shutdown(ctx)
}
