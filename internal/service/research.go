package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/researcher/internal/domain"
	"github.com/xiaot623/gogo/researcher/internal/session"
	"github.com/xiaot623/gogo/researcher/policy"
)

const (
	createdMessage = "Research session initiated. Connect to WebSocket for real-time updates."

	healthCheckTimeout = 5 * time.Second
)

// CreateResearch validates the query, screens it with the policy engine and
// starts a new session.
func (s *Service) CreateResearch(ctx context.Context, query string) (*domain.CreateResearchResponse, error) {
	cleaned, err := session.SanitizeQuery(query, s.config.MaxQueryLength)
	if err != nil {
		return nil, err
	}

	if s.policyEngine != nil {
		decision, reason, err := s.policyEngine.Evaluate(ctx, cleaned)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate query policy: %w", err)
		}
		if decision == policy.DecisionBlock {
			s.logger.Info("query rejected by policy", zap.String("reason", reason))
			if reason == "" {
				reason = "query not allowed"
			}
			return nil, domain.NewValidationError("query", reason)
		}
	}

	sess, err := s.registry.Create(cleaned)
	if err != nil {
		return nil, err
	}
	s.logger.Info("research session created", zap.String("session_id", sess.ID))

	return &domain.CreateResearchResponse{
		SessionID: sess.ID,
		Status:    domain.SessionStatusPending,
		Message:   createdMessage,
	}, nil
}

// GetResearch returns the current snapshot of a live session.
func (s *Service) GetResearch(sessionID string) (*domain.SessionSnapshot, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	snap := sess.Snapshot()
	return &snap, nil
}

// CancelResearch cancels a session's flow. Cancelling a finished session is a no-op.
func (s *Service) CancelResearch(sessionID string) (*domain.SessionSnapshot, error) {
	sess, err := s.registry.Cancel(sessionID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("research session cancel requested", zap.String("session_id", sessionID))
	snap := sess.Snapshot()
	return &snap, nil
}

// Subscribe attaches a viewer to a session. The snapshot and the stream are
// taken atomically.
func (s *Service) Subscribe(sessionID string) (domain.TableSnapshot, *session.Subscription, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return domain.TableSnapshot{}, nil, err
	}
	snap, sub, err := sess.Bus().Subscribe()
	if errors.Is(err, session.ErrBusClosed) {
		return domain.TableSnapshot{}, nil, domain.ErrNotFound
	}
	if err != nil {
		return domain.TableSnapshot{}, nil, err
	}
	return snap, sub, nil
}

// CheckLLM reports whether the LLM gateway answers a model listing.
func (s *Service) CheckLLM(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if _, err := s.llmClient.ListModels(ctx); err != nil {
		return fmt.Errorf("failed to reach llm gateway: %w", err)
	}
	return nil
}

// CheckStore pings the trace store.
func (s *Service) CheckStore(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return s.store.Ping(ctx)
}

// Ready reports whether the service can run research flows.
func (s *Service) Ready() (bool, string) {
	if s.config.IsMock() {
		return true, "mock mode"
	}
	if s.config.LLMAPIKey == "" {
		return false, "LLM API key not configured"
	}
	return true, "ready"
}

// Stats is a point-in-time view of registry usage.
type Stats struct {
	Sessions    int `json:"sessions"`
	Subscribers int `json:"subscribers"`
}

// Stats returns the number of live sessions and attached subscribers.
func (s *Service) Stats() Stats {
	return Stats{
		Sessions:    s.registry.Len(),
		Subscribers: s.registry.SubscriberCount(),
	}
}
