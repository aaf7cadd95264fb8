package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/researcher/internal/domain"
)

// Runner drives the research flow of one session until it is terminal.
type Runner interface {
	Run(ctx context.Context, sess *Session)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, sess *Session)

func (f RunnerFunc) Run(ctx context.Context, sess *Session) { f(ctx, sess) }

// RegistryConfig holds the registry limits. OnCreate is called after a session
// is registered and before its flow starts; OnEvict after it has been removed.
type RegistryConfig struct {
	TTL              time.Duration
	MaxAge           time.Duration
	SubscriberBuffer int
	MaxQueryLength   int
	Observer         Observer
	OnCreate         func(*Session)
	OnEvict          func(*Session)
	Now              func() time.Time
}

// Registry owns every live session of the process.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg    RegistryConfig
	runner Runner
	logger *zap.Logger
	base   context.Context
	wg     sync.WaitGroup
}

// NewRegistry creates a registry. Sessions inherit ctx, so cancelling it stops every flow.
func NewRegistry(ctx context.Context, cfg RegistryConfig, runner Runner, logger *zap.Logger) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = DefaultMaxQueryLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		runner:   runner,
		logger:   logger,
		base:     ctx,
	}
}

// Create sanitizes query, registers a new session and starts its flow.
// It returns as soon as the session is stored.
func (r *Registry) Create(query string) (*Session, error) {
	clean, err := SanitizeQuery(query, r.cfg.MaxQueryLength)
	if err != nil {
		return nil, err
	}

	sess := newSession(r.base, uuid.New().String(), clean, r.cfg.Now, r.cfg.SubscriberBuffer, r.cfg.Observer)

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()

	if r.cfg.OnCreate != nil {
		r.cfg.OnCreate(sess)
	}

	r.wg.Add(1)
	go r.run(sess)

	return sess, nil
}

func (r *Registry) run(sess *Session) {
	defer r.wg.Done()
	defer close(sess.done)
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("research flow panicked",
				zap.String("session_id", sess.ID),
				zap.Any("panic", rec),
			)
			_, _ = sess.bus.Publish(domain.Event{
				Type:    domain.EventTypeError,
				Message: fmt.Sprintf("internal error: %v", rec),
			})
		}
	}()

	r.runner.Run(sess.ctx, sess)
}

// Get returns the session with id, or domain.ErrNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

// Cancel cancels the flow of the session with id.
func (r *Registry) Cancel(id string) (*Session, error) {
	sess, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	sess.Cancel()
	return sess, nil
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SubscriberCount returns the number of subscriptions across all sessions.
func (r *Registry) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, sess := range r.sessions {
		n += sess.bus.SubscriberCount()
	}
	return n
}

// Sweep evicts expired sessions and returns their ids.
//
// A terminal session without subscribers expires TTL after it finished.
// Any session older than MaxAge expires regardless of status or subscribers
// and is cancelled first.
func (r *Registry) Sweep() []string {
	now := r.cfg.Now()

	r.mu.Lock()
	var evicted []*Session
	for id, sess := range r.sessions {
		if r.expired(sess, now) {
			delete(r.sessions, id)
			evicted = append(evicted, sess)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(evicted))
	for _, sess := range evicted {
		sess.Cancel()
		sess.bus.Close()
		if r.cfg.OnEvict != nil {
			r.cfg.OnEvict(sess)
		}
		ids = append(ids, sess.ID)
		r.logger.Debug("session evicted", zap.String("session_id", sess.ID))
	}
	return ids
}

func (r *Registry) expired(sess *Session, now time.Time) bool {
	if r.cfg.MaxAge > 0 && now.Sub(sess.CreatedAt) >= r.cfg.MaxAge {
		return true
	}
	if r.cfg.TTL <= 0 {
		return false
	}
	status, terminalAt := sess.table.Status()
	if !status.IsTerminal() {
		return false
	}
	if sess.bus.SubscriberCount() > 0 {
		return false
	}
	return now.Sub(terminalAt) >= r.cfg.TTL
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := r.Sweep(); len(ids) > 0 {
				r.logger.Info("evicted sessions", zap.Int("count", len(ids)))
			}
		}
	}
}

// Shutdown cancels every session and waits for their flows to return.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	for _, sess := range r.sessions {
		sess.Cancel()
	}
	r.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to stop research flows: %w", ctx.Err())
	}
}
