package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiaot623/gogo/researcher/internal/adapter/llm"
	"github.com/xiaot623/gogo/researcher/internal/config"
	"github.com/xiaot623/gogo/researcher/internal/domain"
	"github.com/xiaot623/gogo/researcher/internal/metrics"
	"github.com/xiaot623/gogo/researcher/internal/observability"
	"github.com/xiaot623/gogo/researcher/internal/repository"
	"github.com/xiaot623/gogo/researcher/internal/session"
	"github.com/xiaot623/gogo/researcher/policy"
)

// storeTimeout bounds trace store writes made from the flow goroutine.
const storeTimeout = 2 * time.Second

type Service struct {
	store        repository.Store
	toolkit      domain.Toolkit
	llmClient    llm.LLMClient
	config       *config.Config
	policyEngine *policy.Engine
	registry     *session.Registry
	metrics      *metrics.Metrics
	tracer       *observability.TracerProvider
	logger       *zap.Logger
}

// Options carries the optional observability dependencies.
type Options struct {
	Metrics *metrics.Metrics
	Tracer  *observability.TracerProvider
	Logger  *zap.Logger
	// Now overrides the registry clock.
	Now func() time.Time
}

// New creates the service and its session registry. Flows started by the
// registry inherit ctx.
func New(ctx context.Context, store repository.Store, toolkit domain.Toolkit, llmClient llm.LLMClient, cfg *config.Config, policyEngine *policy.Engine, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:        store,
		toolkit:      toolkit,
		llmClient:    llmClient,
		config:       cfg,
		policyEngine: policyEngine,
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
		logger:       logger,
	}

	var observer session.Observer
	if opts.Metrics != nil {
		observer = opts.Metrics
	}
	s.registry = session.NewRegistry(ctx, session.RegistryConfig{
		TTL:              cfg.SessionTTL,
		MaxAge:           cfg.SessionMaxAge,
		SubscriberBuffer: cfg.SubscriberBuffer,
		MaxQueryLength:   cfg.MaxQueryLength,
		Observer:         observer,
		OnCreate:         s.onSessionCreated,
		OnEvict:          s.onSessionEvicted,
		Now:              opts.Now,
	}, s, logger)

	return s
}

// Registry exposes the session registry.
func (s *Service) Registry() *session.Registry {
	return s.registry
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.config
}
