package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/researcher/internal/adapter/llm"
	"github.com/xiaot623/gogo/researcher/internal/adapter/research"
	"github.com/xiaot623/gogo/researcher/internal/config"
	"github.com/xiaot623/gogo/researcher/internal/logging"
	"github.com/xiaot623/gogo/researcher/internal/metrics"
	"github.com/xiaot623/gogo/researcher/internal/observability"
	"github.com/xiaot623/gogo/researcher/internal/repository"
	"github.com/xiaot623/gogo/researcher/internal/service"
	transport "github.com/xiaot623/gogo/researcher/internal/transport/http"
	v1 "github.com/xiaot623/gogo/researcher/internal/transport/http/v1"
	"github.com/xiaot623/gogo/researcher/policy"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the research HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "optional YAML config file")
	return cmd
}

func serve(configFile string) error {
	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting research service",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("mode", cfg.Mode),
		zap.String("database", cfg.DatabaseURL),
		zap.String("llm_base_url", cfg.LLMBaseURL),
	)

	ctx := context.Background()

	// Initialize observability
	tracer, err := observability.NewTracerProvider(ctx, observability.TracingConfig{
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		ServiceName:    "researchd",
		ServiceVersion: v1.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.MustNewMetrics(reg)

	// Initialize store
	store, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	// Initialize LLM client and agents
	llmClient := llm.NewLLMClient(cfg.Mode, cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout, logger)
	toolkit := research.NewToolkit(llmClient, research.Config{
		SearchModel:           cfg.SearchModel,
		SpecialistModel:       cfg.SpecialistModel,
		ResponseModel:         cfg.ResponseModel,
		MaxSourcesPerPlatform: cfg.MaxSourcesPerPlatform,
		FetchTimeout:          research.DefaultFetchTimeout,
		Offline:               cfg.IsMock(),
	}, logger)

	// Initialize policy engine
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	// Initialize service
	flowCtx, stopFlows := context.WithCancel(ctx)
	defer stopFlows()
	svc := service.New(flowCtx, store, toolkit, llmClient, cfg, policyEngine, service.Options{
		Metrics: m,
		Tracer:  tracer,
		Logger:  logger,
	})
	if ready, reason := svc.Ready(); !ready {
		logger.Warn("service is not ready", zap.String("reason", reason))
	}
	go svc.RunSweeper(flowCtx)

	srv, err := transport.NewServer(cfg, svc, reg, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("http server failed", zap.Error(err))
		return err
	}

	// Graceful shutdown: fail running sessions first so viewers see the terminal event
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Warn("research flows did not stop in time", zap.Error(err))
	}
	stopFlows()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown http server gracefully", zap.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to flush traces", zap.Error(err))
	}

	logger.Info("research service stopped")
	return nil
}
