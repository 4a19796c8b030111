// Copyright (C) 2026 Orgflow AI (eng@orgflow.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator assembles the safe action orchestration
// service: HTTP routing, the intervention state machine, circuit
// breakers, the audit trail, and observability infrastructure.
//
// # Description
//
// New wires every component from a Config; Run starts the HTTP server
// plus the background loops (approval expiry sweep, audit retry,
// gauge refresh) and blocks until the context is cancelled, then shuts
// everything down in order.
//
// # Deployment Modes
//
// With ActionServiceURL, GraphServiceURL, and InfluxURL configured,
// interventions flow to the real downstream services. When they are
// unset the service runs in lightweight mode with in-memory providers,
// which exercises the full orchestration path without external
// dependencies.
//
// # Usage
//
//	cfg := orchestrator.Config{Port: 12210, DataDir: "/var/lib/orgflow"}
//	svc, err := orchestrator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/orgflow-ai/orgflow/services/orchestrator/actions"
	"github.com/orgflow-ai/orgflow/services/orchestrator/audit"
	"github.com/orgflow-ai/orgflow/services/orchestrator/breaker"
	"github.com/orgflow-ai/orgflow/services/orchestrator/datatypes"
	"github.com/orgflow-ai/orgflow/services/orchestrator/impact"
	"github.com/orgflow-ai/orgflow/services/orchestrator/observability"
	"github.com/orgflow-ai/orgflow/services/orchestrator/providers"
	"github.com/orgflow-ai/orgflow/services/orchestrator/routes"
	"github.com/orgflow-ai/orgflow/services/orchestrator/storage/badgerdb"
	"github.com/orgflow-ai/orgflow/services/orchestrator/store"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator service configuration.
//
// All fields are optional; New applies the defaults noted per field.
type Config struct {
	// Port is the HTTP server port. Default: 12210
	Port int

	// GinMode sets the Gin framework mode ("debug", "release",
	// "test"). Default: uses the GIN_MODE env var or "debug".
	GinMode string

	// APIKey protects the /v1 API when set. Empty disables auth
	// (local single-operator mode).
	APIKey string

	// DataDir is the BadgerDB directory for interventions and the
	// audit trail. Empty runs fully in memory (state is lost on
	// restart).
	DataDir string

	// ActionServiceURL is the downstream service applying
	// interventions. Empty selects the in-memory executor.
	ActionServiceURL string

	// GraphServiceURL is the service capturing and restoring target
	// state. Empty selects the in-memory snapshot provider.
	GraphServiceURL string

	// InfluxURL, InfluxToken, InfluxOrg, and InfluxBucket locate the
	// organizational health metrics. Empty URL selects a static
	// provider whose outcome checks always pass.
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// OTelEndpoint is the OpenTelemetry collector endpoint. Empty
	// disables tracing.
	OTelEndpoint string

	// ImpactTablePath points at a YAML file overriding the built-in
	// impact classification table. Optional.
	ImpactTablePath string

	// ApprovalTimeout is how long a HIGH-impact intervention may wait
	// for a human decision. Default: 24h
	ApprovalTimeout time.Duration

	// OutcomeCheckDelay is how long after execution the outcome
	// monitor fires. Default: 168h (7 days)
	OutcomeCheckDelay time.Duration

	// ConnectivityDropThreshold and WellbeingRiseThreshold are the
	// fractional regressions the outcome monitor treats as harm.
	// Defaults: 0.30 and 0.20.
	ConnectivityDropThreshold float64
	WellbeingRiseThreshold    float64

	// ExpirySweepInterval is how often stale approvals are expired
	// and gauges refreshed. Default: 1m
	ExpirySweepInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 12210
	}
	if c.ApprovalTimeout == 0 {
		c.ApprovalTimeout = 24 * time.Hour
	}
	if c.OutcomeCheckDelay == 0 {
		c.OutcomeCheckDelay = 7 * 24 * time.Hour
	}
	if c.ConnectivityDropThreshold == 0 {
		c.ConnectivityDropThreshold = 0.30
	}
	if c.WellbeingRiseThreshold == 0 {
		c.WellbeingRiseThreshold = 0.20
	}
	if c.ExpirySweepInterval == 0 {
		c.ExpirySweepInterval = time.Minute
	}
}

// =============================================================================
// Service
// =============================================================================

// Service is the assembled orchestrator.
//
// # Thread Safety
//
// Run blocks and must be called at most once per instance. Router may
// be used concurrently once New returns.
type Service struct {
	config    Config
	logger    *slog.Logger
	router    *gin.Engine
	orch      *actions.Orchestrator
	auditLog  *audit.Log
	breakers  *breaker.Registry
	metrics   *observability.Metrics
	scheduler *actions.TimerScheduler
	closeDB   func() error
}

// New wires a service from the configuration.
func New(cfg Config) (*Service, error) {
	cfg.applyDefaults()
	logger := slog.Default()

	dbCfg := badgerdb.InMemoryConfig()
	if cfg.DataDir != "" {
		dbCfg = badgerdb.DefaultConfig(cfg.DataDir)
	}
	dbCfg.Logger = logger
	db, err := badgerdb.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	auditStore, err := audit.NewBadgerStore(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	auditLog := audit.NewLog(auditStore, logger)
	interventions := store.NewBadgerStore(db)

	classifier := impact.NewClassifier()
	if cfg.ImpactTablePath != "" {
		classifier, err = impact.LoadOverrides(cfg.ImpactTablePath)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load impact table: %w", err)
		}
	}

	executor, snapshots, metricsProvider := buildProviders(cfg, logger)

	scheduler := actions.NewTimerScheduler()
	breakers := breaker.NewRegistry(breaker.DefaultConfig(), logger)
	orch := actions.New(actions.Config{
		ApprovalTimeout:           cfg.ApprovalTimeout,
		OutcomeCheckDelay:         cfg.OutcomeCheckDelay,
		ConnectivityDropThreshold: cfg.ConnectivityDropThreshold,
		WellbeingRiseThreshold:    cfg.WellbeingRiseThreshold,
	}, actions.Deps{
		Store:      interventions,
		Audit:      auditLog,
		Breakers:   breakers,
		Classifier: classifier,
		Executor:   executor,
		Snapshots:  snapshots,
		Metrics:    metricsProvider,
		Scheduler:  scheduler,
		Logger:     logger,
	})

	metrics := observability.NewMetrics()

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OTelEndpoint != "" {
		router.Use(otelgin.Middleware("orchestrator-service"))
	}
	routes.SetupRoutes(router, orch, auditLog, metrics, cfg.APIKey)

	return &Service{
		config:    cfg,
		logger:    logger,
		router:    router,
		orch:      orch,
		auditLog:  auditLog,
		breakers:  breakers,
		metrics:   metrics,
		scheduler: scheduler,
		closeDB:   db.Close,
	}, nil
}

// buildProviders selects remote or in-memory collaborators per the
// configuration. Lightweight fallbacks are logged so a misconfigured
// production deployment is visible.
func buildProviders(cfg Config, logger *slog.Logger) (actions.ActionExecutor, actions.SnapshotProvider, actions.MetricsProvider) {
	var executor actions.ActionExecutor
	if cfg.ActionServiceURL != "" {
		executor = providers.NewHTTPActionExecutor(cfg.ActionServiceURL)
	} else {
		logger.Warn("ACTION_SERVICE_URL not set, applying interventions to the in-memory model only")
		executor = providers.NewLocalActionExecutor(logger)
	}

	var snapshots actions.SnapshotProvider
	baseline := datatypes.Metrics{Connectivity: 0.5, WellbeingRisk: 0.5}
	if cfg.GraphServiceURL != "" {
		snapshots = providers.NewHTTPSnapshotProvider(cfg.GraphServiceURL)
	} else {
		logger.Warn("GRAPH_SERVICE_URL not set, using in-memory snapshots")
		snapshots = providers.NewLocalSnapshotProvider(baseline)
	}

	var metricsProvider actions.MetricsProvider
	if cfg.InfluxURL != "" {
		metricsProvider = providers.NewInfluxMetricsProvider(providers.InfluxConfig{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		})
	} else {
		logger.Warn("INFLUX_URL not set, outcome checks will compare against a static reading")
		metricsProvider = &providers.StaticMetricsProvider{Reading: baseline}
	}
	return executor, snapshots, metricsProvider
}

// Router returns the configured Gin engine for integration tests.
func (s *Service) Router() *gin.Engine {
	return s.router
}

// Orchestrator exposes the underlying state machine for embedding the
// service in-process (tests, the CLI's local mode).
func (s *Service) Orchestrator() *actions.Orchestrator {
	return s.orch
}

// Run starts the HTTP server and background loops, blocking until ctx
// is cancelled or the server fails.
func (s *Service) Run(ctx context.Context) error {
	shutdownTracer, err := s.initTracer(ctx)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	s.auditLog.Start(ctx)
	if _, err := s.orch.RearmOutcomeChecks(ctx); err != nil {
		s.logger.Error("could not re-arm outcome checks", "error", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.logger.Info("orchestrator listening", "port", s.config.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		ticker := time.NewTicker(s.config.ExpirySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-ctx.Done():
				return nil
			}
		}
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = group.Wait()

	s.scheduler.Stop()
	s.auditLog.Stop()
	if shutdownTracer != nil {
		shutdownTracer(context.Background())
	}
	if closeErr := s.closeDB(); closeErr != nil {
		s.logger.Error("closing database", "error", closeErr)
	}
	return err
}

// sweep expires stale approvals and refreshes the gauges.
func (s *Service) sweep(ctx context.Context) {
	expired, err := s.orch.ExpireStaleApprovals(ctx)
	if err != nil {
		s.logger.Error("approval expiry sweep failed", "error", err)
	} else if expired > 0 {
		s.logger.Info("expired stale approvals", "count", expired)
	}

	if pending, err := s.orch.ListPending(ctx); err == nil {
		s.metrics.PendingApprovals.Set(float64(len(pending)))
	}
	for dependency, stats := range s.breakers.Stats() {
		var value float64
		switch stats.State {
		case "half-open":
			value = 1
		case "open":
			value = 2
		}
		s.metrics.BreakerState.WithLabelValues(dependency).Set(value)
	}
	s.metrics.AuditBufferedEntries.Set(float64(s.auditLog.Buffered()))
}

// initTracer configures the OTLP trace exporter. Returns a nil
// shutdown func when tracing is disabled.
func (s *Service) initTracer(ctx context.Context) (func(context.Context), error) {
	if s.config.OTelEndpoint == "" {
		return nil, nil
	}

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("orchestrator-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}
