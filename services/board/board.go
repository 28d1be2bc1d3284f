// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package board assembles the collaborative kanban board service: the
// embedded document store, the mutation coordinator, the realtime hub,
// the retention scheduler, and the HTTP surface.
//
// # Enterprise Integration
//
// The service supports dependency injection via extensions.ServiceOptions.
// Open source builds run with NopAuthProvider; enterprise builds supply a
// real AuthProvider to validate tokens against their identity provider.
//
// # Usage
//
//	cfg := board.Config{Port: 12400, DataDir: "./data"}
//	svc, err := board.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run() // blocks until SIGINT/SIGTERM
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
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

	"github.com/kanbanlab/boardsync/pkg/extensions"
	"github.com/kanbanlab/boardsync/services/board/coordinator"
	"github.com/kanbanlab/boardsync/services/board/observability"
	"github.com/kanbanlab/boardsync/services/board/realtime"
	"github.com/kanbanlab/boardsync/services/board/retention"
	"github.com/kanbanlab/boardsync/services/board/routes"
	"github.com/kanbanlab/boardsync/services/board/storage/badger"
	"github.com/kanbanlab/boardsync/services/board/store"
)

// Config holds the board service configuration.
type Config struct {
	// Port is the HTTP listen port. Default 12400.
	Port int

	// DataDir is where the embedded store keeps its files. Default
	// "./data/board". Ignored when InMemory is set.
	DataDir string

	// InMemory runs the store without persistence; used by tests and
	// throwaway environments.
	InMemory bool

	// Session names the single board session clients join. Default
	// "board".
	Session string

	// RetentionDays is the activity retention window. Default 30.
	RetentionDays int

	// RetentionInterval is how often the background purge runs. Zero
	// disables the scheduler; the cleanup endpoint still works.
	RetentionInterval time.Duration

	// OTelEndpoint is the OTLP gRPC collector address. Empty disables
	// tracing.
	OTelEndpoint string

	// EnableMetrics registers Prometheus metrics. Default true via New.
	EnableMetrics bool
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12400
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/board"
	}
	if cfg.Session == "" {
		cfg.Session = "board"
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	return cfg
}

// Service is the running board server.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown signal or
	// fatal error. Cleanup is automatic on return.
	Run() error

	// Router exposes the configured engine for integration tests.
	Router() *gin.Engine
}

type service struct {
	config Config
	opts   extensions.ServiceOptions

	db        *badger.DB
	users     *store.UserDirectory
	hub       *realtime.Hub
	coord     *coordinator.Coordinator
	scheduler *retention.Scheduler
	router    *gin.Engine

	tracerCleanup func(context.Context)
}

// New assembles the service. opts nil means open-source defaults.
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}

	if s.config.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	var metrics *observability.BoardMetrics
	if s.config.EnableMetrics {
		metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the board")
	}

	if err := s.initStorage(); err != nil {
		s.cleanup()
		return nil, err
	}

	s.hub = realtime.NewHub(slog.Default(), metrics)
	s.coord = coordinator.New(coordinator.Config{
		Tasks:      store.NewTaskStore(s.db),
		Activities: store.NewActivityStore(s.db),
		Users:      s.users,
		Bus:        s.hub,
		Session:    s.config.Session,
		Metrics:    metrics,
	})

	if s.config.RetentionInterval > 0 {
		s.scheduler = retention.NewScheduler(s.coord, retention.Config{
			Interval:   s.config.RetentionInterval,
			MaxAgeDays: s.config.RetentionDays,
		}, slog.Default())
	}

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM or a
// fatal listen error.
func (s *service) Run() error {
	defer s.cleanup()

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start retention scheduler: %w", err)
		}
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting board server", "port", s.config.Port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down board server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// initStorage opens the embedded store and the user directory.
func (s *service) initStorage() error {
	var err error
	if s.config.InMemory {
		s.db, err = badger.OpenInMemory()
	} else {
		cfg := badger.DefaultConfig()
		cfg.Path = s.config.DataDir
		s.db, err = badger.OpenDB(cfg)
	}
	if err != nil {
		return fmt.Errorf("open board store: %w", err)
	}

	s.users, err = store.NewUserDirectory(s.db)
	if err != nil {
		return fmt.Errorf("open user directory: %w", err)
	}
	return nil
}

// initRouter sets up the Gin engine and registers all routes.
func (s *service) initRouter() {
	s.router = gin.Default()
	if s.config.OTelEndpoint != "" {
		s.router.Use(otelgin.Middleware("board-service"))
	}

	routes.SetupRoutes(s.router, routes.Deps{
		Coordinator: s.coord,
		Hub:         s.hub,
		Users:       s.users,
		Auth:        s.opts.AuthProvider,
		Session:     s.config.Session,
	})
}

// initTracer sets up the OTLP trace exporter. Returns the shutdown
// cleanup function.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("board-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}
	return cleanup, nil
}

// cleanup releases everything the service holds. Safe to call with
// partially initialized state.
func (s *service) cleanup() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.hub != nil {
		s.hub.Shutdown()
	}
	if s.users != nil {
		if err := s.users.Close(); err != nil {
			slog.Warn("user directory close error", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Warn("board store close error", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
