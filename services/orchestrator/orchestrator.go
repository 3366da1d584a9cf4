// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator hosts the HTTP surface of the code-modification
// agent and assembles its components from configuration.
//
// # Description
//
// The orchestrator wires the workflow coordinator behind a gin router:
//
//	POST /execute ──► Coordinator.Submit ──► background worker
//	GET  /stream  ──► StreamingReporter  ◄── run event queue
//	GET  /runs    ──► runstore (badger)
//
// # Usage
//
//	app, err := orchestrator.NewApp(ctx, cfg, orchestrator.AppOptions{})
//	if err != nil {
//	    return err
//	}
//	defer app.Close(context.Background())
//	return app.Server().Run(ctx)
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ishaan-arora-1/not-cursor/services/orchestrator/middleware"
	"github.com/ishaan-arora-1/not-cursor/services/orchestrator/routes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the orchestrator HTTP server.
//
// # Thread Safety
//
// Run and Serve block and should be called at most once per instance.
type Service interface {
	// Run listens on the configured port and serves until ctx is cancelled
	// or the server fails. Cancellation triggers a graceful shutdown and
	// returns nil.
	Run(ctx context.Context) error

	// Serve is Run on an existing listener.
	Serve(ctx context.Context, ln net.Listener) error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds server options. Zero values get defaults from New.
type Config struct {
	// Port is the HTTP server port. Default: 5000
	Port int

	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins []string

	// ServiceName labels spans. Default: "notcursor"
	ServiceName string

	// ShutdownTimeout bounds the graceful drain. Default: 10s
	ShutdownTimeout time.Duration
}

const (
	defaultPort            = 5000
	defaultServiceName     = "notcursor"
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config Config
	router *gin.Engine
	logger *slog.Logger
}

// New builds the router with recovery, request logging, CORS and tracing
// middleware, then registers the workflow routes.
func New(cfg Config, deps routes.Deps, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &service{
		config: applyConfigDefaults(cfg),
		logger: logger,
	}
	s.initRouter(deps)
	return s
}

func (s *service) initRouter(deps routes.Deps) {
	s.router = gin.New()
	s.router.Use(
		gin.Recovery(),
		middleware.RequestLogger(s.logger),
		middleware.CORS(s.config.CORSOrigins),
		otelgin.Middleware(s.config.ServiceName),
	)
	routes.SetupRoutes(s.router, deps)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *service) Serve(ctx context.Context, ln net.Listener) error {
	// Cancelled on shutdown so open streams return instead of holding the
	// drain open until their runs finish.
	baseCtx, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBase()

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting notcursor server", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down notcursor server")
	cancelBase()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
