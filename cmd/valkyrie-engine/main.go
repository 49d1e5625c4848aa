// Package main initializes and runs the valkyrie engine service.
//
// It is the composition root for the gRPC ingestion API, the REST jobs API
// and the observability server, all backed by one automation core.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/rafaeljc/valkyrie/internal/app"
	"github.com/rafaeljc/valkyrie/internal/config"
	"github.com/rafaeljc/valkyrie/internal/ingest"
	"github.com/rafaeljc/valkyrie/internal/jobsapi"
	"github.com/rafaeljc/valkyrie/internal/logger"
	"github.com/rafaeljc/valkyrie/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration & Logging
	// -------------------------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(&cfg.App)
	slog.SetDefault(log)
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	// -------------------------------------------------------------------------
	// 2. Infrastructure & Core
	// -------------------------------------------------------------------------
	core, err := app.NewCore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer core.Close()
	core.StartMonitors(ctx)

	obs := observability.NewServer(log, &cfg.Observability, core.Checkers...)
	obs.Start()

	// -------------------------------------------------------------------------
	// 3. gRPC Ingestion API
	// -------------------------------------------------------------------------
	grpcServer := ingest.NewServer(&cfg.Server.Ingest, log)
	ingest.NewAPI(core.Automation).Register(grpcServer)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	listener, err := net.Listen("tcp", cfg.Server.Ingest.Address())
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", cfg.Server.Ingest.Address(), err)
	}

	// -------------------------------------------------------------------------
	// 4. REST Jobs API
	// -------------------------------------------------------------------------
	jobsCfg := &cfg.Server.Jobs
	opts := jobsapi.Options{
		APIKeyHash:   jobsCfg.APIKeyHash,
		SkipAuth:     jobsCfg.APIKeyHash == "" && cfg.App.Environment != config.EnvironmentProduction,
		MaxBodyBytes: jobsCfg.MaxBodyBytes,
	}
	if core.Rules != nil {
		opts.Rules = core.Rules
	}
	if opts.SkipAuth {
		log.Warn("jobs api authentication disabled: no api key hash configured")
	}
	httpServer := jobsapi.NewServer(jobsCfg, jobsapi.NewAPI(core.Automation, opts).Router)

	// -------------------------------------------------------------------------
	// 5. Serve & Graceful Shutdown
	// -------------------------------------------------------------------------
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("grpc server listening", slog.String("addr", listener.Addr().String()))
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("failed to serve gRPC: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("jobs api listening", slog.String("addr", httpServer.Addr), slog.Bool("tls", jobsCfg.TLSEnabled))
		var err error
		if jobsCfg.TLSEnabled {
			err = httpServer.ListenAndServeTLS(jobsCfg.TLSCert, jobsCfg.TLSKey)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve jobs api: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining")

		obs.SetReady(false)
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("jobs api shutdown failed", slog.String("error", err.Error()))
		}
		stopGRPC(shutdownCtx, grpcServer)

		if err := obs.Shutdown(shutdownCtx); err != nil {
			log.Error("observability server shutdown failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("service exited successfully")
	return nil
}

// stopGRPC drains in-flight RPCs, forcing a stop when ctx expires first.
func stopGRPC(ctx context.Context, s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
		<-done
	}
}
