// Package main runs the valkyrie scheduler: periodic segment recomputation,
// transition-driven rule evaluation and the optional scheduled sweep.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rafaeljc/valkyrie/internal/app"
	"github.com/rafaeljc/valkyrie/internal/config"
	"github.com/rafaeljc/valkyrie/internal/logger"
	"github.com/rafaeljc/valkyrie/internal/observability"
	"github.com/rafaeljc/valkyrie/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(&cfg.App)
	slog.SetDefault(log)
	cfg.LogConfig(log)

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled by configuration, exiting")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	core, err := app.NewCore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer core.Close()
	core.StartMonitors(ctx)

	obs := observability.NewServer(log, &cfg.Observability, core.Checkers...)
	obs.Start()

	worker := scheduler.New(log, scheduler.Config{
		Interval:   cfg.Scheduler.Interval,
		RunTimeout: cfg.Scheduler.RunTimeout,
		Sweep:      cfg.Scheduler.SweepEnabled,
	}, core.Store, core.Automation)

	// Run blocks until the signal context is cancelled.
	if err := worker.Run(ctx); err != nil {
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error("observability server shutdown failed", slog.String("error", err.Error()))
	}

	log.Info("scheduler exited successfully")
	return nil
}
