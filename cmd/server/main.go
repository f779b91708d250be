// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

// Package main is the entry point for the Metricus server.
//
// Metricus is a self-hosted behavioral and revenue analytics engine. It
// ingests behavioral events and orders, periodically recomputes derived
// analytics (sessions, funnel, cohorts, RFM scoring, rollups, anomaly
// detection) into immutable snapshots, and serves them over a REST API
// with websocket push on every publish.
//
// # Startup order
//
//  1. Configuration: koanf v2 layering defaults, optional YAML file and
//     METRICUS_* environment variables
//  2. DuckDB store: source-of-truth tables for users, events and orders
//  3. Snapshot persistence: BadgerDB, so restarts serve the last
//     published snapshot before the first cycle finishes
//  4. Realtime counters: optional Redis-backed live dashboard numbers
//  5. Ingest pipeline: Watermill channel between HTTP intake and the
//     store writer
//  6. Refresh coordinator and scheduler
//  7. Websocket hub and refresh-completed bridge
//  8. HTTP server
//
// Long-running services run under a suture supervision tree and the
// process drains gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/metricus/metricus/internal/api"
	"github.com/metricus/metricus/internal/config"
	"github.com/metricus/metricus/internal/ingest"
	"github.com/metricus/metricus/internal/logging"
	"github.com/metricus/metricus/internal/realtime"
	"github.com/metricus/metricus/internal/refresh"
	"github.com/metricus/metricus/internal/snapshot"
	"github.com/metricus/metricus/internal/store"
	"github.com/metricus/metricus/internal/supervisor"
	ws "github.com/metricus/metricus/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("store_path", cfg.Store.Path).
		Dur("refresh_interval", cfg.Refresh.Interval).
		Bool("realtime_enabled", cfg.Realtime.Enabled).
		Msg("Configuration loaded")

	st, err := store.New(&cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	var persist *snapshot.BadgerStore
	if cfg.Snapshot.Enabled {
		persist, err = snapshot.OpenBadger(cfg.Snapshot.Dir)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open snapshot store")
		}
		defer func() {
			if err := persist.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing snapshot store")
			}
		}()
	}

	counters := realtime.New(cfg.Realtime)
	defer func() {
		if err := counters.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing realtime counters")
		}
	}()
	if counters.Enabled() {
		if err := counters.Ping(context.Background()); err != nil {
			logging.Warn().Err(err).Msg("Redis unreachable, live counters degraded until it recovers")
		}
	}

	pubsub := ingest.NewPubSub(cfg.Ingest)
	defer func() {
		if err := pubsub.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing pubsub")
		}
	}()
	intake := ingest.NewIntake(pubsub)
	consumer, err := ingest.NewConsumer(pubsub, st, counters)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build ingest consumer")
	}

	// Analytics reads go through the circuit breaker so a wedged DuckDB
	// degrades refresh cycles instead of hanging them.
	reader := store.NewBreakerReader(st)
	coordOpts := []refresh.Option{refresh.WithPublisher(pubsub)}
	if persist != nil {
		coordOpts = append(coordOpts, refresh.WithPersistence(persist))
	}
	coord := refresh.NewCoordinator(reader, cfg.Refresh, coordOpts...)
	coord.Restore()
	scheduler := refresh.NewScheduler(coord, cfg.Refresh.Interval)

	hub := ws.NewHub()
	bridge := ws.NewBridge(pubsub, hub)

	handler := api.NewHandler(cfg, coord, st, intake, counters, hub)
	router := api.NewRouter(cfg, handler)
	server := api.NewServer(cfg.Server, router.Setup())

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddIngestService(consumer)
	if persist != nil {
		tree.AddIngestService(snapshot.NewGC(persist, time.Hour))
	}
	tree.AddRefreshService(scheduler)
	tree.AddRefreshService(hub)
	tree.AddRefreshService(bridge)
	tree.AddAPIService(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Metricus stopped gracefully")
}
