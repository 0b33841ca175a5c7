// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/hotspot/internal/api"
	"github.com/tomtom215/hotspot/internal/config"
	"github.com/tomtom215/hotspot/internal/logging"
	"github.com/tomtom215/hotspot/internal/pipeline"
	"github.com/tomtom215/hotspot/internal/queue"
	"github.com/tomtom215/hotspot/internal/retention"
	"github.com/tomtom215/hotspot/internal/store"
	"github.com/tomtom215/hotspot/internal/supervisor"
	"github.com/tomtom215/hotspot/internal/supervisor/services"
	"github.com/tomtom215/hotspot/internal/worker"
	ws "github.com/tomtom215/hotspot/internal/websocket"
)

const workerHandlerName = "dbscan-worker"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, clustering worker and retention sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

//nolint:gocyclo // linear wiring of every component
func serve(parent context.Context, cfg *config.Config) error {
	logging.Info().
		Str("store_path", cfg.Store.Path).
		Bool("store_in_memory", cfg.Store.InMemory).
		Str("queue_backend", cfg.Queue.Backend).
		Str("addr", cfg.Server.Addr()).
		Msg("starting hotspot")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	st, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing store")
		}
	}()

	runtimeCache := config.NewRuntimeCache(st, []byte(store.RuntimeConfigKey), cfg.Pipeline, cfg.Runtime.TTL)

	wmLogger := logging.NewWatermillLogger()
	transport, err := queue.Open(ctx, cfg, wmLogger)
	if err != nil {
		return fmt.Errorf("open queue transport: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), cfg.Queue.CloseTimeout)
		defer closeCancel()
		if err := transport.Close(closeCtx); err != nil {
			logging.Error().Err(err).Msg("error closing queue transport")
		}
	}()

	breaker := queue.NewCircuitBreaker("job-queue", cfg.Queue.BreakerMaxFailures, cfg.Queue.BreakerTimeout)
	publisher := queue.NewPublisher(transport.Publisher, cfg.Queue.Topic, breaker)
	defer func() { _ = publisher.Close() }()

	svc := pipeline.NewService(st, runtimeCache, publisher)

	hub := ws.NewHub()
	clusterWorker := worker.New(st, runtimeCache, worker.WithNotifier(hub))

	router, err := queue.NewRouter(cfg.Queue, transport.Publisher, wmLogger)
	if err != nil {
		return fmt.Errorf("create queue router: %w", err)
	}
	router.AddConsumerHandler(workerHandlerName, cfg.Queue.Topic, transport.Subscriber, clusterWorker.Handle)

	handler := api.NewHandler(cfg.Server, api.HandlerDeps{
		Pipeline: svc,
		Runtime:  runtimeCache,
		Store:    st,
		Queue:    publisher,
		Hub:      hub,
	})
	mw := api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(cfg.Server))
	httpServer := &http.Server{
		Handler:           api.NewRouter(handler, mw).SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	type layered struct {
		layer supervisor.Layer
		svc   suture.Service
	}
	supervised := []layered{
		{supervisor.LayerData, services.NewStoreGCService(st, cfg.Store.GCInterval)},
		{supervisor.LayerMessaging, services.NewWebSocketHubService(hub)},
		{supervisor.LayerMessaging, services.NewQueueRouterService(router)},
		{supervisor.LayerAPI, services.NewHTTPServerService(httpServer, cfg.Server.Addr(), cfg.Server.ShutdownTimeout)},
	}
	if cfg.Retention.Enabled {
		supervised = append(supervised, layered{supervisor.LayerData, services.NewRetentionSweeperService(retention.New(st, cfg.Retention))})
	} else {
		logging.Info().Msg("retention sweeper disabled")
	}
	for _, s := range supervised {
		if _, err := tree.Add(s.layer, s.svc); err != nil {
			return fmt.Errorf("add %v to %s: %w", s.svc, s.layer, err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	treeErr := <-tree.ServeBackground(ctx)
	if treeErr != nil {
		logging.Error().Err(treeErr).Msg("supervisor tree stopped with error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
	}

	logging.Info().Msg("hotspot stopped")
	return treeErr
}
