package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/bridgeguard/nodeguard/internal/api"
	"github.com/bridgeguard/nodeguard/internal/config"
	"github.com/bridgeguard/nodeguard/internal/noderpc"
	"github.com/bridgeguard/nodeguard/internal/store"
	"github.com/bridgeguard/nodeguard/internal/utils/logger"
	"github.com/bridgeguard/nodeguard/internal/watcher"
)

func main() {
	logger.Init()
	log.Info().Msg("Starting node API...")

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env not loaded; continuing with existing environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}

	// cancel on SIGINT/SIGTERM; the watcher and server both stop on ctx
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		log.Fatal().Err(err).Msg("node API stopped with error")
	}
	log.Info().Msg("node API stopped")
}

// run serves the API until ctx ends or the server fails.
func run(ctx context.Context, cfg *config.AppConfig) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client, err := noderpc.NewFromConfig(cfg, noderpc.WithMetrics(noderpc.NewMetrics(reg)))
	if err != nil {
		return fmt.Errorf("init node rpc client: %w", err)
	}
	defer client.Close()

	snapshots := newSnapshotStore(&cfg.RedisEnvConfig)
	defer snapshots.Close()

	intervals := config.NewIntervalConfig(cfg.Environment)
	w := watcher.NewWatcher(client, snapshots, intervals.WatchInterval)
	if cfg.CallbackEvery > 0 {
		w.RegisterHeightCheckpoint(cfg.CallbackEvery)
	}
	w.Start(ctx)
	defer w.Stop()

	server := api.NewServer(&cfg.ServerEnvConfig, client, snapshots, reg)
	return server.Start(ctx)
}

// newSnapshotStore uses Redis when configured and falls back to memory.
func newSnapshotStore(cfg *config.RedisEnvConfig) store.SnapshotStore {
	if !cfg.Enabled() {
		log.Info().Msg("REDIS_HOST not set, keeping snapshots in memory")
		return store.NewMemoryStore(store.DefaultHistory)
	}
	s, err := store.NewRedisStoreFromConfig(cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to init redis client, continuing without redis")
		return store.NewMemoryStore(store.DefaultHistory)
	}
	return s
}
