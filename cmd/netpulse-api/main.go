package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Nativu5/netpulse/pkg/api"
	"github.com/Nativu5/netpulse/pkg/config"
	"github.com/Nativu5/netpulse/pkg/manager"
	"github.com/Nativu5/netpulse/pkg/queue"
	"github.com/Nativu5/netpulse/pkg/store"
	"github.com/Nativu5/netpulse/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("NETPULSE_CONFIG"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewSlogAdapter(cfg.Log.Level)
	metrics := telemetry.NewPrometheusMetrics(prometheus.DefaultRegisterer)

	st, err := store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Password, cfg.Redis.KeyPrefix, cfg.Job.ResultTTL)
	if err != nil {
		slog.Error("failed to connect to store", "error", err)
		os.Exit(1)
	}

	q, err := queue.NewRedisQueue(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Password, cfg.Redis.KeyPrefix)
	if err != nil {
		slog.Error("failed to connect to queue", "error", err)
		os.Exit(1)
	}

	m, err := manager.New(st, q, cfg, logger, metrics)
	if err != nil {
		slog.Error("failed to build manager", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: api.NewServer(m, cfg, logger).Handler(),
	}

	go func() {
		slog.Info("NetPulse API listening", "port", cfg.Server.Port, "scheduler", cfg.Worker.Scheduler)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
}
