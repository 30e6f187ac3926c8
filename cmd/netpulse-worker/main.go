package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/Nativu5/netpulse/pkg/agent"
	"github.com/Nativu5/netpulse/pkg/config"
	"github.com/Nativu5/netpulse/pkg/domain"
	"github.com/Nativu5/netpulse/pkg/queue"
	"github.com/Nativu5/netpulse/pkg/store"
	"github.com/Nativu5/netpulse/pkg/telemetry"
	"github.com/Nativu5/netpulse/pkg/webhook"
)

func main() {
	configPath := flag.String("config", os.Getenv("NETPULSE_CONFIG"), "path to config file")
	nodeID := flag.String("node-id", "", "stable node identifier (default: generated)")
	capabilities := flag.String("capabilities", "", "comma-separated capability tags")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewSlogAdapter(cfg.Log.Level)
	metrics := telemetry.NewNoopMetrics()

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

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "netpulse-worker"
	}

	id := *nodeID
	if id == "" {
		id = hostname + "-" + uuid.NewString()[:8]
	}

	var caps []string
	if *capabilities != "" {
		caps = strings.Split(*capabilities, ",")
	}

	a := &agent.Agent{
		Node: domain.WorkerNode{
			ID:           domain.NodeID(id),
			Hostname:     hostname,
			Capacity:     cfg.Worker.Capacity,
			Capabilities: caps,
			Queue:        cfg.NodeQueueName(id),
		},
		Store:             st,
		Queue:             q,
		Executor:          agent.EchoExecutor{},
		Webhooks:          webhook.NewCaller(cfg.Webhook.Timeout, logger, metrics),
		Logger:            logger,
		Metrics:           metrics,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		JobTimeout:        cfg.Job.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("agent exited", "error", err)
		os.Exit(1)
	}
}
