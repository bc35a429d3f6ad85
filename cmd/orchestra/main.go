// Command orchestra runs the multi-agent task orchestration service:
// agent registry, communication bus, decomposer, load balancer, and the
// dispatch loop that drives plans to completion.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kestrel-run/orchestra/internal/adapter/cron"
	adapterhttp "github.com/kestrel-run/orchestra/internal/adapter/http"
	"github.com/kestrel-run/orchestra/internal/adapter/mcpadmin"
	"github.com/kestrel-run/orchestra/internal/adapter/natsreplay"
	"github.com/kestrel-run/orchestra/internal/adapter/otel"
	"github.com/kestrel-run/orchestra/internal/adapter/postgres"
	"github.com/kestrel-run/orchestra/internal/adapter/ristretto"
	_ "github.com/kestrel-run/orchestra/internal/adapter/simbackend"
	"github.com/kestrel-run/orchestra/internal/adapter/ws"
	"github.com/kestrel-run/orchestra/internal/config"
	"github.com/kestrel-run/orchestra/internal/domain/agenttype"
	"github.com/kestrel-run/orchestra/internal/domain/event"
	"github.com/kestrel-run/orchestra/internal/logger"
	"github.com/kestrel-run/orchestra/internal/port/broadcast"
	"github.com/kestrel-run/orchestra/internal/port/cache"
	"github.com/kestrel-run/orchestra/internal/service"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := service.NewRegistry()
	if err := registry.RegisterDefaults(agenttype.Presets()); err != nil {
		log.Error("failed to register default agent types", "error", err)
		os.Exit(1)
	}

	bus := service.NewBus(cfg.Bus.SubscriberQueueSize, cfg.Bus.HistorySize)

	var memCache cache.Cache
	if c, err := ristretto.New(1 << 20); err != nil {
		log.Warn("decompose cache unavailable, continuing uncached", "error", err)
	} else {
		memCache = c
	}
	decomposer := service.NewDecomposer(memCache, cfg.Orchestrator.DecomposeCacheTTL)

	lb := service.NewLoadBalancer(service.Strategy(cfg.Orchestrator.LoadBalancer))

	hub := ws.NewHub()
	targets := []broadcast.Broadcaster{hub}

	if cfg.NATS.Enabled {
		replay, err := natsreplay.Dial(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			log.Warn("nats replay adapter unavailable", "error", err)
		} else {
			defer replay.Close()
			targets = append(targets, replay)
		}
	}

	if cfg.Postgres.Enabled {
		if db, err := sql.Open("pgx", cfg.Postgres.DSN); err == nil {
			if err := postgres.Migrate(db); err != nil {
				log.Warn("eventstore migration failed", "error", err)
			}
			_ = db.Close()
		}
		if store, err := postgres.New(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns); err != nil {
			log.Warn("eventstore adapter unavailable", "error", err)
		} else {
			defer store.Close()
			targets = append(targets, store)
		}
	}

	broadcaster := fanOutBroadcaster(targets)

	orch := service.NewOrchestrator(service.OrchestratorConfig{
		Workers:        cfg.Orchestrator.Workers,
		MaxRetries:     cfg.Orchestrator.MaxRetries,
		BackoffBase:    cfg.Orchestrator.BackoffBase,
		BackoffCap:     cfg.Orchestrator.BackoffCap,
		SuccessWindow:  cfg.Orchestrator.SuccessWindow,
		ErrorThreshold: cfg.Orchestrator.ErrorThreshold,

		DispatchTimeout: cfg.Bus.RequestTimeout,

		BreakerFailureThreshold: cfg.Breaker.FailureThreshold,
		BreakerResetTimeout:     cfg.Breaker.ResetTimeout,
		BreakerHalfOpenMax:      cfg.Breaker.HalfOpenMax,
	}, registry, bus, lb, broadcaster, log)
	go orch.Run(ctx)

	if _, err := otel.Setup(ctx, "orchestra", "localhost:4317"); err != nil {
		log.Warn("otel setup failed, continuing without tracing", "error", err)
	}

	sweeper := cron.NewSweeper(registry, "*/5 * * * *", 2*time.Minute, log)
	go sweeper.Run(ctx)

	mcpSrv := mcpserver.NewMCPServer("orchestra", "1.0.0")
	(&mcpadmin.Server{Registry: registry, Orchestrator: orch, Decomposer: decomposer}).Register(mcpSrv)

	router := &adapterhttp.Router{Registry: registry, Bus: bus, Orchestrator: orch, Decomposer: decomposer, Hub: hub}
	server := &http.Server{Addr: cfg.Server.Addr, Handler: router.Build()}

	go func() {
		log.Info("admin server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}

// fanOutBroadcaster pushes every event to each configured target: the
// websocket hub always, plus NATS replay and the Postgres audit log
// when enabled. One target failing does not stop delivery to the rest.
type fanOutBroadcaster []broadcast.Broadcaster

func (f fanOutBroadcaster) Broadcast(ctx context.Context, evt event.Event) error {
	var firstErr error
	for _, target := range f {
		if err := target.Broadcast(ctx, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
