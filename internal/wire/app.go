// Package wire is the composition root: the only place concrete types
// are wired to their interface dependencies.
package wire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	auditpg "github.com/alanyang/eventmesh/internal/adapter/audit"
	pgdb "github.com/alanyang/eventmesh/internal/adapter/postgres"
	"github.com/alanyang/eventmesh/internal/config"
	"github.com/alanyang/eventmesh/internal/domain/serverevent"
	"github.com/alanyang/eventmesh/internal/eventbus"
	"github.com/alanyang/eventmesh/internal/transport"
	mcptransport "github.com/alanyang/eventmesh/internal/transport/mcp"
	wshandler "github.com/alanyang/eventmesh/internal/transport/ws"
)

// App holds the top-level resources needed to run and gracefully stop
// the server.
type App struct {
	Pool      *pgxpool.Pool
	Server    *http.Server
	Bus       *eventbus.Bus
	MCPServer *mcptransport.Server
}

// Build wires the bus, the optional audit sink, the websocket hub, the
// MCP admin server, and the HTTP router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	bus := eventbus.NewBus(
		eventbus.WithAsyncCapacityBytes(cfg.AsyncCapacityBytes),
		eventbus.WithWorkers(cfg.Workers),
	)

	// ── Audit sink ───────────────────────────────────────────────────────────
	// Persistence is a non-goal of the bus itself; the audit sink is an
	// ordinary external subscriber, and its absence must never be fatal.
	var pool *pgxpool.Pool
	if cfg.DatabaseURL == "" {
		slog.Info("DATABASE_URL not set, audit sink disabled")
	} else {
		p, err := pgdb.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		pool = p
		sink := auditpg.NewPostgresSink(pool)
		if _, err := auditpg.Subscribe(bus, nil, eventbus.NewType(serverevent.FamilyServer, 0), sink); err != nil {
			return nil, fmt.Errorf("subscribing audit sink to server family: %w", err)
		}
		if _, err := auditpg.Subscribe(bus, nil, eventbus.NewType(serverevent.FamilyProxy, 0), sink); err != nil {
			return nil, fmt.Errorf("subscribing audit sink to proxy family: %w", err)
		}
	}

	// ── Transport ────────────────────────────────────────────────────────────
	hub := wshandler.NewHub(bus, serverevent.FamilyServer, serverevent.FamilyProxy)

	reg := mcptransport.NewSessionRegistry()
	mcpServer := mcptransport.New(reg, bus)

	router := transport.NewRouter(bus, hub, mcpServer.Handler())

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	slog.Info("application wired", "port", cfg.Port)

	return &App{
		Pool:      pool,
		Server:    server,
		Bus:       bus,
		MCPServer: mcpServer,
	}, nil
}

// Close releases every resource Build acquired, in reverse order. It
// never returns an error for a resource that was never built (e.g. no
// database configured).
func (a *App) Close(ctx context.Context) error {
	if err := a.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	a.Bus.Close()
	if a.Pool != nil {
		a.Pool.Close()
	}
	return nil
}
