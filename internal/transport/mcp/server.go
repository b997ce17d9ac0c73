package mcp

import (
	"context"
	"log/slog"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/alanyang/eventmesh/internal/eventbus"
)

// Server wraps the mark3labs/mcp-go MCPServer and its StreamableHTTPServer,
// exposing admin tooling over the bus: publish events, list subscriptions,
// and watch a live feed of matching events as MCP notifications.
//
//	Tools are registered in tools.go, prompts in prompts.go, session state
//	in registry.go.
type Server struct {
	httpSrv *mcpserver.StreamableHTTPServer
	reg     *SessionRegistry
}

// New creates the MCP transport server wired to bus. reg is a pre-built
// SessionRegistry; the mcp-go server reference is injected into it after
// construction, the same way the teacher breaks this init cycle.
func New(reg *SessionRegistry, bus *eventbus.Bus) *Server {
	s := &Server{reg: reg}

	hooks := &mcpserver.Hooks{}
	hooks.OnUnregisterSession = append(hooks.OnUnregisterSession, s.onSessionClose)

	mcpSrv := mcpserver.NewMCPServer(
		"eventmesh",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
		mcpserver.WithHooks(hooks),
	)

	reg.SetMCPServer(mcpSrv)

	RegisterTools(mcpSrv, reg, bus)
	RegisterPrompts(mcpSrv)

	s.httpSrv = mcpserver.NewStreamableHTTPServer(mcpSrv)
	return s
}

// Handler returns an http.Handler that serves the MCP streamable HTTP endpoint.
func (s *Server) Handler() http.Handler {
	return s.httpSrv
}

// Registry returns the session registry.
func (s *Server) Registry() *SessionRegistry {
	return s.reg
}

func (s *Server) onSessionClose(ctx context.Context, session mcpserver.ClientSession) {
	if s.reg.ClearWatch(session.SessionID()) {
		slog.InfoContext(ctx, "mcp: session closed, watch subscription released", "session_id", session.SessionID())
	}
}
