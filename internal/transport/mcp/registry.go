package mcp

import (
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/alanyang/eventmesh/internal/eventbus"
)

// SessionRegistry tracks, per connected MCP session, the one live
// event-watch subscription that session has opened via the
// watch_events tool. It implements the onSessionClose hook's cleanup:
// an admin client that disconnects without calling unwatch_events must
// not leak a subscription.
type SessionRegistry struct {
	mu    sync.Mutex
	watch map[string]*eventbus.SubRef // sessionID -> active watch, if any

	mcpMu  sync.RWMutex
	mcpSrv *mcpserver.MCPServer
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{watch: make(map[string]*eventbus.SubRef)}
}

// SetMCPServer injects the mcp-go server after construction, breaking
// the same init cycle the teacher's registry breaks this way.
func (r *SessionRegistry) SetMCPServer(s *mcpserver.MCPServer) {
	r.mcpMu.Lock()
	r.mcpSrv = s
	r.mcpMu.Unlock()
}

func (r *SessionRegistry) server() *mcpserver.MCPServer {
	r.mcpMu.RLock()
	defer r.mcpMu.RUnlock()
	return r.mcpSrv
}

// SetWatch records sessionID's live watch subscription, dropping and
// unsubscribing any previous one for the same session (watch_events
// replaces, it does not stack).
func (r *SessionRegistry) SetWatch(sessionID string, ref *eventbus.SubRef) {
	r.mu.Lock()
	old, had := r.watch[sessionID]
	r.watch[sessionID] = ref
	r.mu.Unlock()
	if had {
		old.Unsubscribe()
		old.Drop()
	}
}

// ClearWatch tears down sessionID's watch subscription, if any. Returns
// false if there was none.
func (r *SessionRegistry) ClearWatch(sessionID string) bool {
	r.mu.Lock()
	ref, ok := r.watch[sessionID]
	delete(r.watch, sessionID)
	r.mu.Unlock()
	if !ok {
		return false
	}
	ref.Unsubscribe()
	ref.Drop()
	return true
}
