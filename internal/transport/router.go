package transport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/eventmesh/internal/eventbus"
	eventshandler "github.com/alanyang/eventmesh/internal/transport/events"
	wshandler "github.com/alanyang/eventmesh/internal/transport/ws"
)

// NewRouter builds the gin engine: the event publish/introspection API,
// the websocket bridge, and the MCP admin server's HTTP handler.
func NewRouter(bus *eventbus.Bus, hub *wshandler.Hub, mcpHandler http.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestLogger())
	r.Use(CORSMiddleware())

	api := r.Group("/api")
	eventshandler.Register(api.Group("/events"), bus)

	hub.Register(api.Group("/ws"))

	if mcpHandler != nil {
		r.Any("/mcp", gin.WrapH(mcpHandler))
		r.Any("/mcp/*any", gin.WrapH(mcpHandler))
	}

	return r
}
