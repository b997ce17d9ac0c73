package mcp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/eventmesh/internal/eventbus"
	mcptransport "github.com/alanyang/eventmesh/internal/transport/mcp"
)

func TestNew_BuildsHandlerAndRegistry(t *testing.T) {
	bus := eventbus.NewBus()
	reg := mcptransport.NewSessionRegistry()

	srv := mcptransport.New(reg, bus)
	require.NotNil(t, srv)
	assert.NotNil(t, srv.Handler())
	assert.Same(t, reg, srv.Registry())
}
