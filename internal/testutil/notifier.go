//go:build integration

package testutil

import (
	"context"
	"sync"

	"github.com/alanyang/eventmesh/internal/eventbus"
)

// SinkCall records a single Record call made against a CaptureSink.
type SinkCall struct {
	Type eventbus.Type
	Safe any
}

// CaptureSink is a test-double implementing port/audit.Sink: it records
// every call instead of writing to Postgres, for integration tests that
// want to assert the audit adapter was wired and driven correctly
// without a live database. It records every call with a mutex so it is
// safe for concurrent use, since it is driven from a bus worker goroutine.
type CaptureSink struct {
	mu    sync.Mutex
	Calls []SinkCall
}

func (c *CaptureSink) Record(_ context.Context, evt eventbus.Type, safe any) error {
	c.mu.Lock()
	c.Calls = append(c.Calls, SinkCall{Type: evt, Safe: safe})
	c.mu.Unlock()
	return nil
}

// CallsFor returns every recorded call for the given event type.
func (c *CaptureSink) CallsFor(evt eventbus.Type) []SinkCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []SinkCall
	for _, call := range c.Calls {
		if eventbus.Equal(call.Type, evt) {
			out = append(out, call)
		}
	}
	return out
}

// Reset clears all recorded calls.
func (c *CaptureSink) Reset() {
	c.mu.Lock()
	c.Calls = nil
	c.mu.Unlock()
}
