// Package audit defines the port the composition root wires the
// Postgres audit sink against: anything that can durably record an
// event after the bus has already delivered it in-process.
package audit

import (
	"context"

	"github.com/alanyang/eventmesh/internal/eventbus"
)

// Sink durably records one delivered event. It is called from a bus
// worker goroutine (see eventbus.AsyncFnHandler) and must not block
// indefinitely — a slow Sink throttles that one worker, never the
// publisher.
type Sink interface {
	Record(ctx context.Context, evt eventbus.Type, safe any) error
}
