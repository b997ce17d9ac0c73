// Package audit adapts the eventbus's AsyncFn handler flavor to a durable
// Postgres sink. The bus itself never persists anything (persistence is
// an explicit non-goal of the core); this adapter is an ordinary external
// subscriber layered on top of the public Subscribe API, the same as any
// other caller.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyang/eventmesh/internal/eventbus"
	"github.com/alanyang/eventmesh/internal/port/audit"
)

// PostgresSink implements port/audit.Sink by inserting one row per
// delivered event into the audit_log table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink builds a sink over an already-connected pool. See
// internal/adapter/postgres.Connect.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// Record inserts one audit_log row. safe is marshaled as JSON; a
// marshal failure is recorded as a sentinel payload rather than dropped,
// since a handler error here must never propagate back into the bus's
// publish path.
func (s *PostgresSink) Record(ctx context.Context, evt eventbus.Type, safe any) error {
	payload, err := json.Marshal(safe)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log (event_family, event_subtype, event_name, payload, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		evt.Family, evt.Subtype, eventbus.String(evt), payload, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert audit_log row: %w", err)
	}
	return nil
}

var _ audit.Sink = (*PostgresSink)(nil)

// Subscribe registers sink as a KindAsyncFn handler on list (or the
// global sublist, if list is nil) for filter, draining on the bus's own
// worker pool. Record errors are logged, never surfaced to the
// publisher — an audit-sink failure must not turn Publish's success
// signal into a false negative for unrelated subscribers.
func Subscribe(bus *eventbus.Bus, list *eventbus.SubList, filter eventbus.Type, sink audit.Sink) (*eventbus.Subscription, error) {
	return bus.Subscribe(list, filter, eventbus.AsyncFnHandler(
		func(h eventbus.SubHandle, evt eventbus.Type, safe any) {
			if err := sink.Record(context.Background(), evt, safe); err != nil {
				slog.Error("audit sink write failed", "event", eventbus.String(evt), "error", err)
			}
		},
		nil, nil,
	))
}
