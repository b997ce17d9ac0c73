package eventbus

import "sync/atomic"

// Envelope is a queue-borne record carrying a frozen copy of an event's
// safe payload plus a reference to its owning subscription. The
// dispatcher allocates one per async delivery; the consumer (a bus-owned
// worker for KindAsyncFn, the caller for KindAsyncTask) must call Free
// exactly once per envelope it receives.
type Envelope struct {
	// Type is the event type this envelope carries. For the terminal
	// control envelope on a KindAsyncTask subscription, Type is SubEnd.
	Type Type
	// Safe is the frozen copy of the event's safe payload region. For a
	// SubEnd envelope, Safe is nil.
	Safe any

	sub   *Subscription
	freed atomic.Bool
}

// SubMgmt returns a handle that lets the consumer inspect, resubscribe,
// or unsubscribe the owning subscription — the same facade a sync or
// async-fn handler receives inline.
func (e *Envelope) SubMgmt() SubHandle { return SubHandle{sub: e.sub} }

// IsSubEnd reports whether this is the terminal control envelope
// delivered exactly once to a KindAsyncTask subscription when it becomes
// inactive. No further envelopes follow it for that subscription.
func (e *Envelope) IsSubEnd() bool { return Equal(e.Type, SubEnd) }

// Free releases the envelope: it decrements the owning subscription's
// outstanding count and drops the reference taken when the envelope was
// enqueued, finalizing the subscription's storage if that was the last
// reference. Calling Free more than once on the same envelope is a
// harmless no-op.
func (e *Envelope) Free() {
	if !e.freed.CompareAndSwap(false, true) {
		return
	}
	e.sub.outstanding.Add(-1)
	e.sub.release()
}

// SubHandle is the sub-management facade passed to a running sync
// handler, a KindAsyncFn handler, or obtained from an Envelope. All
// three operations are safe to call from any goroutine, including the
// subscription's own handler while it is running.
type SubHandle struct {
	sub *Subscription
}

// GetFilter returns the subscription's current event-type filter.
func (h SubHandle) GetFilter() Type { return h.sub.GetFilter() }

// Resubscribe atomically replaces the subscription's filter. See
// Subscription.Resubscribe.
func (h SubHandle) Resubscribe(newFilter Type) error { return h.sub.Resubscribe(newFilter) }

// Unsubscribe transitions the subscription to inactive. See
// Subscription.Unsubscribe.
func (h SubHandle) Unsubscribe() bool { return h.sub.Unsubscribe() }

// Handle returns the underlying subscription's unique internal handle,
// mainly useful for logging/diagnostics.
func (h SubHandle) Handle() uint64 { return h.sub.handle }
