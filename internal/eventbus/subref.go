package eventbus

// SubRef is an external, refcounted handle to a Subscription, returned
// by SubscribePtr and SubList.LookupTake. Each SubRef in existence holds
// exactly one unit of the subscription's refcount; it must eventually be
// Dropped. A SubRef remains valid (Unsubscribe/Resubscribe/GetFilter all
// work) even after the subscription has gone inactive via some other
// path — that is the whole point of the external-holder unit in
// invariant 2 (spec.md §3): the pointer survives a concurrent
// lookup-based unsubscribe.
type SubRef struct {
	sub *Subscription
}

// ID returns the subscription's lookup ID, or 0 if anonymous.
func (r *SubRef) ID() uint64 { return r.sub.ID() }

// Handle returns the subscription's unique internal handle.
func (r *SubRef) Handle() uint64 { return r.sub.Handle() }

// GetFilter returns the subscription's current event-type filter.
func (r *SubRef) GetFilter() Type { return r.sub.GetFilter() }

// Active reports whether the subscription is still reachable from its
// owning sublist.
func (r *SubRef) Active() bool { return r.sub.Active() }

// Resubscribe atomically replaces the subscription's filter.
func (r *SubRef) Resubscribe(newFilter Type) error { return r.sub.Resubscribe(newFilter) }

// Unsubscribe transitions the subscription to inactive. Idempotent;
// returns false if it was already inactive (whether torn down by this
// ref, a different lookup, a handler's own sub-mgmt call, or sublist
// Destroy).
func (r *SubRef) Unsubscribe() bool { return r.sub.Unsubscribe() }

// Take duplicates this external reference, returning a new SubRef that
// shares the same underlying subscription and adds one more unit to its
// refcount. Both the original and the new SubRef must be independently
// Dropped.
func (r *SubRef) Take() *SubRef {
	r.sub.take()
	return &SubRef{sub: r.sub}
}

// Drop releases this external reference. If it was the last outstanding
// reference to an inactive, fully-drained subscription, the
// subscription's storage (and private data, via its PrivateFree) is
// released synchronously on this call.
func (r *SubRef) Drop() { r.sub.release() }
