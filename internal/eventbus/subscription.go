package eventbus

import (
	"sync"
	"sync/atomic"
)

// Kind distinguishes the three handler-descriptor shapes a Subscription
// may carry. The dispatcher switches on Kind on its hot path rather than
// invoking through an interface.
type Kind int

const (
	// KindSync runs inline on the publishing goroutine with access to
	// the event's unsafe payload region.
	KindSync Kind = iota
	// KindAsyncFn is drained by a worker goroutine the bus itself owns;
	// the handler function only ever sees the safe payload copy.
	KindAsyncFn
	// KindAsyncTask appends envelopes to a queue the caller supplied at
	// subscribe time and wakes the caller's own task; the caller drains
	// the queue itself and must call Envelope.Free on each entry.
	KindAsyncTask
)

// SyncFunc is invoked inline for a KindSync subscription. payload is the
// exact struct passed to Publish (both safe and unsafe regions);
// handlers must not retain it past the call.
type SyncFunc func(h SubHandle, evt Type, payload any)

// AsyncFunc is invoked by a bus-owned worker for a KindAsyncFn
// subscription, once per delivered envelope. The bus calls Envelope.Free
// automatically after Fn returns.
type AsyncFunc func(h SubHandle, evt Type, safe any)

// WakeToken is an opaque handle the bus notifies after pushing to an
// async queue. The bus never introspects it; AsyncTask callers supply
// their own (a channel send, a scheduler handle, anything with Wake).
// Wakeups are coalesced: at least one Wake call is guaranteed following
// an empty-to-non-empty transition, never a guarantee of exactly one.
type WakeToken interface {
	Wake()
}

// PrivateFree releases caller-owned private data. It runs exactly once,
// at the moment a subscription's storage is released: after it is no
// longer active, holds no external reference, and every envelope it
// produced has been freed.
type PrivateFree func(private any)

// Descriptor describes how a subscription delivers events. Build one
// with Sync, AsyncFnHandler, or AsyncTask, optionally chained with
// WithID to make it identified (lookup-able via the sublist).
type Descriptor struct {
	kind Kind

	syncFn  SyncFunc
	asyncFn AsyncFunc

	queue *AsyncQueue // caller-supplied; only meaningful for KindAsyncTask
	wake  WakeToken   // caller-supplied; only meaningful for KindAsyncTask

	private     any
	privateFree PrivateFree

	id uint64 // 0 => anonymous
}

// Sync builds a KindSync handler descriptor: fn runs inline on the
// publishing goroutine.
func Sync(fn SyncFunc, private any, free PrivateFree) Descriptor {
	return Descriptor{kind: KindSync, syncFn: fn, private: private, privateFree: free}
}

// AsyncFnHandler builds a KindAsyncFn handler descriptor: fn runs on a
// bus-owned worker, once per envelope, for the lifetime of the
// subscription. fn must not touch the unsafe payload region — it never
// sees it.
func AsyncFnHandler(fn AsyncFunc, private any, free PrivateFree) Descriptor {
	return Descriptor{kind: KindAsyncFn, asyncFn: fn, private: private, privateFree: free}
}

// AsyncTask builds a KindAsyncTask handler descriptor: envelopes are
// appended to queue (caller-owned, must outlive the subscription) and
// task is woken after every push. The caller is responsible for
// draining queue and calling Envelope.Free on each entry, including the
// terminal SubEnd envelope.
func AsyncTask(queue *AsyncQueue, task WakeToken, private any, free PrivateFree) Descriptor {
	return Descriptor{kind: KindAsyncTask, queue: queue, wake: task, private: private, privateFree: free}
}

// WithID returns a copy of d identified by id, making the eventual
// subscription reachable via SubList.Lookup. id must be non-zero.
func (d Descriptor) WithID(id uint64) Descriptor {
	d.id = id
	return d
}

// Subscription is the bus's reference-counted subscription record. It is
// created only by Subscribe/SubscribePtr and never constructed directly
// by callers.
type Subscription struct {
	handle uint64 // unique, monotonic, process-wide
	id     uint64 // 0 => anonymous

	list *SubList // owning sublist; immutable after construction

	filter atomic.Pointer[Type]

	kind        Kind
	syncFn      SyncFunc
	asyncFn     AsyncFunc
	queue       *AsyncQueue // bus-owned for KindAsyncFn, caller-owned for KindAsyncTask
	wake        WakeToken   // caller token for KindAsyncTask; unused for KindAsyncFn
	private     any
	privateFree PrivateFree

	refcount    atomic.Int64
	active      atomic.Bool
	outstanding atomic.Int64
	subEndSent  atomic.Bool

	finalizeOnce sync.Once

	// stateMu serializes the active→inactive transition against enqueue
	// and against the worker goroutine's termination check, so none of
	// the three can observe a state the others have already moved past.
	// Without it, an enqueue that loses a race with Unsubscribe could
	// push an envelope after the worker has already decided the queue
	// will never receive another one and exited — see DESIGN.md.
	stateMu sync.Mutex

	// workSignal wakes the dedicated worker goroutine that drains a
	// KindAsyncFn subscription's queue; see dispatcher.go. A buffered
	// channel of size 1 naturally coalesces a burst of wakeups into one.
	workSignal chan struct{}
}

var nextHandle atomic.Uint64

// newSubscription builds a Subscription born active with refcount
// 1+extraRefs: the sublist's own hold, plus extraRefs external-holder
// units (e.g. 1 for SubscribePtr).
func newSubscription(list *SubList, filter Type, d Descriptor, extraRefs int64, queueCap int) *Subscription {
	s := &Subscription{
		handle:      nextHandle.Add(1),
		id:          d.id,
		list:        list,
		kind:        d.kind,
		syncFn:      d.syncFn,
		asyncFn:     d.asyncFn,
		private:     d.private,
		privateFree: d.privateFree,
	}
	s.filter.Store(&filter)
	s.refcount.Store(1 + extraRefs)
	s.active.Store(true)

	switch d.kind {
	case KindAsyncFn:
		s.queue = newAsyncQueue(queueCap)
		s.workSignal = make(chan struct{}, 1)
	case KindAsyncTask:
		s.queue = d.queue
		s.wake = d.wake
	}
	return s
}

// Handle returns the subscription's unique internal handle.
func (s *Subscription) Handle() uint64 { return s.handle }

// ID returns the subscription's lookup ID, or 0 if anonymous.
func (s *Subscription) ID() uint64 { return s.id }

// Active reports whether the subscription is currently reachable from
// its owning sublist.
func (s *Subscription) Active() bool { return s.active.Load() }

// GetFilter returns the subscription's current event-type filter.
func (s *Subscription) GetFilter() Type { return *s.filter.Load() }

// Resubscribe atomically replaces the subscription's filter. It fails
// with ErrFamilyChange if newFilter's family differs from the current
// filter's family; family changes are never permitted since they would
// change the typed payload the handler expects.
//
// Resubscribe is lock-free so it is safe to call from inside this
// subscription's own running sync handler, which is itself invoked
// while Publish holds the sublist under a read lock.
func (s *Subscription) Resubscribe(newFilter Type) error {
	for {
		old := s.filter.Load()
		if old.Family != newFilter.Family {
			return ErrFamilyChange
		}
		nf := newFilter
		if s.filter.CompareAndSwap(old, &nf) {
			return nil
		}
	}
}

// Unsubscribe transitions the subscription to inactive. It is idempotent
// (a second call is a no-op returning false) and legal from any thread,
// including from inside this subscription's own running handler — the
// physical unlink from the sublist is deferred to the end of the publish
// walk that observes the subscription inactive (the current one, when
// called from a handler it visits), since a sync handler already holds
// the sublist under a read lock and cannot itself acquire the write lock.
// Lookups skip inactive members but never unlink them.
//
// The active→inactive transition must also wake a KindAsyncFn
// subscription's dedicated worker: once inactive, no future publish can
// ever reach it again (enqueueForPublish refuses, iterForPublish skips
// it), so a worker parked on workSignal at the moment of Unsubscribe
// would otherwise never see workerShouldExit become true and would leak.
func (s *Subscription) Unsubscribe() bool {
	s.stateMu.Lock()
	if !s.active.CompareAndSwap(true, false) {
		s.stateMu.Unlock()
		return false
	}
	var wake bool
	switch s.kind {
	case KindAsyncTask:
		if s.subEndSent.CompareAndSwap(false, true) {
			s.enqueueLocked(SubEnd, nil, true)
			wake = true
		}
	case KindAsyncFn:
		s.signalWorker()
	}
	s.stateMu.Unlock()

	if wake && s.wake != nil {
		s.wake.Wake()
	}
	s.release()
	return true
}

// take increments the refcount for an external holder (SubscribePtr,
// LookupTake, or an in-flight envelope). Safe to call while holding
// stateMu: it is a bare atomic increment.
func (s *Subscription) take() { s.refcount.Add(1) }

// release decrements the refcount and, if it reaches zero, finalizes the
// subscription's storage exactly once. Safe to call while holding
// stateMu.
func (s *Subscription) release() {
	if s.refcount.Add(-1) == 0 {
		s.finalize()
	}
}

func (s *Subscription) finalize() {
	s.finalizeOnce.Do(func() {
		if s.privateFree != nil {
			s.privateFree(s.private)
		}
	})
}

// enqueueForPublish builds and pushes an envelope carrying evt/safe onto
// the subscription's queue, on behalf of a matching Publish call. It
// re-checks active under stateMu — the sublist's own pre-filter in
// iterForPublish is only a fast-path hint and may be stale — so a
// concurrent Unsubscribe can never be raced into delivering to a
// subscription that has already gone inactive. Returns false (the
// spec's "allocation failure" outcome) if the subscription is inactive
// or its queue is at capacity; neither case panics.
func (s *Subscription) enqueueForPublish(evt Type, safe any) bool {
	s.stateMu.Lock()
	if !s.active.Load() {
		s.stateMu.Unlock()
		return false
	}
	ok := s.enqueueLocked(evt, safe, false)
	s.stateMu.Unlock()

	if ok && s.kind == KindAsyncTask && s.wake != nil {
		s.wake.Wake()
	}
	return ok
}

// enqueueLocked assumes stateMu is already held. force bypasses the
// queue's capacity bound — used only for the terminal SubEnd envelope,
// which invariant 4 (spec.md §3) requires to be delivered unconditionally
// once a KindAsyncTask subscription goes inactive.
func (s *Subscription) enqueueLocked(evt Type, safe any, force bool) bool {
	s.take()
	s.outstanding.Add(1)
	env := &Envelope{Type: evt, Safe: safe, sub: s}
	var ok bool
	if force {
		ok = s.queue.forcePush(env)
	} else {
		ok = s.queue.push(env)
	}
	if !ok {
		s.outstanding.Add(-1)
		s.release()
		return false
	}
	if s.kind == KindAsyncFn {
		s.signalWorker()
	}
	return true
}

// signalWorker coalesces wakeups for the dedicated KindAsyncFn worker
// goroutine: a non-blocking send ensures a burst of publishes results in
// at most one pending wakeup, while the worker's drain loop always
// re-checks the queue after waking, so no wakeup is ever lost.
func (s *Subscription) signalWorker() {
	select {
	case s.workSignal <- struct{}{}:
	default:
	}
}

// workerShouldExit reports, under stateMu (so it cannot race a concurrent
// enqueueForPublish or Unsubscribe), whether the dedicated KindAsyncFn
// worker goroutine has drained every envelope it will ever receive and
// may exit.
func (s *Subscription) workerShouldExit() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return !s.active.Load() && s.queue.Size() == 0
}
