package eventbus

import (
	"fmt"
	"log/slog"
	"reflect"
)

// DefaultAsyncCapacityBytes is the default upper bound on the size of an
// event's safe payload region, enforced at Publish time. Adjustable per
// Bus via WithAsyncCapacityBytes.
const DefaultAsyncCapacityBytes = 384

// DefaultWorkers bounds how many KindAsyncFn handler invocations may run
// concurrently across an entire Bus, regardless of how many such
// subscriptions exist. Adjustable via WithWorkers.
const DefaultWorkers = 8

// SafeCopier is implemented by event payloads that separate a safe
// (async-copyable) region from an unsafe, sync-only region. Publish
// calls SafeCopy to obtain the value frozen into async envelopes; a
// payload that does not implement SafeCopier is copied into envelopes
// as-is, i.e. it is treated as entirely safe.
type SafeCopier interface {
	SafeCopy() any
}

// Bus is the dispatcher (spec.md C5): the single Publish entry point,
// the Subscribe family, and the process-wide global sublist that is
// implicit whenever a caller passes a nil *SubList.
type Bus struct {
	global *SubList

	asyncCapacityBytes int
	workerSem          chan struct{}
	maxSubsPerList     int
	logger             *slog.Logger
}

// Option configures a Bus at construction time.
type Option func(*Bus)

// WithAsyncCapacityBytes overrides DefaultAsyncCapacityBytes.
func WithAsyncCapacityBytes(n int) Option {
	return func(b *Bus) { b.asyncCapacityBytes = n }
}

// WithWorkers overrides DefaultWorkers.
func WithWorkers(n int) Option {
	return func(b *Bus) { b.workerSem = make(chan struct{}, n) }
}

// WithMaxSubscriptionsPerList bounds how many subscriptions any one
// SubList (global or caller-created) may hold. 0 (the default) is
// unbounded.
func WithMaxSubscriptionsPerList(n int) Option {
	return func(b *Bus) { b.maxSubsPerList = n }
}

// WithLogger overrides the bus's diagnostic logger (recovered handler
// panics). Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// NewBus constructs a Bus and its global sublist.
func NewBus(opts ...Option) *Bus {
	b := &Bus{asyncCapacityBytes: DefaultAsyncCapacityBytes, logger: slog.Default()}
	for _, o := range opts {
		o(b)
	}
	if b.workerSem == nil {
		b.workerSem = make(chan struct{}, DefaultWorkers)
	}
	b.global = newSubList(b.maxSubsPerList)
	return b
}

// NewSubList creates a user sublist bound to this bus's subscription
// cap. Destroy it with (*SubList).Destroy when it is no longer needed;
// the process-wide global sublist (nil) instead lives for the Bus's own
// lifetime — destroy it explicitly with Bus.Close at shutdown.
func (b *Bus) NewSubList() *SubList {
	return newSubList(b.maxSubsPerList)
}

// Close tears down the bus's implicit global sublist. Any caller-created
// sublists are unaffected and must be destroyed individually.
func (b *Bus) Close() {
	b.global.Destroy()
}

// Global returns the bus's implicit global sublist, the same one
// substituted for a nil *SubList by Subscribe/SubscribePtr/Publish. It
// exists mainly for admin introspection (Snapshot, Len).
func (b *Bus) Global() *SubList {
	return b.global
}

func (b *Bus) resolveList(list *SubList) *SubList {
	if list == nil {
		return b.global
	}
	return list
}

// Subscribe registers a handler descriptor against filter on list (or
// the global sublist, if list is nil). It panics if filter's family is
// 0 — reserved for the bus's own control events — since such a
// subscription could never be matched by any caller's Publish. It
// returns ErrTooManySubscriptions if list is already at its configured
// capacity.
func (b *Bus) Subscribe(list *SubList, filter Type, d Descriptor) (*Subscription, error) {
	return b.subscribe(list, filter, d, 0)
}

// SubscribePtr is the handle-returning variant: the returned *SubRef
// starts with two refcount units — one for the sublist, one for the
// caller — and must eventually be Dropped.
func (b *Bus) SubscribePtr(list *SubList, filter Type, d Descriptor) (*SubRef, error) {
	s, err := b.subscribe(list, filter, d, 1)
	if err != nil {
		return nil, err
	}
	return &SubRef{sub: s}, nil
}

func (b *Bus) subscribe(list *SubList, filter Type, d Descriptor, extraRefs int64) (*Subscription, error) {
	if filter.Family == ControlFamily {
		panic("eventbus: cannot subscribe on the reserved control family (0)")
	}
	l := b.resolveList(list)
	s := newSubscription(l, filter, d, extraRefs, 0)
	if err := l.insert(s); err != nil {
		return nil, err
	}
	if s.kind == KindAsyncFn {
		b.startWorker(s)
	}
	return s, nil
}

// Publish is the dispatcher's single entry point. It validates evt (bad
// arguments panic — spec.md §7 kind 1: programmer errors), walks list
// (or the global sublist, if list is nil) under a read lock, invokes
// every matching KindSync handler inline in insertion order, then
// enqueues an envelope for every matching async subscription in
// insertion order. It returns true on success or when there were no
// matches, and false only when every match was an async subscription
// and every one of them failed to enqueue (a KindSync match always
// counts as a successful delivery).
func (b *Bus) Publish(list *SubList, evt Type, payload any) bool {
	if evt.Family == ControlFamily {
		panic("eventbus: cannot publish on the reserved control family (0)")
	}
	if !HasSingleSubtypeBit(evt) {
		panic(fmt.Sprintf("eventbus: published event must set exactly one subtype bit, got %#v", evt))
	}

	var safe any
	if payload != nil {
		if sc, ok := payload.(SafeCopier); ok {
			safe = sc.SafeCopy()
		} else {
			safe = payload
		}
		if safe != nil {
			if size := int(reflect.TypeOf(safe).Size()); size > b.asyncCapacityBytes {
				panic(fmt.Sprintf("eventbus: safe payload of %d bytes exceeds async capacity of %d bytes", size, b.asyncCapacityBytes))
			}
		}
	}

	l := b.resolveList(list)

	var matched, syncMatched, asyncSucceeded int
	var pending []*Subscription
	needsCompaction := l.iterForPublish(evt, func(s *Subscription) {
		matched++
		switch s.kind {
		case KindSync:
			syncMatched++
			b.invokeSync(s, evt, payload)
		case KindAsyncFn, KindAsyncTask:
			pending = append(pending, s)
		}
	})
	for _, s := range pending {
		if s.enqueueForPublish(evt, safe) {
			asyncSucceeded++
		}
	}
	if needsCompaction {
		l.compact()
	}

	if matched == 0 {
		return true
	}
	if syncMatched == 0 && asyncSucceeded == 0 {
		return false
	}
	return true
}

// invokeSync calls a KindSync handler inline, recovering a panic so one
// faulty subscriber cannot take down the publisher or skip the
// remaining subscribers in the walk.
func (b *Bus) invokeSync(s *Subscription, evt Type, payload any) {
	defer func() {
		if r := recover(); r != nil {
			if b.logger != nil {
				b.logger.Error("eventbus: sync handler panicked", "handle", s.handle, "recovered", r)
			}
		}
	}()
	s.syncFn(SubHandle{sub: s}, evt, payload)
}

// startWorker launches the dedicated goroutine that drains a
// KindAsyncFn subscription's queue. It parks on workSignal (coalesced
// wakeups) and exits once the subscription is inactive and its queue is
// provably empty — see Subscription.workerShouldExit for why that check
// must run under stateMu.
func (b *Bus) startWorker(s *Subscription) {
	go func() {
		for range s.workSignal {
			for {
				env, ok := s.queue.Pop()
				if !ok {
					break
				}
				b.runAsyncFn(s, env)
			}
			if s.workerShouldExit() {
				return
			}
		}
	}()
}

func (b *Bus) runAsyncFn(s *Subscription, env *Envelope) {
	b.workerSem <- struct{}{}
	defer func() { <-b.workerSem }()
	defer env.Free()
	defer func() {
		if r := recover(); r != nil {
			if b.logger != nil {
				b.logger.Error("eventbus: async handler panicked", "handle", s.handle, "recovered", r)
			}
		}
	}()
	s.asyncFn(SubHandle{sub: s}, env.Type, env.Safe)
}
