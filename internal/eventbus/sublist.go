package eventbus

import (
	"sync"
	"sync/atomic"
)

// SubList is an ordered, reader/writer-locked set of subscriptions.
// Subscribe-family calls take the write lock; Publish takes the read
// lock for the duration of its walk. The process-wide global sublist
// (implicit when a caller passes a nil *SubList) and any caller-created
// sublist share exactly this type and lifecycle — they differ only in
// who calls Destroy and when.
type SubList struct {
	mu   sync.RWMutex
	subs []*Subscription

	maxSubs   int // 0 = unbounded
	destroyed atomic.Bool
}

// newSubList constructs a SubList bounded at maxSubs members (0 =
// unbounded).
func newSubList(maxSubs int) *SubList {
	return &SubList{maxSubs: maxSubs}
}

// insert appends s under the write lock. It returns
// ErrTooManySubscriptions without inserting if the list is already at
// its configured capacity, and panics if the list was destroyed — a
// programmer error, since a destroyed sublist must not be reused.
func (l *SubList) insert(s *Subscription) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.destroyed.Load() {
		panic("eventbus: insert into a destroyed sublist")
	}
	if l.maxSubs > 0 && len(l.subs) >= l.maxSubs {
		return ErrTooManySubscriptions
	}
	l.subs = append(l.subs, s)
	return nil
}

// Lookup returns the active, identified subscription matching id, or
// (nil, false) if id is 0 (anonymous, never matches) or no such active
// subscription exists.
func (l *SubList) Lookup(id uint64) (*Subscription, bool) {
	if id == 0 {
		return nil, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.subs {
		if s.id == id && s.active.Load() {
			return s, true
		}
	}
	return nil, false
}

// LookupTake returns a refcounted external handle to the active,
// identified subscription matching id, or (nil, false) if none exists.
// The returned *SubRef must eventually be Dropped.
func (l *SubList) LookupTake(id uint64) (*SubRef, bool) {
	s, ok := l.Lookup(id)
	if !ok {
		return nil, false
	}
	s.take()
	return &SubRef{sub: s}, true
}

// LookupUnsubscribe finds the active, identified subscription matching
// id and unsubscribes it in one step, removing it from the list
// immediately (no deferred unlink, since this is always called from
// outside a publish walk — never from a running handler on this list).
// Returns false if no such active subscription exists.
func (l *SubList) LookupUnsubscribe(id uint64) bool {
	if id == 0 {
		return false
	}
	l.mu.Lock()
	idx := -1
	for i, s := range l.subs {
		if s.id == id && s.active.Load() {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return false
	}
	s := l.subs[idx]
	l.subs = append(l.subs[:idx:idx], l.subs[idx+1:]...)
	l.mu.Unlock()

	return s.Unsubscribe()
}

// LookupResubscribe finds the active, identified subscription matching
// id and atomically replaces its filter. Returns false if no such active
// subscription exists, or if newFilter's family differs from the
// subscription's current filter's family.
func (l *SubList) LookupResubscribe(id uint64, newFilter Type) bool {
	s, ok := l.Lookup(id)
	if !ok {
		return false
	}
	return s.Resubscribe(newFilter) == nil
}

// iterForPublish walks active members matching evt under the read lock,
// invoking visit for each. It reports whether any member was found
// inactive — either stale from a prior deferred unlink, or deactivated
// by visit itself (a handler calling Unsubscribe on its own or another
// subscription) — so the caller knows whether a compaction pass is
// worthwhile.
func (l *SubList) iterForPublish(evt Type, visit func(*Subscription)) (needsCompaction bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.subs {
		if !s.active.Load() {
			needsCompaction = true
			continue
		}
		if !Matches(s.GetFilter(), evt) {
			continue
		}
		visit(s)
		if !s.active.Load() {
			needsCompaction = true
		}
	}
	return needsCompaction
}

// compact drops every inactive member from the list under the write
// lock. Called after iterForPublish reports a deferred unlink is
// pending.
func (l *SubList) compact() {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.subs[:0]
	for _, s := range l.subs {
		if s.active.Load() {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(l.subs); i++ {
		l.subs[i] = nil // let the dropped *Subscription be collected
	}
	l.subs = kept
}

// Len reports the current number of members, active or not yet
// compacted.
func (l *SubList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

// Snapshot returns a copy of the currently active members, for
// introspection (admin tooling, tests). It is not used by the publish
// path.
func (l *SubList) Snapshot() []*Subscription {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Subscription, 0, len(l.subs))
	for _, s := range l.subs {
		if s.active.Load() {
			out = append(out, s)
		}
	}
	return out
}

// Destroy marks every member inactive (emitting SubEnd to any
// KindAsyncTask member and dropping the list's own reference, so each
// is released as soon as its outstanding envelopes drain and no
// external reference remains), then tears the list itself down. It is
// idempotent. A destroyed SubList must not be passed to insert/Subscribe
// again.
func (l *SubList) Destroy() {
	if !l.destroyed.CompareAndSwap(false, true) {
		return
	}
	l.mu.Lock()
	members := l.subs
	l.subs = nil
	l.mu.Unlock()

	for _, s := range members {
		s.Unsubscribe()
	}
}
