package eventbus

import "errors"

// Sentinel errors returned by the public surface. Bad-argument conditions
// (malformed event types, family-0 misuse, oversize payloads) are
// programmer errors and panic instead of returning one of these — see
// the per-function docs.
var (
	// ErrFamilyChange is returned by Resubscribe when the new filter's
	// family differs from the subscription's current filter. Family
	// changes are rejected outright; the original filter is left intact.
	ErrFamilyChange = errors.New("eventbus: resubscribe cannot change event family")

	// ErrTooManySubscriptions is returned by Subscribe/SubscribePtr when
	// the target sublist has reached the bus's configured per-list cap.
	ErrTooManySubscriptions = errors.New("eventbus: subscription limit reached")
)
