// Package eventbus is a generic in-process publish/subscribe bus.
//
// Publishers emit typed events (a family + subtype pair); subscribers
// register handlers that run either synchronously, inline on the
// publishing goroutine with access to the event's unsafe payload region,
// or asynchronously, decoupled through a per-subscription queue drained
// either by a bus-owned worker goroutine (AsyncFn) or by the caller's own
// task (AsyncTask). The package owns the subscription
// lifecycle: reference counting, deferred unlink of subscriptions torn
// down mid-publish, and the at-most-once SubEnd signal delivered to
// async-task subscribers.
//
// The bus does not persist events, does not deliver across process
// boundaries, and does not order deliveries across distinct
// subscriptions — only the per-subscription FIFO order is guaranteed.
package eventbus
