// Package serverevent defines the event-type family this service publishes
// on its bus: server lifecycle and proxy connectivity notifications. It is
// the concrete vocabulary layered on top of the generic eventbus core — the
// bus itself knows nothing about servers or proxies, only (family, subtype)
// pairs.
package serverevent

import "github.com/alanyang/eventmesh/internal/eventbus"

// Families.
const (
	FamilyServer eventbus.Family = 1
	FamilyProxy  eventbus.Family = 2
)

// Server family subtypes.
const (
	ServerAdd    eventbus.Subtype = 1 << 0
	ServerRemove eventbus.Subtype = 1 << 1
	ServerUpdate eventbus.Subtype = 1 << 2
)

// Proxy family subtypes.
const (
	ProxyConnect    eventbus.Subtype = 1 << 0
	ProxyDisconnect eventbus.Subtype = 1 << 1
)

func init() {
	_ = eventbus.RegisterName(eventbus.NewType(FamilyServer, ServerAdd), "server.add")
	_ = eventbus.RegisterName(eventbus.NewType(FamilyServer, ServerRemove), "server.remove")
	_ = eventbus.RegisterName(eventbus.NewType(FamilyServer, ServerUpdate), "server.update")
	_ = eventbus.RegisterName(eventbus.NewType(FamilyProxy, ProxyConnect), "proxy.connect")
	_ = eventbus.RegisterName(eventbus.NewType(FamilyProxy, ProxyDisconnect), "proxy.disconnect")
}

// Payload is the struct published for every server/proxy event. Safe is the
// region copied into async envelopes (ids and names only — cheap to copy,
// safe to retain past the publishing call); Unsafe carries anything a sync
// handler may want that is not meant to survive into an async envelope
// (e.g. a pointer the caller will mutate right after Publish returns).
type Payload struct {
	Safe   SafeFields
	Unsafe any
}

// SafeFields is the async-safe region of Payload.
type SafeFields struct {
	ServerID string
	Name     string
	Address  string
}

// SafeCopy implements eventbus.SafeCopier: only SafeFields is ever frozen
// into an async envelope.
func (p Payload) SafeCopy() any {
	return p.Safe
}
