// Package messages defines the wire types exchanged between clients and
// the authoritative simulation. Everything here is msgpack-serialized;
// keep fields exported and free of engine-internal types.
package messages

// ClientId identifies one connection to the authoritative simulation.
// Exactly one player entity is bound to each ClientId for its lifetime.
type ClientId uint64

// LocalClient is the reserved id of the client co-located with the
// authoritative simulation in host-server mode. Remote clients are
// assigned ids starting at 1.
const LocalClient ClientId = 0

// NetworkId identifies a replicated entity on the wire. Assigned by the
// server at spawn, never reused within a session.
type NetworkId uint32
