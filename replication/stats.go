package replication

import "sync/atomic"

// Stats counts non-fatal replication anomalies. Everything here recovers
// locally; the counters exist so soak tests and status logs can see how
// often the recovery paths fire.
type Stats struct {
	// StaleDropped: update arrived for a tick at or behind the last
	// applied tick for that entity/component.
	StaleDropped atomic.Uint64
	// UnknownEntity: update referenced an entity the observer does not
	// know, usually a despawn racing an in-flight update.
	UnknownEntity atomic.Uint64
	// BufferExhausted: prediction history no longer covered an incoming
	// authoritative tick and the value was applied as a hard snap.
	BufferExhausted atomic.Uint64
	// StaleInputDropped: input intent arrived for an already-simulated
	// tick and was discarded by the server.
	StaleInputDropped atomic.Uint64
}
