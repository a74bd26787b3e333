package replication

import "github.com/playsmith/netplay/shared/messages"

// Receiver enforces the apply-side ordering guarantee for one observer:
// within an entity's component stream, commits happen in strictly
// increasing tick order, and stale or duplicate updates are dropped
// idempotently. It tracks ticks only; callers own the component data and
// apply a value only when the receiver reports it fresh.
type Receiver struct {
	last  map[messages.NetworkId]map[uint]uint64
	gone  map[messages.NetworkId]uint64
	stats *Stats
}

func NewReceiver(stats *Stats) *Receiver {
	return &Receiver{
		last:  make(map[messages.NetworkId]map[uint]uint64),
		gone:  make(map[messages.NetworkId]uint64),
		stats: stats,
	}
}

// Spawn introduces an entity. It returns false when the spawn is a
// duplicate or arrives after the entity's tombstone.
func (rc *Receiver) Spawn(ent messages.NetworkId, tick uint64) bool {
	if _, dead := rc.gone[ent]; dead {
		rc.stats.StaleDropped.Add(1)
		return false
	}
	if _, known := rc.last[ent]; known {
		rc.stats.StaleDropped.Add(1)
		return false
	}
	rc.last[ent] = map[uint]uint64{0: tick}
	return true
}

// Known reports whether the entity is live on this observer.
func (rc *Receiver) Known(ent messages.NetworkId) bool {
	_, ok := rc.last[ent]
	return ok
}

// Commit records an update for entity/component at tick. It returns true
// when the update is fresh and should be applied, false when it is stale,
// a duplicate, or references an unknown or tombstoned entity.
func (rc *Receiver) Commit(ent messages.NetworkId, comp uint, tick uint64) bool {
	ticks, known := rc.last[ent]
	if !known {
		rc.stats.UnknownEntity.Add(1)
		return false
	}
	// The spawn tick (stored under the reserved key 0) floors every
	// component stream, so updates older than the spawn never apply.
	base := ticks[comp]
	if ticks[0] > base {
		base = ticks[0]
	}
	if tick <= base {
		rc.stats.StaleDropped.Add(1)
		return false
	}
	ticks[comp] = tick
	return true
}

// Despawn applies an entity tombstone. The first call returns true;
// repeats are no-ops so a resent tombstone never despawns twice.
func (rc *Receiver) Despawn(ent messages.NetworkId, tick uint64) bool {
	if _, known := rc.last[ent]; !known {
		if _, dead := rc.gone[ent]; dead {
			rc.stats.StaleDropped.Add(1)
		} else {
			rc.stats.UnknownEntity.Add(1)
		}
		return false
	}
	delete(rc.last, ent)
	rc.gone[ent] = tick
	return true
}
