package messages

// ComponentRecord is one serialized component value.
type ComponentRecord struct {
	Id   uint // sync id from the replication registry
	Data []byte
}

// EntityUpdate carries the changed components of one entity at one tick.
// Receivers must drop it when Tick is at or behind the last tick applied
// for that entity/component.
type EntityUpdate struct {
	Entity     NetworkId
	Tick       uint64
	Components []ComponentRecord
}

// SpawnRecord announces an entity newly visible to the observer, with its
// full replicated component set.
type SpawnRecord struct {
	Entity     NetworkId
	Owner      ClientId
	Tick       uint64
	Components []ComponentRecord
}

// DespawnRecord is the tombstone for a destroyed entity. Observers remove
// their local copy; updates racing past it are dropped.
type DespawnRecord struct {
	Entity NetworkId
	Tick   uint64
}

// Snapshot is the per-tick replication message for one observer. Updates
// contain only components whose value changed since the observer's last
// snapshot.
type Snapshot struct {
	Tick     uint64
	Spawns   []SpawnRecord
	Updates  []EntityUpdate
	Despawns []DespawnRecord

	// InputAck is the newest input tick the simulation has consumed for
	// this observer. Lets the client trim confirmed prediction history and
	// distinguish "no input processed yet" at spawn.
	InputAck uint64
}

// Empty reports whether the snapshot carries no entity changes.
func (s Snapshot) Empty() bool {
	return len(s.Spawns) == 0 && len(s.Updates) == 0 && len(s.Despawns) == 0
}
