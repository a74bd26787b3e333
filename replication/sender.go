package replication

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/playsmith/netplay/shared/messages"
)

// EntityState is the sender-facing view of one live replicated entity at
// the current tick.
type EntityState struct {
	Id    messages.NetworkId
	Owner messages.ClientId
	// Values maps component id to the current component value for every
	// server-to-client component present on the entity.
	Values map[uint]any
}

// Sender tracks what one observer has been told and emits per-tick
// deltas: spawn records for newly visible entities, updates only for
// components whose serialized value changed, and tombstones for entities
// that disappeared. One Sender exists per connected observer.
type Sender struct {
	reg      *Registry
	lastSent map[messages.NetworkId]map[uint][]byte
}

func NewSender(reg *Registry) *Sender {
	return &Sender{
		reg:      reg,
		lastSent: make(map[messages.NetworkId]map[uint][]byte),
	}
}

// Build produces the observer's snapshot for this tick from the full set
// of live replicated entities. Entities the observer knew that are absent
// from live produce despawn records.
func (s *Sender) Build(tick uint64, live []EntityState, inputAck uint64) (messages.Snapshot, error) {
	snap := messages.Snapshot{Tick: tick, InputAck: inputAck}

	seen := make(map[messages.NetworkId]bool, len(live))
	for _, ent := range live {
		seen[ent.Id] = true

		sent, known := s.lastSent[ent.Id]
		if !known {
			rec, encoded, err := s.encodeAll(ent, tick)
			if err != nil {
				return messages.Snapshot{}, err
			}
			snap.Spawns = append(snap.Spawns, rec)
			s.lastSent[ent.Id] = encoded
			continue
		}

		update := messages.EntityUpdate{Entity: ent.Id, Tick: tick}
		for _, id := range sortedIds(ent.Values) {
			entry, ok := s.reg.ById(id)
			if !ok {
				return messages.Snapshot{}, fmt.Errorf("sender: component %d not registered", id)
			}
			data, err := entry.Encode(ent.Values[id])
			if err != nil {
				return messages.Snapshot{}, err
			}
			if bytes.Equal(sent[id], data) {
				continue
			}
			sent[id] = data
			update.Components = append(update.Components, messages.ComponentRecord{Id: id, Data: data})
		}
		if len(update.Components) > 0 {
			snap.Updates = append(snap.Updates, update)
		}
	}

	for id := range s.lastSent {
		if !seen[id] {
			snap.Despawns = append(snap.Despawns, messages.DespawnRecord{Entity: id, Tick: tick})
			delete(s.lastSent, id)
		}
	}
	sort.Slice(snap.Despawns, func(i, j int) bool { return snap.Despawns[i].Entity < snap.Despawns[j].Entity })

	return snap, nil
}

func (s *Sender) encodeAll(ent EntityState, tick uint64) (messages.SpawnRecord, map[uint][]byte, error) {
	rec := messages.SpawnRecord{Entity: ent.Id, Owner: ent.Owner, Tick: tick}
	encoded := make(map[uint][]byte, len(ent.Values))
	for _, id := range sortedIds(ent.Values) {
		entry, ok := s.reg.ById(id)
		if !ok {
			return messages.SpawnRecord{}, nil, fmt.Errorf("sender: component %d not registered", id)
		}
		data, err := entry.Encode(ent.Values[id])
		if err != nil {
			return messages.SpawnRecord{}, nil, err
		}
		encoded[id] = data
		rec.Components = append(rec.Components, messages.ComponentRecord{Id: id, Data: data})
	}
	return rec, encoded, nil
}

func sortedIds(values map[uint]any) []uint {
	ids := make([]uint, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
