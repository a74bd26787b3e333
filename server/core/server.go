package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"sync"

	"github.com/yohamta/donburi"

	"github.com/playsmith/netplay/network"
	"github.com/playsmith/netplay/replication"
	"github.com/playsmith/netplay/shared/gamemath"
	"github.com/playsmith/netplay/shared/messages"
	"github.com/playsmith/netplay/shared/netcomponents"
	"github.com/playsmith/netplay/shared/protocol"
)

// DisconnectPolicy decides what happens to a client's entities when the
// client goes away.
type DisconnectPolicy int

const (
	// DespawnOnDisconnect removes the client's entities and replicates
	// tombstones to all remaining observers. The default.
	DespawnOnDisconnect DisconnectPolicy = iota
	// OrphanOnDisconnect leaves the entities in the world with no
	// controller.
	OrphanOnDisconnect
)

// ParseDisconnectPolicy maps a config string to a policy, defaulting to
// despawn.
func ParseDisconnectPolicy(s string) DisconnectPolicy {
	if s == "orphan" {
		return OrphanOnDisconnect
	}
	return DespawnOnDisconnect
}

// clientSlot is the server-side state for one connection.
type clientSlot struct {
	id     messages.ClientId
	peer   network.Peer
	entity donburi.Entity
	netId  messages.NetworkId
	joined bool

	// pending holds intents keyed by the tick they target; lastIntent is
	// reused for ticks whose intent never arrived (dead reckoning).
	pending       map[uint64]messages.InputIntent
	lastIntent    messages.InputIntent
	lastInputTick uint64

	sender *replication.Sender
}

// Server owns the authoritative world. Tick runs on the game loop
// goroutine only; transport callbacks merely register and unregister
// peers, and frames wait in per-peer inboxes until the next tick drains
// them.
type Server struct {
	world    donburi.World
	reg      *replication.Registry
	stats    *replication.Stats
	tuning   gamemath.StepConfig
	name     string
	version  string
	tickRate int
	policy   DisconnectPolicy

	mu         sync.Mutex
	clients    map[network.Peer]*clientSlot
	departed   []*clientSlot
	nextClient messages.ClientId
	nextEntity messages.NetworkId

	// tokens maps issued reconnect tokens to the entity they may reclaim.
	// Only touched on the simulation goroutine.
	tokens map[string]donburi.Entity

	tick uint64
}

func NewServer(reg *replication.Registry, name, version string, tickRate int, tuning gamemath.StepConfig, policy DisconnectPolicy) *Server {
	return &Server{
		world:      donburi.NewWorld(),
		reg:        reg,
		stats:      &replication.Stats{},
		tuning:     tuning,
		name:       name,
		version:    version,
		tickRate:   tickRate,
		policy:     policy,
		clients:    make(map[network.Peer]*clientSlot),
		nextClient: messages.LocalClient + 1,
		nextEntity: 1,
		tokens:     make(map[string]donburi.Entity),
	}
}

// AddLocalPeer registers the host-server's co-located client under the
// reserved local id.
func (s *Server) AddLocalPeer(p network.Peer) {
	s.addPeer(p, messages.LocalClient)
}

// AddRemotePeer registers a remote connection; invoked by transports on
// connect.
func (s *Server) AddRemotePeer(p network.Peer) {
	s.mu.Lock()
	id := s.nextClient
	s.nextClient++
	s.mu.Unlock()
	s.addPeer(p, id)
}

func (s *Server) addPeer(p network.Peer, id messages.ClientId) {
	slot := &clientSlot{
		id:      id,
		peer:    p,
		pending: make(map[uint64]messages.InputIntent),
		sender:  replication.NewSender(s.reg),
	}
	s.mu.Lock()
	s.clients[p] = slot
	s.mu.Unlock()
	log.Printf("[server] client %d connected", id)
}

// RemovePeer unregisters a connection. The entity cleanup happens on the
// next tick, on the simulation goroutine.
func (s *Server) RemovePeer(p network.Peer, err error) {
	s.mu.Lock()
	slot, ok := s.clients[p]
	if ok {
		delete(s.clients, p)
		s.departed = append(s.departed, slot)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	if err != nil {
		log.Printf("[server] client %d disconnected: %v", slot.id, err)
	} else {
		log.Printf("[server] client %d disconnected", slot.id)
	}
}

// Tick advances the authoritative simulation by one step: drain inbound
// frames, settle departures, consume one intent per client, run the
// movement rule, then replicate deltas to every observer.
func (s *Server) Tick(tick uint64, dt float64) {
	s.tick = tick

	slots, departed := s.snapshotSlots()

	for _, slot := range slots {
		s.drainPeer(slot)
	}
	for _, slot := range departed {
		s.settleDeparture(slot)
	}

	for _, slot := range slots {
		if !slot.joined {
			continue
		}
		intent, ok := slot.pending[tick]
		if ok {
			slot.lastIntent = intent
			slot.lastInputTick = intent.Tick
		} else {
			// Dead reckoning: reuse the newest known intent instead of
			// treating loss as "no input".
			intent = slot.lastIntent
		}
		for t := range slot.pending {
			if t <= tick {
				delete(slot.pending, t)
			}
		}

		entry := s.world.Entry(slot.entity)
		tr := netcomponents.Transform.Get(entry)
		*tr = netcomponents.StepTransform(*tr, intent, dt, s.tuning)
	}

	live := s.collectLive()
	for _, slot := range slots {
		if !slot.joined {
			continue
		}
		snap, err := slot.sender.Build(tick, live, slot.lastInputTick)
		if err != nil {
			log.Printf("[server] snapshot build for client %d: %v", slot.id, err)
			continue
		}
		frame, err := protocol.Encode(snap)
		if err != nil {
			log.Printf("[server] snapshot encode for client %d: %v", slot.id, err)
			continue
		}
		if err := slot.peer.Send(frame); err != nil {
			log.Printf("[server] send to client %d: %v", slot.id, err)
		}
	}
}

func (s *Server) snapshotSlots() ([]*clientSlot, []*clientSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slots := make([]*clientSlot, 0, len(s.clients))
	for _, slot := range s.clients {
		slots = append(slots, slot)
	}
	departed := s.departed
	s.departed = nil
	return slots, departed
}

func (s *Server) drainPeer(slot *clientSlot) {
	for _, frame := range slot.peer.Poll() {
		msg, err := protocol.Decode(frame)
		if err != nil {
			log.Printf("[server] client %d sent a bad frame: %v", slot.id, err)
			continue
		}
		switch m := msg.(type) {
		case messages.JoinRequest:
			s.handleJoin(slot, m)
		case messages.InputIntent:
			if !slot.joined {
				continue
			}
			if m.Tick < s.tick {
				s.stats.StaleInputDropped.Add(1)
				continue
			}
			slot.pending[m.Tick] = m
		default:
			log.Printf("[server] client %d sent unexpected %T", slot.id, msg)
		}
	}
}

func (s *Server) handleJoin(slot *clientSlot, req messages.JoinRequest) {
	if slot.joined {
		return
	}
	if s.version != "" && req.Version != s.version {
		s.reject(slot, fmt.Sprintf("version mismatch: server wants %q", s.version))
		return
	}

	entity, reclaimed := s.reclaimEntity(req.ReconnectToken)
	if !reclaimed {
		entity = s.world.Create(netcomponents.Transform, netcomponents.Player, netcomponents.NetworkId)
		entry := s.world.Entry(entity)
		netcomponents.Transform.SetValue(entry, netcomponents.NewTransformData())
		netcomponents.NetworkId.SetValue(entry, netcomponents.NetworkIdData{Id: s.allocNetworkId()})
	}

	entry := s.world.Entry(entity)
	netcomponents.Player.SetValue(entry, netcomponents.PlayerData{Client: slot.id})
	netId := netcomponents.NetworkId.Get(entry).Id

	slot.entity = entity
	slot.netId = netId
	slot.joined = true

	// A fresh token per join; the old one is spent whether or not it was
	// used.
	token := newReconnectToken()
	s.tokens[token] = entity

	accept := messages.JoinAccepted{
		ClientId:       slot.id,
		PlayerEntity:   netId,
		Tick:           s.tick,
		TickRate:       s.tickRate,
		ServerName:     s.name,
		ReconnectToken: token,
	}
	frame, err := protocol.Encode(accept)
	if err != nil {
		log.Printf("[server] encode join accept: %v", err)
		return
	}
	if err := slot.peer.Send(frame); err != nil {
		log.Printf("[server] send join accept to client %d: %v", slot.id, err)
		return
	}
	if reclaimed {
		log.Printf("[server] client %d reclaimed entity %d as %q", slot.id, netId, req.PlayerName)
	} else {
		log.Printf("[server] client %d joined as %q, entity %d", slot.id, req.PlayerName, netId)
	}
}

// reclaimEntity redeems a reconnect token for the entity it was issued
// against. The entity must still be alive, which under the despawn policy
// means tokens only work while their owner is connected or orphaned.
func (s *Server) reclaimEntity(token string) (donburi.Entity, bool) {
	if token == "" {
		return 0, false
	}
	entity, ok := s.tokens[token]
	if !ok {
		return 0, false
	}
	delete(s.tokens, token)
	if !s.world.Valid(entity) {
		return 0, false
	}
	return entity, true
}

func (s *Server) reject(slot *clientSlot, reason string) {
	frame, err := protocol.Encode(messages.JoinRejected{Reason: reason})
	if err == nil {
		_ = slot.peer.Send(frame)
	}
	log.Printf("[server] rejected client %d: %s", slot.id, reason)
}

func (s *Server) settleDeparture(slot *clientSlot) {
	if !slot.joined {
		return
	}
	switch s.policy {
	case OrphanOnDisconnect:
		log.Printf("[server] client %d left, entity %d orphaned", slot.id, slot.netId)
	default:
		if s.world.Valid(slot.entity) {
			s.world.Remove(slot.entity)
		}
		log.Printf("[server] client %d left, entity %d despawned", slot.id, slot.netId)
	}
}

// collectLive builds the sender-facing view of every replicated entity:
// all server-to-client component values present on it, plus its owner.
func (s *Server) collectLive() []replication.EntityState {
	var live []replication.EntityState
	netcomponents.NetworkEntityQuery.Each(s.world, func(entry *donburi.Entry) {
		state := replication.EntityState{
			Id:     netcomponents.NetworkId.Get(entry).Id,
			Values: make(map[uint]any),
		}
		if entry.HasComponent(netcomponents.Player) {
			state.Owner = netcomponents.Player.Get(entry).Client
		}
		for _, e := range s.reg.Entries() {
			if e.Direction == replication.ClientToServer {
				continue
			}
			if v, ok := e.Read(entry); ok {
				state.Values[e.Id] = v
			}
		}
		live = append(live, state)
	})
	return live
}

func (s *Server) allocNetworkId() messages.NetworkId {
	id := s.nextEntity
	s.nextEntity++
	return id
}

// World exposes the authoritative world for tests and host wiring.
func (s *Server) World() donburi.World {
	return s.world
}

func (s *Server) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, slot := range s.clients {
		if slot.joined {
			n++
		}
	}
	return n
}

func (s *Server) Stats() *replication.Stats {
	return s.stats
}

func newReconnectToken() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(b[:])
}
