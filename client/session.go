package client

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yohamta/donburi"

	"github.com/playsmith/netplay/network"
	"github.com/playsmith/netplay/replication"
	"github.com/playsmith/netplay/shared/gamemath"
	"github.com/playsmith/netplay/shared/messages"
	"github.com/playsmith/netplay/shared/netcomponents"
	"github.com/playsmith/netplay/systems"
)

// SessionConfig tunes one client-side simulation.
type SessionConfig struct {
	TickRate         int
	Tuning           gamemath.StepConfig
	PredictionDepth  int
	Tolerance        float64
	CorrectionWindow time.Duration
	// InputLead is how many ticks ahead of the newest server tick a remote
	// session targets its intents, covering one way latency.
	InputLead uint64
	// Local marks a session sharing a process with the server; its intents
	// target the very next tick.
	Local   bool
	Intents systems.IntentProvider
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		TickRate:         60,
		Tuning:           gamemath.DefaultStepConfig(),
		PredictionDepth:  network.DefaultPredictionDepth,
		Tolerance:        systems.DefaultToleranceUnits,
		CorrectionWindow: systems.DefaultCorrectionWindow,
		InputLead:        2,
	}
}

type interpKey struct {
	ent  messages.NetworkId
	comp uint
}

// View is the immutable render-facing state published once per tick.
// Everything inside is either a value copy or a pure Resolve snapshot, so
// readers never touch live simulation state.
type View struct {
	Tick     uint64
	entities map[messages.NetworkId]entityView
}

type entityView struct {
	predicted bool
	pred      systems.PredictionView
	hasInterp bool
	interp    systems.InterpView
	static    netcomponents.TransformData
}

// Session mirrors the authoritative world on one client: it applies
// snapshots, predicts the locally controlled entity, interpolates everyone
// else, and samples one intent per tick. Tick runs on the simulation
// goroutine and publishes an immutable View; Resolved reads the latest
// View lock-free, so a render goroutine never waits on a simulation step.
type Session struct {
	world donburi.World
	net   *network.Client
	reg   *replication.Registry
	recv  *replication.Receiver
	stats *replication.Stats
	input *systems.NetInput
	pred  *systems.NetPrediction

	tickDur   time.Duration
	inputLead uint64
	local     bool

	mu             sync.Mutex
	entities       map[messages.NetworkId]donburi.Entity
	owners         map[messages.NetworkId]messages.ClientId
	interps        map[interpKey]*systems.NetInterp
	lastServerTick uint64
	lastAck        uint64
	adopted        bool

	view atomic.Pointer[View]
}

func NewSession(net *network.Client, reg *replication.Registry, cfg SessionConfig) (*Session, error) {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}
	tickDur := time.Second / time.Duration(cfg.TickRate)
	stats := &replication.Stats{}

	predEntry, ok := reg.ByType(netcomponents.Transform)
	if !ok {
		return nil, &replication.ConfigurationError{Reason: "transform component is not registered"}
	}

	return &Session{
		world:     donburi.NewWorld(),
		net:       net,
		reg:       reg,
		recv:      replication.NewReceiver(stats),
		stats:     stats,
		input:     systems.NewNetInput(cfg.Intents),
		pred:      systems.NewNetPrediction(predEntry, cfg.PredictionDepth, tickDur.Seconds(), cfg.Tuning, cfg.Tolerance, cfg.CorrectionWindow, stats),
		tickDur:   tickDur,
		inputLead: cfg.InputLead,
		local:     cfg.Local,
		entities:  make(map[messages.NetworkId]donburi.Entity),
		owners:    make(map[messages.NetworkId]messages.ClientId),
		interps:   make(map[interpKey]*systems.NetInterp),
	}, nil
}

// Tick applies pending snapshots, then samples and sends the next intent,
// predicting its effect locally. The caller passes its current tick
// estimate; in a host process that is the server tick just simulated.
func (s *Session) Tick(tick uint64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publish(tick)

	for _, snap := range s.net.Poll() {
		s.apply(snap, now)
	}

	if s.net.State() != network.StateJoinedGame {
		return
	}

	target := tick + 1
	if !s.local && s.lastServerTick+s.inputLead > target {
		target = s.lastServerTick + s.inputLead
	}

	in := s.input.Sample(target)
	if err := s.net.SendIntent(in); err != nil {
		log.Printf("[session] send intent: %v", err)
		return
	}
	if s.adopted {
		present := s.pred.PredictStep(in)
		if entry, ok := s.worldEntry(s.net.PlayerEntity()); ok {
			netcomponents.Transform.SetValue(entry, present)
		}
	}
}

func (s *Session) apply(snap messages.Snapshot, now time.Time) {
	if snap.Tick > s.lastServerTick {
		s.lastServerTick = snap.Tick
	}
	if snap.InputAck > s.lastAck {
		s.lastAck = snap.InputAck
	}

	for _, sp := range snap.Spawns {
		s.applySpawn(sp, now)
	}
	for _, up := range snap.Updates {
		s.applyUpdate(up, now)
	}
	for _, d := range snap.Despawns {
		s.applyDespawn(d)
	}
}

func (s *Session) applySpawn(sp messages.SpawnRecord, now time.Time) {
	if !s.recv.Spawn(sp.Entity, sp.Tick) {
		return
	}

	entity := s.world.Create(netcomponents.NetworkId)
	entry := s.world.Entry(entity)
	netcomponents.NetworkId.SetValue(entry, netcomponents.NetworkIdData{Id: sp.Entity})
	s.entities[sp.Entity] = entity
	s.owners[sp.Entity] = sp.Owner

	for _, rec := range sp.Components {
		e, ok := s.reg.ById(rec.Id)
		if !ok {
			log.Printf("[session] spawn %d carries unknown component %d", sp.Entity, rec.Id)
			continue
		}
		v, err := e.Decode(rec.Data)
		if err != nil {
			log.Printf("[session] decode component %d on spawn %d: %v", rec.Id, sp.Entity, err)
			continue
		}
		e.Write(entry, v)

		if s.isPredictedLocal(sp.Entity, e) {
			s.pred.Adopt(sp.Tick, v.(netcomponents.TransformData))
			s.adopted = true
		} else if e.Mode != replication.ModeNone {
			s.interpFor(sp.Entity, e).Push(sp.Tick, v, now)
		}
	}
	log.Printf("[session] entity %d spawned (owner %d)", sp.Entity, sp.Owner)
}

func (s *Session) applyUpdate(up messages.EntityUpdate, now time.Time) {
	entry, ok := s.worldEntry(up.Entity)
	if !ok {
		// Unknown entity: let the receiver count it once per component.
		for _, rec := range up.Components {
			s.recv.Commit(up.Entity, rec.Id, up.Tick)
		}
		return
	}

	for _, rec := range up.Components {
		if !s.recv.Commit(up.Entity, rec.Id, up.Tick) {
			continue
		}
		e, ok := s.reg.ById(rec.Id)
		if !ok {
			continue
		}
		v, err := e.Decode(rec.Data)
		if err != nil {
			log.Printf("[session] decode component %d on entity %d: %v", rec.Id, up.Entity, err)
			continue
		}

		switch {
		case s.isPredictedLocal(up.Entity, e):
			s.pred.Reconcile(up.Tick, v.(netcomponents.TransformData), now)
			netcomponents.Transform.SetValue(entry, s.pred.Present())
		case e.Mode != replication.ModeNone:
			s.interpFor(up.Entity, e).Push(up.Tick, v, now)
			e.Write(entry, v)
		default:
			e.Write(entry, v)
		}
	}
}

func (s *Session) applyDespawn(d messages.DespawnRecord) {
	if !s.recv.Despawn(d.Entity, d.Tick) {
		return
	}
	if entity, ok := s.entities[d.Entity]; ok && s.world.Valid(entity) {
		s.world.Remove(entity)
	}
	delete(s.entities, d.Entity)
	delete(s.owners, d.Entity)
	for key := range s.interps {
		if key.ent == d.Entity {
			delete(s.interps, key)
		}
	}
	log.Printf("[session] entity %d despawned", d.Entity)
}

// isPredictedLocal reports whether this entity+component pair is the one
// the session predicts: the predicted transform on the entity the server
// handed to this client. Predicted components on other clients' entities
// are rendered interpolated instead.
func (s *Session) isPredictedLocal(ent messages.NetworkId, e *replication.Entry) bool {
	return e.Mode == replication.ModePredicted &&
		e.Component == netcomponents.Transform &&
		ent == s.net.PlayerEntity() &&
		s.owners[ent] == s.net.ClientId()
}

func (s *Session) interpFor(ent messages.NetworkId, e *replication.Entry) *systems.NetInterp {
	key := interpKey{ent: ent, comp: e.Id}
	i, ok := s.interps[key]
	if !ok {
		i = systems.NewNetInterp(e, s.tickDur)
		s.interps[key] = i
	}
	return i
}

func (s *Session) worldEntry(ent messages.NetworkId) (*donburi.Entry, bool) {
	entity, ok := s.entities[ent]
	if !ok || !s.world.Valid(entity) {
		return nil, false
	}
	return s.world.Entry(entity), true
}

// publish builds and stores the immutable render view for this tick.
// Runs under mu on the simulation goroutine.
func (s *Session) publish(tick uint64) {
	v := &View{Tick: tick, entities: make(map[messages.NetworkId]entityView, len(s.entities))}
	for ent := range s.entities {
		entry, ok := s.worldEntry(ent)
		if !ok || !entry.HasComponent(netcomponents.Transform) {
			continue
		}
		ev := entityView{static: *netcomponents.Transform.Get(entry)}
		if s.adopted && ent == s.net.PlayerEntity() && s.owners[ent] == s.net.ClientId() {
			ev.predicted = true
			ev.pred = s.pred.View()
		} else if i, ok := s.interps[interpKey{ent: ent, comp: s.transformId()}]; ok {
			ev.hasInterp = true
			ev.interp = i.View()
		}
		v.entities[ent] = ev
	}
	s.view.Store(v)
}

// Resolved returns the transform to draw for every known entity at the
// given wall time: the eased predicted value for the local entity,
// interpolated values for the rest. Reads the last published View only
// and never blocks on a running simulation tick.
func (s *Session) Resolved(now time.Time) map[messages.NetworkId]netcomponents.TransformData {
	v := s.view.Load()
	if v == nil {
		return nil
	}

	out := make(map[messages.NetworkId]netcomponents.TransformData, len(v.entities))
	for ent, ev := range v.entities {
		switch {
		case ev.predicted:
			out[ent] = ev.pred.Resolve(now)
		case ev.hasInterp:
			if val, ok := ev.interp.Resolve(now); ok {
				out[ent] = val.(netcomponents.TransformData)
			} else {
				out[ent] = ev.static
			}
		default:
			out[ent] = ev.static
		}
	}
	return out
}

func (s *Session) transformId() uint {
	e, _ := s.reg.ByType(netcomponents.Transform)
	return e.Id
}

// LastServerTick returns the newest authoritative tick applied.
func (s *Session) LastServerTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastServerTick
}

// LastAck returns the newest input tick the server confirmed consuming.
func (s *Session) LastAck() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAck
}

func (s *Session) Client() *network.Client {
	return s.net
}

func (s *Session) Stats() *replication.Stats {
	return s.stats
}

func (s *Session) World() donburi.World {
	return s.world
}
