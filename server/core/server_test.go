package core

import (
	"math"
	"testing"

	"github.com/playsmith/netplay/network"
	"github.com/playsmith/netplay/shared/gamemath"
	"github.com/playsmith/netplay/shared/messages"
	"github.com/playsmith/netplay/shared/netcomponents"
	"github.com/playsmith/netplay/shared/netconfig"
	"github.com/playsmith/netplay/shared/protocol"
)

const testDt = 1.0 / 60.0

func newTestServer(t *testing.T, policy DisconnectPolicy) *Server {
	t.Helper()
	reg, err := protocol.RegisterComponents()
	if err != nil {
		t.Fatalf("RegisterComponents: %v", err)
	}
	reg.Freeze()
	return NewServer(reg, "test-server", "1", 60, gamemath.DefaultStepConfig(), policy)
}

func connect(t *testing.T, s *Server) *network.LoopbackPeer {
	t.Helper()
	serverSide, clientSide := network.NewLoopbackPair()
	s.AddRemotePeer(serverSide)
	return clientSide
}

func send(t *testing.T, peer *network.LoopbackPeer, msg any) {
	t.Helper()
	frame, err := protocol.Encode(msg)
	if err != nil {
		t.Fatalf("Encode(%T): %v", msg, err)
	}
	if err := peer.Send(frame); err != nil {
		t.Fatalf("Send(%T): %v", msg, err)
	}
}

func drain(t *testing.T, peer *network.LoopbackPeer) []any {
	t.Helper()
	var msgs []any
	for _, frame := range peer.Poll() {
		msg, err := protocol.Decode(frame)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func join(t *testing.T, s *Server, peer *network.LoopbackPeer, tick uint64) messages.JoinAccepted {
	t.Helper()
	send(t, peer, messages.JoinRequest{Version: "1", PlayerName: "tester"})
	s.Tick(tick, testDt)
	for _, msg := range drain(t, peer) {
		if accept, ok := msg.(messages.JoinAccepted); ok {
			return accept
		}
	}
	t.Fatalf("no JoinAccepted after tick %d", tick)
	return messages.JoinAccepted{}
}

func upIntent(tick uint64) messages.InputIntent {
	in := messages.NewInputIntent(tick)
	in.Actions[netconfig.ActionUp] = true
	return in
}

func TestJoinSpawnsPlayerEntity(t *testing.T) {
	s := newTestServer(t, DespawnOnDisconnect)
	peer := connect(t, s)

	send(t, peer, messages.JoinRequest{Version: "1", PlayerName: "tester"})
	s.Tick(1, testDt)

	var accept messages.JoinAccepted
	spawned := false
	for _, msg := range drain(t, peer) {
		switch m := msg.(type) {
		case messages.JoinAccepted:
			accept = m
		case messages.Snapshot:
			for _, sp := range m.Spawns {
				if sp.Owner == accept.ClientId && sp.Entity == accept.PlayerEntity {
					spawned = true
				}
			}
		}
	}
	if !spawned {
		t.Fatalf("join tick snapshot carries no spawn for the new player")
	}
	if accept.ClientId != 1 {
		t.Fatalf("ClientId = %d, want 1", accept.ClientId)
	}
	if accept.TickRate != 60 {
		t.Fatalf("TickRate = %d, want 60", accept.TickRate)
	}
	if accept.ReconnectToken == "" {
		t.Fatalf("JoinAccepted carries no reconnect token")
	}
	if s.PlayerCount() != 1 {
		t.Fatalf("PlayerCount = %d after join, want 1", s.PlayerCount())
	}

	entry := netcomponents.FindByNetworkId(s.World(), accept.PlayerEntity)
	if entry == nil {
		t.Fatalf("player entity %d not in world", accept.PlayerEntity)
	}
	if got := netcomponents.Player.Get(entry).Client; got != accept.ClientId {
		t.Fatalf("entity owner = %d, want %d", got, accept.ClientId)
	}
}

func TestVersionMismatchIsRejected(t *testing.T) {
	s := newTestServer(t, DespawnOnDisconnect)
	peer := connect(t, s)

	send(t, peer, messages.JoinRequest{Version: "0.9", PlayerName: "old"})
	s.Tick(1, testDt)

	rejected := false
	for _, msg := range drain(t, peer) {
		if _, ok := msg.(messages.JoinRejected); ok {
			rejected = true
		}
	}
	if !rejected {
		t.Fatalf("mismatched version was not rejected")
	}
	if s.PlayerCount() != 0 {
		t.Fatalf("PlayerCount = %d after rejection, want 0", s.PlayerCount())
	}
}

func TestMovementIsDeterministic(t *testing.T) {
	s := newTestServer(t, DespawnOnDisconnect)
	peer := connect(t, s)
	accept := join(t, s, peer, 1)

	for tick := uint64(2); tick <= 11; tick++ {
		send(t, peer, upIntent(tick))
		s.Tick(tick, testDt)
	}

	entry := netcomponents.FindByNetworkId(s.World(), accept.PlayerEntity)
	if entry == nil {
		t.Fatalf("player entity vanished")
	}
	pos := netcomponents.Transform.Get(entry).Pos
	want := -15.0 * 10 * testDt
	if math.Abs(pos.Z-want) > 1e-9 {
		t.Fatalf("pos.Z = %v after ten forward ticks, want %v", pos.Z, want)
	}
	if pos.X != 0 || pos.Y != 0 {
		t.Fatalf("forward movement drifted off axis: %+v", pos)
	}
}

func TestDroppedIntentReusesLastInput(t *testing.T) {
	s := newTestServer(t, DespawnOnDisconnect)
	peer := connect(t, s)
	accept := join(t, s, peer, 1)

	send(t, peer, upIntent(2))
	s.Tick(2, testDt)
	entry := netcomponents.FindByNetworkId(s.World(), accept.PlayerEntity)
	afterTwo := netcomponents.Transform.Get(entry).Pos.Z

	// No intent for tick 3: the server keeps applying the last one.
	s.Tick(3, testDt)
	afterThree := netcomponents.Transform.Get(entry).Pos.Z
	if afterThree >= afterTwo {
		t.Fatalf("movement stalled on a dropped intent: %v then %v", afterTwo, afterThree)
	}
}

func TestStaleInputIsDroppedAndCounted(t *testing.T) {
	s := newTestServer(t, DespawnOnDisconnect)
	peer := connect(t, s)
	accept := join(t, s, peer, 1)

	for tick := uint64(2); tick <= 5; tick++ {
		s.Tick(tick, testDt)
	}
	drain(t, peer)

	send(t, peer, upIntent(3))
	s.Tick(6, testDt)

	if got := s.Stats().StaleInputDropped.Load(); got != 1 {
		t.Fatalf("StaleInputDropped = %d, want 1", got)
	}
	entry := netcomponents.FindByNetworkId(s.World(), accept.PlayerEntity)
	if z := netcomponents.Transform.Get(entry).Pos.Z; z != 0 {
		t.Fatalf("stale intent moved the entity: z = %v", z)
	}
}

func TestSnapshotAcksNewestConsumedInput(t *testing.T) {
	s := newTestServer(t, DespawnOnDisconnect)
	peer := connect(t, s)
	join(t, s, peer, 1)
	drain(t, peer)

	send(t, peer, upIntent(2))
	s.Tick(2, testDt)

	var acked uint64
	for _, msg := range drain(t, peer) {
		if snap, ok := msg.(messages.Snapshot); ok {
			acked = snap.InputAck
		}
	}
	if acked != 2 {
		t.Fatalf("InputAck = %d, want 2", acked)
	}
}

func TestDisconnectDespawnsExactlyOnce(t *testing.T) {
	s := newTestServer(t, DespawnOnDisconnect)

	serverA, clientA := network.NewLoopbackPair()
	s.AddRemotePeer(serverA)
	acceptA := join(t, s, clientA, 1)

	peerB := connect(t, s)
	join(t, s, peerB, 2)
	drain(t, peerB)

	s.RemovePeer(serverA, nil)
	s.Tick(3, testDt)

	despawns := 0
	for _, msg := range drain(t, peerB) {
		if snap, ok := msg.(messages.Snapshot); ok {
			for _, d := range snap.Despawns {
				if d.Entity == acceptA.PlayerEntity {
					despawns++
				}
			}
		}
	}
	if despawns != 1 {
		t.Fatalf("despawn records for departed entity = %d, want 1", despawns)
	}
	if netcomponents.FindByNetworkId(s.World(), acceptA.PlayerEntity) != nil {
		t.Fatalf("departed entity still in world")
	}

	s.Tick(4, testDt)
	for _, msg := range drain(t, peerB) {
		if snap, ok := msg.(messages.Snapshot); ok && len(snap.Despawns) != 0 {
			t.Fatalf("despawn replicated again on tick 4")
		}
	}
}

func TestReconnectTokenReclaimsOrphanedEntity(t *testing.T) {
	s := newTestServer(t, OrphanOnDisconnect)

	serverSide, clientSide := network.NewLoopbackPair()
	s.AddRemotePeer(serverSide)
	accept := join(t, s, clientSide, 1)
	if accept.ReconnectToken == "" {
		t.Fatalf("join issued no reconnect token")
	}

	s.RemovePeer(serverSide, nil)
	s.Tick(2, testDt)

	side2, client2 := network.NewLoopbackPair()
	s.AddRemotePeer(side2)
	send(t, client2, messages.JoinRequest{
		Version:        "1",
		PlayerName:     "tester",
		ReconnectToken: accept.ReconnectToken,
	})
	s.Tick(3, testDt)

	var accept2 messages.JoinAccepted
	found := false
	for _, msg := range drain(t, client2) {
		if a, ok := msg.(messages.JoinAccepted); ok {
			accept2 = a
			found = true
		}
	}
	if !found {
		t.Fatalf("no JoinAccepted on reconnect")
	}
	if accept2.PlayerEntity != accept.PlayerEntity {
		t.Fatalf("reconnect got entity %d, want reclaimed %d", accept2.PlayerEntity, accept.PlayerEntity)
	}
	if accept2.ReconnectToken == "" || accept2.ReconnectToken == accept.ReconnectToken {
		t.Fatalf("reconnect token was not rotated")
	}

	entry := netcomponents.FindByNetworkId(s.World(), accept2.PlayerEntity)
	if entry == nil {
		t.Fatalf("reclaimed entity missing from world")
	}
	if got := netcomponents.Player.Get(entry).Client; got != accept2.ClientId {
		t.Fatalf("reclaimed entity owner = %d, want %d", got, accept2.ClientId)
	}
}

func TestReconnectTokenIsSpentAfterDespawn(t *testing.T) {
	s := newTestServer(t, DespawnOnDisconnect)

	serverSide, clientSide := network.NewLoopbackPair()
	s.AddRemotePeer(serverSide)
	accept := join(t, s, clientSide, 1)

	s.RemovePeer(serverSide, nil)
	s.Tick(2, testDt)

	side2, client2 := network.NewLoopbackPair()
	s.AddRemotePeer(side2)
	send(t, client2, messages.JoinRequest{
		Version:        "1",
		PlayerName:     "tester",
		ReconnectToken: accept.ReconnectToken,
	})
	s.Tick(3, testDt)

	for _, msg := range drain(t, client2) {
		if a, ok := msg.(messages.JoinAccepted); ok {
			if a.PlayerEntity == accept.PlayerEntity {
				t.Fatalf("despawned entity %d was resurrected", accept.PlayerEntity)
			}
			return
		}
	}
	t.Fatalf("no JoinAccepted after despawned-token join")
}

func TestOrphanPolicyKeepsEntity(t *testing.T) {
	s := newTestServer(t, OrphanOnDisconnect)

	serverSide, clientSide := network.NewLoopbackPair()
	s.AddRemotePeer(serverSide)
	accept := join(t, s, clientSide, 1)

	s.RemovePeer(serverSide, nil)
	s.Tick(2, testDt)

	if netcomponents.FindByNetworkId(s.World(), accept.PlayerEntity) == nil {
		t.Fatalf("orphan policy removed the entity")
	}
}
