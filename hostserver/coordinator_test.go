package hostserver

import (
	"math"
	"testing"
	"time"

	"github.com/playsmith/netplay/client"
	"github.com/playsmith/netplay/network"
	"github.com/playsmith/netplay/shared/messages"
	"github.com/playsmith/netplay/shared/netcomponents"
	"github.com/playsmith/netplay/shared/netconfig"
)

const hostDt = 1.0 / 60.0

func holdForward(tick uint64) messages.InputIntent {
	in := messages.NewInputIntent(tick)
	in.Actions[netconfig.ActionUp] = true
	return in
}

func newHost(t *testing.T) *Coordinator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Intents = holdForward
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestHostPlayerPredictsWithoutCorrections(t *testing.T) {
	c := newHost(t)

	for tick := uint64(1); tick <= 11; tick++ {
		c.Tick(tick, hostDt)
	}

	sess := c.Local()
	if sess.Client().State() != network.StateJoinedGame {
		t.Fatalf("host session state = %v, want joined", sess.Client().State())
	}
	if got := sess.Client().ServerName(); got != "local game" {
		t.Fatalf("ServerName = %q, want %q", got, "local game")
	}
	if got := sess.Client().JoinTick(); got != 1 {
		t.Fatalf("JoinTick = %d, want 1", got)
	}

	// The server consumed intents for ticks 2..11.
	entity := sess.Client().PlayerEntity()
	entry := netcomponents.FindByNetworkId(c.Server().World(), entity)
	if entry == nil {
		t.Fatalf("host entity %d missing from authoritative world", entity)
	}
	serverZ := netcomponents.Transform.Get(entry).Pos.Z
	wantServer := -15.0 * 10 * hostDt
	if math.Abs(serverZ-wantServer) > 1e-9 {
		t.Fatalf("authoritative z = %v, want %v", serverZ, wantServer)
	}

	// The session runs one predicted tick ahead of the authority, and a
	// loopback with deterministic input never forces a replay.
	view := sess.Resolved(time.Now().Add(time.Second))
	localZ := view[entity].Pos.Z
	wantLocal := wantServer - 15.0*hostDt
	if math.Abs(localZ-wantLocal) > 1e-9 {
		t.Fatalf("predicted z = %v, want %v", localZ, wantLocal)
	}
	if got := sess.Stats().BufferExhausted.Load(); got != 0 {
		t.Fatalf("BufferExhausted = %d on a loopback, want 0", got)
	}
	if got := c.Server().Stats().StaleInputDropped.Load(); got != 0 {
		t.Fatalf("StaleInputDropped = %d on a loopback, want 0", got)
	}
}

func TestRemoteClientSeesHostInterpolated(t *testing.T) {
	c := newHost(t)

	serverSide, clientSide := network.NewLoopbackPair()
	c.Server().AddRemotePeer(serverSide)

	guestNet := network.NewClient()
	if err := guestNet.Attach(clientSide, "1", "guest", ""); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	guest, err := client.NewSession(guestNet, c.Registry(), client.DefaultSessionConfig())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	step := func(tick uint64) {
		c.Tick(tick, hostDt)
		guest.Tick(tick, time.Now())
	}

	for tick := uint64(1); tick <= 5; tick++ {
		step(tick)
	}
	if guestNet.State() != network.StateJoinedGame {
		t.Fatalf("guest state = %v, want joined", guestNet.State())
	}

	hostEntity := c.Local().Client().PlayerEntity()
	early := guest.Resolved(time.Now().Add(time.Second))
	if _, ok := early[hostEntity]; !ok {
		t.Fatalf("guest does not see the host entity")
	}

	for tick := uint64(6); tick <= 20; tick++ {
		step(tick)
	}
	late := guest.Resolved(time.Now().Add(time.Second))
	if late[hostEntity].Pos.Z >= early[hostEntity].Pos.Z {
		t.Fatalf("host entity did not advance in guest view: %v then %v",
			early[hostEntity].Pos.Z, late[hostEntity].Pos.Z)
	}
}

func TestResolvedDoesNotWaitOnSimulationTick(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	cfg := DefaultConfig()
	cfg.Intents = func(tick uint64) messages.InputIntent {
		// Stall the simulation inside tick 2's input sampling so a
		// concurrent render read races a tick in progress.
		if tick == 3 {
			close(entered)
			<-release
		}
		return holdForward(tick)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Tick(1, hostDt)
	entity := c.Local().Client().PlayerEntity()

	done := make(chan struct{})
	go func() {
		c.Tick(2, hostDt)
		close(done)
	}()
	<-entered

	resolved := make(chan map[messages.NetworkId]netcomponents.TransformData, 1)
	go func() {
		resolved <- c.Local().Resolved(time.Now())
	}()

	select {
	case view := <-resolved:
		if _, ok := view[entity]; !ok {
			t.Fatalf("render view is missing the host entity")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Resolved blocked behind a running simulation tick")
	}

	close(release)
	<-done
}

func TestRemoteDisconnectDespawnsInHostView(t *testing.T) {
	c := newHost(t)

	serverSide, clientSide := network.NewLoopbackPair()
	c.Server().AddRemotePeer(serverSide)

	guestNet := network.NewClient()
	if err := guestNet.Attach(clientSide, "1", "guest", ""); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	guest, err := client.NewSession(guestNet, c.Registry(), client.DefaultSessionConfig())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	for tick := uint64(1); tick <= 3; tick++ {
		c.Tick(tick, hostDt)
		guest.Tick(tick, time.Now())
	}
	guestEntity := guestNet.PlayerEntity()

	hostView := c.Local().Resolved(time.Now())
	if _, ok := hostView[guestEntity]; !ok {
		t.Fatalf("host does not see the guest entity before disconnect")
	}

	c.Server().RemovePeer(serverSide, nil)
	c.Tick(4, hostDt)

	hostView = c.Local().Resolved(time.Now())
	if _, ok := hostView[guestEntity]; ok {
		t.Fatalf("guest entity still in host view after disconnect")
	}
	if c.Server().PlayerCount() != 1 {
		t.Fatalf("PlayerCount = %d after disconnect, want 1", c.Server().PlayerCount())
	}
}
