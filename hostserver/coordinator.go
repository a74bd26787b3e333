package hostserver

import (
	"context"
	"log"
	"time"

	"github.com/playsmith/netplay/client"
	"github.com/playsmith/netplay/network"
	"github.com/playsmith/netplay/replication"
	"github.com/playsmith/netplay/server/core"
	"github.com/playsmith/netplay/shared/gamemath"
	"github.com/playsmith/netplay/shared/protocol"
	"github.com/playsmith/netplay/systems"
)

// Config describes one host process: an authoritative server plus the
// host player's own client session in the same tick loop.
type Config struct {
	ServerName string
	Version    string
	// Listen is the ws address for remote clients; empty runs a purely
	// local game.
	Listen     string
	TickRate   int
	Tuning     gamemath.StepConfig
	Policy     core.DisconnectPolicy
	PlayerName string
	// ReconnectToken from a previous run, redeemed during the local join.
	ReconnectToken string

	PredictionDepth  int
	Tolerance        float64
	CorrectionWindow time.Duration
	Intents          systems.IntentProvider
}

func DefaultConfig() Config {
	return Config{
		ServerName: "local game",
		Version:    "1",
		TickRate:   60,
		Tuning:     gamemath.DefaultStepConfig(),
		PlayerName: "host",
	}
}

// Coordinator owns the host process wiring. Server and local session run
// back to back on one goroutine, one tick at a time, so the host player
// never races the authority it shares a process with.
type Coordinator struct {
	reg       *replication.Registry
	srv       *core.Server
	session   *client.Session
	loop      *core.GameLoop
	transport *network.WsServerTransport
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}

	reg, err := protocol.RegisterComponents()
	if err != nil {
		return nil, err
	}
	reg.Freeze()

	srv := core.NewServer(reg, cfg.ServerName, cfg.Version, cfg.TickRate, cfg.Tuning, cfg.Policy)

	serverSide, clientSide := network.NewLoopbackPair()
	srv.AddLocalPeer(serverSide)

	net := network.NewClient()
	if err := net.Attach(clientSide, cfg.Version, cfg.PlayerName, cfg.ReconnectToken); err != nil {
		return nil, err
	}

	sessCfg := client.DefaultSessionConfig()
	sessCfg.TickRate = cfg.TickRate
	sessCfg.Tuning = cfg.Tuning
	sessCfg.Local = true
	sessCfg.Intents = cfg.Intents
	if cfg.PredictionDepth > 0 {
		sessCfg.PredictionDepth = cfg.PredictionDepth
	}
	if cfg.Tolerance > 0 {
		sessCfg.Tolerance = cfg.Tolerance
	}
	if cfg.CorrectionWindow > 0 {
		sessCfg.CorrectionWindow = cfg.CorrectionWindow
	}
	session, err := client.NewSession(net, reg, sessCfg)
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		reg:     reg,
		srv:     srv,
		session: session,
	}
	c.loop = core.NewGameLoop(cfg.TickRate, c.Tick)

	if cfg.Listen != "" {
		c.transport = network.NewWsServerTransport(cfg.Listen, srv.AddRemotePeer, srv.RemovePeer)
	}
	return c, nil
}

// Tick runs one authoritative step, then the host player's session against
// its output. Exposed so tests can drive the pipeline without wall time.
func (c *Coordinator) Tick(tick uint64, dt float64) {
	c.srv.Tick(tick, dt)
	c.session.Tick(tick, time.Now())
}

// Start runs the tick loop, and the remote transport when configured.
// Blocks until Stop.
func (c *Coordinator) Start() {
	if c.transport != nil {
		go func() {
			if err := c.transport.Start(); err != nil {
				log.Printf("[host] transport: %v", err)
			}
		}()
	}
	c.loop.Run()
}

// Stop halts the loop and closes the transport.
func (c *Coordinator) Stop() {
	c.loop.Stop()
	if c.transport != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.transport.Shutdown(ctx); err != nil {
			log.Printf("[host] shutdown: %v", err)
		}
	}
	c.session.Client().Disconnect()
}

// Server exposes the authoritative side.
func (c *Coordinator) Server() *core.Server {
	return c.srv
}

// Local exposes the host player's session.
func (c *Coordinator) Local() *client.Session {
	return c.session
}

// Registry exposes the frozen component registry, shared by server and
// every session this process creates.
func (c *Coordinator) Registry() *replication.Registry {
	return c.reg
}
