package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/playsmith/netplay/client"
	"github.com/playsmith/netplay/network"
	"github.com/playsmith/netplay/shared/messages"
	"github.com/playsmith/netplay/shared/netconfig"
	"github.com/playsmith/netplay/shared/protocol"
	"github.com/playsmith/netplay/systems"
)

// A headless scripted client: joins a server, holds forward, and turns at
// a fixed interval. Useful for soaking a host with real remote traffic
// and for eyeballing predicted-versus-confirmed drift.
func main() {
	var (
		addr    = flag.String("addr", "localhost:7777", "server address")
		name    = flag.String("name", "bot", "player name")
		version = flag.String("version", "1", "client version")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	reg, err := protocol.RegisterComponents()
	if err != nil {
		logger.Fatalf("register components: %v", err)
	}
	reg.Freeze()

	persist := systems.InitPersistence() == nil
	var token string
	if persist {
		if saved, err := systems.LoadSession(); err == nil && saved != nil && saved.LastServer == *addr {
			token = saved.ReconnectToken
			logger.Printf("resuming session for %q", saved.PlayerName)
		}
	}

	net := network.NewClient()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := net.Connect(ctx, *addr, *version, *name, token); err != nil {
		logger.Fatalf("connect: %v", err)
	}
	defer net.Disconnect()

	cfg := client.DefaultSessionConfig()
	cfg.Intents = script
	session, err := client.NewSession(net, reg, cfg)
	if err != nil {
		logger.Fatalf("session: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	tickDur := time.Second / 60
	ticker := time.NewTicker(tickDur)
	defer ticker.Stop()

	var (
		tick   uint64
		joined bool
	)
	for {
		select {
		case <-stop:
			logger.Printf("stopping")
			return
		case <-ticker.C:
		}

		tick++
		session.Tick(tick, time.Now())

		switch net.State() {
		case network.StateJoinedGame:
		case network.StateError:
			logger.Fatalf("session error: %v", net.LastError())
		default:
			continue
		}

		if !joined {
			joined = true
			logger.Printf("joined %q at tick %d as entity %d",
				net.ServerName(), net.JoinTick(), net.PlayerEntity())
			if persist {
				_ = systems.SaveSession(&systems.SavedSession{
					PlayerName:     *name,
					LastServer:     *addr,
					ReconnectToken: net.ReconnectToken(),
				})
			}
		}

		if tick%120 == 0 {
			me := net.PlayerEntity()
			view := session.Resolved(time.Now())
			logger.Printf("tick=%d server_tick=%d ack=%d pos=%+v",
				tick, session.LastServerTick(), session.LastAck(), view[me].Pos)
		}
	}
}

// script holds forward and sweeps the view in a slow circle.
func script(tick uint64) messages.InputIntent {
	in := messages.NewInputIntent(tick)
	in.Actions[netconfig.ActionUp] = true
	in.Look = netconfig.AxisPair{X: 1.5}
	return in
}
