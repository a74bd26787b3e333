package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/playsmith/netplay/config"
	"github.com/playsmith/netplay/hostserver"
	"github.com/playsmith/netplay/server/core"
	"github.com/playsmith/netplay/shared/gamemath"
	"github.com/playsmith/netplay/systems"
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (empty = defaults)")
	listen := flag.String("listen", "", "Listen address override, e.g. :7777")
	tickRate := flag.Int("tickrate", 0, "Tick rate override (ticks per second)")
	name := flag.String("name", "", "Server display name override")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *tickRate > 0 {
		cfg.Server.TickRate = *tickRate
	}
	if *name != "" {
		cfg.Server.Name = *name
	}

	persist := systems.InitPersistence() == nil
	var savedToken string
	if persist {
		if saved, err := systems.LoadSession(); err == nil && saved != nil {
			savedToken = saved.ReconnectToken
			log.Printf("Resuming session for %q on %s", saved.PlayerName, saved.LastServer)
		}
	}

	hostCfg := hostserver.Config{
		ServerName: cfg.Server.Name,
		Version:    cfg.Server.Version,
		Listen:     cfg.Server.Listen,
		TickRate:   cfg.Server.TickRate,
		Tuning: gamemath.StepConfig{
			MoveSpeed:       cfg.Sim.MoveSpeed,
			LookSensitivity: cfg.Sim.LookSensitivity,
		},
		Policy:           core.ParseDisconnectPolicy(cfg.Server.DisconnectPolicy),
		PlayerName:       cfg.Client.PlayerName,
		ReconnectToken:   savedToken,
		PredictionDepth:  cfg.Client.PredictionDepth,
		Tolerance:        cfg.Client.ToleranceUnits,
		CorrectionWindow: time.Duration(cfg.Client.CorrectionWindowMs) * time.Millisecond,
	}

	host, err := hostserver.New(hostCfg)
	if err != nil {
		log.Fatalf("Failed to start host: %v", err)
	}
	if persist {
		defer saveSession(host, cfg)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down...")
		host.Stop()
	}()

	log.Printf("Starting host %q on %s (tick rate: %d/s, version: %s)",
		cfg.Server.Name, cfg.Server.Listen, cfg.Server.TickRate, cfg.Server.Version)
	host.Start()
}

func saveSession(host *hostserver.Coordinator, cfg *config.Config) {
	token := host.Local().Client().ReconnectToken()
	if token == "" {
		return
	}
	_ = systems.SaveSession(&systems.SavedSession{
		PlayerName:     cfg.Client.PlayerName,
		LastServer:     cfg.Server.Listen,
		ReconnectToken: token,
	})
}
