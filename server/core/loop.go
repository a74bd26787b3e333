package core

import (
	"log"
	"time"
)

// GameLoop drives a step function at a fixed tick rate. Each due tick
// runs to completion before the next begins; when the process stalls,
// every overdue tick runs in the same wakeup, preserving tick-order
// causality.
type GameLoop struct {
	clock    *Clock
	step     func(tick uint64, dt float64)
	stopChan chan struct{}
}

func NewGameLoop(tickRate int, step func(tick uint64, dt float64)) *GameLoop {
	return &GameLoop{
		clock:    NewClock(tickRate),
		step:     step,
		stopChan: make(chan struct{}),
	}
}

func (g *GameLoop) Run() {
	ticker := time.NewTicker(g.clock.TickDuration())
	defer ticker.Stop()

	log.Printf("[loop] started at %v per tick", g.clock.TickDuration())

	last := time.Now()
	for {
		select {
		case <-g.stopChan:
			log.Println("[loop] stopped")
			return
		case now := <-ticker.C:
			steps := g.clock.Advance(now.Sub(last))
			last = now
			for i := 0; i < steps; i++ {
				g.step(g.clock.Step(), g.clock.Dt())
			}
		}
	}
}

func (g *GameLoop) Stop() {
	close(g.stopChan)
}

func (g *GameLoop) Clock() *Clock {
	return g.clock
}
