package systems

import (
	"time"

	"github.com/playsmith/netplay/shared/messages"
	"github.com/playsmith/netplay/shared/netconfig"
)

// IntentProvider supplies the raw input for a tick: held actions and axis
// motion accumulated since the previous sample. Headless clients plug in
// scripted providers, interactive ones read devices.
type IntentProvider func(tick uint64) messages.InputIntent

// NetInput turns provider output into wire-ready intents, stamping the
// target tick and send time.
type NetInput struct {
	provider IntentProvider
}

func NewNetInput(p IntentProvider) *NetInput {
	if p == nil {
		p = func(tick uint64) messages.InputIntent { return messages.NewInputIntent(tick) }
	}
	return &NetInput{provider: p}
}

// Sample produces the intent targeting the given tick.
func (n *NetInput) Sample(tick uint64) messages.InputIntent {
	in := n.provider(tick)
	if in.Actions == nil {
		in.Actions = make(map[netconfig.ActionID]bool)
	}
	in.Tick = tick
	in.SentAt = time.Now().UnixMilli()
	return in
}
