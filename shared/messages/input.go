package messages

import "github.com/playsmith/netplay/shared/netconfig"

// InputIntent is sent from client to server once per local tick with the
// player's full action state. Tick is the authoritative tick the intent
// should be consumed at; the same value keys the client's prediction
// history for reconciliation replay.
type InputIntent struct {
	Tick    uint64
	Actions map[netconfig.ActionID]bool
	Look    netconfig.AxisPair
	SentAt  int64 // client wall clock, unix ms; diagnostics only
}

// NewInputIntent creates an InputIntent with an initialized action map.
func NewInputIntent(tick uint64) InputIntent {
	return InputIntent{
		Tick:    tick,
		Actions: make(map[netconfig.ActionID]bool),
	}
}

// Pressed reports whether the action is held. Safe on a nil map.
func (in InputIntent) Pressed(a netconfig.ActionID) bool {
	return in.Actions[a]
}
