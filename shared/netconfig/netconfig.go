// Package netconfig defines lightweight input types shared between client
// and server for network serialization. It must have zero dependencies on
// any engine or transport package so headless binaries stay small.
package netconfig

// ActionID represents a logical discrete input action.
type ActionID int

const (
	ActionNone ActionID = iota
	ActionUp
	ActionDown
	ActionLeft
	ActionRight
	ActionCount // Must be last - used for array sizing
)

var actionNames = map[ActionID]string{
	ActionNone:  "none",
	ActionUp:    "up",
	ActionDown:  "down",
	ActionLeft:  "left",
	ActionRight: "right",
}

func (a ActionID) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// AxisPair is one sample of a continuous two-axis input, e.g. accumulated
// mouse motion since the previous tick.
type AxisPair struct {
	X, Y float64
}

// Zero reports whether no axis motion occurred this sample.
func (p AxisPair) Zero() bool {
	return p.X == 0 && p.Y == 0
}
