package gamemath

import "math"

// StepConfig tunes the shared movement rule. Server and client prediction
// must use identical values or prediction diverges on every tick.
type StepConfig struct {
	MoveSpeed       float64 // units per second
	LookSensitivity float64 // look-axis degrees per second per axis unit
}

// DefaultStepConfig matches the reference tuning: 15 u/s movement, yaw
// sensitivity 2.
func DefaultStepConfig() StepConfig {
	return StepConfig{MoveSpeed: 15, LookSensitivity: 2}
}

// Step advances position and rotation by one tick of dt seconds. move is
// the unnormalized movement direction in local space, lookX the horizontal
// look-axis sample for the tick.
//
// Step is a pure function of its arguments: no clock, no randomness, no
// ambient state. Reconciliation replays it against stored intents and the
// result must match the authoritative simulation exactly.
func Step(pos Vec3, rot Quat, move Vec3, lookX float64, dt float64, cfg StepConfig) (Vec3, Quat) {
	delta := rot.Rotate(move.Normalized()).Normalized().Scale(cfg.MoveSpeed * dt)
	pos = pos.Add(delta)

	if lookX != 0 {
		// Yaw only. Pitch is intentionally not applied.
		yawDeg := -lookX * cfg.LookSensitivity * dt
		rot = rot.Mul(QuatFromYaw(yawDeg * math.Pi / 180)).Normalized()
	}
	return pos, rot
}
