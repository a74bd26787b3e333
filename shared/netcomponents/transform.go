// Package netcomponents declares the replicated component types. Like the
// wire types they must serialize cleanly, and their interpolation helpers
// are registered alongside them so the engines never special-case a type.
package netcomponents

import (
	"github.com/yohamta/donburi"

	"github.com/playsmith/netplay/shared/gamemath"
	"github.com/playsmith/netplay/shared/messages"
	"github.com/playsmith/netplay/shared/netconfig"
)

// TransformData is the replicated spatial state of an entity.
type TransformData struct {
	Pos gamemath.Vec3
	Rot gamemath.Quat
}

var Transform = donburi.NewComponentType[TransformData]()

// NewTransformData returns a transform at the origin with identity
// rotation.
func NewTransformData() TransformData {
	return TransformData{Rot: gamemath.IdentityQuat()}
}

// LerpTransform interpolates between two transforms. Registered as both
// the interpolation and the correction function for Transform.
func LerpTransform(from, to TransformData, t float64) TransformData {
	return TransformData{
		Pos: from.Pos.Lerp(to.Pos, t),
		Rot: from.Rot.Nlerp(to.Rot, t),
	}
}

// StepTransform applies one deterministic movement step to a transform.
// This is the single movement rule: the authoritative simulation runs it
// per consumed intent and client prediction runs the very same code.
func StepTransform(tr TransformData, in messages.InputIntent, dt float64, cfg gamemath.StepConfig) TransformData {
	var move gamemath.Vec3
	if in.Pressed(netconfig.ActionUp) {
		move.Z--
	}
	if in.Pressed(netconfig.ActionDown) {
		move.Z++
	}
	if in.Pressed(netconfig.ActionLeft) {
		move.X--
	}
	if in.Pressed(netconfig.ActionRight) {
		move.X++
	}

	pos, rot := gamemath.Step(tr.Pos, tr.Rot, move, in.Look.X, dt, cfg)
	return TransformData{Pos: pos, Rot: rot}
}
