package systems

import (
	"log"
	"time"

	"github.com/tanema/gween/ease"

	"github.com/playsmith/netplay/network"
	"github.com/playsmith/netplay/replication"
	"github.com/playsmith/netplay/shared/gamemath"
	"github.com/playsmith/netplay/shared/messages"
	"github.com/playsmith/netplay/shared/netcomponents"
)

// Tolerances under which an authoritative value counts as confirming the
// local prediction. Below these the history entry is discarded with no
// replay.
const (
	DefaultToleranceUnits = 0.001
	rotToleranceRad       = 0.001
)

// DefaultCorrectionWindow is how long a visible correction is smoothed
// over after a replay lands on a different present than the one on screen.
const DefaultCorrectionWindow = 100 * time.Millisecond

// NetPrediction runs the locally controlled entity ahead of the server:
// every sampled intent is applied immediately and remembered, and each
// authoritative snapshot is checked against the remembered value for that
// tick. A mismatch replays the remembered intents on top of the server
// value, then eases the rendered transform onto the corrected one instead
// of snapping.
type NetPrediction struct {
	buf     *network.PredictionBuffer
	entry   *replication.Entry
	tuning  gamemath.StepConfig
	dt      float64
	tol     float64
	window  time.Duration
	stats   *replication.Stats
	present netcomponents.TransformData

	corrActive bool
	corrStart  time.Time
	corrPos    gamemath.Vec3
	corrRot    gamemath.Quat
}

func NewNetPrediction(entry *replication.Entry, depth int, dt float64, tuning gamemath.StepConfig, tolerance float64, window time.Duration, stats *replication.Stats) *NetPrediction {
	if depth <= 0 {
		depth = network.DefaultPredictionDepth
	}
	if tolerance <= 0 {
		tolerance = DefaultToleranceUnits
	}
	if window <= 0 {
		window = DefaultCorrectionWindow
	}
	return &NetPrediction{
		buf:     network.NewPredictionBuffer(depth),
		entry:   entry,
		tuning:  tuning,
		dt:      dt,
		tol:     tolerance,
		window:  window,
		stats:   stats,
		present: netcomponents.NewTransformData(),
		corrRot: gamemath.IdentityQuat(),
	}
}

// Adopt seeds the predicted present from an authoritative spawn value.
func (p *NetPrediction) Adopt(tick uint64, tr netcomponents.TransformData) {
	p.buf.Reset()
	p.present = tr
	p.buf.Store(tick, messages.InputIntent{}, tr)
	p.corrActive = false
}

// PredictStep applies one intent to the predicted present and remembers
// both, keyed by the intent's tick.
func (p *NetPrediction) PredictStep(in messages.InputIntent) netcomponents.TransformData {
	p.present = netcomponents.StepTransform(p.present, in, p.dt, p.tuning)
	p.buf.Store(in.Tick, in, p.present)
	return p.present
}

// Present returns the raw predicted value, uncorrected.
func (p *NetPrediction) Present() netcomponents.TransformData {
	return p.present
}

// Reconcile folds one authoritative transform for snapTick into the
// prediction. Within tolerance it is a no-op. On a mismatch the remembered
// intents after snapTick are replayed on top of the authoritative value
// and a correction offset is armed so Visual can ease onto the new
// present. When snapTick has already left the history the present hard
// snaps to the server value.
func (p *NetPrediction) Reconcile(snapTick uint64, auth netcomponents.TransformData, now time.Time) {
	rec, ok := p.buf.Get(snapTick)
	if !ok {
		p.stats.BufferExhausted.Add(1)
		log.Printf("[predict] tick %d outside history, snapping", snapTick)
		p.buf.Reset()
		p.present = auth
		p.buf.Store(snapTick, messages.InputIntent{}, auth)
		p.corrActive = false
		return
	}

	if rec.Value.Pos.DistanceTo(auth.Pos) <= p.tol && rec.Value.Rot.AngleTo(auth.Rot) <= rotToleranceRad {
		return
	}

	old := p.present
	value := auth
	p.buf.Put(snapTick, network.Record{Intent: rec.Intent, Value: value})
	for tick := snapTick + 1; tick < p.buf.Next(); tick++ {
		stored, ok := p.buf.Get(tick)
		if !ok {
			break
		}
		value = netcomponents.StepTransform(value, stored.Intent, p.dt, p.tuning)
		p.buf.Put(tick, network.Record{Intent: stored.Intent, Value: value})
	}
	p.present = value

	// Offset from the corrected present back to what was on screen. The
	// eased blend runs shadow -> predicted over the window.
	p.corrPos = old.Pos.Sub(value.Pos)
	p.corrRot = old.Rot.Mul(value.Rot.Conjugate()).Normalized()
	p.corrStart = now
	p.corrActive = true
}

// PredictionView is an immutable snapshot of the render inputs: the
// predicted present plus any running correction. Resolve is pure, so a
// render goroutine can evaluate it without synchronizing with the
// simulation.
type PredictionView struct {
	entry      *replication.Entry
	Present    netcomponents.TransformData
	corrActive bool
	corrStart  time.Time
	window     time.Duration
	corrPos    gamemath.Vec3
	corrRot    gamemath.Quat
}

// View snapshots the current render state. Call on the simulation
// goroutine only.
func (p *NetPrediction) View() PredictionView {
	return PredictionView{
		entry:      p.entry,
		Present:    p.present,
		corrActive: p.corrActive,
		corrStart:  p.corrStart,
		window:     p.window,
		corrPos:    p.corrPos,
		corrRot:    p.corrRot,
	}
}

// Resolve returns the transform to draw at the given wall time: the
// predicted present, shifted by the decaying correction offset while a
// correction window is running.
func (v PredictionView) Resolve(now time.Time) netcomponents.TransformData {
	if !v.corrActive {
		return v.Present
	}
	elapsed := now.Sub(v.corrStart)
	if elapsed >= v.window {
		return v.Present
	}
	t := float64(ease.OutQuad(float32(elapsed), 0, 1, float32(v.window)))

	shadow := netcomponents.TransformData{
		Pos: v.Present.Pos.Add(v.corrPos),
		Rot: v.corrRot.Mul(v.Present.Rot).Normalized(),
	}
	blended := v.entry.Correction(shadow, v.Present, t)
	return blended.(netcomponents.TransformData)
}

// Visual resolves the current state directly; shorthand for callers on
// the simulation goroutine.
func (p *NetPrediction) Visual(now time.Time) netcomponents.TransformData {
	return p.View().Resolve(now)
}
