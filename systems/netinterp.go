package systems

import (
	"time"

	"github.com/playsmith/netplay/replication"
)

// NetInterp renders a remote entity's component between its two newest
// authoritative samples. When a new sample lands mid-segment, the value
// currently on screen becomes the new segment's start, so the curve stays
// continuous even when snapshots arrive unevenly. With no newer sample the
// value holds at the last authoritative one rather than extrapolating.
type NetInterp struct {
	entry   *replication.Entry
	tickDur time.Duration

	has      bool
	prev     any
	target   any
	start    time.Time
	dur      time.Duration
	lastTick uint64
}

func NewNetInterp(entry *replication.Entry, tickDur time.Duration) *NetInterp {
	return &NetInterp{entry: entry, tickDur: tickDur}
}

// Push feeds one authoritative sample for the given tick.
func (i *NetInterp) Push(tick uint64, v any, now time.Time) {
	if !i.has {
		i.has = true
		i.prev = v
		i.target = v
		i.lastTick = tick
		i.start = now
		i.dur = 0
		return
	}
	if tick <= i.lastTick {
		return
	}
	i.prev = i.resolve(now)
	i.target = v
	i.dur = i.tickDur * time.Duration(tick-i.lastTick)
	i.lastTick = tick
	i.start = now
}

// Resolve returns the value to draw at the given wall time. The bool is
// false until the first sample arrives.
func (i *NetInterp) Resolve(now time.Time) (any, bool) {
	if !i.has {
		return nil, false
	}
	return i.resolve(now), true
}

// LastTick returns the newest authoritative tick seen.
func (i *NetInterp) LastTick() uint64 {
	return i.lastTick
}

func (i *NetInterp) resolve(now time.Time) any {
	v, _ := i.View().Resolve(now)
	return v
}

// InterpView is an immutable snapshot of the running segment. Resolve is
// pure, so a render goroutine can evaluate it without synchronizing with
// the simulation.
type InterpView struct {
	entry  *replication.Entry
	has    bool
	prev   any
	target any
	start  time.Time
	dur    time.Duration
}

// View snapshots the current segment. Call on the simulation goroutine
// only.
func (i *NetInterp) View() InterpView {
	return InterpView{
		entry:  i.entry,
		has:    i.has,
		prev:   i.prev,
		target: i.target,
		start:  i.start,
		dur:    i.dur,
	}
}

func (v InterpView) Resolve(now time.Time) (any, bool) {
	if !v.has {
		return nil, false
	}
	if v.dur <= 0 {
		return v.target, true
	}
	t := float64(now.Sub(v.start)) / float64(v.dur)
	if t >= 1 {
		return v.target, true
	}
	if t < 0 {
		t = 0
	}
	return v.entry.Interp(v.prev, v.target, t), true
}
