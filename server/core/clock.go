package core

import "time"

// Clock advances the authoritative tick at a fixed rate, decoupled from
// how often Advance is called. When wall time drifts past several tick
// boundaries, Advance reports them all so the caller can run the overdue
// steps back to back in tick order. The tick never moves backward.
type Clock struct {
	tickDur time.Duration
	tick    uint64
	acc     time.Duration
}

func NewClock(tickRate int) *Clock {
	return &Clock{tickDur: time.Second / time.Duration(tickRate)}
}

// Advance accumulates elapsed wall time and returns how many simulation
// steps are now due, possibly zero.
func (c *Clock) Advance(elapsed time.Duration) int {
	if elapsed < 0 {
		return 0
	}
	c.acc += elapsed
	steps := int(c.acc / c.tickDur)
	c.acc -= time.Duration(steps) * c.tickDur
	return steps
}

// Step moves to the next tick and returns it. Call once per due step.
func (c *Clock) Step() uint64 {
	c.tick++
	return c.tick
}

// Tick returns the current tick.
func (c *Clock) Tick() uint64 {
	return c.tick
}

// Alpha returns the fractional overshoot past the last tick boundary, in
// [0,1). A renderer locked to this clock can use it as its blend input.
// The client session does not: it times interpolation segments by sample
// arrival instead, which also works for remote clients that share no
// clock with the server.
func (c *Clock) Alpha() float64 {
	return float64(c.acc) / float64(c.tickDur)
}

// TickDuration returns the fixed duration of one tick.
func (c *Clock) TickDuration() time.Duration {
	return c.tickDur
}

// Dt returns the tick duration in seconds, the dt fed to the movement
// rule.
func (c *Clock) Dt() float64 {
	return c.tickDur.Seconds()
}
