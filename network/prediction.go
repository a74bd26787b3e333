package network

import (
	"github.com/playsmith/netplay/shared/messages"
	"github.com/playsmith/netplay/shared/netcomponents"
)

// DefaultPredictionDepth bounds how many ticks of round trip the client
// can absorb before reconciliation falls back to a hard snap.
const DefaultPredictionDepth = 128

// Record stores one predicted step: the intent applied at a tick and the
// transform it produced.
type Record struct {
	Tick   uint64
	Intent messages.InputIntent
	Value  netcomponents.TransformData
}

// PredictionBuffer is a ring buffer of recent predicted steps keyed by
// tick, consulted when an authoritative update arrives for
// reconciliation. Slots are overwritten oldest-first.
type PredictionBuffer struct {
	history []Record
	next    uint64 // one past the newest stored tick
}

func NewPredictionBuffer(depth int) *PredictionBuffer {
	if depth <= 0 {
		depth = DefaultPredictionDepth
	}
	return &PredictionBuffer{history: make([]Record, depth)}
}

// Store saves the intent and resulting predicted value for a tick.
func (pb *PredictionBuffer) Store(tick uint64, in messages.InputIntent, v netcomponents.TransformData) {
	pb.history[tick%uint64(len(pb.history))] = Record{Tick: tick, Intent: in, Value: v}
	if tick >= pb.next {
		pb.next = tick + 1
	}
}

// Get retrieves the record for a tick. It returns false when the tick was
// never stored or its slot has been overwritten by a newer tick.
func (pb *PredictionBuffer) Get(tick uint64) (Record, bool) {
	if tick >= pb.next {
		return Record{}, false
	}
	rec := pb.history[tick%uint64(len(pb.history))]
	if rec.Tick != tick {
		return Record{}, false
	}
	return rec, true
}

// Put overwrites the record for a tick in place. Reconciliation uses it
// to rewrite history with authoritative values before replaying.
func (pb *PredictionBuffer) Put(tick uint64, rec Record) {
	rec.Tick = tick
	pb.history[tick%uint64(len(pb.history))] = rec
}

// Next returns one past the newest stored tick; zero means nothing has
// been predicted yet.
func (pb *PredictionBuffer) Next() uint64 {
	return pb.next
}

// Depth returns the buffer capacity in ticks.
func (pb *PredictionBuffer) Depth() int {
	return len(pb.history)
}

// Reset discards all history. Used after a hard snap, when everything
// buffered predates the snapped state.
func (pb *PredictionBuffer) Reset() {
	clear(pb.history)
	pb.next = 0
}
