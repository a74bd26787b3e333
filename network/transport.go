// Package network provides the transport layer and the client-side
// connection plumbing: an in-process loopback for the host-server's local
// client, a websocket transport for remote clients, and the prediction
// history buffer. The simulation never learns which transport kind a peer
// is; both speak the same frames with the same ordering guarantees.
package network

import (
	"net"
	"sync"
)

// Peer is one end of an ordered, loss-tolerant message channel. Send may
// be called from the simulation goroutine at any point in a tick. Inbound
// frames accumulate in an inbox and are drained with Poll at the start of
// the tick that consumes them, so transport timing never leaks into
// simulation determinism.
type Peer interface {
	Send(payload []byte) error
	Poll() [][]byte
	Close() error
}

// inbox is the mutex-guarded inbound frame queue shared by all peer
// implementations. Transport goroutines push, the simulation drains.
type inbox struct {
	mu     sync.Mutex
	frames [][]byte
}

func (b *inbox) push(frame []byte) {
	b.mu.Lock()
	b.frames = append(b.frames, frame)
	b.mu.Unlock()
}

func (b *inbox) drain() [][]byte {
	b.mu.Lock()
	frames := b.frames
	b.frames = nil
	b.mu.Unlock()
	return frames
}

// errClosed is returned from Send on a closed peer.
var errClosed = net.ErrClosed
