package network

import "sync/atomic"

// LoopbackPeer is the in-process transport between the host-server and
// its co-located local client. Delivery is immediate, in order, and
// lossless, but frames still cross the same byte boundary as the remote
// path: the two sides share nothing but encoded payloads, so prediction
// and reconciliation cannot tell local from remote.
type LoopbackPeer struct {
	in     inbox
	remote *LoopbackPeer
	closed atomic.Bool
}

// NewLoopbackPair returns two connected peers. Frames sent on one side
// arrive in the other side's inbox.
func NewLoopbackPair() (*LoopbackPeer, *LoopbackPeer) {
	a := &LoopbackPeer{}
	b := &LoopbackPeer{}
	a.remote = b
	b.remote = a
	return a, b
}

func (p *LoopbackPeer) Send(payload []byte) error {
	if p.closed.Load() || p.remote.closed.Load() {
		return errClosed
	}
	p.remote.in.push(payload)
	return nil
}

func (p *LoopbackPeer) Poll() [][]byte {
	return p.in.drain()
}

func (p *LoopbackPeer) Close() error {
	p.closed.Store(true)
	return nil
}
