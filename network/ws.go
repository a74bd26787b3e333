package network

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

const wsWriteTimeout = 5 * time.Second

// WsPeer adapts one websocket connection to the Peer interface. A read
// goroutine feeds the inbox; writes go straight to the connection with a
// timeout so a stalled remote cannot wedge the simulation.
type WsPeer struct {
	in     inbox
	conn   *websocket.Conn
	closed atomic.Bool
}

func newWsPeer(conn *websocket.Conn) *WsPeer {
	return &WsPeer{conn: conn}
}

func (p *WsPeer) Send(payload []byte) error {
	if p.closed.Load() {
		return errClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return p.conn.Write(ctx, websocket.MessageBinary, payload)
}

func (p *WsPeer) Poll() [][]byte {
	return p.in.drain()
}

func (p *WsPeer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.conn.Close(websocket.StatusNormalClosure, "")
}

// readLoop pumps inbound binary frames into the inbox until the
// connection drops, then reports the terminal error.
func (p *WsPeer) readLoop(onClose func(error)) {
	for {
		typ, data, err := p.conn.Read(context.Background())
		if err != nil {
			p.closed.Store(true)
			onClose(err)
			return
		}
		if typ == websocket.MessageBinary {
			p.in.push(data)
		}
	}
}

// WsServerTransport accepts remote clients over websocket and hands each
// connection to the simulation as a Peer.
type WsServerTransport struct {
	addr         string
	srv          *http.Server
	onConnect    func(Peer)
	onDisconnect func(Peer, error)

	mu    sync.Mutex
	peers map[*WsPeer]struct{}
}

func NewWsServerTransport(addr string, onConnect func(Peer), onDisconnect func(Peer, error)) *WsServerTransport {
	return &WsServerTransport{
		addr:         addr,
		onConnect:    onConnect,
		onDisconnect: onDisconnect,
		peers:        make(map[*WsPeer]struct{}),
	}
}

// Start listens and serves until Shutdown. It blocks, like the rest of
// the transport stack; run it on its own goroutine.
func (t *WsServerTransport) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", t.handle)

	t.srv = &http.Server{Addr: t.addr, Handler: mux}
	log.Printf("[transport] listening on %s", t.addr)
	err := t.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (t *WsServerTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	for p := range t.peers {
		_ = p.Close()
	}
	t.mu.Unlock()

	if t.srv == nil {
		return nil
	}
	return t.srv.Shutdown(ctx)
}

func (t *WsServerTransport) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("[transport] accept failed: %v", err)
		return
	}

	peer := newWsPeer(conn)
	t.mu.Lock()
	t.peers[peer] = struct{}{}
	t.mu.Unlock()

	t.onConnect(peer)

	peer.readLoop(func(err error) {
		t.mu.Lock()
		delete(t.peers, peer)
		t.mu.Unlock()
		t.onDisconnect(peer, err)
	})
}

// DialWs connects to a server's websocket endpoint and returns a
// connected peer. onClose fires once when the connection drops.
func DialWs(ctx context.Context, url string, onClose func(error)) (*WsPeer, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	peer := newWsPeer(conn)
	go peer.readLoop(onClose)
	return peer, nil
}
