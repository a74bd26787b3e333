package network

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/playsmith/netplay/shared/messages"
	"github.com/playsmith/netplay/shared/protocol"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoinedGame
	StateError
)

// Client manages one connection to a game server: the join handshake and
// the framed message flow in both directions. All shared fields are
// protected by mu (transport callbacks run on transport goroutines).
type Client struct {
	mu sync.RWMutex

	state          ClientState
	lastError      error
	clientId       messages.ClientId
	playerEntity   messages.NetworkId
	reconnectToken string
	serverName     string
	tickRate       int
	joinTick       uint64
	peer           Peer
}

func NewClient() *Client {
	return &Client{state: StateDisconnected}
}

// Attach wires the client to an already-connected peer and sends the join
// request. The host-server's local client attaches a loopback peer here;
// remote clients arrive via Connect.
func (c *Client) Attach(peer Peer, version, playerName, token string) error {
	c.mu.Lock()
	c.peer = peer
	c.state = StateConnected
	c.lastError = nil
	c.mu.Unlock()

	frame, err := protocol.Encode(messages.JoinRequest{
		Version:        version,
		PlayerName:     playerName,
		ReconnectToken: token,
	})
	if err != nil {
		return fmt.Errorf("serialize join request: %w", err)
	}
	if err := peer.Send(frame); err != nil {
		return fmt.Errorf("send join request: %w", err)
	}
	return nil
}

// Connect dials a remote server and initiates the join handshake.
func (c *Client) Connect(ctx context.Context, address, version, playerName, token string) error {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.mu.Unlock()

	peer, err := DialWs(ctx, "ws://"+address+"/ws", func(err error) {
		log.Printf("[client] disconnected: %v", err)
		c.mu.Lock()
		if c.state != StateError {
			c.state = StateDisconnected
		}
		c.peer = nil
		c.mu.Unlock()
	})
	if err != nil {
		c.setError(fmt.Errorf("connection failed: %w", err))
		return err
	}

	return c.Attach(peer, version, playerName, token)
}

// Poll drains inbound frames. Handshake control messages are consumed
// here; snapshots are returned to the caller in arrival order.
func (c *Client) Poll() []messages.Snapshot {
	c.mu.RLock()
	peer := c.peer
	c.mu.RUnlock()
	if peer == nil {
		return nil
	}

	var snaps []messages.Snapshot
	for _, frame := range peer.Poll() {
		msg, err := protocol.Decode(frame)
		if err != nil {
			log.Printf("[client] dropping bad frame: %v", err)
			continue
		}

		switch m := msg.(type) {
		case messages.JoinAccepted:
			log.Printf("[client] join accepted: clientId=%d entity=%d server=%q tickRate=%d",
				m.ClientId, m.PlayerEntity, m.ServerName, m.TickRate)
			c.mu.Lock()
			c.clientId = m.ClientId
			c.playerEntity = m.PlayerEntity
			c.reconnectToken = m.ReconnectToken
			c.serverName = m.ServerName
			c.tickRate = m.TickRate
			c.joinTick = m.Tick
			c.state = StateJoinedGame
			c.mu.Unlock()
		case messages.JoinRejected:
			log.Printf("[client] join rejected: %s", m.Reason)
			c.setError(fmt.Errorf("join rejected: %s", m.Reason))
		case messages.Snapshot:
			snaps = append(snaps, m)
		default:
			log.Printf("[client] unexpected message type %T", msg)
		}
	}
	return snaps
}

// SendIntent frames and sends one input intent.
func (c *Client) SendIntent(in messages.InputIntent) error {
	c.mu.RLock()
	peer := c.peer
	c.mu.RUnlock()
	if peer == nil {
		return fmt.Errorf("not connected")
	}

	frame, err := protocol.Encode(in)
	if err != nil {
		return fmt.Errorf("serialize intent: %w", err)
	}
	return peer.Send(frame)
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	peer := c.peer
	c.state = StateDisconnected
	c.peer = nil
	c.mu.Unlock()

	if peer != nil {
		_ = peer.Close()
	}
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

func (c *Client) ClientId() messages.ClientId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientId
}

// PlayerEntity returns the network id of the entity this client controls.
func (c *Client) PlayerEntity() messages.NetworkId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerEntity
}

func (c *Client) TickRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickRate
}

func (c *Client) ServerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName
}

func (c *Client) ReconnectToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconnectToken
}

// JoinTick returns the authoritative tick at the moment the server
// accepted the join.
func (c *Client) JoinTick() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joinTick
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}
