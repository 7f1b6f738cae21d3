// Package signaling implements the reconnecting relay client of spec §4.2:
// it exchanges introduction and negotiation datagrams with a rendezvous
// relay over a duplex connection, reconnecting with jittered exponential
// backoff on abnormal close.
package signaling

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"

	"github.com/moukrea/remoshell-sub000/internal/corelog"
	"github.com/moukrea/remoshell-sub000/internal/events"
)

// Options configures the reconnection schedule (spec §4.2: d0, x2, +-25%,
// cap d_max, max attempts N).
type Options struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

func DefaultOptions() Options {
	return Options{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  10,
	}
}

// Client is a single relay connection plus its reconnection state machine.
// Not safe for use before Join.
type Client struct {
	dialer Dialer
	url    string
	opts   Options
	log    corelog.Logger
	bus    *events.Bus[Event]

	mu           sync.Mutex
	conn         Conn
	room         string
	closedByUser bool
	generation   uint64
	bo           *backoff.Backoff
	writeMu      sync.Mutex
}

// NewClient builds a Client dialing url through dialer. Pass signaling.GorillaDialer{}
// in production.
func NewClient(dialer Dialer, url string, opts Options, log corelog.Logger) *Client {
	if log == nil {
		log = corelog.Nop()
	}
	return &Client{
		dialer: dialer,
		url:    url,
		opts:   opts,
		log:    log,
		bus:    events.New[Event](log),
		bo: &backoff.Backoff{
			Min:    opts.InitialDelay,
			Max:    opts.MaxDelay,
			Factor: 2,
		},
	}
}

// Subscribe registers a handler for the client's event stream.
func (c *Client) Subscribe(h events.Handler[Event]) events.Unsubscribe {
	return c.bus.Subscribe(h)
}

// Join dials the relay and requests membership in roomID. On success the
// relay is expected to answer with a "connected" message, translated into
// an EventConnected.
func (c *Client) Join(roomID string) error {
	c.mu.Lock()
	c.closedByUser = false
	c.room = roomID
	c.bo.Reset()
	gen := atomic.AddUint64(&c.generation, 1)
	c.mu.Unlock()

	return c.dialAndRun(gen)
}

// Leave performs a clean close: no reconnection is attempted (spec §4.2).
// It transitions the client to dormant within one scheduling tick.
func (c *Client) Leave() {
	c.mu.Lock()
	c.closedByUser = true
	conn := c.conn
	c.conn = nil
	atomic.AddUint64(&c.generation, 1) // invalidate any in-flight reconnect loop
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// CanReconnect reports whether another reconnect attempt is still allowed
// under maxAttempts.
func (c *Client) CanReconnect(maxAttempts int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.bo.Attempt()) < maxAttempts
}

// ReconnectAttempts reports the current backoff attempt counter, reset to 0
// on every successful (re)join.
func (c *Client) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.bo.Attempt())
}

func (c *Client) dialAndRun(gen uint64) error {
	conn, err := c.dialer.Dial(c.url)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if gen != c.currentGeneration() {
		c.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("signaling: stale join")
	}
	c.conn = conn
	room := c.room
	c.mu.Unlock()

	if err := c.send(relayMessage{Type: relayTypeJoin, Room: room}); err != nil {
		return err
	}

	go c.readPump(conn, gen)
	return nil
}

func (c *Client) currentGeneration() uint64 {
	return atomic.LoadUint64(&c.generation)
}

func (c *Client) send(msg relayMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("signaling: not connected")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(data)
}

// SendOffer forwards a local SDP-like offer to the relay for delivery to
// the room's other party.
func (c *Client) SendOffer(desc json.RawMessage) error {
	return c.send(relayMessage{Type: relayTypeOffer, Desc: desc})
}

// SendAnswer forwards a local SDP-like answer.
func (c *Client) SendAnswer(desc json.RawMessage) error {
	return c.send(relayMessage{Type: relayTypeAnswer, Desc: desc})
}

// SendICE forwards a local ICE-style candidate.
func (c *Client) SendICE(candidate json.RawMessage) error {
	return c.send(relayMessage{Type: relayTypeICE, Candidate: candidate})
}

func (c *Client) readPump(conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		var msg relayMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Errorf("signaling: malformed relay message: %v", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg relayMessage) {
	switch msg.Type {
	case relayTypeConnected:
		c.bus.Emit(Event{Kind: EventConnected, LocalPeerID: msg.PeerID, ExistingPeers: msg.ExistingPeers})
	case relayTypePeerJoined:
		c.bus.Emit(Event{Kind: EventPeerJoined, PeerID: msg.PeerID})
	case relayTypePeerLeft:
		c.bus.Emit(Event{Kind: EventPeerLeft, PeerID: msg.PeerID})
	case relayTypeOffer:
		c.bus.Emit(Event{Kind: EventOffer, PeerID: msg.PeerID, Desc: msg.Desc})
	case relayTypeAnswer:
		c.bus.Emit(Event{Kind: EventAnswer, PeerID: msg.PeerID, Desc: msg.Desc})
	case relayTypeICE:
		c.bus.Emit(Event{Kind: EventICE, PeerID: msg.PeerID, Candidate: msg.Candidate})
	case relayTypeError:
		c.bus.Emit(Event{Kind: EventError, Message: msg.Message})
	default:
		c.log.Debugf("signaling: ignoring unknown relay message type %q", msg.Type)
	}
}

func (c *Client) handleClose(gen uint64, cause error) {
	c.mu.Lock()
	stale := gen != c.currentGeneration()
	userInitiated := c.closedByUser
	c.conn = nil
	c.mu.Unlock()

	if stale || userInitiated {
		return
	}

	c.bus.Emit(Event{Kind: EventDisconnected, Reason: cause.Error()})
	go c.reconnectLoop(gen)
}

// reconnectLoop retries dialing with exponential backoff, +-25% jitter,
// capped at opts.MaxDelay, until opts.MaxAttempts is exhausted (spec §4.2).
func (c *Client) reconnectLoop(gen uint64) {
	for {
		c.mu.Lock()
		if gen != c.currentGeneration() {
			c.mu.Unlock()
			return
		}
		attempt := int(c.bo.Attempt())
		if attempt >= c.opts.MaxAttempts {
			c.mu.Unlock()
			c.bus.Emit(Event{Kind: EventDisconnected, Reason: "exhausted"})
			return
		}
		base := c.bo.Duration()
		c.mu.Unlock()

		time.Sleep(jitter25(base))

		if err := c.dialAndRun(gen); err != nil {
			c.log.Debugf("signaling: reconnect attempt failed: %v", err)
			continue
		}

		c.mu.Lock()
		c.bo.Reset()
		c.mu.Unlock()
		return
	}
}

// jitter25 applies +-25% jitter to d, matching spec §4.2 exactly (the
// jpillora/backoff library's own Jitter flag instead spreads uniformly over
// [0, d], so the deterministic exponential schedule is taken from the
// library and the +-25% spread is layered on top here).
func jitter25(d time.Duration) time.Duration {
	spread := 0.5*rand.Float64() - 0.25 // in [-0.25, 0.25)
	return time.Duration(float64(d) * (1 + spread))
}
