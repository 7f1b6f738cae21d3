// Package transport implements the per-peer negotiation state machine of
// spec §4.3: one PeerConnection per remote peer, three logical channels
// bound by label, and a synchronous event stream the orchestrator drives.
package transport

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/moukrea/remoshell-sub000/internal/corelog"
	"github.com/moukrea/remoshell-sub000/internal/events"
)

type peerEntry struct {
	peerID      string
	initiator   bool
	state       PeerState
	conn        PeerConnection
	channelOpen map[Channel]bool
}

// Manager owns one PeerConnection per peer and the state machine around it.
type Manager struct {
	factory Factory
	log     corelog.Logger
	bus     *events.Bus[Event]

	mu    sync.Mutex
	peers map[string]*peerEntry
}

func NewManager(factory Factory, log corelog.Logger) *Manager {
	if log == nil {
		log = corelog.Nop()
	}
	return &Manager{
		factory: factory,
		log:     log,
		bus:     events.New[Event](log),
		peers:   make(map[string]*peerEntry),
	}
}

func (m *Manager) Subscribe(h events.Handler[Event]) events.Unsubscribe {
	return m.bus.Subscribe(h)
}

// CreateConnection builds a new PeerConnection for peerID, entering state
// "new" then immediately "connecting". A peer already known is a no-op
// returning nil, so callers (the orchestrator handling peer_joined/offer)
// don't need to pre-check existence.
func (m *Manager) CreateConnection(peerID string, initiator bool, iceServers []string) error {
	m.mu.Lock()
	if _, exists := m.peers[peerID]; exists {
		m.mu.Unlock()
		return nil
	}
	entry := &peerEntry{peerID: peerID, initiator: initiator, state: StateNew, channelOpen: make(map[Channel]bool)}
	m.peers[peerID] = entry
	m.mu.Unlock()

	sink := &connSink{manager: m, peerID: peerID}
	conn, err := m.factory(peerID, initiator, iceServers, sink)
	if err != nil {
		m.mu.Lock()
		delete(m.peers, peerID)
		m.mu.Unlock()
		return fmt.Errorf("transport: create connection for %s: %w", peerID, err)
	}

	m.mu.Lock()
	entry.conn = conn
	entry.state = StateConnecting
	m.mu.Unlock()
	m.bus.Emit(Event{Kind: EventStateChange, PeerID: peerID, NewState: StateConnecting})
	return nil
}

// Signal delivers an inbound negotiation datagram to peerID's connection,
// creating a responder-side connection first if this is the first we've
// heard of peerID (we are answering an inbound offer).
func (m *Manager) Signal(peerID string, datagram json.RawMessage) error {
	m.mu.Lock()
	entry, ok := m.peers[peerID]
	m.mu.Unlock()
	if !ok {
		if err := m.CreateConnection(peerID, false, nil); err != nil {
			return err
		}
		m.mu.Lock()
		entry = m.peers[peerID]
		m.mu.Unlock()
	}
	return entry.conn.Signal(datagram)
}

// Send writes data on channel for peerID. Never blocks; returns false if
// the peer is unknown, not connected, or the channel is not open/writable.
func (m *Manager) Send(peerID string, data []byte, channel Channel) bool {
	m.mu.Lock()
	entry, ok := m.peers[peerID]
	m.mu.Unlock()
	if !ok {
		m.log.Debugf("transport: send to unknown peer %s", peerID)
		return false
	}

	m.mu.Lock()
	state := entry.state
	open := entry.channelOpen[channel]
	m.mu.Unlock()

	if state != StateConnected {
		m.log.Debugf("transport: send to %s on %s while state=%s", peerID, channel.Label(), state)
		return false
	}
	if channel != ChannelControl && !open {
		m.log.Debugf("transport: send to %s on %s before channel open", peerID, channel.Label())
		return false
	}

	return entry.conn.Send(channel, data)
}

// Destroy tears down and forgets peerID.
func (m *Manager) Destroy(peerID string) {
	m.mu.Lock()
	entry, ok := m.peers[peerID]
	if ok {
		delete(m.peers, peerID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	if entry.conn != nil {
		_ = entry.conn.Close()
	}
}

// DestroyAll tears down every known peer.
func (m *Manager) DestroyAll() {
	m.mu.Lock()
	all := make([]*peerEntry, 0, len(m.peers))
	for _, e := range m.peers {
		all = append(all, e)
	}
	m.peers = make(map[string]*peerEntry)
	m.mu.Unlock()

	for _, e := range all {
		if e.conn != nil {
			_ = e.conn.Close()
		}
	}
}

func (m *Manager) entry(peerID string) (*peerEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.peers[peerID]
	return e, ok
}
