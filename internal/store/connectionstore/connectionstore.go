// Package connectionstore tracks the set of known peers and their
// negotiation state, mirroring internal/transport's per-peer state machine
// into a queryable, event-emitting snapshot for the rest of the core.
package connectionstore

import (
	"sync"
	"time"

	"github.com/moukrea/remoshell-sub000/internal/corelog"
	"github.com/moukrea/remoshell-sub000/internal/events"
)

// State mirrors transport.PeerState without importing it, so this package
// stays a leaf: the orchestrator translates transport events into calls
// here rather than this store depending on the transport package.
type State int

const (
	StateNew State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is a copy-out snapshot of one peer's connection record.
type Connection struct {
	PeerID      string
	State       State
	ConnectedAt *time.Time
}

// EventKind discriminates store mutations.
type EventKind int

const (
	EventUpserted EventKind = iota
	EventRemoved
)

type Event struct {
	Kind       EventKind
	Connection Connection
}

// Store is the mutex-guarded set of peer connection records.
type Store struct {
	log corelog.Logger
	bus *events.Bus[Event]

	mu            sync.Mutex
	peers         map[string]Connection
	activePeerID  *string
	lastSigError  *string
	reconnectTries int
}

func New(log corelog.Logger) *Store {
	if log == nil {
		log = corelog.Nop()
	}
	return &Store{log: log, bus: events.New[Event](log), peers: make(map[string]Connection)}
}

func (s *Store) Subscribe(h events.Handler[Event]) events.Unsubscribe {
	return s.bus.Subscribe(h)
}

// SetState creates or updates peerID's record. ConnectedAt is stamped the
// first time the state transitions to StateConnected and never cleared
// afterward, so callers can tell when a now-disconnected peer was last up.
func (s *Store) SetState(peerID string, state State, now time.Time) {
	s.mu.Lock()
	conn, existed := s.peers[peerID]
	if !existed {
		conn = Connection{PeerID: peerID}
	}
	conn.State = state
	if state == StateConnected && conn.ConnectedAt == nil {
		t := now
		conn.ConnectedAt = &t
	}
	s.peers[peerID] = conn
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventUpserted, Connection: conn})
}

// Remove deletes peerID's record entirely (spec §4.4: closed connections
// are forgotten, not retained as "closed" entries forever). If peerID was
// the active peer, active_peer_id is cleared.
func (s *Store) Remove(peerID string) {
	s.mu.Lock()
	conn, ok := s.peers[peerID]
	if ok {
		delete(s.peers, peerID)
	}
	if s.activePeerID != nil && *s.activePeerID == peerID {
		s.activePeerID = nil
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.bus.Emit(Event{Kind: EventRemoved, Connection: conn})
}

func (s *Store) Get(peerID string) (Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.peers[peerID]
	return c, ok
}

// List returns a copy of all known connections; order is unspecified.
func (s *Store) List() []Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Connection, 0, len(s.peers))
	for _, c := range s.peers {
		out = append(out, c)
	}
	return out
}

func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// SetActive designates peerID as the active peer for UI/file-routing
// purposes (spec §4.4 active_peer_id). Pass "" to clear it.
func (s *Store) SetActive(peerID string) {
	s.mu.Lock()
	if peerID == "" {
		s.activePeerID = nil
	} else {
		id := peerID
		s.activePeerID = &id
	}
	s.mu.Unlock()
}

// ActivePeerID returns the currently active peer id, or "" if none.
func (s *Store) ActivePeerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activePeerID == nil {
		return ""
	}
	return *s.activePeerID
}

// SetSignalingError records the most recent signaling-layer failure.
func (s *Store) SetSignalingError(msg string) {
	s.mu.Lock()
	m := msg
	s.lastSigError = &m
	s.mu.Unlock()
}

// LastSignalingError returns the most recently recorded signaling error, if any.
func (s *Store) LastSignalingError() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSigError
}

// SetReconnectAttempts records the signaling client's current reconnect counter.
func (s *Store) SetReconnectAttempts(n int) {
	s.mu.Lock()
	s.reconnectTries = n
	s.mu.Unlock()
}

// ReconnectAttempts reports the last recorded reconnect counter.
func (s *Store) ReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnectTries
}
