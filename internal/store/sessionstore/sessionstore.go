// Package sessionstore holds the set of live terminal sessions, their
// creation order, and which one is active, per spec §4.5.
package sessionstore

import (
	"sync"
	"time"

	"github.com/moukrea/remoshell-sub000/internal/corelog"
	"github.com/moukrea/remoshell-sub000/internal/events"
)

// Status mirrors spec §3.2's session status enum.
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusDisconnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// FlowControl mirrors spec §3.2's per-session flow_control flag.
type FlowControl int

const (
	FlowRunning FlowControl = iota
	FlowPaused
)

// Session is a copy-out snapshot of one terminal session's metadata.
type Session struct {
	ID             string
	PeerID         string
	PID            int64
	Status         Status
	FlowControl    FlowControl
	Cols           int
	Rows           int
	Title          string
	Shell          *string
	Cwd            *string
	CreatedAt      time.Time
	ConnectedAt    *time.Time
	DisconnectedAt *time.Time
	LastError      *string
}

type EventKind int

const (
	EventCreated EventKind = iota
	EventRemoved
	EventResized
	EventActivated
	EventStatusChanged
	EventFlowControlChanged
	EventTitleChanged
	EventReordered
	EventOutput      // inbound terminal data, delivered to the external UI layer
	EventInputIntent // outbound intent: UI asked to send keystrokes; orchestrator encodes SessionData(Stdin)
	EventResizeIntent // outbound intent: UI asked to resize; orchestrator encodes SessionResize
)

type Event struct {
	Kind      EventKind
	Session   Session
	ActiveID  *string
	Text      string
	Order     []string
}

// Store is the mutex-guarded collection of sessions plus ordering and
// activation bookkeeping.
type Store struct {
	log corelog.Logger
	bus *events.Bus[Event]

	mu           sync.Mutex
	sessions     map[string]Session
	sessionOrder []string
	activeID     *string
}

func New(log corelog.Logger) *Store {
	if log == nil {
		log = corelog.Nop()
	}
	return &Store{log: log, bus: events.New[Event](log), sessions: make(map[string]Session)}
}

func (s *Store) Subscribe(h events.Handler[Event]) events.Unsubscribe {
	return s.bus.Subscribe(h)
}

// Create registers a new session, appends it to session_order, and — per
// spec §4.5 — activates it immediately since it is always the most
// recently created session. Status defaults to connecting and flow control
// to running unless the caller already knows better.
func (s *Store) Create(sess Session) {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.sessionOrder = append(s.sessionOrder, sess.ID)
	id := sess.ID
	s.activeID = &id
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventCreated, Session: sess})
	s.bus.Emit(Event{Kind: EventActivated, Session: sess, ActiveID: &id})
}

// Remove deletes a session and, if it was active, promotes the previous
// entry in session_order (or the next one if it was first), matching the
// "most-recently-used minus the one removed" activation rule of spec §4.5.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, id)

	idx := -1
	for i, sid := range s.sessionOrder {
		if sid == id {
			idx = i
			break
		}
	}
	if idx >= 0 {
		s.sessionOrder = append(s.sessionOrder[:idx], s.sessionOrder[idx+1:]...)
	}

	wasActive := s.activeID != nil && *s.activeID == id
	var promoted *string
	if wasActive {
		switch {
		case idx > 0 && idx-1 < len(s.sessionOrder):
			p := s.sessionOrder[idx-1]
			promoted = &p
		case len(s.sessionOrder) > 0:
			p := s.sessionOrder[0]
			promoted = &p
		default:
			promoted = nil
		}
		s.activeID = promoted
	}
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventRemoved, Session: sess})
	if wasActive {
		s.bus.Emit(Event{Kind: EventActivated, ActiveID: promoted})
	}
}

// CloseByPeer removes every session attributed to peerID (spec §3.1: peer
// removal cascades to all its sessions) and returns the ids removed.
func (s *Store) CloseByPeer(peerID string) []string {
	s.mu.Lock()
	var dead []string
	for id, sess := range s.sessions {
		if sess.PeerID == peerID {
			dead = append(dead, id)
		}
	}
	s.mu.Unlock()

	for _, id := range dead {
		s.Remove(id)
	}
	return dead
}

// Activate sets the active session. A no-op if id is unknown.
func (s *Store) Activate(id string) bool {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return false
	}
	activeID := id
	s.activeID = &activeID
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventActivated, ActiveID: &activeID})
	return true
}

// Resize applies a new cols/rows directly to the stored session without
// emitting an outbound intent. Used to apply a resize that originated from
// the remote peer, and by RequestResize below for the local, intent-emitting
// path — kept as the single source of truth so both paths agree on storage.
func (s *Store) Resize(id string, cols, rows int) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	sess.Cols, sess.Rows = cols, rows
	s.sessions[id] = sess
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventResized, Session: sess})
	return true
}

// RequestResize is the UI-facing entry point: it applies the resize locally
// (so a caller redrawing immediately sees the new geometry) and emits
// EventResizeIntent for the orchestrator to encode as an outbound
// SessionResize (spec §4.5 "session:resize" write event).
func (s *Store) RequestResize(id string, cols, rows int) bool {
	if !s.Resize(id, cols, rows) {
		return false
	}
	sess, _ := s.Get(id)
	s.bus.Emit(Event{Kind: EventResizeIntent, Session: sess})
	return true
}

// SendInput is rejected when the session is unknown, not connected, or
// paused (spec §4.5 policy, §8 invariant 8): in all three cases it returns
// false and emits nothing. Otherwise it emits EventInputIntent for the
// orchestrator to encode as SessionData(stream=Stdin).
func (s *Store) SendInput(id, text string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok || sess.Status != StatusConnected || sess.FlowControl == FlowPaused {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventInputIntent, Session: sess, Text: text})
	return true
}

// WriteOutput delivers inbound terminal bytes to the external UI layer,
// enforcing spec §3.2's "output is delivered only while status=connected ∧
// flow_control=running" invariant by silently dropping output that arrives
// outside that window. An unknown session id is a non-fatal warning; the
// caller logs it, this just reports false.
func (s *Store) WriteOutput(id, text string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	if sess.Status != StatusConnected || sess.FlowControl != FlowRunning {
		return true
	}

	s.bus.Emit(Event{Kind: EventOutput, Session: sess, Text: text})
	return true
}

// Pause sets flow_control to paused. A no-op if unknown or already paused.
func (s *Store) Pause(id string) bool {
	return s.setFlowControl(id, FlowPaused)
}

// Resume sets flow_control back to running. A no-op if unknown or already
// running.
func (s *Store) Resume(id string) bool {
	return s.setFlowControl(id, FlowRunning)
}

func (s *Store) setFlowControl(id string, fc FlowControl) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok || sess.FlowControl == fc {
		s.mu.Unlock()
		return false
	}
	sess.FlowControl = fc
	s.sessions[id] = sess
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventFlowControlChanged, Session: sess})
	return true
}

// SetStatus transitions a session's status, stamping ConnectedAt the first
// time it reaches connected and DisconnectedAt the first time it leaves
// connected for disconnected/error. lastErr is attached when provided.
func (s *Store) SetStatus(id string, status Status, now time.Time, lastErr *string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	sess.Status = status
	if lastErr != nil {
		sess.LastError = lastErr
	}
	if status == StatusConnected && sess.ConnectedAt == nil {
		t := now
		sess.ConnectedAt = &t
	}
	if (status == StatusDisconnected || status == StatusError) && sess.DisconnectedAt == nil {
		t := now
		sess.DisconnectedAt = &t
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventStatusChanged, Session: sess})
	return true
}

// SetTitle renames a session's tab title.
func (s *Store) SetTitle(id, title string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	sess.Title = title
	s.sessions[id] = sess
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventTitleChanged, Session: sess})
	return true
}

// Reorder moves the session at fromIdx to toIdx within session_order,
// preserving the relative order of every other entry (spec §3.2).
func (s *Store) Reorder(fromIdx, toIdx int) bool {
	s.mu.Lock()
	n := len(s.sessionOrder)
	if fromIdx < 0 || fromIdx >= n || toIdx < 0 || toIdx >= n {
		s.mu.Unlock()
		return false
	}
	id := s.sessionOrder[fromIdx]
	order := append(s.sessionOrder[:fromIdx:fromIdx], s.sessionOrder[fromIdx+1:]...)
	order = append(order[:toIdx], append([]string{id}, order[toIdx:]...)...)
	s.sessionOrder = order
	out := make([]string, len(order))
	copy(out, order)
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventReordered, Order: out})
	return true
}

func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// ActiveID returns the currently active session id, if any.
func (s *Store) ActiveID() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == nil {
		return nil
	}
	id := *s.activeID
	return &id
}

// Ordered returns sessions in session_order: creation order, as changed by
// any Reorder calls.
func (s *Store) Ordered() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0, len(s.sessionOrder))
	for _, id := range s.sessionOrder {
		out = append(out, s.sessions[id])
	}
	return out
}
