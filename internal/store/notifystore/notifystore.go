// Package notifystore manages transient UI notifications: creation with a
// display duration, pause/resume that preserves remaining time, dismissal,
// and removal, per spec §4.7.
package notifystore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moukrea/remoshell-sub000/internal/corelog"
	"github.com/moukrea/remoshell-sub000/internal/events"
)

// minRemaining is the floor applied when recomputing a paused
// notification's remaining duration on resume (spec §4.7).
const minRemaining = time.Second

// Notification is a copy-out snapshot of one notification's state.
type Notification struct {
	ID        string
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
	Paused    bool
	PausedAt  time.Time
	Dismissed bool
}

type EventKind int

const (
	EventCreated EventKind = iota
	EventPaused
	EventResumed
	EventDismissed
	EventRemoved
)

type Event struct {
	Kind         EventKind
	Notification Notification
}

// Store is the mutex-guarded set of active notifications.
type Store struct {
	log corelog.Logger
	bus *events.Bus[Event]

	mu     sync.Mutex
	notifs map[string]Notification
}

func New(log corelog.Logger) *Store {
	if log == nil {
		log = corelog.Nop()
	}
	return &Store{log: log, bus: events.New[Event](log), notifs: make(map[string]Notification)}
}

func (s *Store) Subscribe(h events.Handler[Event]) events.Unsubscribe {
	return s.bus.Subscribe(h)
}

// Create adds a notification with the given display duration, stamping
// CreatedAt as now and generating its id.
func (s *Store) Create(message string, duration time.Duration, now time.Time) Notification {
	n := Notification{ID: uuid.NewString(), Message: message, Duration: duration, CreatedAt: now}

	s.mu.Lock()
	s.notifs[n.ID] = n
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventCreated, Notification: n})
	return n
}

// Pause freezes the notification's countdown at now. A no-op if unknown,
// already paused, or already dismissed.
func (s *Store) Pause(id string, now time.Time) bool {
	s.mu.Lock()
	n, ok := s.notifs[id]
	if !ok || n.Paused || n.Dismissed {
		s.mu.Unlock()
		return false
	}
	n.Paused = true
	n.PausedAt = now
	s.notifs[id] = n
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventPaused, Notification: n})
	return true
}

// Resume recomputes the remaining duration as
// max(duration-(pausedAt-createdAt), 1s) and restarts the countdown from
// now, per spec §4.7. A no-op if unknown, not paused, or dismissed.
func (s *Store) Resume(id string, now time.Time) bool {
	s.mu.Lock()
	n, ok := s.notifs[id]
	if !ok || !n.Paused || n.Dismissed {
		s.mu.Unlock()
		return false
	}
	elapsed := n.PausedAt.Sub(n.CreatedAt)
	remaining := n.Duration - elapsed
	if remaining < minRemaining {
		remaining = minRemaining
	}
	n.Duration = remaining
	n.CreatedAt = now
	n.Paused = false
	n.PausedAt = time.Time{}
	s.notifs[id] = n
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventResumed, Notification: n})
	return true
}

// Dismiss marks a notification dismissed without removing it, so a fading
// transition can still reference its final state. A no-op if unknown or
// already dismissed.
func (s *Store) Dismiss(id string) bool {
	s.mu.Lock()
	n, ok := s.notifs[id]
	if !ok || n.Dismissed {
		s.mu.Unlock()
		return false
	}
	n.Dismissed = true
	s.notifs[id] = n
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventDismissed, Notification: n})
	return true
}

// Remove deletes a notification entirely.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	n, ok := s.notifs[id]
	if ok {
		delete(s.notifs, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.bus.Emit(Event{Kind: EventRemoved, Notification: n})
}

func (s *Store) Get(id string) (Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifs[id]
	return n, ok
}

func (s *Store) List() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0, len(s.notifs))
	for _, n := range s.notifs {
		out = append(out, n)
	}
	return out
}
