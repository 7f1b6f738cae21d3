// Package devicestore tracks known remote devices (approved or pending)
// and a bounded append-only history of their connection activity, per
// spec §4.8.
package devicestore

import (
	"sync"
	"time"

	"github.com/moukrea/remoshell-sub000/internal/corelog"
	"github.com/moukrea/remoshell-sub000/internal/events"
)

// maxHistory bounds the connection history so a long-lived core doesn't
// grow this slice without limit; the oldest entries are dropped first.
const maxHistory = 200

// Device is a copy-out snapshot of one known device.
type Device struct {
	ID       string
	Name     string
	Platform string
	Approved bool
	LastSeen time.Time
}

// HistoryEntry records one connection lifecycle event for a device.
type HistoryEntry struct {
	DeviceID string
	Event    string // "connected", "disconnected", "approved", "rejected"
	At       time.Time
}

type EventKind int

const (
	EventRegistered EventKind = iota
	EventApproved
	EventRejected
	EventHistoryAppended
)

type Event struct {
	Kind    EventKind
	Device  Device
	History HistoryEntry
}

// Store is the mutex-guarded device registry plus history ring.
type Store struct {
	log corelog.Logger
	bus *events.Bus[Event]

	mu      sync.Mutex
	devices map[string]Device
	history []HistoryEntry
}

func New(log corelog.Logger) *Store {
	if log == nil {
		log = corelog.Nop()
	}
	return &Store{log: log, bus: events.New[Event](log), devices: make(map[string]Device)}
}

func (s *Store) Subscribe(h events.Handler[Event]) events.Unsubscribe {
	return s.bus.Subscribe(h)
}

// Register creates or refreshes a device record, bumping LastSeen, and
// appends a "connected" history entry.
func (s *Store) Register(id, name, platform string, now time.Time) Device {
	s.mu.Lock()
	d, existed := s.devices[id]
	if !existed {
		d = Device{ID: id, Name: name, Platform: platform}
	}
	d.LastSeen = now
	s.devices[id] = d
	entry := s.appendHistoryLocked(HistoryEntry{DeviceID: id, Event: "connected", At: now})
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventRegistered, Device: d})
	s.bus.Emit(Event{Kind: EventHistoryAppended, History: entry})
	return d
}

// Approve marks a device approved and records the decision in history.
func (s *Store) Approve(id string, now time.Time) bool {
	s.mu.Lock()
	d, ok := s.devices[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	d.Approved = true
	s.devices[id] = d
	entry := s.appendHistoryLocked(HistoryEntry{DeviceID: id, Event: "approved", At: now})
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventApproved, Device: d})
	s.bus.Emit(Event{Kind: EventHistoryAppended, History: entry})
	return true
}

// Reject records a rejection in history without removing the device
// record, so a repeat request from the same device is still recognized.
func (s *Store) Reject(id string, now time.Time) bool {
	s.mu.Lock()
	d, ok := s.devices[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	entry := s.appendHistoryLocked(HistoryEntry{DeviceID: id, Event: "rejected", At: now})
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventRejected, Device: d})
	s.bus.Emit(Event{Kind: EventHistoryAppended, History: entry})
	return true
}

// Disconnected appends a "disconnected" history entry without altering the
// device's approval state.
func (s *Store) Disconnected(id string, now time.Time) {
	s.mu.Lock()
	entry := s.appendHistoryLocked(HistoryEntry{DeviceID: id, Event: "disconnected", At: now})
	s.mu.Unlock()
	s.bus.Emit(Event{Kind: EventHistoryAppended, History: entry})
}

func (s *Store) appendHistoryLocked(entry HistoryEntry) HistoryEntry {
	s.history = append(s.history, entry)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	return entry
}

func (s *Store) Get(id string) (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	return d, ok
}

func (s *Store) List() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	return out
}

// History returns a copy of the bounded connection history, oldest first.
func (s *Store) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}
