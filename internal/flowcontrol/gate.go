// Package flowcontrol implements the per-session backpressure gate: once
// buffered output crosses a high watermark the producer is told to pause
// exactly once, and is told to resume exactly once when buffered output
// drops back to or below the low watermark (spec §8 invariant 9).
package flowcontrol

import (
	"sync"

	"github.com/moukrea/remoshell-sub000/internal/corelog"
	"github.com/moukrea/remoshell-sub000/internal/events"
)

type EventKind int

const (
	EventPauseRequested EventKind = iota
	EventResumeRequested
)

type Event struct {
	Kind      EventKind
	SessionID string
	Buffered  int64
}

// Gate tracks buffered byte count for one session and arms/disarms a single
// pause/resume signal around the high/low watermark pair.
type Gate struct {
	sessionID string
	high      int64
	low       int64
	log       corelog.Logger
	bus       *events.Bus[Event]

	mu       sync.Mutex
	buffered int64
	paused   bool
}

// New creates a Gate for sessionID. high must be greater than low; both
// must be non-negative.
func New(sessionID string, high, low int64, log corelog.Logger) *Gate {
	if log == nil {
		log = corelog.Nop()
	}
	return &Gate{sessionID: sessionID, high: high, low: low, log: log, bus: events.New[Event](log)}
}

func (g *Gate) Subscribe(h events.Handler[Event]) events.Unsubscribe {
	return g.bus.Subscribe(h)
}

// Buffer records n additional buffered bytes. If this crosses the high
// watermark and the gate is not already paused, it arms pause and emits
// EventPauseRequested exactly once; repeated calls while still above the
// high watermark do not re-emit.
func (g *Gate) Buffer(n int64) {
	g.mu.Lock()
	g.buffered += n
	crossed := !g.paused && g.buffered >= g.high
	if crossed {
		g.paused = true
	}
	buffered := g.buffered
	g.mu.Unlock()

	if crossed {
		g.log.Debugf("flowcontrol: session %s buffered %d >= high %d, pause requested", g.sessionID, buffered, g.high)
		g.bus.Emit(Event{Kind: EventPauseRequested, SessionID: g.sessionID, Buffered: buffered})
	}
}

// Drain records n bytes as flushed. If the gate is currently paused and
// buffered drops to or below the low watermark, it disarms and emits
// EventResumeRequested exactly once.
func (g *Gate) Drain(n int64) {
	g.mu.Lock()
	g.buffered -= n
	if g.buffered < 0 {
		g.buffered = 0
	}
	crossed := g.paused && g.buffered <= g.low
	if crossed {
		g.paused = false
	}
	buffered := g.buffered
	g.mu.Unlock()

	if crossed {
		g.log.Debugf("flowcontrol: session %s buffered %d <= low %d, resume requested", g.sessionID, buffered, g.low)
		g.bus.Emit(Event{Kind: EventResumeRequested, SessionID: g.sessionID, Buffered: buffered})
	}
}

// Paused reports the gate's current armed state.
func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Buffered reports the current buffered byte count.
func (g *Gate) Buffered() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.buffered
}
