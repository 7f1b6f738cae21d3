// Package events implements the synchronous, panic-isolated publish/
// subscribe primitive shared by every store, the signaling client, and the
// transport manager. Dispatch happens on the emitting goroutine: a handler
// runs to completion before the next one is invoked (spec §5), and a
// handler that panics is recovered and logged rather than taking down the
// emitter or starving later subscribers (spec §7, SubscriberError).
package events

import (
	"sort"
	"sync"

	"github.com/moukrea/remoshell-sub000/internal/corelog"
)

// Handler receives one event value.
type Handler[T any] func(T)

// Unsubscribe removes a previously registered handler. Safe to call more
// than once.
type Unsubscribe func()

// Bus is a typed multi-subscriber event stream.
type Bus[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]Handler[T]
	log    corelog.Logger
}

// New creates an empty Bus. log may be nil, in which case subscriber panics
// are swallowed silently.
func New[T any](log corelog.Logger) *Bus[T] {
	if log == nil {
		log = corelog.Nop()
	}
	return &Bus[T]{subs: make(map[uint64]Handler[T]), log: log}
}

// Subscribe registers handler and returns a function to remove it.
func (b *Bus[T]) Subscribe(handler Handler[T]) Unsubscribe {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Emit invokes every current subscriber with evt, in registration order.
// A snapshot of subscribers is taken under lock so a handler may safely
// subscribe or unsubscribe from within its own invocation.
func (b *Bus[T]) Emit(evt T) {
	b.mu.Lock()
	ids := make([]uint64, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler[T], 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.Unlock()

	for _, h := range handlers {
		b.dispatch(h, evt)
	}
}

func (b *Bus[T]) dispatch(h Handler[T], evt T) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("subscriber panic: %v", r)
		}
	}()
	h(evt)
}

// SubscriberCount reports the number of currently registered handlers,
// mostly useful for tests.
func (b *Bus[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
