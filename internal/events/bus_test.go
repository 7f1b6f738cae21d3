package events

import (
	"sync/atomic"
	"testing"
)

func TestBusEmitInOrder(t *testing.T) {
	b := New[int](nil)
	var order []int
	b.Subscribe(func(v int) { order = append(order, v*10) })
	b.Subscribe(func(v int) { order = append(order, v*100) })

	b.Emit(1)

	if len(order) != 2 || order[0] != 10 || order[1] != 100 {
		t.Fatalf("unexpected dispatch order: %v", order)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	b := New[string](nil)
	var calls int32
	unsub := b.Subscribe(func(string) { atomic.AddInt32(&calls, 1) })

	b.Emit("a")
	unsub()
	b.Emit("b")
	unsub() // idempotent

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestBusSubscriberPanicIsolated(t *testing.T) {
	b := New[int](nil)
	var secondCalled bool
	b.Subscribe(func(int) { panic("boom") })
	b.Subscribe(func(int) { secondCalled = true })

	b.Emit(1)

	if !secondCalled {
		t.Fatal("panic in first subscriber must not block the second")
	}
	if b.SubscriberCount() != 2 {
		t.Fatalf("expected 2 subscribers still registered, got %d", b.SubscriberCount())
	}
}
