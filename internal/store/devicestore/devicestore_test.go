package devicestore

import (
	"testing"
	"time"
)

func TestRegisterCreatesAndRefreshes(t *testing.T) {
	s := New(nil)
	t0 := time.Now()
	d := s.Register("dev1", "Laptop", "linux", t0)
	if d.Approved {
		t.Fatal("new device must not be pre-approved")
	}

	d2 := s.Register("dev1", "Laptop", "linux", t0.Add(time.Minute))
	if !d2.LastSeen.Equal(t0.Add(time.Minute)) {
		t.Fatalf("expected LastSeen refreshed, got %v", d2.LastSeen)
	}
}

func TestApproveUnknownDeviceFails(t *testing.T) {
	s := New(nil)
	if s.Approve("ghost", time.Now()) {
		t.Fatal("expected approve of unknown device to fail")
	}
}

func TestApproveKnownDevice(t *testing.T) {
	s := New(nil)
	s.Register("dev1", "Laptop", "linux", time.Now())
	if !s.Approve("dev1", time.Now()) {
		t.Fatal("expected approve to succeed")
	}
	d, _ := s.Get("dev1")
	if !d.Approved {
		t.Fatal("expected device marked approved")
	}
}

func TestHistoryBoundedAtMax(t *testing.T) {
	s := New(nil)
	now := time.Now()
	for i := 0; i < maxHistory+50; i++ {
		s.Disconnected("dev1", now)
	}
	if len(s.History()) != maxHistory {
		t.Fatalf("expected history capped at %d, got %d", maxHistory, len(s.History()))
	}
}

func TestHistoryEventsEmitted(t *testing.T) {
	s := New(nil)
	var kinds []string
	s.Subscribe(func(e Event) {
		if e.Kind == EventHistoryAppended {
			kinds = append(kinds, e.History.Event)
		}
	})

	now := time.Now()
	s.Register("dev1", "Laptop", "linux", now)
	s.Approve("dev1", now)
	s.Reject("dev2", now)

	if len(kinds) != 2 {
		t.Fatalf("expected 2 history events (reject on unknown device is a no-op), got %v", kinds)
	}
	if kinds[0] != "connected" || kinds[1] != "approved" {
		t.Fatalf("unexpected history order %v", kinds)
	}
}
