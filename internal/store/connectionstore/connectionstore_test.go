package connectionstore

import (
	"testing"
	"time"
)

func TestSetStateStampsConnectedAtOnce(t *testing.T) {
	s := New(nil)
	t0 := time.Now()
	s.SetState("p1", StateConnecting, t0)
	s.SetState("p1", StateConnected, t0.Add(time.Second))
	s.SetState("p1", StateConnected, t0.Add(2*time.Second))

	conn, ok := s.Get("p1")
	if !ok {
		t.Fatal("expected peer present")
	}
	if conn.ConnectedAt == nil || !conn.ConnectedAt.Equal(t0.Add(time.Second)) {
		t.Fatalf("expected ConnectedAt stamped once at first connect, got %v", conn.ConnectedAt)
	}
}

func TestRemoveEmitsAndForgets(t *testing.T) {
	s := New(nil)
	s.SetState("p1", StateConnected, time.Now())

	var removed []Connection
	s.Subscribe(func(e Event) {
		if e.Kind == EventRemoved {
			removed = append(removed, e.Connection)
		}
	})

	s.Remove("p1")
	if _, ok := s.Get("p1"); ok {
		t.Fatal("expected peer forgotten")
	}
	if len(removed) != 1 || removed[0].PeerID != "p1" {
		t.Fatalf("expected one EventRemoved for p1, got %v", removed)
	}

	s.Remove("p1")
	if len(removed) != 1 {
		t.Fatal("removing an unknown peer must not emit again")
	}
}

func TestListCountsAllPeers(t *testing.T) {
	s := New(nil)
	s.SetState("p1", StateConnected, time.Now())
	s.SetState("p2", StateConnecting, time.Now())

	if s.Count() != 2 {
		t.Fatalf("expected 2 peers, got %d", s.Count())
	}
	if len(s.List()) != 2 {
		t.Fatal("List length mismatch")
	}
}
