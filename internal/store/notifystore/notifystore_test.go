package notifystore

import (
	"testing"
	"time"
)

func TestCreateEmitsEvent(t *testing.T) {
	s := New(nil)
	var created Notification
	s.Subscribe(func(e Event) {
		if e.Kind == EventCreated {
			created = e.Notification
		}
	})

	now := time.Now()
	n := s.Create("hello", 5*time.Second, now)

	if created.ID != n.ID || created.Message != "hello" {
		t.Fatalf("expected created event to carry the new notification, got %+v", created)
	}
}

func TestPauseResumeRecomputesRemaining(t *testing.T) {
	s := New(nil)
	now := time.Now()
	n := s.Create("hello", 10*time.Second, now)

	if !s.Pause(n.ID, now.Add(3*time.Second)) {
		t.Fatal("expected pause to succeed")
	}

	resumeAt := now.Add(10 * time.Second)
	if !s.Resume(n.ID, resumeAt) {
		t.Fatal("expected resume to succeed")
	}

	got, _ := s.Get(n.ID)
	// elapsed before pause = 3s, remaining = 10s-3s = 7s
	if got.Duration != 7*time.Second {
		t.Fatalf("expected 7s remaining, got %v", got.Duration)
	}
	if !got.CreatedAt.Equal(resumeAt) {
		t.Fatalf("expected countdown restarted at resume time, got %v", got.CreatedAt)
	}
}

func TestResumeFloorsAtOneSecond(t *testing.T) {
	s := New(nil)
	now := time.Now()
	n := s.Create("hello", 2*time.Second, now)
	s.Pause(n.ID, now.Add(1900*time.Millisecond))
	s.Resume(n.ID, now.Add(5*time.Second))

	got, _ := s.Get(n.ID)
	if got.Duration != minRemaining {
		t.Fatalf("expected floor of %v, got %v", minRemaining, got.Duration)
	}
}

func TestPauseTwiceFails(t *testing.T) {
	s := New(nil)
	now := time.Now()
	n := s.Create("hello", 5*time.Second, now)
	if !s.Pause(n.ID, now) {
		t.Fatal("first pause should succeed")
	}
	if s.Pause(n.ID, now) {
		t.Fatal("second pause should be a no-op")
	}
}

func TestDismissThenRemove(t *testing.T) {
	s := New(nil)
	n := s.Create("hello", time.Second, time.Now())

	if !s.Dismiss(n.ID) {
		t.Fatal("expected dismiss to succeed")
	}
	got, _ := s.Get(n.ID)
	if !got.Dismissed {
		t.Fatal("expected notification marked dismissed")
	}

	s.Remove(n.ID)
	if _, ok := s.Get(n.ID); ok {
		t.Fatal("expected notification gone after remove")
	}
}

func TestResumeWithoutPauseFails(t *testing.T) {
	s := New(nil)
	n := s.Create("hello", time.Second, time.Now())
	if s.Resume(n.ID, time.Now()) {
		t.Fatal("expected resume of non-paused notification to fail")
	}
}
