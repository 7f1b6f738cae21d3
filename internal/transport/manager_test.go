package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

type fakeConn struct {
	mu      sync.Mutex
	sink    ConnectionSink
	opened  []string
	closed  bool
	sendErr bool
}

func (f *fakeConn) Signal(datagram json.RawMessage) error { return nil }

func (f *fakeConn) OpenChannel(label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, label)
	return nil
}

func (f *fakeConn) Send(channel Channel, data []byte) bool {
	return !f.sendErr
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func fakeFactory(conns map[string]*fakeConn) Factory {
	return func(peerID string, initiator bool, iceServers []string, sink ConnectionSink) (PeerConnection, error) {
		c := &fakeConn{sink: sink}
		conns[peerID] = c
		return c, nil
	}
}

func TestCreateConnectionEmitsConnecting(t *testing.T) {
	conns := map[string]*fakeConn{}
	mgr := NewManager(fakeFactory(conns), nil)

	var states []PeerState
	mgr.Subscribe(func(e Event) {
		if e.Kind == EventStateChange {
			states = append(states, e.NewState)
		}
	})

	if err := mgr.CreateConnection("p1", true, nil); err != nil {
		t.Fatal(err)
	}

	if len(states) != 1 || states[0] != StateConnecting {
		t.Fatalf("expected single Connecting transition, got %v", states)
	}
}

func TestInitiatorOpensSecondaryChannelsOnConnect(t *testing.T) {
	conns := map[string]*fakeConn{}
	mgr := NewManager(fakeFactory(conns), nil)

	var connected bool
	mgr.Subscribe(func(e Event) {
		if e.Kind == EventConnect {
			connected = true
		}
	})

	if err := mgr.CreateConnection("p1", true, nil); err != nil {
		t.Fatal(err)
	}

	sink := &connSink{manager: mgr, peerID: "p1"}
	sink.OnStateChange(LowerConnected)

	if !connected {
		t.Fatal("expected Connect event")
	}
	c := conns["p1"]
	if len(c.opened) != 2 {
		t.Fatalf("expected terminal+files opened, got %v", c.opened)
	}
}

func TestResponderChannelBindingRejectsUnknownLabel(t *testing.T) {
	conns := map[string]*fakeConn{}
	mgr := NewManager(fakeFactory(conns), nil)
	if err := mgr.CreateConnection("p1", false, nil); err != nil {
		t.Fatal(err)
	}

	sink := &connSink{manager: mgr, peerID: "p1"}
	sink.OnChannelOpen("bogus")
	sink.OnChannelOpen("files")

	entry, _ := mgr.entry("p1")
	if entry.channelOpen[ChannelFiles] != true {
		t.Fatal("expected files channel bound")
	}
	if len(entry.channelOpen) != 1 {
		t.Fatalf("bogus label must not bind any channel, got %v", entry.channelOpen)
	}
}

func TestSendFalseWhenNotConnected(t *testing.T) {
	conns := map[string]*fakeConn{}
	mgr := NewManager(fakeFactory(conns), nil)
	if err := mgr.CreateConnection("p1", true, nil); err != nil {
		t.Fatal(err)
	}

	if mgr.Send("p1", []byte("hi"), ChannelTerminal) {
		t.Fatal("expected false: peer not yet connected")
	}
}

func TestSendTrueOnOpenChannelWhenConnected(t *testing.T) {
	conns := map[string]*fakeConn{}
	mgr := NewManager(fakeFactory(conns), nil)
	if err := mgr.CreateConnection("p1", true, nil); err != nil {
		t.Fatal(err)
	}
	sink := &connSink{manager: mgr, peerID: "p1"}
	sink.OnStateChange(LowerConnected)

	if !mgr.Send("p1", []byte("hi"), ChannelTerminal) {
		t.Fatal("expected true: connected and channel opened by initiator")
	}
}

func TestPeerFailureDegradesOnlyThatPeer(t *testing.T) {
	conns := map[string]*fakeConn{}
	mgr := NewManager(fakeFactory(conns), nil)
	mgr.CreateConnection("p1", true, nil)
	mgr.CreateConnection("p2", true, nil)

	s1 := &connSink{manager: mgr, peerID: "p1"}
	s2 := &connSink{manager: mgr, peerID: "p2"}
	s1.OnStateChange(LowerConnected)
	s2.OnStateChange(LowerConnected)

	s1.OnError(errors.New("ice failed"))

	e1, _ := mgr.entry("p1")
	e2, _ := mgr.entry("p2")
	if e1.state != StateFailed {
		t.Fatalf("p1 should be failed, got %s", e1.state)
	}
	if e2.state != StateConnected {
		t.Fatalf("p2 should remain connected, got %s", e2.state)
	}
}

func TestDestroyAllClosesEveryConnection(t *testing.T) {
	conns := map[string]*fakeConn{}
	mgr := NewManager(fakeFactory(conns), nil)
	mgr.CreateConnection("p1", true, nil)
	mgr.CreateConnection("p2", true, nil)

	mgr.DestroyAll()

	for id, c := range conns {
		if !c.closed {
			t.Fatalf("peer %s connection not closed", id)
		}
	}
	if _, ok := mgr.entry("p1"); ok {
		t.Fatal("peer map should be empty after DestroyAll")
	}
}
