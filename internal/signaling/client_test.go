package signaling

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn driven by the test.
type fakeConn struct {
	mu     sync.Mutex
	inbox  chan []byte
	outbox chan []byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan []byte, 16), outbox: make(chan []byte, 16)}
}

func (f *fakeConn) ReadMessage() ([]byte, error) {
	data, ok := <-f.inbox
	if !ok {
		return nil, errors.New("fakeConn: closed")
	}
	return data, nil
}

func (f *fakeConn) WriteMessage(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("fakeConn: closed")
	}
	f.outbox <- data
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbox)
	}
	return nil
}

func (f *fakeConn) deliver(t *testing.T, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	f.inbox <- data
}

func (f *fakeConn) sentWithin(t *testing.T, d time.Duration) relayMessage {
	t.Helper()
	select {
	case data := <-f.outbox:
		var msg relayMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		return msg
	case <-time.After(d):
		t.Fatal("timed out waiting for outbound message")
		return relayMessage{}
	}
}

// scriptedDialer returns successive conns from a queue, failing with an
// error while its fail counter is still positive.
type scriptedDialer struct {
	mu    sync.Mutex
	fails int
	conns []*fakeConn
	idx   int
}

func (d *scriptedDialer) Dial(string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fails > 0 {
		d.fails--
		return nil, errors.New("dial refused")
	}
	c := d.conns[d.idx]
	d.idx++
	return c, nil
}

func TestJoinEmitsConnected(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{conns: []*fakeConn{conn}}
	client := NewClient(dialer, "wss://relay.example/ws", DefaultOptions(), nil)

	var got Event
	done := make(chan struct{})
	client.Subscribe(func(e Event) {
		if e.Kind == EventConnected {
			got = e
			close(done)
		}
	})

	if err := client.Join("room-1"); err != nil {
		t.Fatal(err)
	}

	joinMsg := conn.sentWithin(t, time.Second)
	if joinMsg.Type != relayTypeJoin || joinMsg.Room != "room-1" {
		t.Fatalf("unexpected join message: %+v", joinMsg)
	}

	conn.deliver(t, relayMessage{Type: relayTypeConnected, PeerID: "local-1", ExistingPeers: []string{"p1"}})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("did not receive connected event")
	}

	if got.LocalPeerID != "local-1" || len(got.ExistingPeers) != 1 || got.ExistingPeers[0] != "p1" {
		t.Fatalf("unexpected connected event: %+v", got)
	}
}

func TestLeaveDoesNotReconnect(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{conns: []*fakeConn{conn}}
	client := NewClient(dialer, "wss://relay.example/ws", DefaultOptions(), nil)

	client.Subscribe(func(e Event) {
		if e.Kind == EventDisconnected {
			t.Error("Leave must not emit a reconnect-triggered disconnect event")
		}
	})

	if err := client.Join("room-1"); err != nil {
		t.Fatal(err)
	}
	conn.sentWithin(t, time.Second) // drain the join message

	client.Leave()
	time.Sleep(50 * time.Millisecond)
}

func TestReconnectsAfterAbnormalClose(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &scriptedDialer{conns: []*fakeConn{first, second}}
	opts := DefaultOptions()
	opts.InitialDelay = 5 * time.Millisecond
	opts.MaxDelay = 20 * time.Millisecond
	opts.MaxAttempts = 5
	client := NewClient(dialer, "wss://relay.example/ws", opts, nil)

	reconnected := make(chan struct{})
	var once sync.Once
	client.Subscribe(func(e Event) {
		if e.Kind == EventConnected {
			once.Do(func() { close(reconnected) })
		}
	})

	if err := client.Join("room-1"); err != nil {
		t.Fatal(err)
	}
	first.sentWithin(t, time.Second)
	first.deliver(t, relayMessage{Type: relayTypeConnected, PeerID: "local-1"})

	// Simulate an abnormal close by closing the underlying conn out from
	// under the client, without going through Leave().
	first.Close()

	second.sentWithin(t, 2*time.Second) // rejoin after reconnect
	second.deliver(t, relayMessage{Type: relayTypeConnected, PeerID: "local-1"})

	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("did not observe reconnect")
	}
}

func TestCanReconnectQuery(t *testing.T) {
	client := NewClient(&scriptedDialer{}, "wss://relay.example/ws", DefaultOptions(), nil)
	if !client.CanReconnect(3) {
		t.Fatal("fresh client should be able to reconnect")
	}
}
