package orchestrator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/moukrea/remoshell-sub000/internal/config"
	"github.com/moukrea/remoshell-sub000/internal/store/connectionstore"
	"github.com/moukrea/remoshell-sub000/internal/store/sessionstore"
	"github.com/moukrea/remoshell-sub000/internal/transport"
	"github.com/moukrea/remoshell-sub000/internal/wire"
)

func newTestCore(t *testing.T) (*Core, *fakeSignalConn, map[string]*fakePeerConn) {
	t.Helper()
	cfg, err := config.New("wss://relay.example/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	conn := newFakeSignalConn()
	conns := map[string]*fakePeerConn{}
	c := New(cfg, &singleDialer{conn: conn}, fakeTransportFactory(conns), nil)
	if err := c.Initialize("local-1"); err != nil {
		t.Fatal(err)
	}
	return c, conn, conns
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestInitializeTwiceErrors(t *testing.T) {
	c, _, _ := newTestCore(t)
	if err := c.Initialize("local-1"); err == nil {
		t.Fatal("expected second Initialize to error")
	}
}

func TestEventConnectedInitiatesToExistingPeers(t *testing.T) {
	c, conn, conns := newTestCore(t)
	if err := c.Connect("room-1"); err != nil {
		t.Fatal(err)
	}

	joinRaw := <-conn.outbox
	var join map[string]interface{}
	if err := json.Unmarshal(joinRaw, &join); err != nil {
		t.Fatal(err)
	}

	deliver(t, conn, map[string]interface{}{"type": "connected", "peerId": "local-1", "existingPeers": []string{"p1"}})

	waitFor(t, func() bool { return conns["p1"] != nil })

	state, ok := c.Connections.Get("p1")
	if !ok || state.State != connectionstore.StateConnecting {
		t.Fatalf("expected p1 connecting, got %+v ok=%v", state, ok)
	}
}

func TestEventPeerJoinedWaitsForOffer(t *testing.T) {
	c, conn, conns := newTestCore(t)
	if err := c.Connect("room-1"); err != nil {
		t.Fatal(err)
	}
	<-conn.outbox // join message

	deliver(t, conn, map[string]interface{}{"type": "peer-joined", "peerId": "p2"})
	waitFor(t, func() bool { return conns["p2"] != nil })

	// Glare avoidance: the newcomer initiates, so we must NOT have opened
	// an initiator-side connection (no secondary channels requested yet
	// since we never simulate LowerConnected here — this only checks the
	// connection was created without this side racing to offer).
	if conns["p2"] == nil {
		t.Fatal("expected connection created for p2")
	}
}

func TestSessionCreateRoundTrip(t *testing.T) {
	c, conn, conns := newTestCore(t)
	if err := c.Connect("room-1"); err != nil {
		t.Fatal(err)
	}
	<-conn.outbox

	deliver(t, conn, map[string]interface{}{"type": "connected", "peerId": "local-1", "existingPeers": []string{"p1"}})
	waitFor(t, func() bool { return conns["p1"] != nil })

	sink := conns["p1"].sink
	sink.OnStateChange(transport.LowerConnected)
	waitFor(t, func() bool { return len(conns["p1"].opened) == 2 })

	shell := "/bin/bash"
	if err := c.RequestSession("p1", wire.SessionCreate{Cols: 80, Rows: 24, Shell: &shell}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(conns["p1"].sent) == 1 })
	env, err := wire.DecodeEnvelope(conns["p1"].sent[0].Data)
	if err != nil {
		t.Fatal(err)
	}
	create, ok := env.Payload.(wire.SessionCreate)
	if !ok || create.Cols != 80 || create.Rows != 24 {
		t.Fatalf("unexpected payload: %+v", env.Payload)
	}

	// Simulate the remote acking the session, driving it through onChannelData.
	reply, err := wire.EncodeEnvelope(wire.Envelope{Version: 1, Sequence: 1, Payload: wire.SessionCreated{SessionID: "sess-1", PID: 42}})
	if err != nil {
		t.Fatal(err)
	}
	c.onChannelData("p1", transport.ChannelControl, reply)

	c.mu.Lock()
	peer, ok := c.sessionPeer["sess-1"]
	c.mu.Unlock()
	if !ok || peer != "p1" {
		t.Fatalf("expected sess-1 linked to p1, got %q ok=%v", peer, ok)
	}
}

func TestPeerFailureForgetsItsSessions(t *testing.T) {
	c, _, _ := newTestCore(t)

	c.mu.Lock()
	c.sessionPeer["sess-a"] = "p1"
	c.sessionPeer["sess-b"] = "p2"
	c.mu.Unlock()
	c.Sessions.Create(sessionOf("sess-a"))
	c.Sessions.Create(sessionOf("sess-b"))

	c.onTransportEvent(transport.Event{Kind: transport.EventClose, PeerID: "p1"})

	if _, ok := c.Sessions.Get("sess-a"); ok {
		t.Fatal("sess-a should have been removed with its peer")
	}
	if _, ok := c.Sessions.Get("sess-b"); !ok {
		t.Fatal("sess-b belongs to a different peer and must survive")
	}
}

func deliver(t *testing.T, conn *fakeSignalConn, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	conn.inbox <- data
}

func sessionOf(id string) sessionstore.Session {
	return sessionstore.Session{ID: id, Cols: 80, Rows: 24}
}
