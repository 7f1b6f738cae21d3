package orchestrator

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/moukrea/remoshell-sub000/internal/signaling"
	"github.com/moukrea/remoshell-sub000/internal/transport"
)

// fakeSignalConn is an in-memory signaling.Conn driven by the test.
type fakeSignalConn struct {
	mu     sync.Mutex
	inbox  chan []byte
	outbox chan []byte
	closed bool
}

func newFakeSignalConn() *fakeSignalConn {
	return &fakeSignalConn{inbox: make(chan []byte, 16), outbox: make(chan []byte, 16)}
}

func (f *fakeSignalConn) ReadMessage() ([]byte, error) {
	data, ok := <-f.inbox
	if !ok {
		return nil, errors.New("fakeSignalConn: closed")
	}
	return data, nil
}

func (f *fakeSignalConn) WriteMessage(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("fakeSignalConn: closed")
	}
	f.outbox <- data
	return nil
}

func (f *fakeSignalConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.inbox)
	}
	return nil
}

type singleDialer struct{ conn *fakeSignalConn }

func (d *singleDialer) Dial(string) (signaling.Conn, error) { return d.conn, nil }

// fakePeerConn is an in-memory transport.PeerConnection driven by the test.
type fakePeerConn struct {
	mu      sync.Mutex
	sink    transport.ConnectionSink
	peerID  string
	opened  []string
	closed  bool
	sent    []sentMessage
	sendErr bool
}

type sentMessage struct {
	Channel transport.Channel
	Data    []byte
}

func (f *fakePeerConn) Signal(datagram json.RawMessage) error { return nil }

func (f *fakePeerConn) OpenChannel(label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, label)
	return nil
}

func (f *fakePeerConn) Send(channel transport.Channel, data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr {
		return false
	}
	f.sent = append(f.sent, sentMessage{Channel: channel, Data: data})
	return true
}

func (f *fakePeerConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func fakeTransportFactory(conns map[string]*fakePeerConn) transport.Factory {
	return func(peerID string, initiator bool, iceServers []string, sink transport.ConnectionSink) (transport.PeerConnection, error) {
		c := &fakePeerConn{sink: sink, peerID: peerID}
		conns[peerID] = c
		return c, nil
	}
}
