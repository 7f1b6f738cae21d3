package transport

import "encoding/json"

// PeerConnection is the per-peer capability the manager drives. It is the
// seam where a real encrypted P2P transport (out of scope per spec §1)
// plugs in; the manager only ever calls these four methods, mirroring the
// teacher's conn.Bind — a narrow interface around an external transport,
// created through a factory rather than constructed directly.
type PeerConnection interface {
	// Signal delivers one inbound negotiation datagram (an offer, answer,
	// or ICE candidate already routed to this peer) to the underlying
	// implementation.
	Signal(datagram json.RawMessage) error

	// OpenChannel requests a new logical channel by label. Used by the
	// initiator to open the secondary channels once connected.
	OpenChannel(label string) error

	// Send writes data on channel. Returns false if the peer is not
	// connected, the channel is not open, or the channel is not currently
	// writable — never blocks (spec §4.3).
	Send(channel Channel, data []byte) bool

	// Close tears down the connection and all of its channels.
	Close() error
}

// ConnectionSink is how a PeerConnection reports asynchronous lower-layer
// events back into the manager. Implementations must not call back into
// the manager synchronously from within a PeerConnection method to avoid
// lock re-entrancy; sink calls are expected to come from the
// implementation's own goroutines.
type ConnectionSink interface {
	OnSignal(datagram json.RawMessage)
	OnStateChange(state LowerLayerState)
	OnChannelOpen(label string)
	OnData(channel Channel, data []byte)
	OnError(err error)
}

// Factory creates a PeerConnection for peerID. initiator is true iff the
// local side emits the first offer (spec §3.1). The returned connection
// must report its lifecycle exclusively through sink.
type Factory func(peerID string, initiator bool, iceServers []string, sink ConnectionSink) (PeerConnection, error)
