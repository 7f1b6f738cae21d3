package orchestrator

import (
	"encoding/json"
	"time"

	"github.com/moukrea/remoshell-sub000/internal/signaling"
	"github.com/moukrea/remoshell-sub000/internal/store/connectionstore"
	"github.com/moukrea/remoshell-sub000/internal/transport"
)

// onSignalingEvent routes relay events into peer connection creation and
// negotiation datagram delivery (spec §4.2/§4.3 boundary).
func (c *Core) onSignalingEvent(e signaling.Event) {
	switch e.Kind {
	case signaling.EventConnected:
		// e.LocalPeerID is our own relay-assigned id, not a remote peer —
		// active_peer_id (spec §4.4) must designate a remote peer for file
		// routing to have anywhere to go, so it is left alone here and
		// picked up as peers actually connect (see EventStateChange below).
		c.Connections.SetReconnectAttempts(0)
		// We just joined the room: initiate to everyone already present.
		for _, peerID := range e.ExistingPeers {
			if err := c.trans.CreateConnection(peerID, true, c.cfg.ICEServers()); err != nil {
				c.log.Errorf("orchestrator: create connection for existing peer %s: %v", peerID, err)
			}
		}
	case signaling.EventPeerJoined:
		// A peer joined after us: they are the one reaching out, so we wait
		// for their offer rather than racing them to it.
		if err := c.trans.CreateConnection(e.PeerID, false, c.cfg.ICEServers()); err != nil {
			c.log.Errorf("orchestrator: create connection for %s: %v", e.PeerID, err)
		}
	case signaling.EventPeerLeft:
		c.trans.Destroy(e.PeerID)
		c.Connections.Remove(e.PeerID)
		c.forgetPeerSessions(e.PeerID)
	case signaling.EventOffer:
		c.deliverDatagram(e.PeerID, map[string]interface{}{"type": "offer", "sdp": json.RawMessage(e.Desc)})
	case signaling.EventAnswer:
		c.deliverDatagram(e.PeerID, map[string]interface{}{"type": "answer", "sdp": json.RawMessage(e.Desc)})
	case signaling.EventICE:
		c.deliverDatagram(e.PeerID, map[string]interface{}{"candidate": json.RawMessage(e.Candidate)})
	case signaling.EventDisconnected:
		c.log.Infof("orchestrator: signaling disconnected: %s", e.Reason)
		c.Connections.SetSignalingError(e.Reason)
		c.Connections.SetReconnectAttempts(c.sig.ReconnectAttempts())
	case signaling.EventError:
		c.log.Errorf("orchestrator: signaling error: %s", e.Message)
		c.Connections.SetSignalingError(e.Message)
	}
}

func (c *Core) deliverDatagram(peerID string, shape map[string]interface{}) {
	raw, err := json.Marshal(shape)
	if err != nil {
		c.log.Errorf("orchestrator: marshal negotiation datagram for %s: %v", peerID, err)
		return
	}
	if err := c.trans.Signal(peerID, raw); err != nil {
		c.log.Errorf("orchestrator: deliver datagram to %s: %v", peerID, err)
	}
}

// onTransportEvent routes per-peer connection lifecycle and channel
// traffic into the stores and, for EventSignal, back out to the relay.
func (c *Core) onTransportEvent(e transport.Event) {
	switch e.Kind {
	case transport.EventSignal:
		c.relayOutboundDatagram(e.PeerID, e.Datagram)
	case transport.EventStateChange:
		state := mapPeerState(e.NewState)
		c.Connections.SetState(e.PeerID, state, time.Now())
		switch state {
		case connectionstore.StateConnected:
			if c.Connections.ActivePeerID() == "" {
				c.Connections.SetActive(e.PeerID)
			}
		case connectionstore.StateFailed:
			// A peer degraded to failed closes its sessions too (spec §4.9
			// "Failure", §7 PeerFailure) — not just a full teardown/EventClose.
			c.forgetPeerSessions(e.PeerID)
		}
	case transport.EventClose:
		c.Connections.Remove(e.PeerID)
		c.forgetPeerSessions(e.PeerID)
	case transport.EventData:
		c.onChannelData(e.PeerID, e.Channel, e.Data)
	case transport.EventError:
		c.log.Errorf("orchestrator: transport error for %s: %v", e.PeerID, e.Err)
	}
}

// relayOutboundDatagram discriminates an outbound negotiation datagram
// structurally and forwards it through the matching signaling call (spec §9
// Open Question, resolved in DESIGN.md).
func (c *Core) relayOutboundDatagram(peerID string, datagram json.RawMessage) {
	var peek negotiationDatagram
	if err := json.Unmarshal(datagram, &peek); err != nil {
		c.log.Errorf("orchestrator: malformed outbound datagram for %s: %v", peerID, err)
		return
	}

	var err error
	switch {
	case peek.Candidate != nil:
		err = c.sig.SendICE(datagram)
	case peek.Type != nil:
		var typ string
		if uerr := json.Unmarshal(*peek.Type, &typ); uerr == nil && typ == "answer" {
			err = c.sig.SendAnswer(datagram)
		} else {
			err = c.sig.SendOffer(datagram)
		}
	default:
		c.log.Errorf("orchestrator: outbound datagram for %s matches neither offer/answer nor ICE shape", peerID)
		return
	}
	if err != nil {
		c.log.Errorf("orchestrator: relay datagram for %s: %v", peerID, err)
	}
}

func mapPeerState(s transport.PeerState) connectionstore.State {
	switch s {
	case transport.StateNew:
		return connectionstore.StateNew
	case transport.StateConnecting:
		return connectionstore.StateConnecting
	case transport.StateConnected:
		return connectionstore.StateConnected
	case transport.StateDisconnected:
		return connectionstore.StateDisconnected
	case transport.StateFailed:
		return connectionstore.StateFailed
	case transport.StateClosed:
		return connectionstore.StateClosed
	default:
		return connectionstore.StateFailed
	}
}
