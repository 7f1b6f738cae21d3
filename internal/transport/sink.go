package transport

import "encoding/json"

// connSink is the ConnectionSink bound to one peer, feeding lower-layer
// events from a PeerConnection implementation back into the manager.
type connSink struct {
	manager *Manager
	peerID  string
}

func (s *connSink) OnSignal(datagram json.RawMessage) {
	s.manager.bus.Emit(Event{Kind: EventSignal, PeerID: s.peerID, Datagram: datagram})
}

func (s *connSink) OnStateChange(lower LowerLayerState) {
	newState := mapLowerLayerState(lower)

	m := s.manager
	m.mu.Lock()
	entry, ok := m.peers[s.peerID]
	if !ok {
		m.mu.Unlock()
		return
	}
	wasConnected := entry.state == StateConnected
	entry.state = newState
	initiator := entry.initiator
	m.mu.Unlock()

	m.bus.Emit(Event{Kind: EventStateChange, PeerID: s.peerID, NewState: newState})

	switch {
	case newState == StateConnected && !wasConnected:
		m.bus.Emit(Event{Kind: EventConnect, PeerID: s.peerID})
		if initiator {
			m.openSecondaryChannels(s.peerID)
		}
	case newState == StateDisconnected, newState == StateFailed, newState == StateClosed:
		if newState == StateClosed {
			m.bus.Emit(Event{Kind: EventClose, PeerID: s.peerID})
		}
	}
}

func (s *connSink) OnChannelOpen(label string) {
	m := s.manager
	channel, ok := channelFromLabel(label)
	if !ok {
		m.log.Errorf("transport: peer %s opened unknown channel label %q, rejecting", s.peerID, label)
		return
	}

	m.mu.Lock()
	entry, ok := m.peers[s.peerID]
	if ok {
		entry.channelOpen[channel] = true
	}
	m.mu.Unlock()
}

func (s *connSink) OnData(channel Channel, data []byte) {
	s.manager.bus.Emit(Event{Kind: EventData, PeerID: s.peerID, Channel: channel, Data: data})
}

func (s *connSink) OnError(err error) {
	m := s.manager
	m.mu.Lock()
	entry, ok := m.peers[s.peerID]
	if ok {
		entry.state = StateFailed
	}
	m.mu.Unlock()

	m.bus.Emit(Event{Kind: EventError, PeerID: s.peerID, Err: err})
	m.bus.Emit(Event{Kind: EventStateChange, PeerID: s.peerID, NewState: StateFailed})
}

// openSecondaryChannels is called once for the initiator side as soon as
// "connected" is observed (spec §4.3): terminal and files are opened
// proactively; control is assumed established as part of negotiation.
func (m *Manager) openSecondaryChannels(peerID string) {
	entry, ok := m.entry(peerID)
	if !ok || entry.conn == nil {
		return
	}
	for _, ch := range []Channel{ChannelTerminal, ChannelFiles} {
		if err := entry.conn.OpenChannel(ch.Label()); err != nil {
			m.log.Errorf("transport: open channel %s for %s: %v", ch.Label(), peerID, err)
			continue
		}
		m.mu.Lock()
		entry.channelOpen[ch] = true
		m.mu.Unlock()
	}
}
