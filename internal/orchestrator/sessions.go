package orchestrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/moukrea/remoshell-sub000/internal/flowcontrol"
	"github.com/moukrea/remoshell-sub000/internal/store/filestore"
	"github.com/moukrea/remoshell-sub000/internal/store/sessionstore"
	"github.com/moukrea/remoshell-sub000/internal/transport"
	"github.com/moukrea/remoshell-sub000/internal/wire"
)

// onSessionIntent turns the session store's outbound write-intent events
// (spec §4.5 "session:input"/"session:resize") into wire messages on the
// terminal channel, addressed to the peer the session is mapped to.
func (c *Core) onSessionIntent(e sessionstore.Event) {
	switch e.Kind {
	case sessionstore.EventInputIntent:
		peerID := c.peerForSession(e.Session.ID)
		if peerID == "" {
			return
		}
		msg := wire.SessionData{SessionID: e.Session.ID, Stream: wire.StreamStdin, Data: []byte(e.Text)}
		if err := c.SendToPeer(peerID, transport.ChannelTerminal, msg); err != nil {
			c.log.Errorf("orchestrator: send input for session %s: %v", e.Session.ID, err)
		}
	case sessionstore.EventResizeIntent:
		peerID := c.peerForSession(e.Session.ID)
		if peerID == "" {
			return
		}
		msg := wire.SessionResize{SessionID: e.Session.ID, Cols: e.Session.Cols, Rows: e.Session.Rows}
		if err := c.SendToPeer(peerID, transport.ChannelTerminal, msg); err != nil {
			c.log.Errorf("orchestrator: send resize for session %s: %v", e.Session.ID, err)
		}
	}
}

func (c *Core) peerForSession(sessionID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionPeer[sessionID]
}

// highWatermark/lowWatermark bound the per-session output buffer before the
// remote peer is told to pause (spec §8 invariant 9).
const (
	highWatermark = 256 * 1024
	lowWatermark  = 64 * 1024
)

// SendToPeer encodes payload into an envelope and writes it on channel.
func (c *Core) SendToPeer(peerID string, channel transport.Channel, payload wire.Message) error {
	data, err := wire.EncodeEnvelope(wire.Envelope{Version: 1, Sequence: c.nextSequence(), Payload: payload})
	if err != nil {
		return fmt.Errorf("orchestrator: encode envelope: %w", err)
	}
	if !c.trans.Send(peerID, data, channel) {
		return fmt.Errorf("orchestrator: send to %s on %s rejected", peerID, channel.Label())
	}
	return nil
}

// RequestSession asks peerID to open a new terminal session.
func (c *Core) RequestSession(peerID string, create wire.SessionCreate) error {
	return c.SendToPeer(peerID, transport.ChannelControl, create)
}

func (c *Core) onChannelData(peerID string, channel transport.Channel, data []byte) {
	env, err := wire.DecodeEnvelope(data)
	if err != nil {
		c.log.Errorf("orchestrator: decode message from %s on %s: %v", peerID, channel.Label(), err)
		return
	}
	c.dispatchMessage(peerID, env.Payload)
}

func (c *Core) dispatchMessage(peerID string, msg wire.Message) {
	switch m := msg.(type) {
	case wire.SessionCreate:
		c.handleSessionCreate(peerID, m)
	case wire.SessionCreated:
		c.linkSessionToPeer(m.SessionID, peerID, m.PID)
	case wire.SessionData:
		c.handleSessionData(peerID, m)
	case wire.SessionResize:
		// Applied directly: an inbound resize reflects the peer's own view of
		// geometry and must not loop back out as a fresh intent.
		c.Sessions.Resize(m.SessionID, m.Cols, m.Rows)
	case wire.SessionClosed:
		c.handleSessionClosed(m)
	case wire.Error:
		c.handleWireError(peerID, m)
	case wire.DeviceInfo:
		c.Devices.Register(m.DeviceID, m.Name, m.Platform, time.Now())
	case wire.DeviceApprovalRequest:
		c.Devices.Register(m.DeviceID, m.Name, "", time.Now())
	case wire.DeviceApproved:
		c.Devices.Approve(m.DeviceID, time.Now())
	case wire.DeviceRejected:
		c.Devices.Reject(m.DeviceID, time.Now())
	case wire.FileUploadStart:
		c.handleFileUploadStart(peerID, m)
	case wire.FileUploadChunk:
		c.handleFileUploadChunk(peerID, m)
	case wire.FileUploadComplete:
		c.handleFileUploadComplete(peerID, m)
	case wire.FileDownloadRequest:
		c.handleFileDownloadRequest(peerID, m)
	case wire.FileDownloadChunk:
		c.handleFileDownloadChunk(peerID, m)
	case wire.FileListResponse:
		c.handleFileListResponse(m)
	case wire.Ping:
		c.SendToPeer(peerID, transport.ChannelControl, wire.Pong{Nonce: m.Nonce})
	default:
		c.log.Debugf("orchestrator: unhandled message type from %s: %s", peerID, msg.Tag())
	}
}

func (c *Core) handleSessionCreate(peerID string, m wire.SessionCreate) {
	id := uuid.NewString()
	c.Sessions.Create(sessionstore.Session{
		ID:     id,
		PeerID: peerID,
		Cols:   m.Cols,
		Rows:   m.Rows,
		Shell:  m.Shell,
		Cwd:    m.Cwd,
		Status: sessionstore.StatusConnected,
	})

	c.mu.Lock()
	c.sessionPeer[id] = peerID
	c.gates[id] = c.newGate(id)
	c.mu.Unlock()

	if err := c.SendToPeer(peerID, transport.ChannelControl, wire.SessionCreated{SessionID: id, PID: 0}); err != nil {
		c.log.Errorf("orchestrator: ack session create to %s: %v", peerID, err)
	}
}

// linkSessionToPeer handles the initiator side of session creation: the ack
// arriving back from the peer carries the session_id and pid it assigned.
// The session is mapped to peerID (with a flow control gate) if it was not
// already, and if no local session record exists yet one is created now in
// the connected state.
func (c *Core) linkSessionToPeer(sessionID, peerID string, pid int64) {
	c.mu.Lock()
	_, known := c.sessionPeer[sessionID]
	if !known {
		c.sessionPeer[sessionID] = peerID
		c.gates[sessionID] = c.newGate(sessionID)
	}
	c.mu.Unlock()

	if _, ok := c.Sessions.Get(sessionID); !ok {
		c.Sessions.Create(sessionstore.Session{ID: sessionID, PeerID: peerID, PID: pid, Status: sessionstore.StatusConnected})
	} else {
		c.Sessions.SetStatus(sessionID, sessionstore.StatusConnected, time.Now(), nil)
	}
}

// newGate builds a flow control gate for sessionID and wires its pause/
// resume signals into the session store's flow_control field (spec §8
// invariant 9; invariant 8's rejection of send_input while paused lives in
// sessionstore.SendInput).
func (c *Core) newGate(sessionID string) *flowcontrol.Gate {
	gate := flowcontrol.New(sessionID, highWatermark, lowWatermark, c.log)
	gate.Subscribe(func(e flowcontrol.Event) {
		switch e.Kind {
		case flowcontrol.EventPauseRequested:
			c.Sessions.Pause(e.SessionID)
		case flowcontrol.EventResumeRequested:
			c.Sessions.Resume(e.SessionID)
		}
	})
	return gate
}

// handleSessionData routes inbound terminal bytes through the session's
// flow control gate and, for Stdout/Stderr, delivers them to the external
// UI layer via the session store. Inbound Stdin is dropped: the daemon
// must never emit it (spec §4.9).
func (c *Core) handleSessionData(peerID string, m wire.SessionData) {
	if m.Stream == wire.StreamStdin {
		c.log.Debugf("orchestrator: dropped inbound Stdin for session %s from %s", m.SessionID, peerID)
		return
	}

	gate := c.gateFor(m.SessionID)
	if gate == nil {
		c.log.Debugf("orchestrator: session data for unknown session %s from %s", m.SessionID, peerID)
		return
	}
	gate.Buffer(int64(len(m.Data)))
	c.Sessions.WriteOutput(m.SessionID, string(m.Data))
}

// handleWireError routes a protocol-level Error: one carrying a path
// context fails the matching transfer, anything else surfaces through the
// file store's generic error field (spec §4.9, §7 PeerFailure/TransferInvariant).
func (c *Core) handleWireError(peerID string, m wire.Error) {
	if m.Context != nil {
		c.Files.FailTransferByPath(*m.Context, m.Message)
		return
	}
	c.Files.SetError(m.Message)
	c.log.Errorf("orchestrator: peer %s reported error %s: %s", peerID, m.Code, m.Message)
}

// AckSessionDataFlushed tells the session's gate that n bytes of
// previously buffered data have been delivered to the local consumer,
// potentially resuming the remote producer (spec §8 invariant 9).
func (c *Core) AckSessionDataFlushed(sessionID string, n int64) {
	if gate := c.gateFor(sessionID); gate != nil {
		gate.Drain(n)
	}
}

func (c *Core) gateFor(sessionID string) *flowcontrol.Gate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gates[sessionID]
}

// handleSessionClosed transitions a session to disconnected with the
// daemon-reported cause rather than discarding the record (spec §4.9:
// inbound SessionClosed degrades status, it does not remove the session).
func (c *Core) handleSessionClosed(m wire.SessionClosed) {
	reason := sessionClosedReason(m)
	c.Sessions.SetStatus(m.SessionID, sessionstore.StatusDisconnected, time.Now(), reason)
}

// sessionClosedReason formats the SessionClosed cause fields into the single
// last_error string the session store tracks, preferring the daemon's
// explicit reason and falling back to exit code / signal when present.
func sessionClosedReason(m wire.SessionClosed) *string {
	if m.Reason != nil {
		return m.Reason
	}
	switch {
	case m.ExitCode != nil:
		reason := fmt.Sprintf("exit code %d", *m.ExitCode)
		return &reason
	case m.Signal != nil:
		reason := fmt.Sprintf("signal %s", *m.Signal)
		return &reason
	default:
		return nil
	}
}

// forgetPeerSessions removes every session attributed to peerID once its
// connection is torn down, matching spec §8's "peer failure isolates"
// property: one peer going away never corrupts bookkeeping for others.
func (c *Core) forgetPeerSessions(peerID string) {
	c.mu.Lock()
	var dead []string
	for sid, pid := range c.sessionPeer {
		if pid == peerID {
			dead = append(dead, sid)
		}
	}
	for _, sid := range dead {
		delete(c.sessionPeer, sid)
		delete(c.gates, sid)
	}
	c.mu.Unlock()

	for _, sid := range dead {
		c.Sessions.Remove(sid)
	}
}

func (c *Core) handleFileListResponse(m wire.FileListResponse) {
	entries := make([]filestore.Entry, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = filestore.Entry{Name: e.Name, Type: filestore.EntryType(e.Type), Size: e.Size, Mode: e.Mode, Modified: e.Modified}
	}
	c.Files.SetListing(m.Path, entries)
}
