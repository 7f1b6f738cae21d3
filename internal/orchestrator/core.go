// Package orchestrator composes the wire codec, signaling client, transport
// manager, and application stores into the single explicit context object
// spec §9's redesign flag asks for — no package-level singletons, one
// constructed Core per running instance.
package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/moukrea/remoshell-sub000/internal/config"
	"github.com/moukrea/remoshell-sub000/internal/corelog"
	"github.com/moukrea/remoshell-sub000/internal/events"
	"github.com/moukrea/remoshell-sub000/internal/flowcontrol"
	"github.com/moukrea/remoshell-sub000/internal/signaling"
	"github.com/moukrea/remoshell-sub000/internal/store/connectionstore"
	"github.com/moukrea/remoshell-sub000/internal/store/devicestore"
	"github.com/moukrea/remoshell-sub000/internal/store/filestore"
	"github.com/moukrea/remoshell-sub000/internal/store/notifystore"
	"github.com/moukrea/remoshell-sub000/internal/store/sessionstore"
	"github.com/moukrea/remoshell-sub000/internal/transport"
)

// FileSource opens a local file whose bytes are sent to a peer (StartUpload):
// the reader, its total size, and any error.
type FileSource func(path string) (io.Reader, int64, error)

// FileSink opens a local destination of the given size for bytes arriving
// from a peer, both for a peer-initiated upload and for a download we
// requested.
type FileSink func(path string, size int64) (io.Writer, error)

// Core owns every store, the signaling client, and the transport manager.
// Construct one explicitly per running instance; nothing here is global.
type Core struct {
	cfg   *config.Config
	log   corelog.Logger
	sig   *signaling.Client
	trans *transport.Manager

	Connections *connectionstore.Store
	Sessions    *sessionstore.Store
	Files       *filestore.Store
	Notifs      *notifystore.Store
	Devices     *devicestore.Store

	fileSource FileSource
	fileSink   FileSink

	mu          sync.Mutex
	initialized bool
	localPeerID string
	sessionPeer map[string]string    // sessionID -> peerID
	gates       map[string]*flowcontrol.Gate
	uploads     map[string]*uploadState   // path -> inbound FileUploadStart/Chunk/Complete reassembly
	downloads   map[string]*downloadState // path -> inbound FileDownloadChunk reassembly

	unsubs []events.Unsubscribe

	seq uint64
}

// New constructs a Core. dialer and factory are the injection seams for the
// relay connection and the per-peer transport, satisfied by production
// implementations (signaling.GorillaDialer{}, a WebRTC-backed
// transport.Factory) or fakes in tests.
func New(cfg *config.Config, dialer signaling.Dialer, factory transport.Factory, log corelog.Logger) *Core {
	if log == nil {
		log = corelog.Nop()
	}
	return &Core{
		cfg:         cfg,
		log:         log,
		sig:         signaling.NewClient(dialer, cfg.SignalingURL(), signaling.DefaultOptions(), log),
		trans:       transport.NewManager(factory, log),
		Connections: connectionstore.New(log),
		Sessions:    sessionstore.New(log),
		Files:       filestore.New(log),
		Notifs:      notifystore.New(log),
		Devices:     devicestore.New(log),
		sessionPeer: make(map[string]string),
		gates:       make(map[string]*flowcontrol.Gate),
		uploads:     make(map[string]*uploadState),
		downloads:   make(map[string]*downloadState),
	}
}

// SetFileCallbacks wires real file access into upload/download handling.
// Either may be left nil if this instance never originates or accepts
// transfers in that direction.
func (c *Core) SetFileCallbacks(source FileSource, sink FileSink) {
	c.fileSource = source
	c.fileSink = sink
}

// Initialize wires the signaling and transport event streams into the
// core's handlers. It is reentrancy-guarded per spec §4.9.1: calling it
// twice on the same Core returns an error instead of double-subscribing.
func (c *Core) Initialize(localPeerID string) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return fmt.Errorf("orchestrator: already initialized")
	}
	c.initialized = true
	c.localPeerID = localPeerID
	c.mu.Unlock()

	unsubs := []events.Unsubscribe{
		c.sig.Subscribe(c.onSignalingEvent),
		c.trans.Subscribe(c.onTransportEvent),
		c.Sessions.Subscribe(c.onSessionIntent),
		c.Files.Subscribe(c.onFileIntent),
	}

	c.mu.Lock()
	c.unsubs = unsubs
	c.mu.Unlock()
	return nil
}

// Connect joins the signaling relay room identified by roomID.
func (c *Core) Connect(roomID string) error {
	return c.sig.Join(roomID)
}

// Disconnect performs a lighter teardown than Destroy: it leaves the
// signaling room and tears down every peer transport, but keeps handler
// subscriptions intact so a subsequent Connect resumes wiring into the same
// stores (spec §4.9 teardown: disconnect vs destroy).
func (c *Core) Disconnect() {
	c.sig.Leave()
	c.trans.DestroyAll()

	c.mu.Lock()
	c.sessionPeer = make(map[string]string)
	c.mu.Unlock()
}

// Destroy performs full teardown: Disconnect, plus unsubscribing every
// handler this Core registered in Initialize. A destroyed Core is never
// reused; a fresh instance must be constructed via New for a new run (spec
// §4.9 teardown: disconnect vs destroy).
func (c *Core) Destroy() {
	c.Disconnect()

	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.initialized = false
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// Shutdown is an alias for Destroy, kept for callers that only ever tear a
// Core down once and never distinguish a reconnect-friendly disconnect.
func (c *Core) Shutdown() {
	c.Destroy()
}

func (c *Core) nextSequence() uint64 {
	return atomic.AddUint64(&c.seq, 1)
}

// SubscribeTransport exposes the underlying transport bus for diagnostics/tests;
// application code should prefer the typed store subscriptions.
func (c *Core) SubscribeTransport(h events.Handler[transport.Event]) events.Unsubscribe {
	return c.trans.Subscribe(h)
}

func (c *Core) SubscribeSignaling(h events.Handler[signaling.Event]) events.Unsubscribe {
	return c.sig.Subscribe(h)
}

// negotiationDatagram is the structural shape peeked at to discriminate an
// inbound transport.EventSignal payload without a second message-kind enum
// at the signaling edge (spec §9 Open Question: "type" present means
// offer/answer, "candidate" present means ICE).
type negotiationDatagram struct {
	Type      *json.RawMessage `json:"type,omitempty"`
	Candidate *json.RawMessage `json:"candidate,omitempty"`
}
