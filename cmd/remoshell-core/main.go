// Command remoshell-core is a thin example wiring of the orchestrator core:
// construct a Config and a Core, join a signaling room, and block until a
// signal arrives. It exists to show how a host application assembles the
// packages in this module; it is not a complete client. The platform pieces
// the core treats as external collaborators (§1 of the design notes) — the
// encrypted peer transport, the terminal renderer, the file-picker UI, the
// device keychain — are out of scope here and are left as the caller's
// responsibility via the injection seams (signaling.Dialer, transport.Factory,
// Core.SetFileCallbacks).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/moukrea/remoshell-sub000/internal/config"
	"github.com/moukrea/remoshell-sub000/internal/corelog"
	"github.com/moukrea/remoshell-sub000/internal/orchestrator"
	"github.com/moukrea/remoshell-sub000/internal/signaling"
	"github.com/moukrea/remoshell-sub000/internal/transport"
)

func printUsage() {
	fmt.Fprintf(os.Stderr, "usage: %s -room ROOM-ID [-peer-id ID] [-signaling-url URL] [-log-level debug|info|error|silent]\n", os.Args[0])
}

// unconfiguredTransportFactory is the default transport.Factory for this
// example binary: it has no encrypted P2P implementation wired in, so every
// CreateConnection call fails cleanly rather than pretending to negotiate.
// A real host application supplies its own Factory over a concrete peer
// transport before calling orchestrator.New.
func unconfiguredTransportFactory(peerID string, initiator bool, iceServers []string, sink transport.ConnectionSink) (transport.PeerConnection, error) {
	return nil, fmt.Errorf("remoshell-core: no transport.Factory configured; peer transport is a host responsibility (see cmd/remoshell-core docs)")
}

func main() {
	var (
		room          string
		peerID        string
		signalingURL  string
		iceServersCSV string
		logLevelFlag  string
	)

	flag.StringVar(&room, "room", "", "signaling room id to join (required)")
	flag.StringVar(&peerID, "peer-id", "", "local peer id to advertise; defaults to local-<room> if empty")
	flag.StringVar(&signalingURL, "signaling-url", "wss://127.0.0.1:8443", "signaling relay URL (ws:// or wss://)")
	flag.StringVar(&iceServersCSV, "ice-servers", "", "comma-separated ICE server URLs")
	flag.StringVar(&logLevelFlag, "log-level", "info", "debug|info|error|silent")
	flag.Usage = printUsage
	flag.Parse()

	if room == "" {
		printUsage()
		os.Exit(1)
	}

	level := func() int {
		switch logLevelFlag {
		case "debug":
			return corelog.LevelDebug
		case "error":
			return corelog.LevelError
		case "silent":
			return corelog.LevelSilent
		default:
			return corelog.LevelInfo
		}
	}()
	log := corelog.New(level, "remoshell-core: ")

	var iceServers []string
	if iceServersCSV != "" {
		iceServers = splitCSV(iceServersCSV)
	}

	cfg, err := config.New(signalingURL, iceServers)
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}

	if peerID == "" {
		peerID = "local-" + room
	}

	core := orchestrator.New(cfg, signaling.GorillaDialer{}, unconfiguredTransportFactory, log)

	if err := core.Initialize(peerID); err != nil {
		log.Error(err)
		os.Exit(1)
	}

	if err := core.Connect(room); err != nil {
		log.Error(err)
		os.Exit(1)
	}

	log.Infof("joined room %q as %q, awaiting peers", room, peerID)

	term := make(chan os.Signal, 1)
	signal.Notify(term, syscall.SIGTERM, os.Interrupt)
	<-term

	log.Info("shutting down")
	core.Destroy()
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
