package transport

import "fmt"

// Channel identifies one of the three logical channels a peer connection
// carries (spec §4.3). Ordering/reliability are properties of the
// underlying PeerConnection implementation, not of this package.
type Channel int

const (
	ChannelControl Channel = iota
	ChannelTerminal
	ChannelFiles
)

// Label is the wire-visible channel name used to bind an inbound
// responder-side channel to the right internal slot.
func (c Channel) Label() string {
	switch c {
	case ChannelControl:
		return "control"
	case ChannelTerminal:
		return "terminal"
	case ChannelFiles:
		return "files"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

func channelFromLabel(label string) (Channel, bool) {
	switch label {
	case "control":
		return ChannelControl, true
	case "terminal":
		return ChannelTerminal, true
	case "files":
		return ChannelFiles, true
	default:
		return 0, false
	}
}
