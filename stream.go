package avcdec

// EOSStatus tracks end-of-stream progress for one drain cycle.
// It only advances AVAILABLE -> SEEN -> FLUSHED; a flush resets it.
type EOSStatus int

const (
	EOSAvailable EOSStatus = iota // Input data still arriving
	EOSSeen                       // EOS input consumed, output not yet drained
	EOSFlushed                    // Engine has nothing left; EOS slot delivered
)

func (s EOSStatus) String() string {
	switch s {
	case EOSAvailable:
		return "available"
	case EOSSeen:
		return "seen"
	case EOSFlushed:
		return "flushed"
	default:
		return "unknown"
	}
}

// advance moves the status forward, never backward.
func (s *EOSStatus) advance(to EOSStatus) {
	if to > *s {
		*s = to
	}
}

// PortSettingsChange is the output port reconfiguration handshake state.
type PortSettingsChange int

const (
	PortSettingsNone            PortSettingsChange = iota
	PortSettingsAwaitingDisable                    // Consumer must disable the output port
	PortSettingsAwaitingEnable                     // Consumer must re-enable it with new buffers
)

func (p PortSettingsChange) String() string {
	switch p {
	case PortSettingsNone:
		return "none"
	case PortSettingsAwaitingDisable:
		return "awaiting-disable"
	case PortSettingsAwaitingEnable:
		return "awaiting-enable"
	default:
		return "unknown"
	}
}

// StreamState is the geometry and header state of the current stream.
// Only the port reconfiguration state machine and the fallback controller
// mutate it; the decode loop reads it.
type StreamState struct {
	Width, Height  int
	Crop           Rect
	BufferCount    int  // Output buffers the stream requires
	FrameSize      int  // Bytes per decoded picture
	HeadersDecoded bool // Engine has activated an SPS
	NeedIVOP       bool // Next decode must start at an intra-refresh point
}

func newStreamState(width, height, buffers int) StreamState {
	return StreamState{
		Width:       width,
		Height:      height,
		Crop:        Rect{Width: width, Height: height},
		BufferCount: buffers,
		FrameSize:   FrameSize(width, height),
		NeedIVOP:    true,
	}
}
