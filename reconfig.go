package avcdec

// portReconfig drives the output port disable/enable handshake that follows
// a geometry change.
type portReconfig struct {
	state PortSettingsChange
}

// suspended reports whether decoding must wait for the handshake.
func (r *portReconfig) suspended() bool { return r.state != PortSettingsNone }

// margin returns the buffers excluded from the reference budget.
func margin(reserved int, hasB bool) int {
	if hasB {
		return reserved + 1
	}
	return reserved
}

// evaluate compares the engine's stream info against the current stream and
// output port. On a change it adopts the new geometry and buffer count,
// enters AwaitingDisable and returns true.
func (r *portReconfig) evaluate(st *StreamState, ports *portSet, info EngineInfo, reserved int) bool {
	m := margin(reserved, info.HasBFrames)
	out := &ports[OutputPort]

	if info.Width == st.Width && info.Height == st.Height &&
		info.NumRefFrames <= out.BufferCountActual-m {
		return false
	}

	st.Width, st.Height = info.Width, info.Height
	st.Crop = Rect{Width: info.Width, Height: info.Height}
	st.FrameSize = FrameSize(info.Width, info.Height)
	st.BufferCount = info.NumRefFrames + m

	ports.setGeometry(info.Width, info.Height)
	out.BufferCountActual = max(st.BufferCount, out.BufferCountMin)

	r.state = PortSettingsAwaitingDisable
	return true
}

// resize adopts a geometry the host set on the output port. No handshake is
// needed since the host sizes its buffers from the new definition.
func (r *portReconfig) resize(st *StreamState, width, height int) {
	st.Width, st.Height = width, height
	st.Crop = Rect{Width: width, Height: height}
	st.FrameSize = FrameSize(width, height)
}

// cropChanged adopts a crop rectangle reported by the engine and returns
// true if it differs from the current one.
func (r *portReconfig) cropChanged(st *StreamState, crop *Rect) bool {
	if crop == nil || *crop == st.Crop {
		return false
	}
	st.Crop = *crop
	return true
}

// completed advances the handshake when the output port finishes a disable
// or enable. Completions while no change is in progress are ignored;
// out-of-order completions fail with a ProtocolError.
func (r *portReconfig) completed(port int, enabled bool) error {
	// Hosts also cycle ports outside a settings change, e.g. around a flush.
	if port != OutputPort || r.state == PortSettingsNone {
		return nil
	}

	switch {
	case r.state == PortSettingsAwaitingDisable && !enabled:
		r.state = PortSettingsAwaitingEnable
		return nil
	case r.state == PortSettingsAwaitingEnable && enabled:
		r.state = PortSettingsNone
		return nil
	default:
		return &ProtocolError{Port: port, State: r.state, Enabled: enabled}
	}
}
