package avcdec

// ParamIndex identifies a parameter or config on the parameter surface.
type ParamIndex int

const (
	IndexNone ParamIndex = iota
	IndexConfigOutputCrop
	IndexEnableNativeBuffers
	IndexGetNativeBufferUsage
	IndexUseNativeBuffer
)

func (i ParamIndex) String() string {
	switch i {
	case IndexNone:
		return "none"
	case IndexConfigOutputCrop:
		return "output-crop"
	case IndexEnableNativeBuffers:
		return "enable-native-buffers"
	case IndexGetNativeBufferUsage:
		return "get-native-buffer-usage"
	case IndexUseNativeBuffer:
		return "use-native-buffer"
	default:
		return "unknown"
	}
}

// Listener receives the decoder's notifications. Calls are made from the
// goroutine driving the decoder and must not call back into it.
type Listener interface {
	// EmptyBufferDone returns a consumed input unit to the producer.
	EmptyBufferDone(unit *InputUnit)

	// FillBufferDone hands a filled (or flushed) output slot to the consumer.
	FillBufferDone(slot *OutputSlot)

	// PortSettingsChanged reports new output settings. index is IndexNone
	// for a geometry change that requires the disable/enable handshake and
	// IndexConfigOutputCrop for a crop-only change.
	PortSettingsChanged(port int, index ParamIndex)

	// Error reports an unrecoverable error. Called at most once.
	Error(err error)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are ignored.
type ListenerFuncs struct {
	OnEmptyBufferDone     func(unit *InputUnit)
	OnFillBufferDone      func(slot *OutputSlot)
	OnPortSettingsChanged func(port int, index ParamIndex)
	OnError               func(err error)
}

func (l ListenerFuncs) EmptyBufferDone(unit *InputUnit) {
	if l.OnEmptyBufferDone != nil {
		l.OnEmptyBufferDone(unit)
	}
}

func (l ListenerFuncs) FillBufferDone(slot *OutputSlot) {
	if l.OnFillBufferDone != nil {
		l.OnFillBufferDone(slot)
	}
}

func (l ListenerFuncs) PortSettingsChanged(port int, index ParamIndex) {
	if l.OnPortSettingsChanged != nil {
		l.OnPortSettingsChanged(port, index)
	}
}

func (l ListenerFuncs) Error(err error) {
	if l.OnError != nil {
		l.OnError(err)
	}
}
