// Buffer types exchanged between the producer, the consumer and the decoder.

package avcdec

// BufferFlags mirrors the per-buffer flag word carried with each buffer.
type BufferFlags uint32

const (
	FlagEOS       BufferFlags = 1 << iota // End of stream
	FlagSyncFrame                         // Unit starts with an intra-refresh point
	FlagCodecConfig                       // Unit carries only SPS/PPS
)

// Has returns true if all specified flags are set.
func (f BufferFlags) Has(flag BufferFlags) bool { return f&flag == flag }

// InputUnit is a compressed byte range queued by the producer.
// Ownership passes to the decoder on QueueInput and returns to the producer
// through Listener.EmptyBufferDone once the unit is fully consumed.
type InputUnit struct {
	Data      []byte      // Backing buffer
	Offset    int         // First unconsumed byte
	Timestamp int64       // Presentation timestamp in microseconds
	Flags     BufferFlags // EOS etc.
	Private   any         // Producer's own bookkeeping, untouched by the decoder
}

// Remaining returns the bytes not yet consumed by the engine.
func (u *InputUnit) Remaining() []byte {
	if u.Offset >= len(u.Data) {
		return nil
	}
	return u.Data[u.Offset:]
}

// Len returns the number of unconsumed bytes.
func (u *InputUnit) Len() int { return len(u.Remaining()) }

// EOS reports whether the unit marks end of stream.
func (u *InputUnit) EOS() bool { return u.Flags.Has(FlagEOS) }

// PictureID is the engine-side identity of a decode target.
type PictureID int32

// OutputSlot is a fixed-size pixel buffer the engine decodes into.
//
// The decoder owns a slot while it sits in the output queue. After
// FillBufferDone the consumer owns it again, but the engine may still hold a
// non-owning reference-frame pin on it; the slot is not reused as a decode
// target until that pin is released.
type OutputSlot struct {
	Data      []byte      // Pixel memory (nil for unmapped native buffers)
	FilledLen int         // Valid bytes after FillBufferDone
	Timestamp int64       // Copied from the input unit that produced it
	Flags     BufferFlags // Copied from the input unit; FlagEOS on the flush slot
	Private   any         // Consumer's own bookkeeping, untouched by the decoder

	ctrl *slotControl
}

// slotControl is the decoder-private part of a slot. refs is only changed by
// refTracker.
type slotControl struct {
	refs    int
	picture PictureID
	handle  uintptr // opaque buffer reference handed to the engine
	mem     Memory  // non-nil when the decoder allocated the pixels
	native  bool    // Data is a graphic buffer that must be mapped
}

// RefCount returns the number of outstanding holds on the slot.
func (s *OutputSlot) RefCount() int {
	if s.ctrl == nil {
		return 0
	}
	return s.ctrl.refs
}

// Picture returns the picture id the slot was last bound to.
func (s *OutputSlot) Picture() PictureID {
	if s.ctrl == nil {
		return 0
	}
	return s.ctrl.picture
}

// PhysAddr returns the physical address of the slot when it was allocated
// from a physically contiguous heap, 0 otherwise.
func (s *OutputSlot) PhysAddr() uintptr {
	if s.ctrl == nil || s.ctrl.mem == nil {
		return 0
	}
	return s.ctrl.mem.PhysAddr()
}

// EOS reports whether the slot is the zero-length end-of-stream marker.
func (s *OutputSlot) EOS() bool { return s.Flags.Has(FlagEOS) }

// Rect is a crop rectangle in pixels.
type Rect struct {
	Left, Top     int
	Width, Height int
}

// align16 rounds n up to the next macroblock boundary.
func align16(n int) int { return (n + 15) &^ 15 }

// FrameSize returns the NV12/I420 buffer size for a picture of the given
// geometry, padded to whole macroblocks.
func FrameSize(width, height int) int {
	return align16(width) * align16(height) * 3 / 2
}

// macroblocks returns the macroblock grid for a picture.
func macroblocks(width, height int) (mbX, mbY int) {
	return (width + 15) >> 4, (height + 15) >> 4
}
