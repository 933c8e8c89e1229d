package avcdec

import (
	"fmt"
	"io"
	"sync"
)

// EngineInfo is what the engine reports about the stream after a decode call.
type EngineInfo struct {
	Width        int
	Height       int
	NumRefFrames int
	HasBFrames   bool
	Profile      ProfileIDC
	Crop         *Rect // nil when the engine does not report cropping
}

// DecodeInput is the stream chunk submitted to one Decode call.
type DecodeInput struct {
	Stream      []byte // Staging copy of the unit's unconsumed bytes
	ExpectIntra bool   // Engine must skip to the next intra-refresh point
}

// DecodeOutput is filled in by Decode.
type DecodeOutput struct {
	Remaining      int       // Bytes of Stream the engine did not consume
	FrameEffective bool      // A picture completed during this call
	Picture        PictureID // Id of the completed picture
	BufferRef      uintptr   // Opaque reference of the slot holding it
}

// ExtraMemory is working memory sized from the active SPS and handed to the
// engine through MemInit.
type ExtraMemory struct {
	Software []byte // Cached CPU memory, always present
	Uncached Memory // Hardware only: VLD tables and intra prediction lines
	Command  Memory // Hardware only: command queue and stream ping-pong buffer
}

// Callbacks are invoked synchronously by the engine from inside Decode.
type Callbacks interface {
	// Bind is called when the engine pins a slot as a reference frame.
	Bind(ref uintptr)

	// Unbind is called when the engine releases a reference frame pin.
	Unbind(ref uintptr)

	// ActivateSequence is called when the engine parses a new SPS and needs
	// working memory sized for it.
	ActivateSequence(width, height, numBuffers int) error
}

// Engine is the decode engine entry point table. Implementations are not
// safe for concurrent use; the decoder calls them from its single loop.
type Engine interface {
	io.Closer // Release: frees all engine state

	// Init prepares the engine with its internal buffer and callback table.
	Init(cb Callbacks, internal []byte) error

	// MemInit hands the engine working memory after ActivateSequence.
	MemInit(extra ExtraMemory) error

	// Decode consumes a prefix of in.Stream and optionally completes a picture.
	Decode(in *DecodeInput, out *DecodeOutput) error

	// Info reports the stream geometry the engine currently sees.
	Info() (EngineInfo, error)

	// SetCurrentPicture assigns the decode target for the next Decode call.
	SetCurrentPicture(pixels []byte, phys uintptr, ref uintptr, id PictureID)

	// LastDisplayed pops the next picture still buffered for display.
	// ok is false when the engine has nothing left to flush.
	LastDisplayed() (id PictureID, ok bool)

	// ReleaseReferenceBuffers drops every reference frame pin.
	ReleaseReferenceBuffers()
}

// PictureForgetter is implemented by engines that keep per-slot state, such
// as pinned pixel memory. The decoder calls ForgetPicture with the slot's
// buffer reference when the slot is freed.
type PictureForgetter interface {
	ForgetPicture(ref uintptr)
}

// EngineFactory opens a fresh engine instance.
type EngineFactory func() (Engine, error)

// --- Registry ---

type engineRegistry struct {
	mu        sync.RWMutex
	factories map[Backend]EngineFactory
}

var globalEngineRegistry = &engineRegistry{
	factories: make(map[Backend]EngineFactory),
}

// registerEngine registers an engine factory for a backend.
func registerEngine(backend Backend, factory EngineFactory) {
	globalEngineRegistry.mu.Lock()
	defer globalEngineRegistry.mu.Unlock()
	globalEngineRegistry.factories[backend] = factory
}

// RegisteredBackends returns the backends with a registered and available engine.
func RegisteredBackends() []Backend {
	globalEngineRegistry.mu.RLock()
	defer globalEngineRegistry.mu.RUnlock()

	result := make([]Backend, 0, len(globalEngineRegistry.factories))
	for b := BackendHardware; b < backendCount; b++ {
		if _, ok := globalEngineRegistry.factories[b]; ok && b.Available() {
			result = append(result, b)
		}
	}
	return result
}

// engineFactory resolves the factory for a backend, preferring overrides.
func engineFactory(overrides map[Backend]EngineFactory, backend Backend) (EngineFactory, error) {
	if f, ok := overrides[backend]; ok && f != nil {
		return f, nil
	}

	globalEngineRegistry.mu.RLock()
	defer globalEngineRegistry.mu.RUnlock()

	f, ok := globalEngineRegistry.factories[backend]
	if !ok || !backend.Available() {
		return nil, fmt.Errorf("%w: %s", ErrBackendNotFound, backend)
	}
	return f, nil
}
