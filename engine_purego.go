//go:build (darwin || linux) && !noavcnative

package avcdec

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/thesyncim/avcdec/internal/handles"
)

// nativeLib is one engine shared library and its entry points.
type nativeLib struct {
	once   sync.Once
	handle uintptr
	err    error

	create            func() uint64
	init              func(h uint64, userData, bindCb, unbindCb, spsCb, internal uintptr, internalSize int32) int32
	memInit           func(h uint64, sw uintptr, swSize int32, uncached, uncachedPhys uintptr, uncachedSize int32, cmd, cmdPhys uintptr, cmdSize int32) int32
	decode            func(h uint64, stream uintptr, streamLen, expectIntra int32, out uintptr) int32
	getInfo           func(h uint64, info uintptr) int32
	setCurPic         func(h uint64, pixels, phys, ref uintptr, picID int32)
	getLastDisplayed  func(h uint64, picID uintptr) int32
	releaseRefBuffers func(h uint64)
	release           func(h uint64)
	getError          func() uintptr
}

// Return codes of the engine library.
const (
	nativeOK    = 0
	nativeError = -1
)

// nativeDecodeOut is filled in by avcdec_decode.
// This struct must be heap-allocated for purego to work correctly on arm64.
type nativeDecodeOut struct {
	Remaining      int32
	FrameEffective int32
	PicID          int32
	_              int32
	BufferRef      uintptr
}

// nativeInfo is filled in by avcdec_get_info.
type nativeInfo struct {
	Width        int32
	Height       int32
	NumRefFrames int32
	HasBFrames   int32
	Profile      int32
	CropValid    int32
	CropLeft     int32
	CropTop      int32
	CropWidth    int32
	CropHeight   int32
}

var nativeLibs [backendCount]nativeLib

func (l *nativeLib) load(base string) error {
	l.once.Do(func() {
		l.err = l.open(base)
	})
	return l.err
}

func (l *nativeLib) open(base string) error {
	var lastErr error
	for _, path := range libSearchPaths(base) {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
		if err != nil {
			lastErr = err
			continue
		}
		if err := l.bind(handle); err != nil {
			purego.Dlclose(handle)
			lastErr = err
			continue
		}
		l.handle = handle
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("failed to load %s: %w", base, lastErr)
	}
	return fmt.Errorf("%s not found in any standard location", base)
}

// bind resolves every entry point. A library missing any of them is rejected.
func (l *nativeLib) bind(handle uintptr) error {
	symbols := []struct {
		fptr any
		name string
	}{
		{&l.create, "avcdec_create"},
		{&l.init, "avcdec_init"},
		{&l.memInit, "avcdec_mem_init"},
		{&l.decode, "avcdec_decode"},
		{&l.getInfo, "avcdec_get_info"},
		{&l.setCurPic, "avcdec_set_cur_pic"},
		{&l.getLastDisplayed, "avcdec_get_last_displayed"},
		{&l.releaseRefBuffers, "avcdec_release_ref_buffers"},
		{&l.release, "avcdec_release"},
		{&l.getError, "avcdec_get_error"},
	}
	for _, s := range symbols {
		addr, err := purego.Dlsym(handle, s.name)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", s.name, err)
		}
		purego.RegisterFunc(s.fptr, addr)
	}
	return nil
}

func (l *nativeLib) lastError() string {
	if s := goStringFromPtr(l.getError()); s != "" {
		return s
	}
	return "unknown error"
}

// Engine callbacks are process-wide trampolines; the user data passed to
// avcdec_init selects the engine.
var (
	callbackOnce   sync.Once
	bindCallback   uintptr
	unbindCallback uintptr
	spsCallback    uintptr

	liveEngines handles.Table[*nativeEngine]
)

func nativeCallbacks() (bind, unbind, sps uintptr) {
	callbackOnce.Do(func() {
		bindCallback = purego.NewCallback(func(userData, ref uintptr) int32 {
			if e, ok := liveEngines.Lookup(userData); ok {
				e.cb.Bind(ref)
			}
			return nativeOK
		})
		unbindCallback = purego.NewCallback(func(userData, ref uintptr) int32 {
			if e, ok := liveEngines.Lookup(userData); ok {
				e.cb.Unbind(ref)
			}
			return nativeOK
		})
		spsCallback = purego.NewCallback(func(userData uintptr, width, height, numBuffers uint32) int32 {
			e, ok := liveEngines.Lookup(userData)
			if !ok {
				return nativeError
			}
			if err := e.cb.ActivateSequence(int(width), int(height), int(numBuffers)); err != nil {
				return nativeError
			}
			return nativeOK
		})
	})
	return bindCallback, unbindCallback, spsCallback
}

// nativeEngine is an Engine backed by an engine shared library.
type nativeEngine struct {
	lib     *nativeLib
	backend Backend
	handle  uint64
	id      uintptr
	cb      Callbacks

	// Engine-lifetime memory stays pinned until Close. Picture memory is
	// pinned once per slot and working memory once per MemInit.
	pinner   runtime.Pinner
	pictures map[uintptr]*pinSet
	extra    pinSet

	out   *nativeDecodeOut
	info  *nativeInfo
	picID *int32
}

func openNativeEngine(b Backend) (Engine, error) {
	lib := &nativeLibs[b]
	if err := lib.load(b.Library()); err != nil {
		return nil, err
	}

	handle := lib.create()
	if handle == 0 {
		return nil, fmt.Errorf("create %s engine: %s", b, lib.lastError())
	}

	e := &nativeEngine{
		lib:      lib,
		backend:  b,
		handle:   handle,
		out:      &nativeDecodeOut{}, // Heap-allocated for purego arm64
		info:     &nativeInfo{},
		picID:    new(int32),
		pictures: make(map[uintptr]*pinSet),
	}
	e.pinner.Pin(e.out)
	e.pinner.Pin(e.info)
	e.pinner.Pin(e.picID)
	return e, nil
}

// pinSet pins memory for one owner until unpin.
type pinSet struct {
	pinner runtime.Pinner
	addrs  []uintptr
}

func (p *pinSet) pin(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	p.pinner.Pin(&b[0])
	addr := uintptr(unsafe.Pointer(&b[0]))
	p.addrs = append(p.addrs, addr)
	return addr
}

func (p *pinSet) unpin() {
	p.pinner.Unpin()
	p.addrs = p.addrs[:0]
}

func (e *nativeEngine) pin(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	e.pinner.Pin(&b[0])
	return uintptr(unsafe.Pointer(&b[0]))
}

// pinPicture pins the pixels of the slot behind ref. The pin is reused while
// the slot keeps its memory.
func (e *nativeEngine) pinPicture(ref uintptr, pixels []byte) uintptr {
	if len(pixels) == 0 {
		return 0
	}
	p, ok := e.pictures[ref]
	if !ok {
		p = &pinSet{}
		e.pictures[ref] = p
	}
	if addr := uintptr(unsafe.Pointer(&pixels[0])); len(p.addrs) == 1 && p.addrs[0] == addr {
		return addr
	}
	p.unpin()
	return p.pin(pixels)
}

// ForgetPicture drops the pin of a freed slot.
func (e *nativeEngine) ForgetPicture(ref uintptr) {
	if p, ok := e.pictures[ref]; ok {
		p.unpin()
		delete(e.pictures, ref)
	}
}

func (e *nativeEngine) Init(cb Callbacks, internal []byte) error {
	e.cb = cb
	e.id = liveEngines.Register(e)

	bind, unbind, sps := nativeCallbacks()
	rc := e.lib.init(e.handle, e.id, bind, unbind, sps, e.pin(internal), int32(len(internal)))
	if rc != nativeOK {
		return fmt.Errorf("init %s engine: %s", e.backend, e.lib.lastError())
	}
	return nil
}

func (e *nativeEngine) MemInit(extra ExtraMemory) error {
	// The previous working memory was freed before the new sequence.
	e.extra.unpin()

	var uncached, uncachedPhys, cmd, cmdPhys uintptr
	var uncachedSize, cmdSize int32
	if m := extra.Uncached; m != nil {
		uncached, uncachedPhys, uncachedSize = e.extra.pin(m.Bytes()), m.PhysAddr(), int32(len(m.Bytes()))
	}
	if m := extra.Command; m != nil {
		cmd, cmdPhys, cmdSize = e.extra.pin(m.Bytes()), m.PhysAddr(), int32(len(m.Bytes()))
	}

	rc := e.lib.memInit(e.handle,
		e.extra.pin(extra.Software), int32(len(extra.Software)),
		uncached, uncachedPhys, uncachedSize,
		cmd, cmdPhys, cmdSize,
	)
	if rc != nativeOK {
		return fmt.Errorf("mem init: %s", e.lib.lastError())
	}
	return nil
}

func (e *nativeEngine) Decode(in *DecodeInput, out *DecodeOutput) error {
	*e.out = nativeDecodeOut{Remaining: int32(len(in.Stream))}

	expect := int32(0)
	if in.ExpectIntra {
		expect = 1
	}

	rc := e.lib.decode(e.handle,
		uintptr(unsafe.Pointer(&in.Stream[0])), int32(len(in.Stream)),
		expect,
		uintptr(unsafe.Pointer(e.out)),
	)

	out.Remaining = int(e.out.Remaining)
	out.FrameEffective = e.out.FrameEffective != 0
	out.Picture = PictureID(e.out.PicID)
	out.BufferRef = e.out.BufferRef

	if rc != nativeOK {
		return fmt.Errorf("decode failed: %s", e.lib.lastError())
	}
	return nil
}

func (e *nativeEngine) Info() (EngineInfo, error) {
	*e.info = nativeInfo{}
	if rc := e.lib.getInfo(e.handle, uintptr(unsafe.Pointer(e.info))); rc != nativeOK {
		return EngineInfo{}, fmt.Errorf("get info: %s", e.lib.lastError())
	}

	info := EngineInfo{
		Width:        int(e.info.Width),
		Height:       int(e.info.Height),
		NumRefFrames: int(e.info.NumRefFrames),
		HasBFrames:   e.info.HasBFrames != 0,
		Profile:      ProfileIDC(e.info.Profile),
	}
	if e.info.CropValid != 0 {
		info.Crop = &Rect{
			Left:   int(e.info.CropLeft),
			Top:    int(e.info.CropTop),
			Width:  int(e.info.CropWidth),
			Height: int(e.info.CropHeight),
		}
	}
	return info, nil
}

func (e *nativeEngine) SetCurrentPicture(pixels []byte, phys, ref uintptr, id PictureID) {
	e.lib.setCurPic(e.handle, e.pinPicture(ref, pixels), phys, ref, int32(id))
}

func (e *nativeEngine) LastDisplayed() (PictureID, bool) {
	*e.picID = 0
	if rc := e.lib.getLastDisplayed(e.handle, uintptr(unsafe.Pointer(e.picID))); rc != nativeOK {
		return 0, false
	}
	return PictureID(*e.picID), true
}

func (e *nativeEngine) ReleaseReferenceBuffers() {
	e.lib.releaseRefBuffers(e.handle)
}

func (e *nativeEngine) Close() error {
	if e.handle == 0 {
		return nil
	}
	e.lib.release(e.handle)
	e.handle = 0
	if e.id != 0 {
		liveEngines.Unregister(e.id)
		e.id = 0
	}
	for ref := range e.pictures {
		e.ForgetPicture(ref)
	}
	e.extra.unpin()
	e.pinner.Unpin()
	return nil
}

func init() {
	for _, b := range []Backend{BackendHardware, BackendSoftware} {
		if err := nativeLibs[b].load(b.Library()); err != nil {
			continue
		}
		setBackendAvailable(b)
		b := b
		registerEngine(b, func() (Engine, error) {
			return openNativeEngine(b)
		})
	}
}
