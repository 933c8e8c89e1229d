package avcdec

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/pion/logging"
)

// Decoder moves compressed units from the input queue through the engine
// into output slots.
//
// A Decoder is not safe for concurrent use. All methods, including the
// Listener notifications they trigger, run on the caller's goroutine;
// Component provides a serialising event loop on top.
type Decoder struct {
	cfg      Config
	listener Listener
	log      logging.LeveledLogger
	alloc    Allocator

	binding  *binding
	refs     refTracker
	reconfig portReconfig
	fallback fallbackController

	ports  portSet
	stream StreamState
	eos    EOSStatus

	inQueue  []*InputUnit
	outQueue []*OutputSlot
	staging  []byte
	picID    PictureID
	extra    ExtraMemory
	native   bool

	failed bool
	closed bool
}

// NewDecoder opens the configured backend and returns a decoder ready to
// accept buffers. With BackendAuto the hardware engine is tried first.
func NewDecoder(cfg Config, listener Listener) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if listener == nil {
		listener = ListenerFuncs{}
	}

	d := &Decoder{
		cfg:      cfg,
		listener: listener,
		log:      cfg.LoggerFactory.NewLogger("avcdec"),
		alloc:    cfg.Allocator,
		staging:  make([]byte, cfg.StagingCapacity),
	}
	if d.alloc == nil {
		d.alloc = goAllocator{}
	}
	d.ports = newPorts(&d.cfg)
	d.stream = newStreamState(cfg.Width, cfg.Height, cfg.OutputBufferCount)
	d.fallback.env = cfg.Envelope

	d.binding = newBinding(&d.cfg, d.log)
	if err := d.binding.openPreferred(cfg.Backend, engineCallbacks{d}); err != nil {
		return nil, err
	}
	return d, nil
}

// engineCallbacks routes engine callbacks into the decoder.
type engineCallbacks struct{ d *Decoder }

func (c engineCallbacks) Bind(ref uintptr) {
	if !c.d.refs.bind(ref) {
		c.d.log.Warnf("bind of unknown buffer %#x", ref)
	}
}

func (c engineCallbacks) Unbind(ref uintptr) {
	if !c.d.refs.unbind(ref) {
		c.d.log.Warnf("unbind of unknown buffer %#x", ref)
	}
}

func (c engineCallbacks) ActivateSequence(width, height, numBuffers int) error {
	return c.d.activateSequence(width, height, numBuffers)
}

// activateSequence sizes and hands over the engine's working memory for a
// newly parsed SPS.
func (d *Decoder) activateSequence(width, height, numBuffers int) error {
	d.log.Infof("activate sequence %dx%d, %d buffers", width, height, numBuffers)

	if err := d.freeExtra(); err != nil {
		d.log.Warnf("free working memory: %v", err)
	}

	hw := d.binding.backend.Contiguous()
	extra := ExtraMemory{Software: make([]byte, softwareExtraSize(width, height, !hw))}
	if hw {
		var err error
		if extra.Uncached, err = d.alloc.Alloc(alignHeap(uncachedExtraSize(width))); err != nil {
			return fmt.Errorf("%w: uncached memory: %v", ErrInsufficient, err)
		}
		if extra.Command, err = d.alloc.Alloc(alignHeap(commandExtraSize(width, height))); err != nil {
			_ = extra.Uncached.Free()
			return fmt.Errorf("%w: command memory: %v", ErrInsufficient, err)
		}
	}
	d.extra = extra

	if err := d.binding.engine.MemInit(extra); err != nil {
		return fmt.Errorf("%w: mem init: %v", ErrBackendInit, err)
	}
	d.stream.HeadersDecoded = true
	return nil
}

func (d *Decoder) freeExtra() error {
	var result error
	for _, m := range []Memory{d.extra.Uncached, d.extra.Command} {
		if m == nil {
			continue
		}
		if err := m.Free(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	d.extra = ExtraMemory{}
	return result
}

// --- Buffers ---

func (d *Decoder) usable() error {
	switch {
	case d.closed:
		return ErrClosed
	case d.failed:
		return ErrSignalledError
	}
	return nil
}

// AllocateInput returns an input unit sized to the input port.
func (d *Decoder) AllocateInput() *InputUnit {
	return &InputUnit{Data: make([]byte, d.ports[InputPort].BufferSize)}
}

// AllocateOutput returns an output slot sized to the output port. On
// backends that need contiguous memory the pixels come from the configured
// Allocator.
func (d *Decoder) AllocateOutput() (*OutputSlot, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}

	size := d.ports[OutputPort].BufferSize
	var mem Memory
	if d.binding.backend.Contiguous() {
		m, err := d.alloc.Alloc(alignHeap(size))
		if err != nil {
			return nil, fmt.Errorf("%w: output buffer: %v", ErrInsufficient, err)
		}
		mem = m
	} else {
		mem = goMemory(make([]byte, size))
	}

	s := &OutputSlot{Data: mem.Bytes()[:size]}
	d.refs.track(s, mem, false)
	return s, nil
}

// UseOutput wraps caller-owned pixel memory as an output slot.
func (d *Decoder) UseOutput(data []byte) (*OutputSlot, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}
	if len(data) < d.ports[OutputPort].BufferSize {
		return nil, fmt.Errorf("%w: output buffer %d < %d bytes", ErrBadParameter, len(data), d.ports[OutputPort].BufferSize)
	}

	s := &OutputSlot{Data: data}
	d.refs.track(s, nil, false)
	return s, nil
}

// UseNativeOutput registers a graphic buffer as an output slot. The pixels
// are obtained through the Mapper for each decode; private identifies the
// buffer to the Mapper.
func (d *Decoder) UseNativeOutput(private any) (*OutputSlot, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}
	if !d.native {
		return nil, fmt.Errorf("%w: native buffers not enabled", ErrBadParameter)
	}

	s := &OutputSlot{Private: private}
	d.refs.track(s, nil, true)
	return s, nil
}

// FreeOutput unregisters a slot and frees memory the decoder allocated for it.
func (d *Decoder) FreeOutput(s *OutputSlot) error {
	if i := slices.Index(d.outQueue, s); i >= 0 {
		d.outQueue = slices.Delete(d.outQueue, i, i+1)
	}
	return d.freeSlot(s)
}

func (d *Decoder) freeSlot(s *OutputSlot) error {
	if s.ctrl == nil {
		return nil
	}
	mem := s.ctrl.mem
	if f, ok := d.binding.engine.(PictureForgetter); ok {
		f.ForgetPicture(s.ctrl.handle)
	}
	d.refs.forget(s)
	s.Data = nil
	if mem != nil {
		return mem.Free()
	}
	return nil
}

// QueueInput hands a compressed unit to the decoder and runs the loop.
// A unit with FlagEOS ends the stream.
func (d *Decoder) QueueInput(u *InputUnit) error {
	if err := d.usable(); err != nil {
		return err
	}
	if u == nil {
		return ErrBadParameter
	}
	if !d.ports[InputPort].Enabled {
		return fmt.Errorf("%w: input port disabled", ErrBadParameter)
	}

	if d.cfg.ProbeInput {
		d.probe(u)
	}
	d.inQueue = append(d.inQueue, u)
	d.Process()
	return nil
}

// QueueOutput hands an empty output slot to the decoder and runs the loop.
func (d *Decoder) QueueOutput(s *OutputSlot) error {
	if err := d.usable(); err != nil {
		return err
	}
	if s == nil {
		return ErrBadParameter
	}
	if !d.ports[OutputPort].Enabled {
		return fmt.Errorf("%w: output port disabled", ErrBadParameter)
	}

	s.FilledLen = 0
	d.outQueue = append(d.outQueue, s)
	d.Process()
	return nil
}

func (d *Decoder) releaseInput() {
	u := d.inQueue[0]
	d.inQueue[0] = nil
	d.inQueue = d.inQueue[1:]
	d.listener.EmptyBufferDone(u)
}

func (d *Decoder) returnInputs() {
	for len(d.inQueue) > 0 {
		d.releaseInput()
	}
}

// returnOutputs hands every queued slot back unfilled.
func (d *Decoder) returnOutputs() {
	queue := d.outQueue
	d.outQueue = nil
	for _, s := range queue {
		s.FilledLen = 0
		d.listener.FillBufferDone(s)
	}
}

// --- Decode loop ---

// Process runs decode iterations until no further progress can be made. It
// never blocks; it is re-entered whenever new buffers or commands arrive.
func (d *Decoder) Process() {
	for d.canProgress() {
		if !d.step() {
			return
		}
	}
}

func (d *Decoder) canProgress() bool {
	if d.failed || d.closed || d.reconfig.suspended() || d.eos == EOSFlushed {
		return false
	}
	return (d.eos != EOSAvailable || len(d.inQueue) > 0) && len(d.outQueue) > 0
}

// step runs one iteration. It returns false when the loop must stop.
func (d *Decoder) step() bool {
	if d.fallback.pending {
		return d.performSwap()
	}

	if d.eos == EOSSeen {
		d.drainAll()
		return false
	}

	if len(d.inQueue) == 0 {
		return false
	}

	idx, missing := firstFree(d.outQueue)
	if missing {
		d.fail(fmt.Errorf("%w: output slot has no control block", ErrInsufficient))
		return false
	}
	if idx < 0 {
		d.log.Debugf("all %d queued output slots are referenced", len(d.outQueue))
		return false
	}

	slot := d.outQueue[idx]
	unit := d.inQueue[0]
	d.picID++

	if unit.EOS() {
		d.releaseInput()
		d.eos.advance(EOSSeen)
		d.log.Infof("end of stream seen")
		return true
	}

	if unit.Len() == 0 {
		d.releaseInput()
		return true
	}

	// Bytes past the staging capacity stay on the unit for the next call.
	n := copy(d.staging, unit.Remaining())

	slot.Timestamp = unit.Timestamp
	slot.Flags = unit.Flags

	pixels := slot.Data
	var mapped uintptr
	if slot.ctrl.native {
		out := &d.ports[OutputPort]
		p, phys, err := d.cfg.Mapper.Lock(slot, out.Stride, out.SliceHeight)
		if err != nil {
			d.log.Errorf("lock output slot: %v", err)
			return false
		}
		pixels, mapped = p, phys
	}

	engine := d.binding.engine
	d.refs.assign(slot, d.picID)
	engine.SetCurrentPicture(pixels, d.physAddr(slot, mapped), slot.ctrl.handle, d.picID)

	in := DecodeInput{Stream: d.staging[:n], ExpectIntra: d.stream.NeedIVOP}
	out := DecodeOutput{Remaining: n}
	if err := engine.Decode(&in, &out); err != nil {
		d.log.Debugf("decode pic %d: %v", d.picID, err)
	} else {
		d.stream.NeedIVOP = false
	}

	if slot.ctrl.native {
		if err := d.cfg.Mapper.Unlock(slot); err != nil {
			d.log.Warnf("unlock output slot: %v", err)
		}
	}

	info, err := engine.Info()
	if err != nil {
		d.log.Warnf("engine info: %v, dropping input unit", err)
		d.releaseInput()
		return true
	}

	if d.fallback.check(d.binding.backend, info.Width, info.Height, info.Profile) {
		d.log.Infof("%dx%d %s exceeds %s engine, scheduling %s",
			info.Width, info.Height, info.Profile, d.binding.backend, d.binding.backend.Fallback())
	}

	if d.reconfig.evaluate(&d.stream, &d.ports, info, d.cfg.ReservedBuffers) {
		d.log.Infof("output port settings changed: %dx%d, %d buffers",
			d.stream.Width, d.stream.Height, d.stream.BufferCount)
		d.listener.PortSettingsChanged(OutputPort, IndexNone)
		return false
	}

	// The unit is re-submitted to the replacement engine.
	if d.fallback.pending {
		return true
	}

	if d.reconfig.cropChanged(&d.stream, info.Crop) {
		d.listener.PortSettingsChanged(OutputPort, IndexConfigOutputCrop)
	}

	consumed := n - out.Remaining
	if consumed > 0 {
		unit.Offset += consumed
	}
	if unit.Len() == 0 || consumed <= 0 {
		d.releaseInput()
	}

	if out.FrameEffective && d.stream.HeadersDecoded && len(d.outQueue) > 0 {
		if err := d.drainOne(out.BufferRef); err != nil {
			d.fail(err)
			return false
		}
	}
	return true
}

// physAddr picks the device address of the decode target.
func (d *Decoder) physAddr(s *OutputSlot, mapped uintptr) uintptr {
	if !d.binding.backend.Contiguous() {
		return 0
	}
	if p := s.PhysAddr(); p != 0 {
		return p
	}
	return mapped
}

// drainOne delivers the slot holding a completed picture.
func (d *Decoder) drainOne(ref uintptr) error {
	slot, ok := d.refs.resolve(ref)
	idx := -1
	if ok {
		idx = slices.Index(d.outQueue, slot)
	}
	if idx < 0 {
		return fmt.Errorf("%w: engine completed picture in %#x", ErrUnknownBuffer, ref)
	}

	d.outQueue = slices.Delete(d.outQueue, idx, idx+1)
	slot.FilledLen = d.stream.FrameSize
	d.refs.hold(slot)
	d.listener.FillBufferDone(slot)
	return nil
}

// drainAll empties the output queue at end of stream, filling slots with
// pictures the engine still buffers and marking the first empty one EOS.
func (d *Decoder) drainAll() {
	d.log.Debugf("draining %d output slots", len(d.outQueue))

	for len(d.outQueue) > 0 {
		slot := d.outQueue[0]
		d.outQueue = slices.Delete(d.outQueue, 0, 1)

		if _, ok := d.lastDisplayed(); ok {
			slot.FilledLen = d.stream.FrameSize
		} else {
			slot.Timestamp = 0
			slot.FilledLen = 0
			slot.Flags = FlagEOS
			if d.eos != EOSFlushed {
				d.log.Infof("output flushed")
			}
			d.eos.advance(EOSFlushed)
		}

		if slot.ctrl != nil {
			d.refs.hold(slot)
		}
		d.listener.FillBufferDone(slot)
	}
}

func (d *Decoder) lastDisplayed() (PictureID, bool) {
	if !d.stream.HeadersDecoded {
		return 0, false
	}
	return d.binding.engine.LastDisplayed()
}

// performSwap replaces the engine with its fallback. The input unit that
// triggered it stays queued.
func (d *Decoder) performSwap() bool {
	to := d.binding.backend.Fallback()
	d.fallback.done()

	if err := d.freeExtra(); err != nil {
		d.log.Warnf("free working memory: %v", err)
	}
	if err := d.binding.swap(to, engineCallbacks{d}); err != nil {
		d.fail(err)
		return false
	}

	d.refs.reclaim()
	d.stream.HeadersDecoded = false
	d.stream.NeedIVOP = true
	return true
}

// fail enters the permanent error state and reports err once.
func (d *Decoder) fail(err error) {
	if d.failed {
		return
	}
	d.failed = true
	d.log.Errorf("fatal: %v", err)
	d.listener.Error(err)
}

// --- Commands ---

// Flush returns every buffer queued on port. Flushing the output port makes
// the engine drop its reference pins first; flushing the input port restarts
// end-of-stream tracking and requires the next unit to be decodable on its own.
func (d *Decoder) Flush(port int) error {
	if !validPort(port) {
		return ErrBadPortIndex
	}

	if port == OutputPort {
		d.releaseReferences()
		d.returnOutputs()
		return nil
	}

	d.returnInputs()
	d.eos = EOSAvailable
	d.stream.NeedIVOP = true
	return nil
}

func (d *Decoder) releaseReferences() {
	if d.binding.engine != nil {
		d.binding.engine.ReleaseReferenceBuffers()
	}
	d.refs.reclaim()
}

// PortDisabled reports that the host finished disabling port. Queued buffers
// of the port are returned.
func (d *Decoder) PortDisabled(port int) error {
	if !validPort(port) {
		return ErrBadPortIndex
	}

	d.ports[port].Enabled = false
	if port == OutputPort {
		d.releaseReferences()
		d.returnOutputs()
	} else {
		d.returnInputs()
	}

	if err := d.reconfig.completed(port, false); err != nil {
		d.fail(err)
		return err
	}
	return nil
}

// PortEnabled reports that the host re-enabled port and resumes decoding.
func (d *Decoder) PortEnabled(port int) error {
	if !validPort(port) {
		return ErrBadPortIndex
	}

	d.ports[port].Enabled = true
	if err := d.reconfig.completed(port, true); err != nil {
		d.fail(err)
		return err
	}

	d.Process()
	return nil
}

// Close releases the engine and all memory the decoder allocated. Slots
// still held by the consumer must not be used afterwards.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	var result error
	if err := d.binding.release(); err != nil {
		result = multierror.Append(result, fmt.Errorf("release engine: %w", err))
	}
	if err := d.freeExtra(); err != nil {
		result = multierror.Append(result, fmt.Errorf("free working memory: %w", err))
	}

	var slots []*OutputSlot
	d.refs.slots.Range(func(_ uintptr, s *OutputSlot) bool {
		slots = append(slots, s)
		return true
	})
	for _, s := range slots {
		if err := d.freeSlot(s); err != nil {
			result = multierror.Append(result, fmt.Errorf("free output slot: %w", err))
		}
	}

	d.inQueue = nil
	d.outQueue = nil
	return result
}

// --- State ---

// EOS returns the end-of-stream status.
func (d *Decoder) EOS() EOSStatus { return d.eos }

// PortSettings returns the output reconfiguration handshake state.
func (d *Decoder) PortSettings() PortSettingsChange { return d.reconfig.state }

// Backend returns the backend of the live engine.
func (d *Decoder) Backend() Backend { return d.binding.backend }

// Stream returns a copy of the current stream state.
func (d *Decoder) Stream() StreamState { return d.stream }

// NeedsIntra reports whether the next decoded unit must be an intra-refresh
// point.
func (d *Decoder) NeedsIntra() bool { return d.stream.NeedIVOP }

// Failed reports whether the decoder is in its permanent error state.
func (d *Decoder) Failed() bool { return d.failed }

// Queued returns the number of queued input units and output slots.
func (d *Decoder) Queued() (inputs, outputs int) { return len(d.inQueue), len(d.outQueue) }
