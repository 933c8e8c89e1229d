package avcdec

import (
	"errors"
	"io"
	"testing"

	"github.com/pion/logging"
)

// fakeEngine is a scripted Engine. By default every Decode consumes the whole
// submission and reports the configured stream info.
type fakeEngine struct {
	cb       Callbacks
	internal []byte

	info    EngineInfo
	infoErr error

	activate    bool                // Call ActivateSequence on the first decode
	frames      bool                // Complete a picture in every decode
	completeRef uintptr             // Reported as the completed buffer instead of the target
	bindRefs    bool                // Pin every decode target as a reference frame
	consume     func(n int) int     // Bytes consumed per call; nil = all
	decodeErr   error               // Returned by Decode
	onDecode    func(e *fakeEngine) // Runs inside Decode after the defaults
	displayed   []PictureID         // Pictures returned by LastDisplayed
	initErr     error

	activated bool
	current   fakePicture
	pictures  []fakePicture
	streams   [][]byte
	intra     []bool
	extra     []ExtraMemory
	bound     []uintptr
	forgotten []uintptr

	released int // ReleaseReferenceBuffers calls
	closed   int
}

type fakePicture struct {
	pixels []byte
	phys   uintptr
	ref    uintptr
	id     PictureID
}

func (e *fakeEngine) Init(cb Callbacks, internal []byte) error {
	if e.initErr != nil {
		return e.initErr
	}
	e.cb = cb
	e.internal = internal
	return nil
}

func (e *fakeEngine) MemInit(extra ExtraMemory) error {
	e.extra = append(e.extra, extra)
	return nil
}

func (e *fakeEngine) Decode(in *DecodeInput, out *DecodeOutput) error {
	e.streams = append(e.streams, append([]byte(nil), in.Stream...))
	e.intra = append(e.intra, in.ExpectIntra)

	if e.activate && !e.activated {
		e.activated = true
		if err := e.cb.ActivateSequence(e.info.Width, e.info.Height, e.info.NumRefFrames+1); err != nil {
			return err
		}
	}

	n := len(in.Stream)
	if e.consume != nil {
		n = e.consume(n)
	}
	out.Remaining = len(in.Stream) - n

	if e.bindRefs {
		e.cb.Bind(e.current.ref)
		e.bound = append(e.bound, e.current.ref)
	}
	if e.frames {
		out.FrameEffective = true
		out.Picture = e.current.id
		out.BufferRef = e.current.ref
		if e.completeRef != 0 {
			out.BufferRef = e.completeRef
		}
	}
	if e.onDecode != nil {
		e.onDecode(e)
	}
	return e.decodeErr
}

func (e *fakeEngine) Info() (EngineInfo, error) {
	if e.infoErr != nil {
		return EngineInfo{}, e.infoErr
	}
	return e.info, nil
}

func (e *fakeEngine) SetCurrentPicture(pixels []byte, phys, ref uintptr, id PictureID) {
	e.current = fakePicture{pixels: pixels, phys: phys, ref: ref, id: id}
	e.pictures = append(e.pictures, e.current)
}

func (e *fakeEngine) LastDisplayed() (PictureID, bool) {
	if len(e.displayed) == 0 {
		return 0, false
	}
	id := e.displayed[0]
	e.displayed = e.displayed[1:]
	return id, true
}

func (e *fakeEngine) ReleaseReferenceBuffers() {
	e.released++
	for _, ref := range e.bound {
		e.cb.Unbind(ref)
	}
	e.bound = nil
}

func (e *fakeEngine) ForgetPicture(ref uintptr) {
	e.forgotten = append(e.forgotten, ref)
}

func (e *fakeEngine) Close() error {
	e.closed++
	return nil
}

func (e *fakeEngine) decodes() int { return len(e.streams) }

// factory returns a factory handing out e and counting opens.
func (e *fakeEngine) factory(opens *int) EngineFactory {
	return func() (Engine, error) {
		if opens != nil {
			*opens++
		}
		return e, nil
	}
}

var errNoEngine = errors.New("engine library missing")

func failingFactory() (Engine, error) { return nil, errNoEngine }

// recorder is a Listener capturing every notification.
type recorder struct {
	emptied []*InputUnit
	filled  []*OutputSlot
	changes []ParamIndex
	errs    []error
}

func (r *recorder) EmptyBufferDone(u *InputUnit)            { r.emptied = append(r.emptied, u) }
func (r *recorder) FillBufferDone(s *OutputSlot)            { r.filled = append(r.filled, s) }
func (r *recorder) PortSettingsChanged(_ int, i ParamIndex) { r.changes = append(r.changes, i) }
func (r *recorder) Error(err error)                         { r.errs = append(r.errs, err) }

// testInfo is stream info matching DefaultConfig's geometry.
func testInfo() EngineInfo {
	return EngineInfo{
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		NumRefFrames: 1,
		Profile:      ProfileIDCBaseline,
	}
}

func testConfig(engines map[Backend]EngineFactory) Config {
	cfg := DefaultConfig()
	cfg.Backend = BackendSoftware
	cfg.Engines = engines
	cfg.LoggerFactory = &logging.DefaultLoggerFactory{
		Writer:          io.Discard,
		DefaultLogLevel: logging.LogLevelDisabled,
	}
	return cfg
}

// newSoftwareDecoder opens a decoder on a software fake engine.
func newSoftwareDecoder(t *testing.T, e *fakeEngine, mutate ...func(*Config)) (*Decoder, *recorder) {
	t.Helper()
	cfg := testConfig(map[Backend]EngineFactory{BackendSoftware: e.factory(nil)})
	for _, m := range mutate {
		m(&cfg)
	}

	rec := &recorder{}
	d, err := NewDecoder(cfg, rec)
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, rec
}

func mustAllocate(t *testing.T, d *Decoder, n int) []*OutputSlot {
	t.Helper()
	slots := make([]*OutputSlot, n)
	for i := range slots {
		s, err := d.AllocateOutput()
		if err != nil {
			t.Fatalf("AllocateOutput() error = %v", err)
		}
		slots[i] = s
	}
	return slots
}

func mustQueueOutput(t *testing.T, d *Decoder, slots ...*OutputSlot) {
	t.Helper()
	for _, s := range slots {
		if err := d.QueueOutput(s); err != nil {
			t.Fatalf("QueueOutput() error = %v", err)
		}
	}
}

func mustQueueInput(t *testing.T, d *Decoder, u *InputUnit) {
	t.Helper()
	if err := d.QueueInput(u); err != nil {
		t.Fatalf("QueueInput() error = %v", err)
	}
}

func dataUnit(n int, ts int64) *InputUnit {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	return &InputUnit{Data: data, Timestamp: ts}
}

func eosUnit() *InputUnit { return &InputUnit{Flags: FlagEOS} }
