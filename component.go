package avcdec

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/logging"
)

// ComponentState is the lifecycle state of a Component.
type ComponentState int32

const (
	ComponentIdle ComponentState = iota
	ComponentRunning
	ComponentStopped
)

func (s ComponentState) String() string {
	switch s {
	case ComponentIdle:
		return "idle"
	case ComponentRunning:
		return "running"
	case ComponentStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type eventKind int

const (
	eventInput eventKind = iota
	eventOutput
	eventDisable
	eventEnable
	eventFlush
	eventCall
)

type event struct {
	kind  eventKind
	unit  *InputUnit
	slot  *OutputSlot
	port  int
	call  func(*Decoder) error
	reply chan error
}

const componentQueueDepth = 64

// Component runs a Decoder on its own goroutine. Posting methods hand the
// event to the loop and return without waiting for decode work; Listener
// notifications are delivered from the loop goroutine.
type Component struct {
	id  uuid.UUID
	log logging.LeveledLogger
	dec *Decoder

	events  chan event
	done    chan struct{}
	stopped chan struct{}

	state      atomic.Int32
	failed     atomic.Bool
	needsIntra atomic.Bool
	doneOnce   sync.Once
	closeErr   error
}

// NewComponent creates the decoder. Call Run to start processing.
func NewComponent(cfg Config, listener Listener) (*Component, error) {
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}

	c := &Component{
		id:      uuid.New(),
		log:     cfg.LoggerFactory.NewLogger("avcdec"),
		events:  make(chan event, componentQueueDepth),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	dec, err := NewDecoder(cfg, c.wrap(listener))
	if err != nil {
		return nil, err
	}
	c.dec = dec
	c.needsIntra.Store(dec.NeedsIntra())
	c.log.Infof("component %s created on %s engine", c.id, dec.Backend())
	return c, nil
}

// wrap mirrors the error state so posting methods can refuse work without
// a round trip through the loop.
func (c *Component) wrap(l Listener) Listener {
	if l == nil {
		l = ListenerFuncs{}
	}
	return ListenerFuncs{
		OnEmptyBufferDone:     l.EmptyBufferDone,
		OnFillBufferDone:      l.FillBufferDone,
		OnPortSettingsChanged: l.PortSettingsChanged,
		OnError: func(err error) {
			c.failed.Store(true)
			c.log.Errorf("component %s: %v", c.id, err)
			l.Error(err)
		},
	}
}

// ID returns the instance id used in log lines.
func (c *Component) ID() uuid.UUID { return c.id }

// State returns the lifecycle state.
func (c *Component) State() ComponentState { return ComponentState(c.state.Load()) }

// NeedsIntra reports whether the decoder waits for an intra-refresh point.
// Safe to call from any goroutine.
func (c *Component) NeedsIntra() bool { return c.needsIntra.Load() }

// Failed reports whether the decoder entered its permanent error state.
func (c *Component) Failed() bool { return c.failed.Load() }

// Run processes events until ctx is done or Close is called. The decoder is
// closed when Run returns.
func (c *Component) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(ComponentIdle), int32(ComponentRunning)) {
		return ErrClosed
	}
	defer close(c.stopped)
	defer c.state.Store(int32(ComponentStopped))

	for {
		select {
		case <-ctx.Done():
			c.stop()
			c.closeDecoder()
			return ctx.Err()
		case <-c.done:
			c.closeDecoder()
			return nil
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Component) handle(ev event) {
	var err error
	switch ev.kind {
	case eventInput:
		err = c.dec.QueueInput(ev.unit)
	case eventOutput:
		err = c.dec.QueueOutput(ev.slot)
	case eventDisable:
		err = c.dec.PortDisabled(ev.port)
	case eventEnable:
		err = c.dec.PortEnabled(ev.port)
	case eventFlush:
		err = c.dec.Flush(ev.port)
	case eventCall:
		err = ev.call(c.dec)
	}

	c.needsIntra.Store(c.dec.NeedsIntra())
	if ev.reply != nil {
		ev.reply <- err
	} else if err != nil {
		c.log.Debugf("component %s: event %d: %v", c.id, ev.kind, err)
	}
}

func (c *Component) post(ev event) error {
	if c.failed.Load() {
		return ErrSignalledError
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case <-c.done:
		return ErrClosed
	case c.events <- ev:
		return nil
	}
}

// EmptyThisBuffer queues a compressed unit.
func (c *Component) EmptyThisBuffer(u *InputUnit) error {
	return c.post(event{kind: eventInput, unit: u})
}

// FillThisBuffer queues an empty output slot.
func (c *Component) FillThisBuffer(s *OutputSlot) error {
	return c.post(event{kind: eventOutput, slot: s})
}

// DisablePort reports that the host disabled port.
func (c *Component) DisablePort(port int) error {
	return c.post(event{kind: eventDisable, port: port})
}

// EnablePort reports that the host re-enabled port.
func (c *Component) EnablePort(port int) error {
	return c.post(event{kind: eventEnable, port: port})
}

// Flush returns every buffer queued on port.
func (c *Component) Flush(port int) error {
	return c.post(event{kind: eventFlush, port: port})
}

// Do runs fn on the loop goroutine and waits for its result. Use it for the
// parameter surface and buffer allocation.
func (c *Component) Do(ctx context.Context, fn func(*Decoder) error) error {
	reply := make(chan error, 1)
	select {
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case c.events <- event{kind: eventCall, call: fn, reply: reply}:
	}

	select {
	case err := <-reply:
		return err
	case <-c.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop and releases the decoder. It waits for Run to
// return.
func (c *Component) Close() error {
	c.stop()
	if c.state.CompareAndSwap(int32(ComponentIdle), int32(ComponentStopped)) {
		c.closeErr = c.dec.Close()
		close(c.stopped)
	}
	<-c.stopped
	return c.closeErr
}

func (c *Component) stop() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Component) closeDecoder() {
	if err := c.dec.Close(); err != nil {
		c.closeErr = err
		c.log.Warnf("component %s close: %v", c.id, err)
	}
	c.log.Infof("component %s stopped", c.id)
}
