package avcdec

import (
	"fmt"

	"github.com/pion/logging"
)

// binding holds the one live engine and the backend it came from.
// Two engines are never live at once: swap releases the old engine
// completely before the new factory runs.
type binding struct {
	backend   Backend
	engine    Engine
	internal  []byte
	overrides map[Backend]EngineFactory
	log       logging.LeveledLogger
}

func newBinding(cfg *Config, log logging.LeveledLogger) *binding {
	return &binding{
		internal:  make([]byte, cfg.InternalBufferSize),
		overrides: cfg.Engines,
		log:       log,
	}
}

// open creates and initializes an engine for backend.
func (b *binding) open(backend Backend, cb Callbacks) error {
	if b.engine != nil {
		return fmt.Errorf("%w: %s engine still live", ErrBackendInit, b.backend)
	}

	factory, err := engineFactory(b.overrides, backend)
	if err != nil {
		return err
	}

	engine, err := factory()
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrBackendNotFound, backend, err)
	}

	clear(b.internal)
	if err := engine.Init(cb, b.internal); err != nil {
		_ = engine.Close()
		return fmt.Errorf("%w: %s: %v", ErrBackendInit, backend, err)
	}

	b.backend = backend
	b.engine = engine
	b.log.Infof("opened %s engine", backend)
	return nil
}

// openPreferred opens the preferred backend. BackendAuto falls back to
// software when the hardware engine cannot be opened or initialized; an
// explicit backend is opened or fails.
func (b *binding) openPreferred(pref Backend, cb Callbacks) error {
	if pref != BackendAuto {
		return b.open(pref, cb)
	}

	err := b.open(BackendHardware, cb)
	if err == nil {
		return nil
	}
	b.log.Warnf("hardware engine unavailable, using software: %v", err)
	return b.open(BackendSoftware, cb)
}

// release frees the live engine, if any.
func (b *binding) release() error {
	if b.engine == nil {
		return nil
	}
	err := b.engine.Close()
	b.engine = nil
	return err
}

// swap releases the live engine and opens the one for backend.
func (b *binding) swap(to Backend, cb Callbacks) error {
	from := b.backend
	b.engine.ReleaseReferenceBuffers()
	if err := b.release(); err != nil {
		b.log.Warnf("release %s engine: %v", from, err)
	}
	if err := b.open(to, cb); err != nil {
		return err
	}
	b.log.Infof("swapped engine %s -> %s", from, to)
	return nil
}
