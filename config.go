package avcdec

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/pion/logging"
)

// Default sizes.
const (
	DefaultWidth              = 320
	DefaultHeight             = 240
	DefaultInputBufferCount   = 8
	DefaultInputBufferSize    = 256 * 1024
	DefaultOutputBufferMin    = 2
	DefaultOutputBufferCount  = 5
	DefaultStagingCapacity    = 1024 * 1024
	DefaultInternalBufferSize = 2000 * 1024

	// Output buffers held back from the reference frame budget: one being
	// decoded, one being displayed, one queued for display.
	DefaultReservedBuffers = 2 + 1
)

// Config configures a Decoder.
type Config struct {
	Backend Backend `mapstructure:"backend"` // BackendAuto = hardware first, software fallback; others are strict

	Width  int `mapstructure:"width"`  // Initial output geometry
	Height int `mapstructure:"height"` // Initial output geometry

	InputBufferCount  int `mapstructure:"input_buffer_count"`
	InputBufferSize   int `mapstructure:"input_buffer_size"`
	OutputBufferMin   int `mapstructure:"output_buffer_min"`
	OutputBufferCount int `mapstructure:"output_buffer_count"`

	StagingCapacity    int `mapstructure:"staging_capacity"`     // Max bytes submitted per decode call
	InternalBufferSize int `mapstructure:"internal_buffer_size"` // Engine's private working buffer
	ReservedBuffers    int `mapstructure:"reserved_buffers"`     // Margin excluded from the reference budget (+1 with B-frames)

	Envelope Envelope `mapstructure:"envelope"` // Limits of the hardware engine

	// ProbeInput parses the SPS of queued units while on the hardware
	// engine and schedules the software swap before the first decode.
	ProbeInput bool `mapstructure:"probe_input"`

	Allocator     Allocator                 `mapstructure:"-"` // Contiguous heap; nil = Go memory
	Mapper        Mapper                    `mapstructure:"-"` // Required for native buffer mode
	Engines       map[Backend]EngineFactory `mapstructure:"-"` // Overrides the registered engines
	LoggerFactory logging.LoggerFactory     `mapstructure:"-"`
}

// DefaultConfig returns the default decoder configuration.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendAuto,
		Width:              DefaultWidth,
		Height:             DefaultHeight,
		InputBufferCount:   DefaultInputBufferCount,
		InputBufferSize:    DefaultInputBufferSize,
		OutputBufferMin:    DefaultOutputBufferMin,
		OutputBufferCount:  DefaultOutputBufferCount,
		StagingCapacity:    DefaultStagingCapacity,
		InternalBufferSize: DefaultInternalBufferSize,
		ReservedBuffers:    DefaultReservedBuffers,
		Envelope:           DefaultEnvelope(),
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	switch {
	case c.Backend >= backendCount:
		return fmt.Errorf("%w: backend %d", ErrBadParameter, c.Backend)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: geometry %dx%d", ErrBadParameter, c.Width, c.Height)
	case c.InputBufferCount <= 0 || c.InputBufferSize <= 0:
		return fmt.Errorf("%w: input buffers %d x %d", ErrBadParameter, c.InputBufferCount, c.InputBufferSize)
	case c.OutputBufferMin <= 0 || c.OutputBufferCount < c.OutputBufferMin:
		return fmt.Errorf("%w: output buffers %d (min %d)", ErrBadParameter, c.OutputBufferCount, c.OutputBufferMin)
	case c.StagingCapacity <= 0:
		return fmt.Errorf("%w: staging capacity %d", ErrBadParameter, c.StagingCapacity)
	case c.InternalBufferSize <= 0:
		return fmt.Errorf("%w: internal buffer size %d", ErrBadParameter, c.InternalBufferSize)
	case c.ReservedBuffers < 0:
		return fmt.Errorf("%w: reserved buffers %d", ErrBadParameter, c.ReservedBuffers)
	}
	return nil
}

// DecodeConfig overlays raw settings (e.g. parsed JSON or flags) onto
// DefaultConfig. Unknown keys are an error. Backends may be given by name.
func DecodeConfig(raw map[string]any) (Config, error) {
	cfg := DefaultConfig()

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       backendHook,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		ZeroFields:       true, // Given lists replace the defaults
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrBadParameter, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var backendType = reflect.TypeOf(Backend(0))

// backendHook decodes "hardware"/"software"/"auto" into a Backend.
func backendHook(from, to reflect.Type, data any) (any, error) {
	if to != backendType || from.Kind() != reflect.String {
		return data, nil
	}
	b, ok := ParseBackend(data.(string))
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", data)
	}
	return b, nil
}
