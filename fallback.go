package avcdec

import "slices"

// Envelope is the content the hardware engine can decode. Pictures are
// admitted in either orientation.
type Envelope struct {
	LongEdge   int          `mapstructure:"long_edge"`
	ShortEdge  int          `mapstructure:"short_edge"`
	Restricted []ProfileIDC `mapstructure:"restricted_profiles"` // Profiles the hardware cannot decode
}

// DefaultEnvelope returns the envelope of the VSP engine: up to 720x576
// (either orientation), Baseline only.
func DefaultEnvelope() Envelope {
	return Envelope{
		LongEdge:   720,
		ShortEdge:  576,
		Restricted: []ProfileIDC{ProfileIDCHigh, ProfileIDCMain},
	}
}

// Admits reports whether a stream of the given geometry and profile fits.
func (e Envelope) Admits(width, height int, profile ProfileIDC) bool {
	landscape := width <= e.LongEdge && height <= e.ShortEdge
	portrait := width <= e.ShortEdge && height <= e.LongEdge
	if !landscape && !portrait {
		return false
	}
	return !slices.Contains(e.Restricted, profile)
}

// fallbackController decides when the hardware engine must be replaced.
// The decision is latched: once pending, further checks are no-ops until
// the swap has been performed.
type fallbackController struct {
	env     Envelope
	pending bool
}

// check inspects the engine's stream info and latches a swap when the active
// backend has a fallback and the stream is outside its envelope. Returns true
// only on the call that latched.
func (f *fallbackController) check(active Backend, width, height int, profile ProfileIDC) bool {
	if f.pending || active.Fallback() == BackendAuto {
		return false
	}
	if f.env.Admits(width, height, profile) {
		return false
	}
	f.pending = true
	return true
}

// done clears the latch after the swap.
func (f *fallbackController) done() { f.pending = false }
