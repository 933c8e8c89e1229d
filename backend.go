package avcdec

import "sync/atomic"

// Backend identifies a decode engine implementation.
type Backend uint8

const (
	BackendAuto     Backend = iota // Hardware when available, software otherwise
	BackendHardware                // Capable engine (VSP hardware path)
	BackendSoftware                // Fallback engine (pure software path)
	backendCount
)

// NativeBufferUsage is a bitmask reported through the get-native-buffer-usage
// extension so the consumer can allocate graphic buffers the engine can touch.
type NativeBufferUsage uint32

const (
	UsageSWReadOften  NativeBufferUsage = 0x00000003
	UsageSWWriteOften NativeBufferUsage = 0x00000030
	UsagePrivate0     NativeBufferUsage = 0x10000000 // physically contiguous, VSP addressable
)

// Has returns true if all specified usage bits are set.
func (u NativeBufferUsage) Has(bits NativeBufferUsage) bool { return u&bits == bits }

// backendMeta contains static metadata about a backend.
type backendMeta struct {
	Name       string
	Library    string // shared object base name, without platform suffix
	Usage      NativeBufferUsage
	Contiguous bool // output slots come from the physically contiguous heap
}

// Static metadata table - indexed by Backend.
var backendInfo = [backendCount]backendMeta{
	BackendAuto:     {"auto", "", 0, false},
	BackendHardware: {"hardware", "libomx_avcdec_hw_sprd", UsagePrivate0 | UsageSWReadOften | UsageSWWriteOften, true},
	BackendSoftware: {"software", "libomx_avcdec_sw_sprd", UsageSWReadOften | UsageSWWriteOften, false},
}

// Runtime availability - set by init() in engine implementations.
var backendAvailable [backendCount]atomic.Bool

// String returns the backend name.
func (b Backend) String() string {
	if b >= backendCount {
		return "unknown"
	}
	return backendInfo[b].Name
}

// Library returns the shared object base name the native engine loads from.
func (b Backend) Library() string {
	if b >= backendCount {
		return ""
	}
	return backendInfo[b].Library
}

// NativeBufferUsage returns the graphic buffer usage bits the backend needs.
func (b Backend) NativeBufferUsage() NativeBufferUsage {
	if b >= backendCount {
		return 0
	}
	return backendInfo[b].Usage
}

// Contiguous returns true if output slots must be physically contiguous.
func (b Backend) Contiguous() bool {
	if b >= backendCount {
		return false
	}
	return backendInfo[b].Contiguous
}

// Fallback returns the backend to switch to when content exceeds b's
// capability envelope, or BackendAuto if there is none.
func (b Backend) Fallback() Backend {
	if b == BackendHardware {
		return BackendSoftware
	}
	return BackendAuto
}

// Available returns true if a native engine for the backend loaded at runtime.
func (b Backend) Available() bool {
	if b >= backendCount {
		return false
	}
	return backendAvailable[b].Load()
}

// ParseBackend maps a backend name back to its value.
func ParseBackend(name string) (Backend, bool) {
	for b := BackendAuto; b < backendCount; b++ {
		if backendInfo[b].Name == name {
			return b, true
		}
	}
	return BackendAuto, false
}

// setBackendAvailable marks a backend as available (called by implementations).
func setBackendAvailable(b Backend) {
	if b < backendCount {
		backendAvailable[b].Store(true)
	}
}
