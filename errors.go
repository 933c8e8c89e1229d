package avcdec

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrBackendNotFound  = errors.New("backend not available")
	ErrBackendInit      = errors.New("backend init failed")
	ErrNoMore           = errors.New("no more entries")
	ErrBadPortIndex     = errors.New("bad port index")
	ErrUnsupportedIndex = errors.New("unsupported index")
	ErrNotImplemented   = errors.New("not implemented")
	ErrBadParameter     = errors.New("bad parameter")
	ErrSignalledError   = errors.New("decoder is in error state")
	ErrClosed           = errors.New("decoder closed")
	ErrUnknownBuffer    = errors.New("buffer not owned by decoder")
	ErrInsufficient     = errors.New("insufficient resources")
)

// ProtocolError reports a port handshake step that arrived out of order.
// It is always fatal for the decoder instance.
type ProtocolError struct {
	Port    int
	State   PortSettingsChange
	Enabled bool
}

func (e *ProtocolError) Error() string {
	verb := "disable"
	if e.Enabled {
		verb = "enable"
	}
	return fmt.Sprintf("port %d %s completed while %s", e.Port, verb, e.State)
}
