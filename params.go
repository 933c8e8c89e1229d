package avcdec

import "fmt"

// Vendor extension names resolved by ExtensionIndex.
const (
	ExtEnableNativeBuffers  = "com.sprd.index.enableNativeBuffers"
	ExtGetNativeBufferUsage = "com.sprd.index.getNativeBufferUsage"
	ExtUseNativeBuffer      = "com.sprd.index.useNativeBuffer2"
)

var extensions = map[string]ParamIndex{
	ExtEnableNativeBuffers:  IndexEnableNativeBuffers,
	ExtGetNativeBufferUsage: IndexGetNativeBufferUsage,
	ExtUseNativeBuffer:      IndexUseNativeBuffer,
}

// ExtensionIndex maps a vendor extension name to its parameter index.
func ExtensionIndex(name string) (ParamIndex, error) {
	if idx, ok := extensions[name]; ok {
		return idx, nil
	}
	return IndexNone, fmt.Errorf("%w: extension %q", ErrNotImplemented, name)
}

// PortDefinition returns the current definition of port.
func (d *Decoder) PortDefinition(port int) (PortDefinition, error) {
	if !validPort(port) {
		return PortDefinition{}, ErrBadPortIndex
	}
	return d.ports[port], nil
}

// SetPortDefinition applies the host's buffer contract for def.Index.
// Buffer sizes only grow and the actual count may not drop below the
// minimum. Setting the output geometry recomputes stride, slice height,
// crop and buffer size.
func (d *Decoder) SetPortDefinition(def PortDefinition) error {
	if !validPort(def.Index) {
		return ErrBadPortIndex
	}
	cur := &d.ports[def.Index]

	if def.BufferCountActual < cur.BufferCountMin {
		return fmt.Errorf("%w: buffer count %d below minimum %d", ErrBadParameter, def.BufferCountActual, cur.BufferCountMin)
	}
	if def.BufferSize < cur.BufferSize {
		return fmt.Errorf("%w: buffer size %d below %d", ErrBadParameter, def.BufferSize, cur.BufferSize)
	}

	cur.BufferCountActual = def.BufferCountActual
	cur.BufferSize = def.BufferSize

	if def.Index != OutputPort || def.Width <= 0 || def.Height <= 0 {
		return nil
	}

	cur.Width, cur.Height = def.Width, def.Height
	cur.Stride, cur.SliceHeight = def.Width, def.Height
	cur.BufferSize = max(cur.BufferSize, FrameSize(def.Width, def.Height))

	d.reconfig.resize(&d.stream, def.Width, def.Height)
	return nil
}

// PortFormat enumerates the formats of port. Each port supports exactly one.
func (d *Decoder) PortFormat(port, index int) (PortFormat, error) {
	if !validPort(port) {
		return PortFormat{}, ErrBadPortIndex
	}
	if index > 0 {
		return PortFormat{}, ErrNoMore
	}

	if port == InputPort {
		return PortFormat{Port: port, Coding: CodingAVC, Color: ColorFormatUnused}, nil
	}
	return PortFormat{Port: port, Coding: CodingUnused, Color: d.ports[OutputPort].Color}, nil
}

// SetPortFormat selects a format by enumeration index.
func (d *Decoder) SetPortFormat(port, index int) error {
	if !validPort(port) {
		return ErrBadPortIndex
	}
	if index > 0 {
		return ErrNoMore
	}
	return nil
}

// ProfileLevel enumerates the supported (profile, level) pairs of the input
// port, profile-major.
func (d *Decoder) ProfileLevel(port, index int) (ProfileLevel, error) {
	if port != InputPort {
		return ProfileLevel{}, ErrUnsupportedIndex
	}
	if index < 0 || index >= len(profileLevels) {
		return ProfileLevel{}, ErrNoMore
	}
	return profileLevels[index], nil
}

// SetRole accepts only the AVC decoder role.
func (d *Decoder) SetRole(role string) error {
	if role != roleAVC {
		return fmt.Errorf("%w: role %q", ErrBadParameter, role)
	}
	return nil
}

// OutputCrop returns the crop rectangle of the output port.
func (d *Decoder) OutputCrop(port int) (Rect, error) {
	if port != OutputPort {
		return Rect{}, ErrBadPortIndex
	}
	return d.stream.Crop, nil
}

// SetNativeBuffers switches the output port between plain memory and
// graphic buffers. Native mode requires a Mapper.
func (d *Decoder) SetNativeBuffers(port int, enable bool) error {
	if port != OutputPort {
		return ErrBadPortIndex
	}
	if enable && d.cfg.Mapper == nil {
		return fmt.Errorf("%w: native buffers need a mapper", ErrBadParameter)
	}
	d.native = enable
	return nil
}

// NativeBuffers reports whether the output port uses graphic buffers.
func (d *Decoder) NativeBuffers() bool { return d.native }

// NativeBufferUsage returns the graphic buffer usage bits output buffers must
// be allocated with for the live engine.
func (d *Decoder) NativeBufferUsage(port int) (NativeBufferUsage, error) {
	if port != OutputPort {
		return 0, ErrBadPortIndex
	}
	return d.binding.backend.NativeBufferUsage(), nil
}
