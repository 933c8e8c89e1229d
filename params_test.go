package avcdec

import (
	"errors"
	"testing"
)

func TestDecoder_PortDefinitions(t *testing.T) {
	d, _ := newSoftwareDecoder(t, &fakeEngine{info: testInfo()})

	in, err := d.PortDefinition(InputPort)
	if err != nil {
		t.Fatalf("PortDefinition(input) error = %v", err)
	}
	if in.Dir != DirInput || in.MimeType != "video/avc" || in.Coding != CodingAVC {
		t.Errorf("input = %+v", in)
	}
	if in.BufferSize != DefaultInputBufferSize || in.BufferCountMin != 1 || !in.Enabled {
		t.Errorf("input buffers = size %d min %d enabled %v", in.BufferSize, in.BufferCountMin, in.Enabled)
	}

	out, err := d.PortDefinition(OutputPort)
	if err != nil {
		t.Fatalf("PortDefinition(output) error = %v", err)
	}
	if out.Dir != DirOutput || out.Color != ColorFormatYUV420SemiPlanar || out.Coding != CodingUnused {
		t.Errorf("output = %+v", out)
	}
	if out.Width != DefaultWidth || out.Height != DefaultHeight || out.Stride != DefaultWidth {
		t.Errorf("output geometry = %dx%d stride %d", out.Width, out.Height, out.Stride)
	}
	if out.BufferSize != FrameSize(DefaultWidth, DefaultHeight) {
		t.Errorf("output BufferSize = %d", out.BufferSize)
	}
	if out.BufferCountMin != DefaultOutputBufferMin || out.BufferCountActual != DefaultOutputBufferCount {
		t.Errorf("output counts = min %d actual %d", out.BufferCountMin, out.BufferCountActual)
	}

	if _, err := d.PortDefinition(2); !errors.Is(err, ErrBadPortIndex) {
		t.Errorf("PortDefinition(2) error = %v, want %v", err, ErrBadPortIndex)
	}
}

func TestDecoder_SetPortDefinition(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(def *PortDefinition)
		port    int
		wantErr error
		check   func(t *testing.T, d *Decoder)
	}{
		{
			name:    "count below minimum",
			port:    OutputPort,
			mutate:  func(def *PortDefinition) { def.BufferCountActual = 1 },
			wantErr: ErrBadParameter,
		},
		{
			name:    "buffer shrink",
			port:    InputPort,
			mutate:  func(def *PortDefinition) { def.BufferSize = 1024 },
			wantErr: ErrBadParameter,
		},
		{
			name:   "input grow",
			port:   InputPort,
			mutate: func(def *PortDefinition) { def.BufferSize = 512 * 1024; def.BufferCountActual = 4 },
			check: func(t *testing.T, d *Decoder) {
				in, _ := d.PortDefinition(InputPort)
				if in.BufferSize != 512*1024 || in.BufferCountActual != 4 {
					t.Errorf("input = size %d count %d", in.BufferSize, in.BufferCountActual)
				}
			},
		},
		{
			name:   "output geometry",
			port:   OutputPort,
			mutate: func(def *PortDefinition) { def.Width, def.Height = 1000, 562 },
			check: func(t *testing.T, d *Decoder) {
				out, _ := d.PortDefinition(OutputPort)
				if out.Stride != 1000 || out.SliceHeight != 562 {
					t.Errorf("stride %d slice %d, want 1000 562", out.Stride, out.SliceHeight)
				}
				// 1008x576 aligned, 4:2:0
				if want := 1008 * 576 * 3 / 2; out.BufferSize != want {
					t.Errorf("BufferSize = %d, want %d", out.BufferSize, want)
				}
				crop, _ := d.OutputCrop(OutputPort)
				if crop != (Rect{Width: 1000, Height: 562}) {
					t.Errorf("crop = %+v", crop)
				}
				if st := d.Stream(); st.Width != 1000 || st.FrameSize != out.BufferSize {
					t.Errorf("stream = %+v", st)
				}
			},
		},
		{
			name:    "bad port",
			port:    3,
			mutate:  func(def *PortDefinition) { def.Index = 3 },
			wantErr: ErrBadPortIndex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newSoftwareDecoder(t, &fakeEngine{info: testInfo()})

			def, _ := d.PortDefinition(tt.port % 2)
			tt.mutate(&def)
			err := d.SetPortDefinition(def)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SetPortDefinition() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetPortDefinition() error = %v", err)
			}
			tt.check(t, d)
		})
	}
}

func TestDecoder_PortFormat(t *testing.T) {
	d, _ := newSoftwareDecoder(t, &fakeEngine{info: testInfo()})

	tests := []struct {
		port, index int
		want        PortFormat
		wantErr     error
	}{
		{InputPort, 0, PortFormat{Port: InputPort, Coding: CodingAVC, Color: ColorFormatUnused}, nil},
		{OutputPort, 0, PortFormat{Port: OutputPort, Coding: CodingUnused, Color: ColorFormatYUV420SemiPlanar}, nil},
		{InputPort, 1, PortFormat{}, ErrNoMore},
		{OutputPort, 1, PortFormat{}, ErrNoMore},
		{7, 0, PortFormat{}, ErrBadPortIndex},
	}

	for _, tt := range tests {
		got, err := d.PortFormat(tt.port, tt.index)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("PortFormat(%d, %d) error = %v, want %v", tt.port, tt.index, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("PortFormat(%d, %d) = %+v, want %+v", tt.port, tt.index, got, tt.want)
		}
	}

	if err := d.SetPortFormat(OutputPort, 0); err != nil {
		t.Errorf("SetPortFormat(output, 0) error = %v", err)
	}
	if err := d.SetPortFormat(OutputPort, 1); !errors.Is(err, ErrNoMore) {
		t.Errorf("SetPortFormat(output, 1) error = %v, want %v", err, ErrNoMore)
	}
}

func TestDecoder_ProfileLevel(t *testing.T) {
	d, _ := newSoftwareDecoder(t, &fakeEngine{info: testInfo()})

	tests := []struct {
		port, index int
		want        ProfileLevel
		wantErr     error
	}{
		{InputPort, 0, ProfileLevel{AVCProfileBaseline, AVCLevel1}, nil},
		{InputPort, 15, ProfileLevel{AVCProfileBaseline, AVCLevel51}, nil},
		{InputPort, 16, ProfileLevel{AVCProfileMain, AVCLevel1}, nil},
		{InputPort, 40, ProfileLevel{AVCProfileHigh, AVCLevel3}, nil},
		{InputPort, 47, ProfileLevel{AVCProfileHigh, AVCLevel51}, nil},
		{InputPort, 48, ProfileLevel{}, ErrNoMore},
		{InputPort, -1, ProfileLevel{}, ErrNoMore},
		{OutputPort, 0, ProfileLevel{}, ErrUnsupportedIndex},
	}

	for _, tt := range tests {
		got, err := d.ProfileLevel(tt.port, tt.index)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ProfileLevel(%d, %d) error = %v, want %v", tt.port, tt.index, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ProfileLevel(%d, %d) = %v/%v, want %v/%v", tt.port, tt.index, got.Profile, got.Level, tt.want.Profile, tt.want.Level)
		}
	}
}

func TestDecoder_SetRole(t *testing.T) {
	d, _ := newSoftwareDecoder(t, &fakeEngine{info: testInfo()})

	if err := d.SetRole("video_decoder.avc"); err != nil {
		t.Errorf("SetRole(avc) error = %v", err)
	}
	if err := d.SetRole("video_decoder.hevc"); !errors.Is(err, ErrBadParameter) {
		t.Errorf("SetRole(hevc) error = %v, want %v", err, ErrBadParameter)
	}
}

func TestExtensionIndex(t *testing.T) {
	tests := []struct {
		name    string
		want    ParamIndex
		wantErr error
	}{
		{"com.sprd.index.enableNativeBuffers", IndexEnableNativeBuffers, nil},
		{"com.sprd.index.getNativeBufferUsage", IndexGetNativeBufferUsage, nil},
		{"com.sprd.index.useNativeBuffer2", IndexUseNativeBuffer, nil},
		{"com.example.index.unknown", IndexNone, ErrNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtensionIndex(tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ExtensionIndex() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtensionIndex() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecoder_NativeBufferUsage(t *testing.T) {
	d, _ := newSoftwareDecoder(t, &fakeEngine{info: testInfo()})

	usage, err := d.NativeBufferUsage(OutputPort)
	if err != nil {
		t.Fatalf("NativeBufferUsage() error = %v", err)
	}
	if !usage.Has(UsageSWReadOften|UsageSWWriteOften) || usage.Has(UsagePrivate0) {
		t.Errorf("software usage = %#x", usage)
	}
	if _, err := d.NativeBufferUsage(InputPort); !errors.Is(err, ErrBadPortIndex) {
		t.Errorf("NativeBufferUsage(input) error = %v, want %v", err, ErrBadPortIndex)
	}
	if _, err := d.OutputCrop(InputPort); !errors.Is(err, ErrBadPortIndex) {
		t.Errorf("OutputCrop(input) error = %v, want %v", err, ErrBadPortIndex)
	}
}
