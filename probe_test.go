package avcdec

import (
	"bytes"
	"errors"
	"math/bits"
	"testing"
)

// bitWriter writes MSB-first bit strings with Exp-Golomb codes.
type bitWriter struct {
	buf []byte
	n   int
}

func (w *bitWriter) bit(b uint) {
	if w.n%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if b != 0 {
		w.buf[len(w.buf)-1] |= 0x80 >> (w.n % 8)
	}
	w.n++
}

func (w *bitWriter) bits(v uint, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bit((v >> i) & 1)
	}
}

func (w *bitWriter) ue(v uint) {
	v++
	n := bits.Len(v)
	w.bits(0, n-1)
	w.bits(v, n)
}

// buildSPS returns an SPS NAL unit (header included) for a progressive
// stream with whole-macroblock geometry and no VUI.
func buildSPS(profile ProfileIDC, level uint, width, height int) []byte {
	w := &bitWriter{}
	w.bits(0x67, 8)
	w.bits(uint(profile), 8)
	w.bits(0, 8) // constraint flags
	w.bits(level, 8)
	w.ue(0) // seq_parameter_set_id
	if profile == ProfileIDCHigh {
		w.ue(1) // chroma_format_idc
		w.ue(0) // bit_depth_luma_minus8
		w.ue(0) // bit_depth_chroma_minus8
		w.bit(0)
		w.bit(0) // seq_scaling_matrix_present_flag
	}
	w.ue(0) // log2_max_frame_num_minus4
	w.ue(0) // pic_order_cnt_type
	w.ue(0) // log2_max_pic_order_cnt_lsb_minus4
	w.ue(1) // max_num_ref_frames
	w.bit(0)
	w.ue(uint(width/16 - 1))
	w.ue(uint(height/16 - 1))
	w.bit(1) // frame_mbs_only_flag
	w.bit(1) // direct_8x8_inference_flag
	w.bit(0) // frame_cropping_flag
	w.bit(0) // vui_parameters_present_flag
	w.bit(1) // rbsp_stop_one_bit
	return append(w.buf, 0, 0)
}

func TestProbeSPS(t *testing.T) {
	tests := []struct {
		name          string
		profile       ProfileIDC
		level         uint
		width, height int
	}{
		{"baseline qvga", ProfileIDCBaseline, 30, 320, 240},
		{"baseline hd", ProfileIDCBaseline, 31, 1280, 720},
		{"high hd", ProfileIDCHigh, 40, 1280, 720},
		{"main pal", ProfileIDCMain, 30, 720, 576},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ProbeSPS(buildSPS(tt.profile, tt.level, tt.width, tt.height))
			if err != nil {
				t.Fatalf("ProbeSPS() error = %v", err)
			}
			want := SequenceInfo{Profile: tt.profile, Level: int(tt.level), Width: tt.width, Height: tt.height}
			if info != want {
				t.Errorf("ProbeSPS() = %+v, want %+v", info, want)
			}
		})
	}
}

func TestProbeSPS_NotSPS(t *testing.T) {
	if _, err := ProbeSPS([]byte{0x68, 0xce, 0x3c, 0x80}); !errors.Is(err, ErrBadParameter) {
		t.Errorf("ProbeSPS(pps) error = %v, want %v", err, ErrBadParameter)
	}
	if _, err := ProbeSPS(nil); !errors.Is(err, ErrBadParameter) {
		t.Errorf("ProbeSPS(nil) error = %v, want %v", err, ErrBadParameter)
	}
}

func TestProbeAnnexB(t *testing.T) {
	sps := buildSPS(ProfileIDCHigh, 40, 1280, 720)

	var data []byte
	data = append(data, 0, 0, 1, 0x09, 0xf0) // access unit delimiter, 3-byte start code
	data = appendAnnexB(data, sps)
	data = appendAnnexB(data, []byte{0x68, 0xce, 0x3c, 0x80})

	info, ok := ProbeAnnexB(data)
	if !ok {
		t.Fatal("ProbeAnnexB() found no SPS")
	}
	if info.Width != 1280 || info.Height != 720 || info.Profile != ProfileIDCHigh {
		t.Errorf("ProbeAnnexB() = %+v", info)
	}

	if _, ok := ProbeAnnexB(appendAnnexB(nil, []byte{0x65, 0x88, 0x84})); ok {
		t.Error("ProbeAnnexB() found an SPS in an IDR-only unit")
	}
}

func TestSplitAnnexB(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want [][]byte
	}{
		{"empty", nil, nil},
		{"no start code", []byte{0x65, 0x01}, nil},
		{"four byte", []byte{0, 0, 0, 1, 0x67, 0x42, 0, 0, 0, 1, 0x68, 0xce}, [][]byte{{0x67, 0x42}, {0x68, 0xce}}},
		{"three byte", []byte{0, 0, 1, 0x65, 0x88, 0, 0, 1, 0x41, 0x9a}, [][]byte{{0x65, 0x88}, {0x41, 0x9a}}},
		{"mixed", []byte{0, 0, 0, 1, 0x09, 0xf0, 0, 0, 1, 0x65}, [][]byte{{0x09, 0xf0}, {0x65}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitAnnexB(tt.data)
			if len(got) != len(tt.want) {
				t.Fatalf("splitAnnexB() = %x, want %x", got, tt.want)
			}
			for i := range got {
				if !bytes.Equal(got[i], tt.want[i]) {
					t.Errorf("NAL %d = %x, want %x", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDecoder_ProbeSchedulesSwapBeforeDecode(t *testing.T) {
	hw := &fakeEngine{info: testInfo()}
	sw := &fakeEngine{info: testInfo()}
	var swOpens int

	cfg := testConfig(map[Backend]EngineFactory{
		BackendHardware: hw.factory(nil),
		BackendSoftware: sw.factory(&swOpens),
	})
	cfg.Backend = BackendAuto
	cfg.ProbeInput = true

	rec := &recorder{}
	d, err := NewDecoder(cfg, rec)
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	defer d.Close()

	mustQueueOutput(t, d, mustAllocate(t, d, 1)...)
	unit := &InputUnit{Data: appendAnnexB(nil, buildSPS(ProfileIDCHigh, 40, 1280, 720)), Flags: FlagCodecConfig}
	mustQueueInput(t, d, unit)

	if hw.decodes() != 0 {
		t.Errorf("hardware decodes = %d, want 0", hw.decodes())
	}
	if swOpens != 1 || d.Backend() != BackendSoftware {
		t.Fatalf("opens = %d backend = %v, want 1 software", swOpens, d.Backend())
	}
	if sw.decodes() != 1 || !bytes.Equal(sw.streams[0], unit.Data) {
		t.Errorf("software did not decode the probed unit")
	}
}

func TestDecoder_ProbeIgnoresAdmittedStream(t *testing.T) {
	hw := &fakeEngine{info: testInfo()}
	cfg := testConfig(map[Backend]EngineFactory{BackendHardware: hw.factory(nil)})
	cfg.Backend = BackendHardware
	cfg.ProbeInput = true

	d, err := NewDecoder(cfg, nil)
	if err != nil {
		t.Fatalf("NewDecoder() error = %v", err)
	}
	defer d.Close()

	mustQueueOutput(t, d, mustAllocate(t, d, 1)...)
	mustQueueInput(t, d, &InputUnit{Data: appendAnnexB(nil, buildSPS(ProfileIDCBaseline, 30, 640, 480))})

	if hw.decodes() != 1 || d.Backend() != BackendHardware {
		t.Errorf("decodes = %d backend = %v, want 1 hardware", hw.decodes(), d.Backend())
	}
}
