package avcdec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nareix/joy4/codec/h264parser"
	"github.com/pion/logging"
	"github.com/yutopp/go-rtmp"
	rtmpmsg "github.com/yutopp/go-rtmp/message"
)

// FLV video tag fields
const (
	flvCodecAVC          = 7
	flvFrameKey          = 1
	flvAVCSequenceHeader = 0
	flvAVCNALU           = 1
	flvAVCEndOfSequence  = 2
)

var errShortTag = errors.New("FLV video tag too short")

// UnitSink receives the units produced by an ingest adapter.
// *Component implements it.
type UnitSink interface {
	EmptyThisBuffer(u *InputUnit) error
}

var _ UnitSink = (*Component)(nil)

// RTMPHandler is a go-rtmp handler that turns a published AVC stream into
// Annex B input units. The sequence header is queued as a codec-config unit;
// the end of the stream (end-of-sequence tag or connection close) queues
// one EOS unit.
type RTMPHandler struct {
	rtmp.DefaultHandler

	sink UnitSink
	log  logging.LeveledLogger

	mu         sync.Mutex
	publishing bool
	lengthSize int
	eosSent    bool
}

// NewRTMPHandler creates a handler feeding sink.
func NewRTMPHandler(sink UnitSink, lf logging.LoggerFactory) *RTMPHandler {
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &RTMPHandler{
		sink: sink,
		log:  lf.NewLogger("avcdec-rtmp"),
	}
}

func (h *RTMPHandler) OnPublish(_ *rtmp.StreamContext, _ uint32, cmd *rtmpmsg.NetStreamPublish) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.publishing {
		return fmt.Errorf("stream already publishing")
	}
	h.publishing = true
	h.eosSent = false
	h.lengthSize = 0
	h.log.Infof("publish %q", cmd.PublishingName)
	return nil
}

func (h *RTMPHandler) OnVideo(timestamp uint32, payload io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, payload); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.publishing || h.eosSent {
		return nil
	}

	u, err := h.parseTag(timestamp, buf.Bytes())
	if err != nil {
		h.log.Warnf("drop video tag at %dms: %v", timestamp, err)
		return nil
	}
	if u == nil {
		return nil
	}
	if u.EOS() {
		h.eosSent = true
	}
	return h.sink.EmptyThisBuffer(u)
}

func (h *RTMPHandler) OnClose() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.publishing && !h.eosSent {
		h.eosSent = true
		if err := h.sink.EmptyThisBuffer(&InputUnit{Flags: FlagEOS}); err != nil {
			h.log.Warnf("queue end of stream: %v", err)
		}
	}
	h.publishing = false
	h.log.Infof("connection closed")
}

// parseTag converts one FLV video tag body. Non-AVC tags yield no unit.
func (h *RTMPHandler) parseTag(timestamp uint32, data []byte) (*InputUnit, error) {
	if len(data) < 5 {
		return nil, errShortTag
	}

	frameType := data[0] >> 4
	if data[0]&0x0F != flvCodecAVC {
		return nil, nil
	}

	// Composition time offset, signed 24-bit milliseconds.
	cts := int32(uint32(data[2])<<16|uint32(data[3])<<8|uint32(data[4])) << 8 >> 8
	pts := (int64(timestamp) + int64(cts)) * 1000
	body := data[5:]

	switch data[1] {
	case flvAVCSequenceHeader:
		var conf h264parser.AVCDecoderConfRecord
		if _, err := conf.Unmarshal(body); err != nil {
			return nil, err
		}
		h.lengthSize = int(conf.LengthSizeMinusOne) + 1

		var out []byte
		for _, sps := range conf.SPS {
			out = appendAnnexB(out, sps)
		}
		for _, pps := range conf.PPS {
			out = appendAnnexB(out, pps)
		}
		return &InputUnit{Data: out, Timestamp: pts, Flags: FlagCodecConfig}, nil

	case flvAVCNALU:
		if h.lengthSize == 0 {
			return nil, errors.New("NALU tag before sequence header")
		}
		out, err := avccToAnnexB(body, h.lengthSize)
		if err != nil {
			return nil, err
		}
		u := &InputUnit{Data: out, Timestamp: pts}
		if frameType == flvFrameKey {
			u.Flags |= FlagSyncFrame
		}
		return u, nil

	case flvAVCEndOfSequence:
		return &InputUnit{Timestamp: pts, Flags: FlagEOS}, nil
	}
	return nil, fmt.Errorf("unknown AVC packet type %d", data[1])
}

// avccToAnnexB rewrites length-prefixed NAL units with start codes.
func avccToAnnexB(data []byte, lengthSize int) ([]byte, error) {
	out := make([]byte, 0, len(data)+16)
	for offset := 0; offset < len(data); {
		if offset+lengthSize > len(data) {
			return nil, fmt.Errorf("truncated NAL length at %d", offset)
		}
		var n int
		for _, b := range data[offset : offset+lengthSize] {
			n = n<<8 | int(b)
		}
		offset += lengthSize

		if n == 0 || offset+n > len(data) {
			return nil, fmt.Errorf("bad NAL length %d at %d", n, offset)
		}
		out = appendAnnexB(out, data[offset:offset+n])
		offset += n
	}
	return out, nil
}
