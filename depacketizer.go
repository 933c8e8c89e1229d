package avcdec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// videoClockRate is the RTP clock of H.264 payloads.
const videoClockRate = 90000

var errMalformedPayload = errors.New("malformed H.264 payload")

// RTPDepacketizer reassembles H.264 access units from RTP packets (single
// NAL unit, STAP-A and FU-A payloads) into Annex B input units.
type RTPDepacketizer struct {
	payload     codecs.H264Packet // Emits Annex B, holds FU-A fragments
	unit        []byte            // Annex B data of the current access unit
	fragmenting bool              // Inside an FU-A sequence
	timestamp   uint32            // RTP timestamp of the current access unit
	flags       BufferFlags       // Flags accumulated for the current access unit
	started     bool
	mu          sync.Mutex
}

// NewRTPDepacketizer creates an RTP depacketizer.
func NewRTPDepacketizer() *RTPDepacketizer {
	return &RTPDepacketizer{}
}

// Push consumes one packet and returns a unit when the marker bit closes an
// access unit. Units that contain only parameter sets carry FlagCodecConfig;
// units with an IDR slice carry FlagSyncFrame.
func (d *RTPDepacketizer) Push(pkt *rtp.Packet) (*InputUnit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(pkt.Payload) == 0 {
		return nil, nil
	}

	// A new timestamp starts a new access unit even without a marker.
	if d.started && d.timestamp != pkt.Timestamp {
		d.reset()
	}
	d.timestamp = pkt.Timestamp
	d.started = true

	// Fragments whose start was lost are skipped.
	if nalType(pkt.Payload) == nalTypeFUA && len(pkt.Payload) >= 2 {
		header := pkt.Payload[1]
		if header&0x80 != 0 {
			d.payload = codecs.H264Packet{}
			d.fragmenting = true
		}
		if !d.fragmenting {
			return nil, nil
		}
		if header&0x40 != 0 {
			d.fragmenting = false
		}
	}

	annexB, err := d.payload.Unmarshal(pkt.Payload)
	if err != nil {
		d.fragmenting = false
		return nil, fmt.Errorf("%w: %v", errMalformedPayload, err)
	}
	for _, nalu := range splitAnnexB(annexB) {
		d.appendNALU(nalu)
	}

	if !pkt.Marker || len(d.unit) == 0 {
		return nil, nil
	}

	u := &InputUnit{
		Data:      make([]byte, len(d.unit)),
		Timestamp: rtpToMicros(d.timestamp),
		Flags:     d.flags,
	}
	copy(u.Data, d.unit)
	d.reset()
	return u, nil
}

func (d *RTPDepacketizer) appendNALU(nalu []byte) {
	switch t := nalType(nalu); t {
	case nalTypeIDR:
		d.flags |= FlagSyncFrame
		d.flags &^= FlagCodecConfig
	case nalTypeSPS, nalTypePPS:
		if len(d.unit) == 0 {
			d.flags |= FlagCodecConfig
		}
	default:
		d.flags &^= FlagCodecConfig
	}
	d.unit = appendAnnexB(d.unit, nalu)
}

func (d *RTPDepacketizer) reset() {
	d.unit = d.unit[:0]
	d.payload = codecs.H264Packet{}
	d.fragmenting = false
	d.flags = 0
}

// Reset drops any partially assembled access unit.
func (d *RTPDepacketizer) Reset() {
	d.mu.Lock()
	d.reset()
	d.started = false
	d.timestamp = 0
	d.mu.Unlock()
}

// rtpToMicros converts a 90 kHz RTP timestamp to microseconds.
func rtpToMicros(ts uint32) int64 {
	return int64(ts) * 1_000_000 / videoClockRate
}
