package avcdec

import (
	"fmt"

	"github.com/nareix/joy4/codec/h264parser"
)

// SequenceInfo is the stream description carried by an SPS.
type SequenceInfo struct {
	Profile ProfileIDC
	Level   int
	Width   int
	Height  int
}

// ProbeSPS parses one SPS NAL unit, header byte included.
func ProbeSPS(nalu []byte) (SequenceInfo, error) {
	if nalType(nalu) != nalTypeSPS {
		return SequenceInfo{}, fmt.Errorf("%w: NAL type %d is not an SPS", ErrBadParameter, nalType(nalu))
	}

	sps, err := h264parser.ParseSPS(nalu)
	if err != nil {
		return SequenceInfo{}, fmt.Errorf("parse SPS: %w", err)
	}
	return SequenceInfo{
		Profile: ProfileIDC(sps.ProfileIdc),
		Level:   int(sps.LevelIdc),
		Width:   int(sps.Width),
		Height:  int(sps.Height),
	}, nil
}

// ProbeAnnexB returns the first parseable SPS in Annex B data.
func ProbeAnnexB(data []byte) (SequenceInfo, bool) {
	for _, nalu := range splitAnnexB(data) {
		if nalType(nalu) != nalTypeSPS {
			continue
		}
		if info, err := ProbeSPS(nalu); err == nil {
			return info, true
		}
	}
	return SequenceInfo{}, false
}

// probe schedules the fallback swap from the SPS of a queued unit, before
// the hardware engine sees content it cannot decode.
func (d *Decoder) probe(u *InputUnit) {
	active := d.binding.backend
	if active.Fallback() == BackendAuto || d.stream.HeadersDecoded || d.fallback.pending {
		return
	}

	info, ok := ProbeAnnexB(u.Remaining())
	if !ok {
		return
	}
	if d.fallback.check(active, info.Width, info.Height, info.Profile) {
		d.log.Infof("SPS %dx%d %s exceeds %s engine, scheduling %s",
			info.Width, info.Height, info.Profile, active, active.Fallback())
	}
}
