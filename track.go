package avcdec

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// TrackReader is a source of RTP packets such as *webrtc.TrackRemote.
type TrackReader interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

var _ TrackReader = (*webrtc.TrackRemote)(nil)

// KeyframeRequester asks the sender for an intra-refresh point.
type KeyframeRequester interface {
	RequestKeyframe() error
}

// KeyframeRequesterFunc adapts a function to KeyframeRequester.
type KeyframeRequesterFunc func() error

func (f KeyframeRequesterFunc) RequestKeyframe() error { return f() }

// PLIRequester requests keyframes with an RTCP picture loss indication for
// the remote track ssrc.
func PLIRequester(pc *webrtc.PeerConnection, ssrc webrtc.SSRC) KeyframeRequester {
	return KeyframeRequesterFunc(func() error {
		return pc.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(ssrc)},
		})
	})
}

// keyframeRequestInterval limits how often FeedTrack asks for a keyframe.
const keyframeRequestInterval = time.Second

// FeedTrack reads RTP from track, reassembles access units and queues them on
// c until ctx is done or the track ends. When the track ends an EOS unit is
// queued. While the decoder waits for an intra-refresh point, kf (if non-nil)
// is asked for a keyframe at most once per second.
//
// ReadRTP blocks; close the track to stop FeedTrack promptly.
func FeedTrack(ctx context.Context, track TrackReader, c *Component, kf KeyframeRequester) error {
	depack := NewRTPDepacketizer()
	var lastRequest time.Time

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkt, _, err := track.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return c.EmptyThisBuffer(&InputUnit{Flags: FlagEOS})
			}
			return err
		}

		unit, err := depack.Push(pkt)
		if err != nil {
			depack.Reset()
			continue
		}
		if unit == nil {
			continue
		}

		if kf != nil && c.NeedsIntra() && time.Since(lastRequest) >= keyframeRequestInterval {
			lastRequest = time.Now()
			_ = kf.RequestKeyframe()
		}

		if err := c.EmptyThisBuffer(unit); err != nil {
			return err
		}
	}
}
