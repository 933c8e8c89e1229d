package avcdec

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

type fakeTrack struct {
	pkts []*rtp.Packet
	err  error // Returned once pkts are exhausted
}

func (f *fakeTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	if len(f.pkts) == 0 {
		return nil, nil, f.err
	}
	p := f.pkts[0]
	f.pkts = f.pkts[1:]
	return p, interceptor.Attributes{}, nil
}

func singleNALPacket(seq uint16, ts uint32, nalu []byte) *rtp.Packet {
	return &rtp.Packet{
		Header:  rtp.Header{Version: 2, SequenceNumber: seq, Timestamp: ts, Marker: true},
		Payload: nalu,
	}
}

func TestFeedTrack(t *testing.T) {
	e := &fakeEngine{info: testInfo()}
	c := newTestComponent(t, e, nil)
	ctx, _ := startComponent(t, c)

	if err := c.FillThisBuffer(allocateSlot(t, ctx, c)); err != nil {
		t.Fatalf("FillThisBuffer() error = %v", err)
	}

	track := &fakeTrack{
		pkts: []*rtp.Packet{
			singleNALPacket(1, 0, []byte{0x65, 0x88, 0x84}),
			singleNALPacket(2, 1500, []byte{0x19, 0x00}), // STAP-B is dropped
			singleNALPacket(3, 3000, []byte{0x41, 0x9a, 0x01}),
		},
		err: io.EOF,
	}

	var requests int
	kf := KeyframeRequesterFunc(func() error {
		requests++
		return nil
	})

	if err := FeedTrack(ctx, track, c, kf); err != nil {
		t.Fatalf("FeedTrack() error = %v", err)
	}
	if requests != 1 {
		t.Errorf("keyframe requests = %d, want 1", requests)
	}

	var decodes int
	var eos EOSStatus
	err := c.Do(ctx, func(d *Decoder) error {
		decodes, eos = e.decodes(), d.EOS()
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if decodes != 2 {
		t.Errorf("decodes = %d, want 2", decodes)
	}
	if eos != EOSFlushed {
		t.Errorf("EOS() = %v, want %v", eos, EOSFlushed)
	}
}

func TestFeedTrack_Errors(t *testing.T) {
	errRead := errors.New("srtp failure")

	t.Run("read error", func(t *testing.T) {
		c := newTestComponent(t, &fakeEngine{info: testInfo()}, nil)
		ctx, _ := startComponent(t, c)

		err := FeedTrack(ctx, &fakeTrack{err: errRead}, c, nil)
		if !errors.Is(err, errRead) {
			t.Errorf("FeedTrack() error = %v, want %v", err, errRead)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		c := newTestComponent(t, &fakeEngine{info: testInfo()}, nil)
		startComponent(t, c)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := FeedTrack(ctx, &fakeTrack{err: io.EOF}, c, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("FeedTrack() error = %v, want %v", err, context.Canceled)
		}
	})

	t.Run("component closed", func(t *testing.T) {
		c := newTestComponent(t, &fakeEngine{info: testInfo()}, nil)
		c.Close()

		track := &fakeTrack{pkts: []*rtp.Packet{singleNALPacket(1, 0, []byte{0x65, 0x88})}, err: io.EOF}
		err := FeedTrack(context.Background(), track, c, nil)
		if !errors.Is(err, ErrClosed) {
			t.Errorf("FeedTrack() error = %v, want %v", err, ErrClosed)
		}
	})
}
