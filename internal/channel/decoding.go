package channel

// DecodingChannel wraps a Channel that only ever hands back FrameVoice
// and FrameControl frames (a raw rig/telephony feed with no inband
// signaling decode of its own) and synthesizes FrameDTMFBegin/End,
// FrameMDC1200, and FrameBurstKeyed frames from the voice stream before
// passing every frame through to the caller. Burst detection is gated by
// keyed, mirroring the original's "ignore rx burst unless reallykeyed"
// behavior; Voice frames are always passed through unmodified.
type DecodingChannel struct {
	inner Channel

	dtmf  *DTMFDecoder
	mdc   *MDC1200Decoder
	burst *BurstDetector

	keyed bool
	queue []Frame
}

// NewDecodingChannel builds a DecodingChannel over inner. burst may be
// nil when the node has no rxburstfreq configured (the common case).
func NewDecodingChannel(inner Channel, sampleRate float64, burst *BurstDetector) *DecodingChannel {
	return &DecodingChannel{
		inner: inner,
		dtmf:  NewDTMFDecoder(sampleRate),
		mdc:   NewMDC1200Decoder(sampleRate),
		burst: burst,
	}
}

// SetKeyed tells the decoder whether the channel is currently
// considered keyed, so burst-tone analysis can be suppressed exactly
// like the original discarded burst-tone samples when !reallykeyed.
func (d *DecodingChannel) SetKeyed(keyed bool) { d.keyed = keyed }

// Read returns the next frame: either one queued by a prior voice frame's
// DSP synthesis, or the next frame off the inner channel (itself queuing
// any synthesized frames it produces).
func (d *DecodingChannel) Read() (Frame, error) {
	for len(d.queue) == 0 {
		f, err := d.inner.Read()
		if err != nil {
			return Frame{}, err
		}
		d.queue = append(d.queue, f)
		if f.Kind == FrameVoice {
			d.queue = append(d.queue, d.synthesize(f)...)
		}
	}
	f := d.queue[0]
	d.queue = d.queue[1:]
	return f, nil
}

func (d *DecodingChannel) synthesize(f Frame) []Frame {
	var out []Frame
	for _, e := range d.dtmf.Feed(f.Voice) {
		kind := FrameDTMFEnd
		if e.Begin {
			kind = FrameDTMFBegin
		}
		out = append(out, Frame{Kind: kind, Digit: e.Digit, At: f.At})
	}
	for _, p := range d.mdc.Feed(f.Voice) {
		out = append(out, Frame{Kind: FrameMDC1200, MDC: p, At: f.At})
	}
	if d.burst != nil && d.keyed {
		if d.burst.Feed(f.Voice) {
			out = append(out, Frame{Kind: FrameBurstKeyed, At: f.At})
		}
	}
	return out
}

// Write implements Channel by forwarding to the inner channel unchanged.
func (d *DecodingChannel) Write(f Frame) error { return d.inner.Write(f) }

// Close implements Channel by closing the inner channel.
func (d *DecodingChannel) Close() error { return d.inner.Close() }
