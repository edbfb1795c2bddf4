package channel

// BurstDetector watches an incoming voice stream for a single-frequency
// "Rx burst" tone, the same trailing confirmation tone app_rpt used on
// duplex=0/1 links as an alternative to reliable inband COS: the remote
// end holds the tone up for the whole transmission, and the repeater
// treats its disappearance (not its presence) as "now keyed" — a
// transmission only counts once the tone has been seen and gone again.
type BurstDetector struct {
	tone        *toneDetectState
	wasPresent  bool
	everPresent bool
}

// NewBurstDetector configures a detector for freqHz at minDurationMS,
// thresholdDB above the noise floor, against a channel sampled at
// sampleRate Hz. Pass the NodeConfig rxburstfreq/rxbursttime/
// rxburstthreshold values directly.
func NewBurstDetector(freqHz float64, minDurationMS int, thresholdDB float64, sampleRate float64) *BurstDetector {
	return &BurstDetector{tone: newToneDetectState(freqHz, minDurationMS, thresholdDB, sampleRate)}
}

// Feed processes one block of PCM16 samples and reports whether the burst
// tone has just ended after having been detected, the edge the original
// controller keyed its "now keyed after Rx Burst" transition on.
func (b *BurstDetector) Feed(samples []int16) (becameKeyed bool) {
	present := b.tone.feed(samples)
	if present {
		b.everPresent = true
	}
	becameKeyed = b.everPresent && b.wasPresent && !present
	if becameKeyed {
		b.everPresent = false
	}
	b.wasPresent = present
	return becameKeyed
}
