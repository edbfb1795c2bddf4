package channel

import "math"

// goertzel is a single-bin Goertzel tone detector, the floating-point
// equivalent of the fixed-point goertzel_state_t/goertzel_sample/
// goertzel_result trio the original controller used to avoid an FFT for
// single-frequency energy estimation. The state carried between samples
// is the two delay registers q1/q2; reset clears them for the next block.
type goertzel struct {
	coeff float64
	q1    float64
	q2    float64
}

func newGoertzel(freq, sampleRate float64) *goertzel {
	return &goertzel{coeff: 2 * math.Cos(2*math.Pi*freq/sampleRate)}
}

func (g *goertzel) reset() { g.q1, g.q2 = 0, 0 }

func (g *goertzel) sample(x float64) {
	q0 := g.coeff*g.q1 - g.q2 + x
	g.q2 = g.q1
	g.q1 = q0
}

// magnitudeSquared returns the Goertzel power estimate for the block of
// samples fed since the last reset.
func (g *goertzel) magnitudeSquared() float64 {
	return g.q1*g.q1 + g.q2*g.q2 - g.q1*g.q2*g.coeff
}

// toneDetectState reproduces tone_detect_state_t's block/hit-count
// hysteresis: a tone only counts as present once hitsRequired consecutive
// blocks clear the energy threshold, and two consecutive misses clear the
// run, matching the original's debounce against noise bursts.
type toneDetectState struct {
	tone         *goertzel
	blockSize    int
	hitsRequired int
	threshold    float64 // Ew > Et*threshold, derived from the configured dB margin
	pending      int
	energy       float64
	hitCount     int
	lastHit      bool
}

// newToneDetectState mirrors tone_detect_init: freqHz is the tone to
// detect, durationMS/thresholdDB come straight from NodeConfig's
// rxbursttime/rxburstthreshold, and sampleRate is the channel's PCM rate
// (8000 for narrowband telephony audio, per the original TONE_SAMPLE_RATE).
func newToneDetectState(freqHz float64, durationMS int, thresholdDB float64, sampleRate float64) *toneDetectState {
	durationSamples := int(float64(durationMS) * sampleRate / 1000.0 * 0.9)

	periodsInBlock := int(float64(durationSamples) * freqHz / sampleRate)
	if periodsInBlock < 5 {
		periodsInBlock = 5
	}
	blockSize := int(float64(periodsInBlock) * sampleRate / freqHz)
	if blockSize < 1 {
		blockSize = 1
	}

	hitsRequired := (durationSamples - (blockSize - 1)) / blockSize
	if hitsRequired < 1 {
		hitsRequired = 1
	}

	x := math.Pow(10.0, thresholdDB/10.0)
	threshold := x / (x + 1)

	return &toneDetectState{
		tone:         newGoertzel(freqHz, sampleRate),
		blockSize:    blockSize,
		hitsRequired: hitsRequired,
		threshold:    threshold,
		pending:      blockSize,
	}
}

// feed processes one block of PCM16 samples (any length, split internally
// into blockSize chunks) and reports whether the tone has now been present
// for hitsRequired consecutive blocks.
func (s *toneDetectState) feed(amp []int16) (present bool) {
	present = s.hitCount >= s.hitsRequired
	i := 0
	for i < len(amp) {
		n := s.pending
		if n > len(amp)-i {
			n = len(amp) - i
		}
		for _, v := range amp[i : i+n] {
			f := float64(v)
			s.energy += f * f
			s.tone.sample(f)
		}
		i += n
		s.pending -= n
		if s.pending > 0 {
			break // incomplete final block, wait for more samples
		}

		toneEnergy := s.tone.magnitudeSquared() * 2.0
		totalEnergy := s.energy * float64(s.blockSize)

		hit := toneEnergy > totalEnergy*s.threshold
		if s.hitCount > 0 {
			s.hitCount++
		}
		if hit == s.lastHit {
			if !hit {
				s.hitCount = 0
			} else if s.hitCount == 0 {
				s.hitCount++
			}
		}
		present = s.hitCount >= s.hitsRequired
		s.lastHit = hit

		s.tone.reset()
		s.energy = 0
		s.pending = s.blockSize
	}
	return present
}
