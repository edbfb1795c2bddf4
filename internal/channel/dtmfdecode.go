package channel

// dtmfLowFreqs and dtmfHighFreqs are the eight tones a standard DTMF
// keypad multiplexes two of per digit (one row, one column).
var dtmfLowFreqs = [4]float64{697, 770, 852, 941}
var dtmfHighFreqs = [4]float64{1209, 1336, 1477, 1633}

var dtmfDigits = [4][4]byte{
	{'1', '2', '3', 'A'},
	{'4', '5', '6', 'B'},
	{'7', '8', '9', 'C'},
	{'*', '0', '#', 'D'},
}

// dtmfBlockSamples is the analysis window: 8kHz/205 samples is ~25.6ms,
// long enough to resolve the 1200Hz-ish row/column tones and short enough
// that a minimum 40ms DTMF digit spans several consecutive blocks.
const dtmfBlockSamples = 205

// dtmfMinHits is how many consecutive qualifying blocks are required
// before a digit is declared begun; this is the same debounce idea
// tone_detect_state_t uses for the burst tone, applied here against
// single-block false positives. The end is not debounced: a digit is
// declared ended on the first block that no longer qualifies for it.
const dtmfMinHits = 2

// DTMFDecoder is a real dual-tone Goertzel decoder bank: it estimates the
// energy of all eight DTMF tones against a rolling block of PCM16 samples
// and reports begin/end edges for whichever row/column pair dominates.
// It does not replicate Asterisk's twist/threshold tuning exactly; see
// the design notes for the deliberate simplifications.
type DTMFDecoder struct {
	sampleRate float64
	low        [4]*goertzel
	high       [4]*goertzel
	buf        []int16
	current    byte
	hits       int
	active     bool
}

// NewDTMFDecoder builds a decoder for a channel sampled at sampleRate Hz.
func NewDTMFDecoder(sampleRate float64) *DTMFDecoder {
	d := &DTMFDecoder{sampleRate: sampleRate}
	for i, f := range dtmfLowFreqs {
		d.low[i] = newGoertzel(f, sampleRate)
	}
	for i, f := range dtmfHighFreqs {
		d.high[i] = newGoertzel(f, sampleRate)
	}
	return d
}

// DTMFEdge reports a digit transition found while feeding samples.
type DTMFEdge struct {
	Digit byte
	Begin bool // true for begin, false for end
}

// Feed appends samples to the decoder's pending block and evaluates the
// tone bank each time a full block accumulates, returning any begin/end
// edges produced (normally zero or one per call for a real-time stream).
func (d *DTMFDecoder) Feed(samples []int16) []DTMFEdge {
	var edges []DTMFEdge
	d.buf = append(d.buf, samples...)
	for len(d.buf) >= dtmfBlockSamples {
		block := d.buf[:dtmfBlockSamples]
		d.buf = d.buf[dtmfBlockSamples:]
		if edge, ok := d.evalBlock(block); ok {
			edges = append(edges, edge)
		}
	}
	return edges
}

func (d *DTMFDecoder) evalBlock(block []int16) (DTMFEdge, bool) {
	for _, g := range d.low {
		g.reset()
	}
	for _, g := range d.high {
		g.reset()
	}
	for _, s := range block {
		f := float64(s)
		for _, g := range d.low {
			g.sample(f)
		}
		for _, g := range d.high {
			g.sample(f)
		}
	}

	bestLow, bestLowMag := 0, 0.0
	for i, g := range d.low {
		if m := g.magnitudeSquared(); m > bestLowMag {
			bestLow, bestLowMag = i, m
		}
	}
	bestHigh, bestHighMag := 0, 0.0
	for i, g := range d.high {
		if m := g.magnitudeSquared(); m > bestHighMag {
			bestHigh, bestHighMag = i, m
		}
	}

	// Require the strongest row tone and the strongest column tone to each
	// clear a fixed energy gate; their neighbors' energy is not compared.
	qualifies := bestLowMag > 1e6 && bestHighMag > 1e6

	var digit byte
	if qualifies {
		digit = dtmfDigits[bestLow][bestHigh]
	}

	if qualifies && digit == d.current {
		d.hits++
	} else if qualifies {
		d.current = digit
		d.hits = 1
	} else {
		d.hits = 0
	}

	switch {
	case !d.active && qualifies && d.hits >= dtmfMinHits:
		d.active = true
		return DTMFEdge{Digit: digit, Begin: true}, true
	case d.active && (!qualifies || digit != d.current):
		d.active = false
		ended := d.current
		if !qualifies {
			d.hits = 0
		}
		return DTMFEdge{Digit: ended, Begin: false}, true
	}
	return DTMFEdge{}, false
}
