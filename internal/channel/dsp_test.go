package channel

import (
	"math"
	"testing"
)

const testSampleRate = 8000.0

func synthTone(freqHz float64, sampleRate float64, n int, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/sampleRate))
	}
	return out
}

func synthSilence(n int) []int16 { return make([]int16, n) }

func TestDTMFDecoderDetectsDigitBeginAndEnd(t *testing.T) {
	d := NewDTMFDecoder(testSampleRate)

	// Digit '5' is row 770Hz / column 1336Hz. Feed several blocks of the
	// dual tone, enough to clear dtmfMinHits, then silence.
	tone := make([]int16, 0, dtmfBlockSamples*8)
	for i := 0; i < dtmfBlockSamples*8; i++ {
		f := 0.5*math.Sin(2*math.Pi*770*float64(i)/testSampleRate) +
			0.5*math.Sin(2*math.Pi*1336*float64(i)/testSampleRate)
		tone = append(tone, int16(f*20000))
	}

	var edges []DTMFEdge
	edges = append(edges, d.Feed(tone)...)
	edges = append(edges, d.Feed(synthSilence(dtmfBlockSamples*4))...)

	if len(edges) < 2 {
		t.Fatalf("expected a begin and end edge, got %+v", edges)
	}
	if !edges[0].Begin || edges[0].Digit != '5' {
		t.Fatalf("expected begin '5', got %+v", edges[0])
	}
	foundEnd := false
	for _, e := range edges[1:] {
		if !e.Begin && e.Digit == '5' {
			foundEnd = true
		}
	}
	if !foundEnd {
		t.Fatalf("expected an end edge for '5', got %+v", edges)
	}
}

func TestDTMFDecoderIgnoresSilence(t *testing.T) {
	d := NewDTMFDecoder(testSampleRate)
	edges := d.Feed(synthSilence(dtmfBlockSamples * 10))
	if len(edges) != 0 {
		t.Fatalf("expected no edges from silence, got %+v", edges)
	}
}

func TestBurstDetectorFiresOnToneThenSilence(t *testing.T) {
	b := NewBurstDetector(1050, 100, 2.5, testSampleRate)

	// Feed enough tone to satisfy hitsRequired, then silence; the edge
	// should fire once the tone disappears, not while it's present.
	toneBlock := synthTone(1050, testSampleRate, 4000, 20000)
	for i := 0; i+200 <= len(toneBlock); i += 200 {
		if b.Feed(toneBlock[i : i+200]) {
			t.Fatalf("burst fired while tone still present")
		}
	}

	fired := false
	silence := synthSilence(4000)
	for i := 0; i+200 <= len(silence); i += 200 {
		if b.Feed(silence[i : i+200]) {
			fired = true
			break
		}
	}
	if !fired {
		t.Fatalf("expected burst-keyed edge after tone ended")
	}
}

func TestBurstDetectorSilentStreamNeverFires(t *testing.T) {
	b := NewBurstDetector(1050, 100, 2.5, testSampleRate)
	silence := synthSilence(8000)
	for i := 0; i+200 <= len(silence); i += 200 {
		if b.Feed(silence[i : i+200]) {
			t.Fatalf("burst fired on a silent stream")
		}
	}
}

func TestMDC1200PacketClassify(t *testing.T) {
	p := MDC1200Packet{Op: 0x01, Arg: 0x00, UnitID: 0xBEEF}
	kind, hexID, ok := p.Classify()
	if !ok || kind != "ptt_id" || hexID != "BEEF" {
		t.Fatalf("expected ptt_id BEEF, got %q %q %v", kind, hexID, ok)
	}

	p2 := MDC1200Packet{Op: 0x00, Arg: 0x81, UnitID: 0x1234}
	kind2, _, ok2 := p2.Classify()
	if !ok2 || kind2 != "emergency" {
		t.Fatalf("expected emergency, got %q %v", kind2, ok2)
	}

	p3 := MDC1200Packet{Op: 0xFF, Arg: 0xFF}
	if _, _, ok3 := p3.Classify(); ok3 {
		t.Fatalf("expected unclassified op/arg to report ok=false")
	}
}

func TestMDC1200DecoderFeedWithoutSyncProducesNoPackets(t *testing.T) {
	d := NewMDC1200Decoder(testSampleRate)
	if pkts := d.Feed(synthSilence(4000)); len(pkts) != 0 {
		t.Fatalf("expected no packets from silence, got %+v", pkts)
	}
}

func TestDecodingChannelPassesThroughAndSynthesizesDTMF(t *testing.T) {
	inner := NewPseudo(8)
	dc := NewDecodingChannel(inner, testSampleRate, nil)

	tone := make([]int16, dtmfBlockSamples*8)
	for i := range tone {
		f := 0.5*math.Sin(2*math.Pi*697*float64(i)/testSampleRate) +
			0.5*math.Sin(2*math.Pi*1209*float64(i)/testSampleRate)
		tone[i] = int16(f * 20000)
	}
	inner.Inject(Frame{Kind: FrameVoice, Voice: tone})
	inner.Inject(Frame{Kind: FrameVoice, Voice: synthSilence(dtmfBlockSamples * 4)})

	var kinds []FrameKind
	for i := 0; i < 4; i++ {
		f, err := dc.Read()
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
		kinds = append(kinds, f.Kind)
	}

	sawBegin := false
	for _, k := range kinds {
		if k == FrameDTMFBegin {
			sawBegin = true
		}
	}
	if !sawBegin {
		t.Fatalf("expected a synthesized DTMF begin frame among %+v", kinds)
	}
}
