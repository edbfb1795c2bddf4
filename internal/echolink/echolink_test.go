package echolink

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestPendingAuthTableBeginVerify(t *testing.T) {
	tbl, err := NewPendingAuthTable(20)
	if err != nil {
		t.Fatalf("NewPendingAuthTable: %v", err)
	}
	tbl.Begin("1.2.3.4:1234", "W1AW", "nonce1")
	if !tbl.Verify("1.2.3.4:1234", "W1AW", "nonce1") {
		t.Fatal("expected verification to succeed")
	}
	// Verify clears the entry.
	if tbl.Verify("1.2.3.4:1234", "W1AW", "nonce1") {
		t.Fatal("expected second verify to fail, entry should be consumed")
	}
}

func TestPendingAuthTableRejectsMismatch(t *testing.T) {
	tbl, _ := NewPendingAuthTable(20)
	tbl.Begin("1.2.3.4:1234", "W1AW", "nonce1")
	if tbl.Verify("1.2.3.4:1234", "W1AW", "wrongnonce") {
		t.Fatal("expected mismatch to fail verification")
	}
}

func TestPendingAuthTableBounded(t *testing.T) {
	tbl, _ := NewPendingAuthTable(2)
	tbl.Begin("a", "X", "1")
	tbl.Begin("b", "Y", "2")
	tbl.Begin("c", "Z", "3")
	if tbl.Len() > 2 {
		t.Fatalf("expected bound of 2, got %d", tbl.Len())
	}
}

func TestDirectoryTripleIndexConsistency(t *testing.T) {
	d := NewDirectory()
	d.Add(DirectoryEntry{NodeNumber: 1000, Callsign: "W1AW-L", IP: net.ParseIP("1.2.3.4")})

	if _, ok := d.ByNode(1000); !ok {
		t.Fatal("expected lookup by node number")
	}
	if _, ok := d.ByCallsign("w1aw-l"); !ok {
		t.Fatal("expected case-insensitive callsign lookup")
	}
	if _, ok := d.ByIP(net.ParseIP("1.2.3.4")); !ok {
		t.Fatal("expected lookup by IP")
	}

	d.Remove(1000)
	if _, ok := d.ByNode(1000); ok {
		t.Fatal("expected node removed")
	}
	if _, ok := d.ByCallsign("W1AW-L"); ok {
		t.Fatal("expected callsign index to be removed atomically with node index")
	}
	if _, ok := d.ByIP(net.ParseIP("1.2.3.4")); ok {
		t.Fatal("expected IP index to be removed atomically with node index")
	}
}

func TestParseSnapshotSkipsMalformedLines(t *testing.T) {
	input := "1000|W1AW-L|ON|1.2.3.4\nnot a station line\n2000|K1ABC-R|OFF|5.6.7.8\n"
	entries, err := ParseSnapshot(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseSnapshot: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].NodeNumber != 1000 || entries[0].Callsign != "W1AW-L" {
		t.Fatalf("got %+v", entries[0])
	}
}

func TestBuildAndSplitGSMFrames(t *testing.T) {
	frames := make([][]byte, FramesPerPacket)
	for i := range frames {
		f := make([]byte, GSMFrameBytes)
		f[0] = byte(i)
		frames[i] = f
	}
	pkt, err := BuildGSMPacket(frames, 1, 8000, 0xdeadbeef)
	if err != nil {
		t.Fatalf("BuildGSMPacket: %v", err)
	}
	if len(pkt.Payload) != FramesPerPacket*GSMFrameBytes {
		t.Fatalf("payload length = %d", len(pkt.Payload))
	}
	split, err := SplitGSMFrames(pkt.Payload)
	if err != nil {
		t.Fatalf("SplitGSMFrames: %v", err)
	}
	if len(split) != FramesPerPacket {
		t.Fatalf("expected %d frames, got %d", FramesPerPacket, len(split))
	}
	for i, f := range split {
		if f[0] != byte(i) {
			t.Fatalf("frame %d corrupted: %v", i, f)
		}
	}
}

func TestBuildGSMPacketRejectsWrongFrameSize(t *testing.T) {
	_, err := BuildGSMPacket([][]byte{make([]byte, 10)}, 0, 0, 0)
	if err == nil {
		t.Fatal("expected error for wrong frame size")
	}
}

func TestJitterEstimatorGrowsOnIrregularArrival(t *testing.T) {
	var j JitterEstimator
	base := time.Now()
	j.Observe(8000, base)
	// Arrives 20ms late relative to a perfectly regular 160-sample (20ms) cadence.
	j.Observe(8160, base.Add(40*time.Millisecond))
	if j.estimateMS <= 0 {
		t.Fatal("expected jitter estimate to grow above zero after irregular arrival")
	}
}

func TestJitterEstimatorConvergesToConstantInterval(t *testing.T) {
	var j JitterEstimator
	base := time.Now()
	const step = 20 * time.Millisecond
	for i := 0; i < 50; i++ {
		j.Observe(uint32(i*160), base.Add(time.Duration(i)*step))
	}
	if diff := j.estimateMS - 20.0; diff > 0.01 || diff < -0.01 {
		t.Fatalf("expected estimate to converge to 20ms for a regular cadence, got %v", j.estimateMS)
	}
}

func TestTalkerTimedOut(t *testing.T) {
	var j JitterEstimator
	j.Observe(0, time.Now().Add(-5*time.Second))
	if !j.TalkerTimedOut(2 * time.Second) {
		t.Fatal("expected timeout after 5s of silence with a 2s threshold")
	}
	if j.TalkerTimedOut(10 * time.Second) {
		t.Fatal("must not report timeout within the threshold")
	}
}

func TestFormatPositionReport(t *testing.T) {
	report := FormatPositionReport(BeaconParams{Callsign: "W1AW-L", Lat: 41.5, Lon: -72.75, Comment: "test"})
	if !strings.Contains(report, "W1AW-L>APRS:") {
		t.Fatalf("unexpected format: %q", report)
	}
	if !strings.Contains(report, "N") || !strings.Contains(report, "W") {
		t.Fatalf("expected N/W hemisphere markers: %q", report)
	}
}
