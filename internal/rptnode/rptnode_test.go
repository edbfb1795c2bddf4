package rptnode

import (
	"strings"
	"testing"
	"time"

	"github.com/dbehnke/nexus-core/internal/config"
	"github.com/dbehnke/nexus-core/internal/linkset"
)

func TestComputeTotxPerDuplexLevel(t *testing.T) {
	cases := []struct {
		name   string
		k      Keying
		duplex int
		want   bool
	}{
		{"duplex0 blocks local repeat", Keying{ReallyKeyed: true}, 0, false},
		{"duplex0 allows ext link tx", Keying{ExtTx: true}, 0, true},
		{"duplex0 allows remote rx tx", Keying{RemoteRx: true}, 0, true},
		{"duplex1 local only", Keying{ReallyKeyed: true}, 1, true},
		{"duplex1 ignores link", Keying{ExtTx: true}, 1, false},
		{"duplex2 local", Keying{ReallyKeyed: true}, 2, true},
		{"duplex2 link", Keying{ExtTx: true}, 2, true},
		{"duplex3 local wins", Keying{ReallyKeyed: true, ExtTx: true}, 3, true},
		{"duplex3 link only", Keying{ExtTx: true}, 3, true},
		{"duplex4 link only", Keying{ReallyKeyed: true}, 4, false},
		{"duplex4 ext", Keying{ExtTx: true}, 4, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ComputeTotx(c.k, c.duplex); got != c.want {
				t.Fatalf("ComputeTotx(%+v, %d) = %v, want %v", c.k, c.duplex, got, c.want)
			}
		})
	}
}

func TestShouldMixLinkAudioOnlyAtDuplex2WithoutLocalCarrier(t *testing.T) {
	if !ShouldMixLinkAudio(Keying{ExtTx: true}, 2) {
		t.Fatal("expected mixing at duplex 2 with no local carrier")
	}
	if ShouldMixLinkAudio(Keying{ExtTx: true, ReallyKeyed: true}, 2) {
		t.Fatal("local carrier must suppress mixing")
	}
	if ShouldMixLinkAudio(Keying{ExtTx: true}, 3) {
		t.Fatal("duplex 3 must never mix")
	}
}

func TestNodeKeyUnkeyArmsTimers(t *testing.T) {
	cfg := config.NodeConfig{TotimeMS: 1000, HangTimeMS: 500}
	n := New("2000", cfg, nil)

	n.Key()
	if !n.Keying.TxKeyed {
		t.Fatal("expected TxKeyed after Key")
	}
	if !n.Timers.TotalTimeout().Active() {
		t.Fatal("expected TOT armed after Key")
	}
	if n.Counters.DailyKeyups != 1 {
		t.Fatalf("expected 1 daily keyup, got %d", n.Counters.DailyKeyups)
	}

	n.Unkey()
	if n.Keying.TxKeyed {
		t.Fatal("expected TxKeyed false after Unkey")
	}
	if n.Timers.TotalTimeout().Active() {
		t.Fatal("expected TOT disarmed after Unkey")
	}
	if !n.Timers.Hang().Active() {
		t.Fatal("expected hang timer armed after Unkey")
	}
}

func TestConnectLinkAddsToLinkSetAndRejectsDuplicate(t *testing.T) {
	n := New("2000", config.NodeConfig{}, nil)
	n.SetDial(func(peer string, mode linkset.Mode) error { return nil }, func(peer string) error { return nil })

	if err := n.ConnectLink("2001", "transceive"); err != nil {
		t.Fatalf("ConnectLink: %v", err)
	}
	if n.LinkSet().Len() != 1 {
		t.Fatalf("expected link set to gain an entry, len=%d", n.LinkSet().Len())
	}
	if err := n.ConnectLink("2001", "transceive"); err == nil {
		t.Fatal("expected already-connected error reconnecting the same peer")
	}
	if n.LinkSet().Len() != 1 {
		t.Fatalf("rejected duplicate must not grow the link set, len=%d", n.LinkSet().Len())
	}

	if err := n.DisconnectLink("2001"); err != nil {
		t.Fatalf("DisconnectLink: %v", err)
	}
	if n.LinkSet().Len() != 0 {
		t.Fatalf("expected link set empty after disconnect, len=%d", n.LinkSet().Len())
	}
}

func TestKeyDistributesKeyFrameToLinks(t *testing.T) {
	n := New("2000", config.NodeConfig{}, nil)
	n.SetDial(func(peer string, mode linkset.Mode) error { return nil }, func(peer string) error { return nil })
	if err := n.ConnectLink("2001", "transceive"); err != nil {
		t.Fatalf("ConnectLink: %v", err)
	}

	var got []linkset.Frame
	n.SetWriteFrame(func(name string, f linkset.Frame) error {
		got = append(got, f)
		return nil
	})

	n.Key()
	if len(got) != 1 {
		t.Fatalf("expected one K frame distributed on Key, got %d", len(got))
	}
	if _, keyed, err := linkset.ParsedKey(got[0]); err != nil || !keyed {
		t.Fatalf("expected keyed=true K frame, got %+v err=%v", got[0], err)
	}

	n.Unkey()
	if len(got) != 2 {
		t.Fatalf("expected a second frame distributed on Unkey, got %d", len(got))
	}
	if _, keyed, err := linkset.ParsedKey(got[1]); err != nil || keyed {
		t.Fatalf("expected keyed=false K frame, got %+v err=%v", got[1], err)
	}
}

func TestRunMacroDropsAdditionWhenBufferFull(t *testing.T) {
	cfg := config.NodeConfig{}
	n := New("2000", cfg, nil)

	n.RunMacro(strings.Repeat("1", MaxMacroBuffer))
	if len(n.macroBuffer) != MaxMacroBuffer {
		t.Fatalf("expected buffer filled to cap, got %d", len(n.macroBuffer))
	}

	n.RunMacro("99")
	if len(n.macroBuffer) != MaxMacroBuffer {
		t.Fatalf("expected addition dropped once full, got len=%d", len(n.macroBuffer))
	}
}

func TestKeyingTrackerJitterCompensatedUnkey(t *testing.T) {
	kt := NewKeyingTracker("2000", 200*time.Millisecond)
	var started, ended bool
	kt.SetCallbacks(
		func(local, adj string, at time.Time) { started = true },
		func(local, adj string, at time.Time, d time.Duration) { ended = true },
	)

	base := time.Now()
	kt.ObserveKeying("2001", true, base)
	if !started {
		t.Fatal("expected TX start callback")
	}

	// Brief unkey/rekey glitch inside the jitter window must NOT fire TX end.
	kt.ObserveKeying("2001", false, base.Add(50*time.Millisecond))
	kt.Advance(base.Add(100 * time.Millisecond))
	if ended {
		t.Fatal("TX end fired too early, inside jitter window")
	}
	kt.ObserveKeying("2001", true, base.Add(120*time.Millisecond))
	kt.Advance(base.Add(150 * time.Millisecond))
	if ended {
		t.Fatal("re-key within jitter window must cancel the pending unkey confirmation")
	}

	// A real, sustained unkey past the delay must confirm.
	kt.ObserveKeying("2001", false, base.Add(200*time.Millisecond))
	kt.Advance(base.Add(450 * time.Millisecond))
	if !ended {
		t.Fatal("expected TX end to confirm after the jitter window elapsed")
	}
}

func TestSchedulerFiresOncePerMinute(t *testing.T) {
	s := NewScheduler([]ScheduleEntry{
		{Minute: "30", Hour: "*", DayOfMonth: "*", Month: "*", DayOfWeek: "*", Macro: "99"},
	})
	t1 := time.Date(2026, 7, 30, 14, 30, 0, 0, time.UTC)
	macros := s.Tick(t1)
	if len(macros) != 1 || macros[0] != "99" {
		t.Fatalf("expected match on first tick, got %v", macros)
	}
	// Second tick within the same minute must not re-fire.
	macros = s.Tick(t1.Add(5 * time.Second))
	if macros != nil {
		t.Fatalf("expected no re-fire within the same minute, got %v", macros)
	}
	// A different minute with no matching entry returns nothing.
	macros = s.Tick(t1.Add(time.Minute))
	if macros != nil {
		t.Fatalf("expected no match at :31, got %v", macros)
	}
}
