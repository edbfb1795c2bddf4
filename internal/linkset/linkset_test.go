package linkset

import (
	"testing"
	"time"
)

func TestSetAddRemovePreservesInsertionOrder(t *testing.T) {
	s := NewSet()
	mustAdd(t, s, &Link{Name: "2000"})
	mustAdd(t, s, &Link{Name: "2001"})
	mustAdd(t, s, &Link{Name: "2002"})
	s.Remove("2001")

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 links, got %d", len(snap))
	}
	if snap[0].Name != "2000" || snap[1].Name != "2002" {
		t.Fatalf("order not preserved after removal: %+v", snap)
	}
}

func mustAdd(t *testing.T, s *Set, l *Link) {
	t.Helper()
	if err := s.Add(l); err != nil {
		t.Fatalf("Add(%q): %v", l.Name, err)
	}
}

func TestSetAddRejectsDuplicateName(t *testing.T) {
	s := NewSet()
	mustAdd(t, s, &Link{Name: "2000", Mode: ModeTransceive})
	if err := s.Add(&Link{Name: "2000", Mode: ModeMonitor}); err == nil {
		t.Fatal("expected \"already connected\" error re-adding same name")
	}
	if s.Len() != 1 {
		t.Fatalf("rejected add must not duplicate, len=%d", s.Len())
	}
	l, _ := s.Get("2000")
	if l.Mode != ModeTransceive {
		t.Fatalf("original link must survive a rejected duplicate add, got mode=%v", l.Mode)
	}
}

func TestAnyKeyedCounts(t *testing.T) {
	s := NewSet()
	mustAdd(t, s, &Link{Name: "a"})
	mustAdd(t, s, &Link{Name: "b"})
	s.SetKeyed("a", true, time.Now())

	any, count := s.AnyKeyed()
	if !any || count != 1 {
		t.Fatalf("got any=%v count=%d", any, count)
	}

	s.SetKeyed("b", true, time.Now())
	any, count = s.AnyKeyed()
	if !any || count != 2 {
		t.Fatalf("got any=%v count=%d", any, count)
	}
}

func TestProtocolParseRoundTrip(t *testing.T) {
	cases := []Frame{
		DiscFrame(),
		KeyFrame("2000", true),
		KeyFrame("2000", false),
		DTMFFrame("2000", '5'),
		TextFrame("hello"),
	}
	for _, want := range cases {
		line := want.String()
		got, err := Parse(line)
		if err != nil {
			t.Fatalf("Parse(%q): %v", line, err)
		}
		if got.Type != want.Type {
			t.Fatalf("Parse(%q) type = %v, want %v", line, got.Type, want.Type)
		}
	}
}

func TestParseUnknownFrameErrors(t *testing.T) {
	if _, err := Parse("BOGUS foo bar"); err == nil {
		t.Fatal("expected error for unknown frame type")
	}
	if _, err := Parse(""); err == nil {
		t.Fatal("expected error for empty line")
	}
}

func TestParsedKeyRoundTrip(t *testing.T) {
	f := KeyFrame("2000", true)
	node, keyed, err := ParsedKey(f)
	if err != nil {
		t.Fatalf("ParsedKey: %v", err)
	}
	if node != "2000" || !keyed {
		t.Fatalf("got node=%q keyed=%v", node, keyed)
	}
}

func TestParsedDTMFRejectsWrongFrameType(t *testing.T) {
	if _, _, err := ParsedDTMF(DiscFrame()); err == nil {
		t.Fatal("expected error parsing non-D frame as DTMF")
	}
}

func TestVoterEvaluatePicksHighestRSSI(t *testing.T) {
	links := []Link{
		{Name: "a", Keyed: true, RSSI: 40},
		{Name: "b", Keyed: true, RSSI: 90},
		{Name: "c", Keyed: false, RSSI: 200},
	}
	d := VoterEvaluate(links, "")
	if d.Winner != "b" {
		t.Fatalf("expected b to win, got %q", d.Winner)
	}
	if len(d.Muted) != 1 || d.Muted[0] != "a" {
		t.Fatalf("expected a muted, got %v", d.Muted)
	}
}

func TestVoterEvaluateNoneKeyed(t *testing.T) {
	links := []Link{{Name: "a", Keyed: false, RSSI: 100}}
	d := VoterEvaluate(links, "")
	if d.Winner != "" || d.Muted != nil {
		t.Fatalf("expected no decision, got %+v", d)
	}
}

func TestVoterEvaluateTieKeepsPreviousWinner(t *testing.T) {
	links := []Link{
		{Name: "a", Keyed: true, RSSI: 50},
		{Name: "b", Keyed: true, RSSI: 50},
	}
	d := VoterEvaluate(links, "b")
	if d.Winner != "b" {
		t.Fatalf("expected tie to favor previous winner b, got %q", d.Winner)
	}
}

func TestKeyingSMv0StartsEstablished(t *testing.T) {
	sm := NewKeyingSM(KeyingV0, 0)
	if !sm.Established() {
		t.Fatal("v0 must start established")
	}
}

func TestKeyingSMv1HandshakeReachesV2(t *testing.T) {
	sm := NewKeyingSM(KeyingV1, 2*time.Second)
	sm.Arm(time.Now())
	if sm.Established() {
		t.Fatal("v1 must not start established before the handshake completes")
	}

	// Peer answers with NEWKEY1; no secret or digest is ever involved.
	if _, has := sm.HandleFrame(Frame{Type: FrameNEWKEY1}); has {
		t.Fatal("NEWKEY1 is an answer, not something we reply to")
	}
	if !sm.Established() || sm.Version != KeyingV2 {
		t.Fatalf("expected v2/established after NEWKEY1, got version=%v established=%v", sm.Version, sm.Established())
	}
}

func TestKeyingSMAnswersPeerNewKeyOnce(t *testing.T) {
	sm := NewKeyingSM(KeyingV0, 0)
	reply, has := sm.HandleFrame(Frame{Type: FrameNEWKEY})
	if !has || reply.Type != FrameNEWKEY1 {
		t.Fatalf("expected a single NEWKEY1 reply to a peer's NEWKEY, got %+v has=%v", reply, has)
	}
	if sm.Version != KeyingV1 {
		t.Fatalf("expected version bumped to v1 on receiving NEWKEY, got %v", sm.Version)
	}
}

func TestKeyingSMIAXKeyFlagsLongLinger(t *testing.T) {
	sm := NewKeyingSM(KeyingV0, 0)
	if sm.LongLinger {
		t.Fatal("LongLinger must default false")
	}
	sm.HandleFrame(IAXKeyFrame(""))
	if !sm.LongLinger {
		t.Fatal("expected IAXKEY to flag the longer linger time")
	}
}

func TestKeyingSMDowngradesToV0AfterNewkeytimeExpiry(t *testing.T) {
	start := time.Now()
	sm := NewKeyingSM(KeyingV1, 1*time.Second)
	sm.Arm(start)

	if sm.CheckTimeout(start.Add(500 * time.Millisecond)) {
		t.Fatal("must not downgrade before the deadline")
	}
	if !sm.CheckTimeout(start.Add(2 * time.Second)) {
		t.Fatal("expected downgrade once the newkeytimer expires unanswered")
	}
	if sm.Version != KeyingV0 || !sm.Established() {
		t.Fatalf("expected v0/established after downgrade, got version=%v established=%v", sm.Version, sm.Established())
	}
}

func TestFanoutSendBroadcastsExceptSender(t *testing.T) {
	s := NewSet()
	mustAdd(t, s, &Link{Name: "a"})
	mustAdd(t, s, &Link{Name: "b"})
	mustAdd(t, s, &Link{Name: "c"})
	fo := NewFanout(s)

	var got []string
	errs := fo.Send("a", "", TextFrame("hi"), false, func(name string, f Frame) error {
		got = append(got, name)
		return nil
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("expected broadcast to b,c in order, got %v", got)
	}
}

func TestFanoutSendToNamedDestinationStopsThere(t *testing.T) {
	s := NewSet()
	mustAdd(t, s, &Link{Name: "a"})
	mustAdd(t, s, &Link{Name: "b"})
	fo := NewFanout(s)

	var got []string
	fo.Send("a", "b", TextFrame("hi"), false, func(name string, f Frame) error {
		got = append(got, name)
		return nil
	})
	if len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected single write to b, got %v", got)
	}
}

func TestFanoutSendSkipsPhoneModeOnlyPeers(t *testing.T) {
	s := NewSet()
	mustAdd(t, s, &Link{Name: "a"})
	mustAdd(t, s, &Link{Name: "phone1", Phone: "phone"})
	fo := NewFanout(s)

	var got []string
	fo.Send("a", "", KeyFrame("a", true), true, func(name string, f Frame) error {
		got = append(got, name)
		return nil
	})
	if len(got) != 0 {
		t.Fatalf("expected phone-mode-only peer skipped, got %v", got)
	}

	got = nil
	fo.Send("a", "", TextFrame("hi"), false, func(name string, f Frame) error {
		got = append(got, name)
		return nil
	})
	if len(got) != 1 || got[0] != "phone1" {
		t.Fatalf("expected phone-mode peer reachable when skipPhoneOnly is false, got %v", got)
	}
}

func TestReconnectPolicyDoublesUpToMax(t *testing.T) {
	p := NewReconnectPolicy(1_000_000_000, 8_000_000_000) // 1s base, 8s cap (ns)
	got := []int64{}
	for i := 0; i < 5; i++ {
		got = append(got, int64(p.Next()))
	}
	want := []int64{1_000_000_000, 2_000_000_000, 4_000_000_000, 8_000_000_000, 8_000_000_000}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("attempt %d: got %d want %d", i, got[i], want[i])
		}
	}
	p.Reset()
	if int64(p.Next()) != want[0] {
		t.Fatal("Reset must restart backoff at base")
	}
}
