package dtmf

import "testing"

type fakeNode struct {
	keyed         bool
	telemKind     string
	telemParam    string
	connectPeer   string
	connectMode   string
	disconnected  string
	disconnectAll bool
	reconnected   bool
	remoteFreq    string
	played        string
	localPlayed   string
	userOutBit    int
	userOutVal    bool
	macroRan      string
	controlCode   string
	controlArg    string
	meter         float64
	failControl   bool
}

func (f *fakeNode) Key()   { f.keyed = true }
func (f *fakeNode) Unkey() { f.keyed = false }
func (f *fakeNode) SendTelemetry(kind, param string) {
	f.telemKind, f.telemParam = kind, param
}
func (f *fakeNode) ConnectLink(peer, mode string) error {
	f.connectPeer, f.connectMode = peer, mode
	return nil
}
func (f *fakeNode) DisconnectLink(peer string) error {
	f.disconnected = peer
	return nil
}
func (f *fakeNode) DisconnectAllLinks()      { f.disconnectAll = true }
func (f *fakeNode) ReconnectLastLink() error { f.reconnected = true; return nil }
func (f *fakeNode) SetRemoteFreq(freq string) error {
	f.remoteFreq = freq
	return nil
}
func (f *fakeNode) PlaybackFile(path string) error  { f.played = path; return nil }
func (f *fakeNode) LocalPlayFile(path string) error  { f.localPlayed = path; return nil }
func (f *fakeNode) SetUserOut(bit int, value bool)  { f.userOutBit, f.userOutVal = bit, value }
func (f *fakeNode) ReadMeter(which int) (float64, error) { return f.meter, nil }
func (f *fakeNode) RunMacro(digits string)          { f.macroRan = digits }
func (f *fakeNode) StatusText() string              { return "status" }
func (f *fakeNode) LastKeyedNode() string           { return "2000" }
func (f *fakeNode) ControlOp(code, arg string) error {
	f.controlCode, f.controlArg = code, arg
	if f.failControl {
		return errTest
	}
	return nil
}

type testErr string

func (e testErr) Error() string { return string(e) }

const errTest = testErr("forced failure")

func TestDispatcherCollectsUntilTerminator(t *testing.T) {
	d := NewDispatcher()
	RegisterDefaults(d.Table(SourceRadio))
	ctx := &fakeNode{}

	for _, digit := range []byte("1555") {
		c := d.Feed(ctx, SourceRadio, digit)
		if c != Indeterminate {
			t.Fatalf("unexpected completion mid-dial: %v", c)
		}
	}
	if c := d.Feed(ctx, SourceRadio, '#'); c != Complete {
		t.Fatalf("expected Complete on '#', got %v", c)
	}
	if ctx.telemParam != "555" {
		t.Fatalf("expected dialed number 555, got %q", ctx.telemParam)
	}
}

func TestDispatcherUnknownPrefixFlushes(t *testing.T) {
	d := NewDispatcher()
	RegisterDefaults(d.Table(SourceRadio))
	ctx := &fakeNode{}

	c := d.Feed(ctx, SourceRadio, 'x')
	if c != ReqFlush {
		t.Fatalf("expected ReqFlush for unregistered prefix, got %v", c)
	}
}

func TestIlinkConnect(t *testing.T) {
	d := NewDispatcher()
	RegisterDefaults(d.Table(SourceRadio))
	ctx := &fakeNode{}

	seq := "622000#" // '6' = ilink, '2' = connect transceive, peer 2000, '#'
	var last Completion
	for i := 0; i < len(seq); i++ {
		last = d.Feed(ctx, SourceRadio, seq[i])
	}
	if last != Complete {
		t.Fatalf("expected Complete, got %v", last)
	}
	if ctx.connectPeer != "2000" || ctx.connectMode != "transceive" {
		t.Fatalf("got peer=%q mode=%q", ctx.connectPeer, ctx.connectMode)
	}
}

func TestIlinkDisconnectAll(t *testing.T) {
	d := NewDispatcher()
	RegisterDefaults(d.Table(SourceRadio))
	ctx := &fakeNode{}

	seq := "66"
	var last Completion
	for i := 0; i < len(seq); i++ {
		last = d.Feed(ctx, SourceRadio, seq[i])
	}
	if last != Complete {
		t.Fatalf("expected Complete, got %v", last)
	}
	if !ctx.disconnectAll {
		t.Fatal("expected DisconnectAllLinks to have been called")
	}
}

func TestCopTableDispatchesControlOp(t *testing.T) {
	d := NewDispatcher()
	RegisterDefaults(d.Table(SourceRadio))
	ctx := &fakeNode{}

	seq := "01" // '0' = cop, "1" = enable_tot
	var last Completion
	for i := 0; i < len(seq); i++ {
		last = d.Feed(ctx, SourceRadio, seq[i])
	}
	if last != CompleteQuiet {
		t.Fatalf("expected CompleteQuiet, got %v", last)
	}
	if ctx.controlCode != "enable_tot" {
		t.Fatalf("expected enable_tot, got %q", ctx.controlCode)
	}
}

func TestBufferFullReturnsError(t *testing.T) {
	var b Buffer
	for i := 0; i < MaxDigits; i++ {
		if err := b.Push('5'); err != nil {
			t.Fatalf("unexpected early error at digit %d: %v", i, err)
		}
	}
	if err := b.Push('5'); err == nil {
		t.Fatal("expected error when exceeding MaxDigits")
	}
}

func TestTableLongestPrefixWins(t *testing.T) {
	tbl := NewTable()
	tbl.Add("1", func(ctx NodeContext, args string) Completion { return Error })
	tbl.Add("11", func(ctx NodeContext, args string) Completion { return Complete })

	h, rest, ok := tbl.Lookup("11")
	if !ok {
		t.Fatal("expected a match")
	}
	if rest != "" {
		t.Fatalf("expected empty rest, got %q", rest)
	}
	if got := h(nil, ""); got != Complete {
		t.Fatalf("expected longest-prefix handler to win, got %v", got)
	}
}
