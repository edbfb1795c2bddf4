package dtmf

import (
	"testing"
	"time"
)

type fakeLitzCtx struct {
	macros []string
}

func (f *fakeLitzCtx) Key()                                      {}
func (f *fakeLitzCtx) Unkey()                                    {}
func (f *fakeLitzCtx) SendTelemetry(kind string, param string)   {}
func (f *fakeLitzCtx) ConnectLink(peer string, mode string) error { return nil }
func (f *fakeLitzCtx) DisconnectLink(peer string) error          { return nil }
func (f *fakeLitzCtx) DisconnectAllLinks()                       {}
func (f *fakeLitzCtx) ReconnectLastLink() error                  { return nil }
func (f *fakeLitzCtx) SetRemoteFreq(freq string) error           { return nil }
func (f *fakeLitzCtx) PlaybackFile(path string) error            { return nil }
func (f *fakeLitzCtx) LocalPlayFile(path string) error           { return nil }
func (f *fakeLitzCtx) SetUserOut(bit int, value bool)            {}
func (f *fakeLitzCtx) ReadMeter(which int) (float64, error)      { return 0, nil }
func (f *fakeLitzCtx) RunMacro(digits string)                    { f.macros = append(f.macros, digits) }
func (f *fakeLitzCtx) StatusText() string                        { return "" }
func (f *fakeLitzCtx) LastKeyedNode() string                     { return "" }
func (f *fakeLitzCtx) ControlOp(code string, arg string) error   { return nil }

func TestFeedWithLitzInjectsMacroOnSlowMatchingDigit(t *testing.T) {
	d := NewDispatcher()
	ctx := &fakeLitzCtx{}
	litz := LitzConfig{TimeMS: 1000, Chars: "#*", Cmd: "*99"}

	var last time.Time
	start := time.Now()
	// First digit: no previous timestamp, treated as long-elapsed.
	result := d.FeedWithLitz(ctx, SourceRadio, '#', start, &last, litz)
	if result != CompleteQuiet {
		t.Fatalf("expected CompleteQuiet, got %v", result)
	}
	if len(ctx.macros) != 1 || ctx.macros[0] != "*99" {
		t.Fatalf("expected litz macro injected, got %+v", ctx.macros)
	}
}

func TestFeedWithLitzFallsThroughWhenTooSoon(t *testing.T) {
	d := NewDispatcher()
	ctx := &fakeLitzCtx{}
	litz := LitzConfig{TimeMS: 1000, Chars: "#*", Cmd: "*99"}

	start := time.Now()
	var last time.Time
	last = start // simulate a digit that just arrived
	result := d.FeedWithLitz(ctx, SourceRadio, '#', start.Add(200*time.Millisecond), &last, litz)
	if result == CompleteQuiet && len(ctx.macros) > 0 {
		t.Fatalf("litz should not have matched within the timing window")
	}
	if len(ctx.macros) != 0 {
		t.Fatalf("expected no macro injected, got %+v", ctx.macros)
	}
}

func TestFeedWithLitzIgnoresNonMatchingChar(t *testing.T) {
	d := NewDispatcher()
	ctx := &fakeLitzCtx{}
	litz := LitzConfig{TimeMS: 1000, Chars: "#", Cmd: "*99"}

	var last time.Time
	d.FeedWithLitz(ctx, SourceRadio, '5', time.Now(), &last, litz)
	if len(ctx.macros) != 0 {
		t.Fatalf("expected no macro for a char outside litzchar, got %+v", ctx.macros)
	}
}

func TestFeedWithLitzDisabledWhenConfigEmpty(t *testing.T) {
	d := NewDispatcher()
	ctx := &fakeLitzCtx{}
	var last time.Time
	d.FeedWithLitz(ctx, SourceRadio, '#', time.Now(), &last, LitzConfig{})
	if len(ctx.macros) != 0 {
		t.Fatalf("expected litz gate disabled with zero config, got %+v", ctx.macros)
	}
}
