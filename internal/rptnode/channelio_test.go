package rptnode

import (
	"testing"
	"time"

	"github.com/dbehnke/nexus-core/internal/channel"
	"github.com/dbehnke/nexus-core/internal/config"
	"github.com/dbehnke/nexus-core/internal/dtmf"
)

func TestChannelHandlerLitzInjectsMacroFromDTMFBeginFrame(t *testing.T) {
	cfg := config.NodeConfig{LitzTimeMS: 500, LitzChar: "#", LitzCmd: "*99"}
	n := New("2000", cfg, nil)
	d := dtmf.NewDispatcher()
	h := NewChannelHandler(n, d, dtmf.SourceRadio)

	now := time.Now()
	h.HandleFrame(channel.Frame{Kind: channel.FrameDTMFBegin, Digit: '#'}, now)

	n.mu.RLock()
	buf := n.macroBuffer
	n.mu.RUnlock()
	if buf != "*99" {
		t.Fatalf("expected litz macro in buffer, got %q", buf)
	}
}

func TestChannelHandlerDTMFBeginWithoutLitzReachesDispatcher(t *testing.T) {
	n := New("2000", config.NodeConfig{}, nil)
	d := dtmf.NewDispatcher()
	hit := false
	d.Table(dtmf.SourceRadio).Add("5", func(ctx dtmf.NodeContext, args string) dtmf.Completion {
		hit = true
		return dtmf.Complete
	})
	h := NewChannelHandler(n, d, dtmf.SourceRadio)

	h.HandleFrame(channel.Frame{Kind: channel.FrameDTMFBegin, Digit: '5'}, time.Now())
	if !hit {
		t.Fatalf("expected dispatcher handler to fire for non-litz digit")
	}
}

func TestChannelHandlerBurstKeyedSetsReallyKeyed(t *testing.T) {
	n := New("2000", config.NodeConfig{}, nil)
	d := dtmf.NewDispatcher()
	h := NewChannelHandler(n, d, dtmf.SourceRadio)

	h.HandleFrame(channel.Frame{Kind: channel.FrameBurstKeyed}, time.Now())
	if !n.Snapshot().Keying.ReallyKeyed {
		t.Fatalf("expected ReallyKeyed true after burst-keyed frame")
	}
}

func TestChannelHandlerControlKeyUnkeySetsRxKeyed(t *testing.T) {
	n := New("2000", config.NodeConfig{}, nil)
	d := dtmf.NewDispatcher()
	h := NewChannelHandler(n, d, dtmf.SourceRadio)

	h.HandleFrame(channel.Frame{Kind: channel.FrameControl, Control: channel.ControlKey}, time.Now())
	if !n.Snapshot().Keying.RxKeyed {
		t.Fatalf("expected RxKeyed true after ControlKey frame")
	}

	h.HandleFrame(channel.Frame{Kind: channel.FrameControl, Control: channel.ControlUnkey}, time.Now())
	if n.Snapshot().Keying.RxKeyed {
		t.Fatalf("expected RxKeyed false after ControlUnkey frame")
	}
}

func TestChannelHandlerMDC1200PushesTelemetry(t *testing.T) {
	n := New("2000", config.NodeConfig{}, nil)
	d := dtmf.NewDispatcher()
	h := NewChannelHandler(n, d, dtmf.SourceRadio)

	h.HandleFrame(channel.Frame{Kind: channel.FrameMDC1200, MDC: channel.MDC1200Packet{Op: 0x01, Arg: 0x00, UnitID: 0xBEEF}}, time.Now())

	n.mu.Lock()
	_, ok := n.Telemetry.Pop()
	n.mu.Unlock()
	if !ok {
		t.Fatalf("expected a telemetry item pushed for the MDC-1200 PTT ID packet")
	}
}
