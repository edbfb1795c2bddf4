package rptnode

import (
	"testing"
	"time"

	"github.com/dbehnke/nexus-core/internal/config"
	"github.com/dbehnke/nexus-core/internal/dtmf"
	"github.com/dbehnke/nexus-core/internal/linkset"
)

func TestLinkFrameHandlerCompletesV1HandshakeAndAppliesKeyup(t *testing.T) {
	n := New("2000", config.NodeConfig{}, nil)
	n.SetDial(func(peer string, mode linkset.Mode) error { return nil }, func(peer string) error { return nil })
	if err := n.ConnectLink("2001", "transceive"); err != nil {
		t.Fatalf("ConnectLink: %v", err)
	}

	var sent []linkset.Frame
	h := NewLinkFrameHandler(n, nil, "2001", linkset.KeyingV1, time.Second, func(f linkset.Frame) error {
		sent = append(sent, f)
		return nil
	})

	now := time.Now()
	h.HandleFrame(linkset.Frame{Type: linkset.FrameNEWKEY1}, now)
	if len(sent) != 0 {
		t.Fatalf("NEWKEY1 is an answer, handler should not reply, got %v", sent)
	}

	h.HandleFrame(linkset.KeyFrame("2001", true), now)
	l, ok := n.LinkSet().Get("2001")
	if !ok || !l.Keyed {
		t.Fatalf("expected link 2001 marked keyed, got %+v ok=%v", l, ok)
	}
	any, _ := n.LinkSet().AnyKeyed()
	if !any {
		t.Fatal("expected AnyKeyed true after K frame")
	}
}

func TestLinkFrameHandlerAnswersPeerNewKey(t *testing.T) {
	n := New("2000", config.NodeConfig{}, nil)
	n.SetDial(func(peer string, mode linkset.Mode) error { return nil }, func(peer string) error { return nil })
	_ = n.ConnectLink("2001", "transceive")

	var sent []linkset.Frame
	h := NewLinkFrameHandler(n, nil, "2001", linkset.KeyingV0, 0, func(f linkset.Frame) error {
		sent = append(sent, f)
		return nil
	})
	h.HandleFrame(linkset.Frame{Type: linkset.FrameNEWKEY}, time.Now())
	if len(sent) != 1 || sent[0].Type != linkset.FrameNEWKEY1 {
		t.Fatalf("expected a single NEWKEY1 reply, got %v", sent)
	}
}

func TestLinkFrameHandlerFeedsDTMFToSourceLinkTable(t *testing.T) {
	n := New("2000", config.NodeConfig{}, nil)
	n.SetDial(func(peer string, mode linkset.Mode) error { return nil }, func(peer string) error { return nil })
	_ = n.ConnectLink("2001", "transceive")

	d := dtmf.NewDispatcher()
	var gotStatus bool
	d.Table(dtmf.SourceLink).Add("3", func(ctx dtmf.NodeContext, args string) dtmf.Completion {
		if len(args) == 0 {
			return dtmf.Indeterminate
		}
		if len(args) > 0 && args[0] == '1' {
			gotStatus = true
		}
		return dtmf.Complete
	})
	h := NewLinkFrameHandler(n, d, "2001", linkset.KeyingV0, 0, nil)

	h.HandleFrame(linkset.DTMFFrame("2001", '3'), time.Now())
	h.HandleFrame(linkset.DTMFFrame("2001", '1'), time.Now())
	if !gotStatus {
		t.Fatal("expected DTMF from link to reach the SourceLink table")
	}
}

func TestLinkFrameHandlerUnestablishedDropsKAndD(t *testing.T) {
	n := New("2000", config.NodeConfig{}, nil)
	n.SetDial(func(peer string, mode linkset.Mode) error { return nil }, func(peer string) error { return nil })
	_ = n.ConnectLink("2001", "transceive")

	h := NewLinkFrameHandler(n, nil, "2001", linkset.KeyingV1, time.Second, nil)
	h.HandleFrame(linkset.KeyFrame("2001", true), time.Now())

	l, _ := n.LinkSet().Get("2001")
	if l.Keyed {
		t.Fatal("K frame must be ignored before the keying handshake establishes")
	}
}

func TestLinkFrameHandlerNewkeyTimeoutDowngrades(t *testing.T) {
	n := New("2000", config.NodeConfig{}, nil)
	n.SetDial(func(peer string, mode linkset.Mode) error { return nil }, func(peer string) error { return nil })
	_ = n.ConnectLink("2001", "transceive")

	h := NewLinkFrameHandler(n, nil, "2001", linkset.KeyingV1, time.Second, nil)
	if h.CheckNewkeyTimeout(time.Now().Add(2 * time.Second)) != true {
		t.Fatal("expected downgrade once NEWKEYTIME elapses unanswered")
	}
}
