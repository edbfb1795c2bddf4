package rptnode

import (
	"time"

	"github.com/dbehnke/nexus-core/internal/channel"
	"github.com/dbehnke/nexus-core/internal/dtmf"
)

// ChannelHandler bridges a decoded channel.Channel's frame stream into a
// Node's DTMF dispatcher and keying arbitration: FrameDTMFBegin feeds the
// LiTZ-gated dispatcher, FrameMDC1200 records a telemetry notification
// the way mdc1200_notify did, FrameBurstKeyed and FrameControl update the
// keying inputs ObserveKeyingInputs arbitrates on.
type ChannelHandler struct {
	node       *Node
	dispatcher *dtmf.Dispatcher
	source     dtmf.Source

	lastDigitAt map[dtmf.Source]time.Time
}

// NewChannelHandler builds a handler for node's radio channel (source is
// normally dtmf.SourceRadio; a link's own decoded channel would use
// dtmf.SourceLink instead).
func NewChannelHandler(node *Node, dispatcher *dtmf.Dispatcher, source dtmf.Source) *ChannelHandler {
	return &ChannelHandler{node: node, dispatcher: dispatcher, source: source, lastDigitAt: map[dtmf.Source]time.Time{}}
}

// HandleFrame processes one frame read from the node's channel. now is
// passed in rather than read internally so tests can drive the LiTZ
// timing gate deterministically.
func (h *ChannelHandler) HandleFrame(f channel.Frame, now time.Time) {
	switch f.Kind {
	case channel.FrameDTMFBegin:
		litz := dtmf.LitzConfig{TimeMS: h.node.Config.LitzTimeMS, Chars: h.node.Config.LitzChar, Cmd: h.node.Config.LitzCmd}
		last := h.lastDigitAt[h.source]
		h.dispatcher.FeedWithLitz(h.node, h.source, f.Digit, now, &last, litz)
		h.lastDigitAt[h.source] = last

	case channel.FrameMDC1200:
		if kind, unitID, ok := f.MDC.Classify(); ok {
			h.node.SendTelemetry("status_message", kind+" "+unitID)
		}

	case channel.FrameBurstKeyed:
		// The burst tone just ended after having been present: the
		// original controller treated that edge as "now keyed after Rx
		// Burst", confirming a valid receive independent of inband COS.
		h.node.mu.Lock()
		extTx := h.node.Keying.ExtTx
		remoteRx := h.node.Keying.RemoteRx
		h.node.mu.Unlock()
		h.node.ObserveKeyingInputs(true, extTx, remoteRx)

	case channel.FrameControl:
		switch f.Control {
		case channel.ControlKey:
			h.node.mu.Lock()
			h.node.Keying.RxKeyed = true
			extTx, remoteRx := h.node.Keying.ExtTx, h.node.Keying.RemoteRx
			h.node.mu.Unlock()
			h.node.ObserveKeyingInputs(true, extTx, remoteRx)
		case channel.ControlUnkey:
			h.node.mu.Lock()
			h.node.Keying.RxKeyed = false
			extTx, remoteRx := h.node.Keying.ExtTx, h.node.Keying.RemoteRx
			h.node.mu.Unlock()
			h.node.ObserveKeyingInputs(false, extTx, remoteRx)
		}
	}
}
