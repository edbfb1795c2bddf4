package rptnode

import (
	"time"

	"github.com/dbehnke/nexus-core/internal/dtmf"
	"github.com/dbehnke/nexus-core/internal/linkset"
)

// LinkFrameHandler bridges one link's decoded text-protocol frames into a
// Node: keying-protocol handshake progression, keyup state, and inbound
// DTMF fan-out to the dispatcher's SourceLink table. A real transport
// (the link's TCP/IAX2-style control channel) would decode each line via
// linkset.Parse and call HandleFrame with the result; none is constructed
// by this repo (no network transport of its own), the same role
// ChannelHandler plays for the local radio channel.
type LinkFrameHandler struct {
	node       *Node
	dispatcher *dtmf.Dispatcher
	peer       string
	sm         *linkset.KeyingSM
	write      func(f linkset.Frame) error
}

// NewLinkFrameHandler builds a handler for one link. A v1-or-higher link
// is armed immediately, starting its newkeytimer ahead of the caller
// sending the initial NEWKEY frame.
func NewLinkFrameHandler(node *Node, dispatcher *dtmf.Dispatcher, peer string, version linkset.KeyingVersion, newkeytime time.Duration, write func(f linkset.Frame) error) *LinkFrameHandler {
	sm := linkset.NewKeyingSM(version, newkeytime)
	if version != linkset.KeyingV0 {
		sm.Arm(time.Now())
	}
	return &LinkFrameHandler{node: node, dispatcher: dispatcher, peer: peer, sm: sm, write: write}
}

// HandleFrame advances the keying handshake and, once established, applies
// K/D/DISC frames to the node's link set and DTMF dispatcher.
func (h *LinkFrameHandler) HandleFrame(f linkset.Frame, now time.Time) {
	if reply, has := h.sm.HandleFrame(f); has && h.write != nil {
		_ = h.write(reply)
	}
	if !h.sm.Established() {
		return
	}
	switch f.Type {
	case linkset.FrameK:
		if _, keyed, err := linkset.ParsedKey(f); err == nil {
			h.node.SetLinkKeyed(h.peer, keyed, now)
		}
	case linkset.FrameD:
		if _, digit, err := linkset.ParsedDTMF(f); err == nil && h.dispatcher != nil {
			h.dispatcher.Feed(h.node, dtmf.SourceLink, digit)
		}
	case linkset.FrameDISC:
		h.node.LinkSet().Remove(h.peer)
	}
}

// CheckNewkeyTimeout downgrades the handshake to v0 if the peer never
// answered NEWKEY1 within NEWKEYTIME, per §4.3/§9's forced-downgrade
// behavior. Callers should poll this from the same tick loop that drives
// each link's other housekeeping timers.
func (h *LinkFrameHandler) CheckNewkeyTimeout(now time.Time) bool {
	return h.sm.CheckTimeout(now)
}

// LongLinger reports whether the peer requested the longer linger time
// via an IAXKEY frame.
func (h *LinkFrameHandler) LongLinger() bool { return h.sm.LongLinger }
