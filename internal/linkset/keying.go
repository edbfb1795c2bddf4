package linkset

import "time"

// KeyingState tracks one link's progress through its keying-protocol
// handshake. v0 links start and stay Established; a v1 peer must be
// answered with a single NEWKEY1 before the link counts as v2.
type KeyingState int

const (
	StateIdle KeyingState = iota
	StateAwaitingNewKey1
	StateEstablished
)

// KeyingSM drives a single link's handshake. Not safe for concurrent use;
// each link owns one.
//
// There is no cryptographic exchange in the real protocol: NEWKEY/NEWKEY1
// is a plain, unauthenticated two-frame handshake, and IAXKEY only flags
// that the peer wants the longer linger time rather than carrying a
// digest response.
type KeyingSM struct {
	Version    KeyingVersion
	State      KeyingState
	LongLinger bool // set once an IAXKEY frame arrives

	newkeytime time.Duration // NEWKEYTIME: how long to wait for NEWKEY1
	deadline   time.Time
}

// NewKeyingSM builds a state machine starting at version. v0 links start
// Established immediately since that dialect never negotiates; v1 starts
// idle until the caller Arms the newkeytimer ahead of sending NEWKEY.
func NewKeyingSM(version KeyingVersion, newkeytime time.Duration) *KeyingSM {
	sm := &KeyingSM{Version: version, newkeytime: newkeytime}
	if version == KeyingV0 {
		sm.State = StateEstablished
	} else {
		sm.State = StateIdle
	}
	return sm
}

// Arm starts (or restarts) the newkeytimer from now, just ahead of sending
// the outbound NEWKEY frame. Only meaningful for a v1-or-higher link.
func (sm *KeyingSM) Arm(now time.Time) {
	sm.State = StateAwaitingNewKey1
	if sm.newkeytime > 0 {
		sm.deadline = now.Add(sm.newkeytime)
	}
}

// HandleFrame advances the handshake on an incoming protocol frame. reply
// is non-zero exactly when the caller must write it back to the peer:
// the single NEWKEY1 sent in answer to the peer's NEWKEY.
func (sm *KeyingSM) HandleFrame(f Frame) (reply Frame, hasReply bool) {
	switch f.Type {
	case FrameNEWKEY:
		sm.Version = KeyingV1
		return NewKey1Frame(), true
	case FrameNEWKEY1:
		sm.Version = KeyingV2
		sm.State = StateEstablished
		sm.deadline = time.Time{}
	case FrameIAXKEY:
		sm.LongLinger = true
	}
	return Frame{}, false
}

// CheckTimeout downgrades an unanswered v1 handshake to v0 once now passes
// the newkeytimer deadline, returning true exactly when it performed the
// downgrade so the caller can log the warning §4.3 calls for ("on expiry
// without completion, v2 downgrades to v0 with a warning") instead of
// dropping the link outright.
func (sm *KeyingSM) CheckTimeout(now time.Time) bool {
	if sm.State == StateEstablished || sm.deadline.IsZero() || now.Before(sm.deadline) {
		return false
	}
	sm.Version = KeyingV0
	sm.State = StateEstablished
	sm.deadline = time.Time{}
	return true
}

// Established reports whether this link may carry keyup/DTMF traffic.
func (sm *KeyingSM) Established() bool { return sm.State == StateEstablished }
