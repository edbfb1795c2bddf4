// Package echolink implements the Echolink UDP audio/control driver: RTP
// audio framing, RTCP session control, the TCP directory client, and APRS
// beaconing. Sessions present themselves as linkset.Link-compatible peers
// (this package never imports internal/linkset to avoid a cycle; the
// wiring glue in internal/rptnode adapts a Session into a linkset.Link).
package echolink

import (
	"fmt"
	"net"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultAudioPort is Echolink's conventional RTP audio port; RTCP runs on
// DefaultAudioPort+1.
const DefaultAudioPort = 5198

// GSMFrameBytes is the size of one GSM 06.10 frame as Echolink packs it;
// RTP payloads for Echolink carry four such frames per packet.
const GSMFrameBytes = 33

// FramesPerPacket is how many GSM frames Echolink bundles into one RTP
// payload.
const FramesPerPacket = 4

// Direction distinguishes who originated a session.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

// Session is one active Echolink call: an authenticated peer exchanging
// RTP audio and RTCP control with us.
type Session struct {
	ID        string
	Callsign  string
	NodeID    int
	RemoteIP  net.IP
	Direction Direction

	StartedAt    time.Time
	LastRTCP     time.Time
	LastRTPSeq   uint16
	JitterMS     float64
	TalkerActive bool

	RSSI int // voter-mode input, always 0 for Echolink peers unless fed externally
}

// PendingAuthTable tracks connections that have sent a login but not yet
// completed directory verification. Bounded by an LRU so a flood of bogus
// login attempts cannot grow memory without limit (§4.4).
type PendingAuthTable struct {
	cache *lru.Cache[string, pendingEntry]
}

type pendingEntry struct {
	callsign string
	nonce    string
	at       time.Time
}

// NewPendingAuthTable builds a table bounded to maxEntries (the original
// controller's default was 20 simultaneous pending logins).
func NewPendingAuthTable(maxEntries int) (*PendingAuthTable, error) {
	c, err := lru.New[string, pendingEntry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("echolink: pending-auth table: %w", err)
	}
	return &PendingAuthTable{cache: c}, nil
}

// Begin records a pending login attempt keyed by remote address.
func (p *PendingAuthTable) Begin(addr, callsign, nonce string) {
	p.cache.Add(addr, pendingEntry{callsign: callsign, nonce: nonce, at: time.Now()})
}

// Verify checks and clears a pending attempt, returning whether the
// callsign/nonce pair matches what was recorded.
func (p *PendingAuthTable) Verify(addr, callsign, nonce string) bool {
	entry, ok := p.cache.Get(addr)
	if !ok {
		return false
	}
	p.cache.Remove(addr)
	return entry.callsign == callsign && entry.nonce == nonce
}

// Len reports the number of pending logins.
func (p *PendingAuthTable) Len() int { return p.cache.Len() }

// JitterEstimator implements the RFC3550-style EWMA jitter estimate the
// original controller used to decide when to double its playout buffer,
// and a simple talker-timeout detector (no RTP for N seconds => talker
// considered gone).
type JitterEstimator struct {
	estimateMS  float64
	lastArrival time.Time
	haveLast    bool
}

// Observe feeds one arrived packet's RTP timestamp (kept for call-site
// symmetry with the wire format; this estimator only needs wall-clock
// arrival spacing) and updates the jitter estimate using the original
// controller's inter-arrival smoothing: jitter = (delta + jitter) / 2,
// where delta is the gap since the previous packet's arrival. A run of
// packets at a constant cadence converges this estimate to exactly that
// cadence rather than to zero, which is what the playout-buffer-doubling
// heuristic below assumes.
func (j *JitterEstimator) Observe(rtpTimestamp uint32, arrival time.Time) float64 {
	if !j.haveLast {
		j.lastArrival = arrival
		j.haveLast = true
		return j.estimateMS
	}
	deltaMS := arrival.Sub(j.lastArrival).Seconds() * 1000.0
	j.estimateMS = (deltaMS + j.estimateMS) / 2.0

	j.lastArrival = arrival
	return j.estimateMS
}

// ShouldDoubleBuffer reports whether the current jitter estimate has grown
// enough to warrant doubling the playout buffer (the original controller's
// heuristic: estimate exceeds half the current buffer size).
func (j *JitterEstimator) ShouldDoubleBuffer(currentBufferMS float64) bool {
	return j.estimateMS > currentBufferMS/2
}

// TalkerTimedOut reports whether more than timeout has elapsed since the
// last observed packet.
func (j *JitterEstimator) TalkerTimedOut(timeout time.Duration) bool {
	if !j.haveLast {
		return false
	}
	return time.Since(j.lastArrival) > timeout
}
