// Package rptnode implements the repeater node controller: the keying
// state machine, duplex/TX arbitration, TOT/ID/hang/tail/parrot state
// machines, daily/lifetime counters, and the per-tick loop that drives
// them all, adapted from the teacher's AMI-watching state tracker
// (internal/core/state.go and friends) into an actual controlling loop
// instead of a read-only observer.
package rptnode

import (
	"sync"
	"time"

	"github.com/dbehnke/nexus-core/internal/config"
	"github.com/dbehnke/nexus-core/internal/linkset"
	"github.com/dbehnke/nexus-core/internal/telemetry"
	"github.com/dbehnke/nexus-core/internal/timers"
)

// MaxMacroBuffer bounds the macro-injection buffer per §3/§7's recoverable-
// error path ("macro-buffer full (warn, drop the addition)") so a runaway
// macro chain or scheduler loop can't grow memory without limit.
const MaxMacroBuffer = 256

// CallMode enumerates what is presently keying the transmitter, mirroring
// the original controller's small set of mutually exclusive TX sources.
type CallMode int

const (
	ModeIdle CallMode = iota
	ModeLocalTx
	ModeLinkTx
	ModeRemoteTx
	ModeParrotTx
)

// SysState is one of the ten named system-state slots a node can be
// parked in (normal, scheduled night mode, etc.), selected by the
// scheduler or a cop command.
type SysState int

const (
	SysState1 SysState = iota
	SysState2
	SysState3
	SysState4
	SysState5
	SysState6
	SysState7
	SysState8
	SysState9
	SysState10
)

// Keying holds the instantaneous radio-keying booleans, kept as a small
// separate struct so the duplex arbitration function can take it by value
// in tests without dragging in the whole Node.
type Keying struct {
	RxKeyed     bool // carrier/COR presently detected
	ReallyKeyed bool // RxKeyed and not held off by a CTCSS/tone-burst gate
	TxKeyed     bool // local transmitter presently keyed
	LocalTx     bool // a local (non-link, non-remote) source wants TX
	ExtTx       bool // an external (link) source wants TX
	RemoteRx    bool // a remote-base receiver is active
}

// Counters tracks daily and lifetime activity totals. The daily totals are
// reset only by the reset_daily_counters cop effect; nothing resets the
// lifetime totals.
type Counters struct {
	DailyKeyups    int
	DailyTxSeconds int
	DailyKerchunks int
	LifetimeKeyups int
	LifetimeTxSeconds int
}

// Node is one controlled repeater or remote-base instance.
type Node struct {
	mu sync.RWMutex

	Name   string
	Config config.NodeConfig

	Keying   Keying
	CallMode CallMode
	SysState SysState

	Counters Counters

	Timers    timers.Timers
	Telemetry telemetry.Queue

	macroBuffer   string
	sleeping      bool
	parrotOnce    bool
	parrotQueued  [][]int16
	lastKeyedNode string
	totEnabled    bool

	links            Links
	remoteFreq       string
	pendingPlayback  string
	pendingLocalPlay string
	userOut          map[int]bool
	meterSource      func(which int) (float64, error)

	logger logFn
}

// logFn is a minimal structured-logging seam so this package doesn't need
// to import zap directly for every call site; cmd/nexuscored wires a real
// zap.SugaredLogger-backed implementation.
type logFn func(msg string, kv ...any)

// New builds a Node from its configuration. logger may be nil, in which
// case log calls are no-ops.
func New(name string, cfg config.NodeConfig, logger func(msg string, kv ...any)) *Node {
	if logger == nil {
		logger = func(string, ...any) {}
	}
	set := linkset.NewSet()
	return &Node{Name: name, Config: cfg, logger: logFn(logger), links: Links{Set: set, Fanout: linkset.NewFanout(set)}}
}

// SetDial wires the outbound connect/teardown functions the DTMF
// dispatcher's ilink handlers invoke; the owning process supplies these
// since the actual network transport lives outside this package.
func (n *Node) SetDial(dial func(peer string, mode linkset.Mode) error, teardown func(peer string) error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links.Dial = dial
	n.links.Teardown = teardown
}

// SetWriteFrame wires the transport-level frame writer DistributeFrame
// calls through; the owning process supplies this (a real link connection
// knows how to serialize a linkset.Frame onto its control channel).
func (n *Node) SetWriteFrame(write func(linkName string, f linkset.Frame) error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.links.WriteFrame = write
}

// DistributeFrame implements distribute_to_all_links for this node's link
// set (§4.3): frame originates locally (sourceName is this node's own
// name), so every connected link is a candidate destination. It is a
// no-op if no transport has been wired via SetWriteFrame yet.
func (n *Node) DistributeFrame(dest string, frame linkset.Frame, skipPhoneOnly bool) []error {
	n.mu.RLock()
	write := n.links.WriteFrame
	fo := n.links.Fanout
	n.mu.RUnlock()
	if write == nil {
		return nil
	}
	return fo.Send(n.Name, dest, frame, skipPhoneOnly, write)
}

// LinkSet exposes the node's link set for the observability layer.
func (n *Node) LinkSet() *linkset.Set { return n.links.Set }

// Snapshot is an immutable point-in-time view of a Node's state, safe to
// hand to the observability layer (internal/web) without holding any lock.
type Snapshot struct {
	Name     string
	Keying   Keying
	CallMode CallMode
	SysState SysState
	Counters Counters
	At       time.Time
}

// Snapshot returns the current state under the read lock.
func (n *Node) Snapshot() Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return Snapshot{
		Name: n.Name, Keying: n.Keying, CallMode: n.CallMode,
		SysState: n.SysState, Counters: n.Counters, At: time.Now(),
	}
}

// Key marks the node as locally transmitting, starting TOT and clearing
// any hang timer, mirroring step 2 of the controller loop.
func (n *Node) Key() {
	n.mu.Lock()
	if n.Keying.TxKeyed {
		n.mu.Unlock()
		return
	}
	n.Keying.TxKeyed = true
	n.CallMode = ModeLocalTx
	n.Counters.DailyKeyups++
	n.Counters.LifetimeKeyups++
	n.Timers.Hang().Disarm()
	n.Timers.TotalTimeout().Arm(n.Config.TotimeMS)
	n.lastKeyedNode = n.Name
	n.mu.Unlock()

	// Announce the keyup to every link (skipping phone-mode-only peers),
	// the v2 'K' text frame §4.3 describes.
	n.DistributeFrame("", linkset.KeyFrame(n.Name, true), true)
}

// Unkey clears the transmit keying flag and arms the hang timer.
func (n *Node) Unkey() {
	n.mu.Lock()
	if !n.Keying.TxKeyed {
		n.mu.Unlock()
		return
	}
	n.Keying.TxKeyed = false
	n.CallMode = ModeIdle
	n.Timers.TotalTimeout().Disarm()
	n.Timers.Hang().Arm(n.Config.HangTimeMS)
	n.mu.Unlock()

	n.DistributeFrame("", linkset.KeyFrame(n.Name, false), true)
}

// ObserveKeyingInputs updates the arbitration inputs (ReallyKeyed/ExtTx/
// RemoteRx) that drive ComputeTotx, for callers outside this package that
// watch carrier/link/remote-base state directly (the channel layer's COR
// detector, a link's keyed-frame handler). Key/Unkey remain the direct
// local-PTT override used by callers that don't go through arbitration.
func (n *Node) ObserveKeyingInputs(reallyKeyed, extTx, remoteRx bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Keying.ReallyKeyed = reallyKeyed
	n.Keying.ExtTx = extTx
	n.Keying.RemoteRx = remoteRx
}

// MixLinkAudio reports whether link audio should currently be mixed into
// the transmit path, per the duplex table (ShouldMixLinkAudio).
func (n *Node) MixLinkAudio() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return ShouldMixLinkAudio(n.Keying, n.Config.Duplex)
}

// applyTxArbitration recomputes TxKeyed from the duplex arbitration table
// given the current ReallyKeyed/ExtTx/RemoteRx inputs. Callers must hold
// n.mu. It is a no-op when the arbitrated result already matches TxKeyed,
// so it never fights with Key/Unkey's own timer bookkeeping.
func (n *Node) applyTxArbitration() {
	arbitrated := ComputeTotx(n.Keying, n.Config.Duplex)
	if arbitrated == n.Keying.TxKeyed {
		return
	}
	n.Keying.TxKeyed = arbitrated
	if !arbitrated {
		n.CallMode = ModeIdle
		n.Timers.TotalTimeout().Disarm()
		n.Timers.Hang().Arm(n.Config.HangTimeMS)
		return
	}
	switch {
	case n.Keying.ReallyKeyed:
		n.CallMode = ModeLocalTx
	case n.Keying.ExtTx:
		n.CallMode = ModeLinkTx
	case n.Keying.RemoteRx:
		n.CallMode = ModeRemoteTx
	}
	n.Timers.Hang().Disarm()
	n.Timers.TotalTimeout().Arm(n.Config.TotimeMS)
}

// appendMacro adds s to the macro buffer, or warns and drops the whole
// addition if it would exceed MaxMacroBuffer. Callers must hold n.mu.
func (n *Node) appendMacro(s string) {
	if len(n.macroBuffer)+len(s) > MaxMacroBuffer {
		n.logger("macro buffer full, dropping addition", "buffered", len(n.macroBuffer), "dropped", len(s))
		n.Telemetry.Push(telemetry.NewItem(telemetry.KindVarious, telemetry.ChannelLocal, "macro buffer full"))
		return
	}
	n.macroBuffer += s
}

// LastKeyedNode returns the name of whichever node most recently keyed
// this controller's transmitter (used by the ilink "7" status query).
func (n *Node) LastKeyedNode() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastKeyedNode
}

// StatusText renders a one-line human-readable status string for the
// status/AMI projection layers, using the teacher's NodeConfig.String
// summary as its base.
func (n *Node) StatusText() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.Config.String()
}

// SendTelemetry pushes a named telemetry item; kind is matched against
// this package's telemetryNames table (unknown names fall
// back to KindVarious so a typo never silently drops an announcement).
func (n *Node) SendTelemetry(kind string, param string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Telemetry.Push(telemetry.NewItem(telemetryKindByName(kind), telemetry.ChannelLocal, param))
}

func telemetryKindByName(name string) telemetry.TelemetryKind {
	if k, ok := telemetryNames[name]; ok {
		return k
	}
	return telemetry.KindVarious
}

var telemetryNames = map[string]telemetry.TelemetryKind{
	"id": telemetry.KindID, "proc": telemetry.KindProc, "term": telemetry.KindTerm,
	"status_message": telemetry.KindStatusMessage, "stats_time": telemetry.KindStatsTime,
	"stats_time_local": telemetry.KindStatsTimeLocal, "linked_links": telemetry.KindLinkedLinks,
	"last_node_key": telemetry.KindLastNodeKey, "alpha_radio_id": telemetry.KindAlphaRadioID,
	"meter_read": telemetry.KindMeterRead, "connected": telemetry.KindConnected,
	"conn_fail": telemetry.KindConnFail,
}
