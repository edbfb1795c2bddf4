package rptnode

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dbehnke/nexus-core/internal/linkset"
	"github.com/dbehnke/nexus-core/internal/telemetry"
)

// Links is the subset of link-management operations the DTMF dispatcher
// needs; Node wires a *linkset.Set plus a dial/teardown callback supplied
// by the owning process (the actual network connect belongs to
// internal/linkset.Resolver + whatever transport the link uses). Fanout
// distributes frames across whatever links are presently in Set;
// WriteFrame is the transport-level seam it calls through, supplied by
// the owning process alongside Dial/Teardown.
type Links struct {
	Set           *linkset.Set
	Fanout        *linkset.Fanout
	Dial          func(peer string, mode linkset.Mode) error
	Teardown      func(peer string) error
	WriteFrame    func(linkName string, f linkset.Frame) error
	lastConnected string
}

// ConnectLink implements dtmf.NodeContext: dials the peer, then enters it
// into the link set. Set.Add enforces §3's "at most one link per peer
// name" invariant, so a peer already present fails here with "already
// connected" even though Dial itself succeeded in redialing it.
func (n *Node) ConnectLink(peer string, mode string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.links.Dial == nil {
		return fmt.Errorf("rptnode: no dial function configured")
	}
	m := linkset.ModeTransceive
	switch mode {
	case "monitor":
		m = linkset.ModeMonitor
	case "local_monitor":
		m = linkset.ModeLocalMonitor
	}
	if err := n.links.Dial(peer, m); err != nil {
		return err
	}
	if err := n.links.Set.Add(&linkset.Link{Name: peer, IsLocal: true, Mode: m, Connected: true, ConnectedAt: time.Now()}); err != nil {
		if n.links.Teardown != nil {
			_ = n.links.Teardown(peer)
		}
		return err
	}
	n.links.lastConnected = peer
	return nil
}

// DisconnectLink implements dtmf.NodeContext.
func (n *Node) DisconnectLink(peer string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.links.Teardown == nil {
		return fmt.Errorf("rptnode: no teardown function configured")
	}
	if err := n.links.Teardown(peer); err != nil {
		return err
	}
	n.links.Set.Remove(peer)
	return nil
}

// DisconnectAllLinks implements dtmf.NodeContext.
func (n *Node) DisconnectAllLinks() {
	n.mu.RLock()
	snap := n.links.Set.Snapshot()
	teardown := n.links.Teardown
	n.mu.RUnlock()
	if teardown == nil {
		return
	}
	for _, l := range snap {
		if err := teardown(l.Name); err == nil {
			n.links.Set.Remove(l.Name)
		}
	}
}

// ReconnectLastLink implements dtmf.NodeContext.
func (n *Node) ReconnectLastLink() error {
	n.mu.RLock()
	peer := n.links.lastConnected
	n.mu.RUnlock()
	if peer == "" {
		return fmt.Errorf("rptnode: no previous link to reconnect")
	}
	return n.ConnectLink(peer, "transceive")
}

// SetLinkKeyed updates one link's keyed state in the link set and
// recomputes ExtTx (whether any link currently wants the transmitter) for
// the duplex arbitration table, without disturbing the local-carrier or
// remote-base inputs.
func (n *Node) SetLinkKeyed(peer string, keyed bool, at time.Time) {
	n.links.Set.SetKeyed(peer, keyed, at)
	any, _ := n.links.Set.AnyKeyed()
	n.mu.Lock()
	reallyKeyed, remoteRx := n.Keying.ReallyKeyed, n.Keying.RemoteRx
	n.mu.Unlock()
	n.ObserveKeyingInputs(reallyKeyed, any, remoteRx)
}

// SetRemoteFreq implements dtmf.NodeContext; remote-base radio control
// itself is out of scope (no rig driver in this repo), so this records
// the requested frequency for telemetry/status purposes only.
func (n *Node) SetRemoteFreq(freq string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.remoteFreq = freq
	return nil
}

// PlaybackFile implements dtmf.NodeContext; actual audio file playback
// belongs to the host channel (out of scope), so this only validates the
// index and records it as the pending playback request.
func (n *Node) PlaybackFile(path string) error {
	if _, err := strconv.Atoi(path); err != nil {
		return fmt.Errorf("rptnode: bad playback index %q: %w", path, err)
	}
	n.mu.Lock()
	n.pendingPlayback = path
	n.mu.Unlock()
	return nil
}

// LocalPlayFile implements dtmf.NodeContext, same contract as PlaybackFile
// but for announcements that never cross a link.
func (n *Node) LocalPlayFile(path string) error {
	if _, err := strconv.Atoi(path); err != nil {
		return fmt.Errorf("rptnode: bad local-play index %q: %w", path, err)
	}
	n.mu.Lock()
	n.pendingLocalPlay = path
	n.mu.Unlock()
	return nil
}

// SetUserOut implements dtmf.NodeContext; GPIO/DAQ plumbing is out of
// scope, so this records the requested state for a host-supplied driver
// to poll.
func (n *Node) SetUserOut(bit int, value bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.userOut == nil {
		n.userOut = make(map[int]bool)
	}
	n.userOut[bit] = value
}

// ReadMeter implements dtmf.NodeContext by deferring to a host-supplied
// meter source; with none configured it reports zero.
func (n *Node) ReadMeter(which int) (float64, error) {
	n.mu.RLock()
	src := n.meterSource
	n.mu.RUnlock()
	if src == nil {
		return 0, nil
	}
	return src(which)
}

// RunMacro implements dtmf.NodeContext by appending to the macro buffer,
// consumed one character per controller tick per the original loop's
// macro-injection step.
func (n *Node) RunMacro(digits string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.appendMacro(digits)
}

// ControlOp implements dtmf.NodeContext, applying the named cop effect.
func (n *Node) ControlOp(code string, arg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch code {
	case "enable_tot":
		n.totEnabled = true
	case "disable_tot":
		n.totEnabled = false
		n.Timers.TotalTimeout().Disarm()
	case "id_now":
		n.Telemetry.Push(telemetry.NewItem(telemetry.KindID, telemetry.ChannelLocal, ""))
	case "reset_daily_counters":
		n.Counters.DailyKeyups = 0
		n.Counters.DailyTxSeconds = 0
		n.Counters.DailyKerchunks = 0
	case "toggle_duplex":
		n.Config.Duplex = (n.Config.Duplex + 1) % 5
	case "set_duplex_0", "set_duplex_1", "set_duplex_2", "set_duplex_3", "set_duplex_4":
		n.Config.Duplex = int(code[len(code)-1] - '0')
	case "enable_sleep_mode":
		n.sleeping = true
		n.Timers.Sleep().Arm(n.Config.SleepTimeSec * 1000)
	case "disable_sleep_mode":
		n.sleeping = false
		n.Timers.Sleep().Disarm()
	case "enable_parrot_mode":
		n.parrotOnce = false
	case "disable_parrot_mode":
		n.parrotOnce = true
	default:
		// Unknown/no-op effects (e.g. enable_led, enable_ct, restart_courtesy_tone)
		// have no persisted state here; they are handled by the host channel layer
		// this repo doesn't implement (rig/indicator control).
	}
	return nil
}
