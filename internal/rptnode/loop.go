package rptnode

import (
	"time"

	"github.com/dbehnke/nexus-core/internal/dtmf"
	"github.com/dbehnke/nexus-core/internal/telemetry"
)

// Loop drives one Node's per-tick state machine: timer advancement,
// DTMF macro-buffer consumption, and scheduler evaluation. The host
// process owns the ticker (nominally 20ms, per SPEC_FULL §4.1) and calls
// Tick once per period; this keeps the state machine itself decoupled
// from real time; internal/timers and this file's tests cover it.
type Loop struct {
	node       *Node
	dispatcher *dtmf.Dispatcher
	scheduler  *Scheduler
}

// NewLoop builds a Loop for node, wiring dispatcher (may be nil if DTMF
// isn't needed, e.g. in isolated tests) and the node's configured
// scheduler entries.
func NewLoop(node *Node, dispatcher *dtmf.Dispatcher, entries []ScheduleEntry) *Loop {
	return &Loop{node: node, dispatcher: dispatcher, scheduler: NewScheduler(entries)}
}

// Tick advances the node by elapsed (typically one controller period) and
// applies whatever timer expirations and scheduled macros result.
func (l *Loop) Tick(now time.Time, elapsed time.Duration) {
	n := l.node
	n.mu.Lock()

	exp := n.Timers.Advance(int(elapsed.Milliseconds()))

	if exp.TotalTimeout {
		n.Keying.TxKeyed = false
		n.CallMode = ModeIdle
		n.Telemetry.KillAllKillable()
		n.Telemetry.Push(telemetry.NewItem(telemetry.KindTimeout, telemetry.ChannelLocal, ""))
		n.Timers.Hang().Arm(n.Config.HangTimeMS)
	} else {
		n.applyTxArbitration()
	}

	if exp.Identifier {
		n.Telemetry.Push(telemetry.NewItem(telemetry.KindID, telemetry.ChannelLocal, ""))
		if n.Config.IDTimeMS > 0 {
			n.Timers.Identifier().Arm(n.Config.IDTimeMS)
		}
	}

	if exp.Hang {
		n.Telemetry.Push(telemetry.NewItem(telemetry.KindProc, telemetry.ChannelLocal, "courtesy"))
	}

	if exp.Sleep {
		n.sleeping = true
		n.Telemetry.Push(telemetry.NewItem(telemetry.KindSleepTimeout, telemetry.ChannelLocal, ""))
	}

	macros := l.scheduler.Tick(now)
	for _, m := range macros {
		n.appendMacro(m)
	}

	var nextDigit byte
	haveDigit := false
	if l.dispatcher != nil && len(n.macroBuffer) > 0 {
		nextDigit = n.macroBuffer[0]
		n.macroBuffer = n.macroBuffer[1:]
		haveDigit = true
	}
	n.mu.Unlock()

	if haveDigit {
		l.dispatcher.Feed(n, dtmf.SourceRadio, nextDigit)
	}
}

// PendingTelemetry pops the next queued telemetry item, if any, for the
// host audio layer to actually play.
func (l *Loop) PendingTelemetry() (telemetry.Item, bool) {
	l.node.mu.Lock()
	defer l.node.mu.Unlock()
	return l.node.Telemetry.Pop()
}
