// Package telemetry implements the node's spoken/tone announcement queue:
// a single typed sum (TelemetryKind) replaces the switch-soup of string
// telemetry names the original controller dispatched on (§9 redesign note),
// and a FIFO queue with kill/coalesce semantics replaces the ad-hoc
// "telemetry already in progress" flag checks.
package telemetry

import "github.com/google/uuid"

// TelemetryKind enumerates every announcement/tone mode a node can queue.
// Names mirror the original rpt_telemetry() switch cases.
type TelemetryKind int

const (
	KindUnknown TelemetryKind = iota
	KindID
	KindIDTalk
	KindProc
	KindTerm
	KindComplete
	KindMacroNotFound
	KindMacroBusy
	KindUnauthorized
	KindSetRemote
	KindTune
	KindRemonEnable
	KindRemonDisable
	KindRemXXX
	KindVarious
	KindReject
	KindCopFail
	KindCmdMode
	KindArbAlarm
	KindTimeoutWarning
	KindTimeout
	KindStatusMessage
	KindStats
	KindStatsTime
	KindStatsTimeLocal
	KindPlayback
	KindLocalPlay
	KindConnected
	KindConnFail
	KindRemNotFound
	KindRemoteTx
	KindRemoteMon
	KindTooMany
	KindParrot
	KindTimeoutMessage
	KindVoterChange
	KindPage
	KindMDC1200
	KindLinkedLinks
	KindLastNodeKey
	KindFullyBusy
	KindSleepTimeout
	KindUserOut
	KindMeterRead
	KindAlphaRadioID
	KindTailMessage
	KindScheduler
)

// AudioChannel identifies which sub-mix an item plays through; the original
// controller muxed telemetry onto a fixed small set of audio buses (local TX,
// link TX, monitor) rather than one channel per kind.
type AudioChannel int

const (
	ChannelLocal AudioChannel = iota
	ChannelLink
	ChannelMonitor
)

// Killable reports whether a queued item may be discarded mid-playback when
// a higher-priority item needs the channel (e.g. a courtesy tone can be cut
// short by a fresh ID, but an MDC1200/PAGE burst must always finish so its
// heap-allocated buffer is freed deterministically regardless of abort).
func (k TelemetryKind) Killable() bool {
	switch k {
	case KindMDC1200, KindPage:
		return false
	default:
		return true
	}
}

// Coalesces reports whether queuing another item of the same kind should
// replace the most recent queued-but-not-yet-playing item instead of
// appending a duplicate (e.g. repeated status polls).
func (k TelemetryKind) Coalesces() bool {
	switch k {
	case KindStatusMessage, KindMeterRead, KindTimeoutWarning:
		return true
	default:
		return false
	}
}

// Item is a single queued telemetry announcement.
type Item struct {
	ID      string
	Kind    TelemetryKind
	Channel AudioChannel
	Param   string // free-form payload: macro digits, remote freq string, etc.
}

// NewItem builds an Item with a fresh session-scoped ID.
func NewItem(kind TelemetryKind, channel AudioChannel, param string) Item {
	return Item{ID: uuid.NewString(), Kind: kind, Channel: channel, Param: param}
}

// Queue is a FIFO of pending telemetry items with kill/coalesce semantics.
// Not safe for concurrent use without external locking; the node controller
// owns a Queue per node and only its own goroutine touches it.
type Queue struct {
	items []Item
}

// Push appends item, first applying coalesce and kill rules.
func (q *Queue) Push(item Item) {
	if item.Kind.Coalesces() && len(q.items) > 0 {
		last := &q.items[len(q.items)-1]
		if last.Kind == item.Kind {
			*last = item
			return
		}
	}
	q.items = append(q.items, item)
}

// Kill removes every killable queued item of the given kind, returning how
// many were removed. Non-killable items (MDC1200, PAGE) are never touched.
func (q *Queue) Kill(kind TelemetryKind) int {
	kept := q.items[:0]
	removed := 0
	for _, it := range q.items {
		if it.Kind == kind && it.Kind.Killable() {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	q.items = kept
	return removed
}

// KillAllKillable clears every killable item, used when a fresh keyup
// preempts whatever telemetry is in flight.
func (q *Queue) KillAllKillable() int {
	kept := q.items[:0]
	removed := 0
	for _, it := range q.items {
		if it.Kind.Killable() {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	q.items = kept
	return removed
}

// Pop removes and returns the next item in FIFO order. ok is false if empty.
func (q *Queue) Pop() (item Item, ok bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len reports the number of pending items.
func (q *Queue) Len() int { return len(q.items) }

// Peek returns the next item without removing it.
func (q *Queue) Peek() (item Item, ok bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}
