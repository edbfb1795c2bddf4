package rptnode

import (
	"sync"
	"time"
)

// KeyingTracker implements jitter-compensated keying tracking for adjacent
// (linked) nodes: a link reporting "unkeyed" is not trusted until
// delayMS has passed without it re-keying, since link text-protocol
// frames can arrive slightly out of order across an unreliable transport.
// This resolves the open question in the controller's design notes about
// the IAXKEY/jitter-buffer race by keeping the delay at this layer (link
// keying confirmation) rather than trying to fix it in the transport.
type KeyingTracker struct {
	mu            sync.RWMutex
	localNode     string
	adjacent      map[string]*AdjacentStatus
	timerQueue    []unkeyCheck
	delay         time.Duration
	onTxStart     func(localNode, adjacentNode string, at time.Time)
	onTxEnd       func(localNode, adjacentNode string, at time.Time, duration time.Duration)
}

// AdjacentStatus tracks one linked node's keying state as seen from here.
type AdjacentStatus struct {
	Name           string
	IsKeyed        bool
	KeyedStartTime *time.Time
	IsTransmitting bool
	PendingUnkey   bool
	TotalTxTime    time.Duration
	LastTxEnd      *time.Time
}

type unkeyCheck struct {
	adjacent string
	at       time.Time
}

// NewKeyingTracker builds a tracker with a 2-second confirmation delay by
// default, matching the original controller's jitter-compensation window.
func NewKeyingTracker(localNode string, delay time.Duration) *KeyingTracker {
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &KeyingTracker{localNode: localNode, adjacent: make(map[string]*AdjacentStatus), delay: delay}
}

// SetCallbacks registers TX start/end callbacks, invoked while the
// tracker's lock is held; callbacks must not call back into the tracker.
func (kt *KeyingTracker) SetCallbacks(
	onStart func(localNode, adjacentNode string, at time.Time),
	onEnd func(localNode, adjacentNode string, at time.Time, duration time.Duration),
) {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	kt.onTxStart = onStart
	kt.onTxEnd = onEnd
}

// ObserveKeying updates the tracker with the current keyed flag for a
// named adjacent link; call once per incoming 'K' frame.
func (kt *KeyingTracker) ObserveKeying(adjacentNode string, keyed bool, at time.Time) {
	kt.mu.Lock()
	defer kt.mu.Unlock()

	kt.processExpired(at)

	status, exists := kt.adjacent[adjacentNode]
	if !exists {
		status = &AdjacentStatus{Name: adjacentNode}
		kt.adjacent[adjacentNode] = status
	}

	switch {
	case keyed && !status.IsTransmitting:
		status.IsKeyed = true
		status.IsTransmitting = true
		status.PendingUnkey = false
		start := at
		status.KeyedStartTime = &start
		kt.clearQueueFor(adjacentNode)
		if kt.onTxStart != nil {
			kt.onTxStart(kt.localNode, adjacentNode, at)
		}
	case !keyed && status.IsTransmitting:
		status.IsKeyed = false
		status.PendingUnkey = true
		kt.timerQueue = append(kt.timerQueue, unkeyCheck{adjacent: adjacentNode, at: at.Add(kt.delay)})
	case keyed && status.IsTransmitting:
		status.IsKeyed = true
		status.PendingUnkey = false
		kt.clearQueueFor(adjacentNode)
	}
}

// Advance runs due unkey confirmations as of "now"; call this once per
// controller tick so confirmations fire even without fresh keying events.
func (kt *KeyingTracker) Advance(now time.Time) {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	kt.processExpired(now)
}

func (kt *KeyingTracker) processExpired(now time.Time) {
	kept := kt.timerQueue[:0]
	for _, t := range kt.timerQueue {
		if t.at.After(now) {
			kept = append(kept, t)
			continue
		}
		status, exists := kt.adjacent[t.adjacent]
		if !exists {
			continue
		}
		if !status.IsKeyed && status.IsTransmitting {
			kt.confirmTxEnd(now, t.adjacent, status)
		}
	}
	kt.timerQueue = kept
}

func (kt *KeyingTracker) confirmTxEnd(now time.Time, adjacentNode string, status *AdjacentStatus) {
	if status.KeyedStartTime == nil {
		return
	}
	duration := now.Sub(*status.KeyedStartTime)
	status.TotalTxTime += duration
	status.IsTransmitting = false
	status.PendingUnkey = false
	status.KeyedStartTime = nil
	status.LastTxEnd = &now
	if kt.onTxEnd != nil {
		kt.onTxEnd(kt.localNode, adjacentNode, now, duration)
	}
}

func (kt *KeyingTracker) clearQueueFor(adjacentNode string) {
	kept := kt.timerQueue[:0]
	for _, t := range kt.timerQueue {
		if t.adjacent != adjacentNode {
			kept = append(kept, t)
		}
	}
	kt.timerQueue = kept
}

// Remove drops an adjacent node's tracked state (on disconnect).
func (kt *KeyingTracker) Remove(adjacentNode string) {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	delete(kt.adjacent, adjacentNode)
	kt.clearQueueFor(adjacentNode)
}

// Status returns a snapshot of one adjacent node's tracked state.
func (kt *KeyingTracker) Status(adjacentNode string) (AdjacentStatus, bool) {
	kt.mu.RLock()
	defer kt.mu.RUnlock()
	s, ok := kt.adjacent[adjacentNode]
	if !ok {
		return AdjacentStatus{}, false
	}
	return *s, true
}

// All returns a snapshot of every tracked adjacent node.
func (kt *KeyingTracker) All() map[string]AdjacentStatus {
	kt.mu.RLock()
	defer kt.mu.RUnlock()
	out := make(map[string]AdjacentStatus, len(kt.adjacent))
	for k, v := range kt.adjacent {
		out[k] = *v
	}
	return out
}
