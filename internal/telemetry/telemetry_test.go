package telemetry

import "testing"

func TestQueueFIFOOrder(t *testing.T) {
	var q Queue
	q.Push(NewItem(KindID, ChannelLocal, ""))
	q.Push(NewItem(KindComplete, ChannelLocal, ""))

	first, ok := q.Pop()
	if !ok || first.Kind != KindID {
		t.Fatalf("expected KindID first, got %v ok=%v", first.Kind, ok)
	}
	second, ok := q.Pop()
	if !ok || second.Kind != KindComplete {
		t.Fatalf("expected KindComplete second, got %v ok=%v", second.Kind, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestCoalescingReplacesLastOfSameKind(t *testing.T) {
	var q Queue
	q.Push(NewItem(KindStatusMessage, ChannelLocal, "first"))
	q.Push(NewItem(KindStatusMessage, ChannelLocal, "second"))

	if q.Len() != 1 {
		t.Fatalf("coalescing kinds must not grow the queue, len=%d", q.Len())
	}
	item, _ := q.Peek()
	if item.Param != "second" {
		t.Fatalf("expected the newer payload to win, got %q", item.Param)
	}
}

func TestNonCoalescingKindsStack(t *testing.T) {
	var q Queue
	q.Push(NewItem(KindID, ChannelLocal, ""))
	q.Push(NewItem(KindID, ChannelLocal, ""))
	if q.Len() != 2 {
		t.Fatalf("non-coalescing kind must stack, len=%d", q.Len())
	}
}

func TestKillRemovesOnlyKillableMatchingKind(t *testing.T) {
	var q Queue
	q.Push(NewItem(KindID, ChannelLocal, ""))
	q.Push(NewItem(KindMDC1200, ChannelLocal, "burst"))
	q.Push(NewItem(KindID, ChannelLocal, "second-id"))

	removed := q.Kill(KindID)
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if q.Len() != 1 {
		t.Fatalf("MDC1200 item must survive a kill of KindID, len=%d", q.Len())
	}
	remaining, _ := q.Peek()
	if remaining.Kind != KindMDC1200 {
		t.Fatalf("expected surviving item to be KindMDC1200, got %v", remaining.Kind)
	}
}

func TestKillAllKillablePreservesNonKillable(t *testing.T) {
	var q Queue
	q.Push(NewItem(KindPage, ChannelLocal, ""))
	q.Push(NewItem(KindMDC1200, ChannelLocal, ""))
	q.Push(NewItem(KindComplete, ChannelLocal, ""))

	removed := q.KillAllKillable()
	if removed != 1 {
		t.Fatalf("expected 1 killable item removed, got %d", removed)
	}
	if q.Len() != 2 {
		t.Fatalf("both non-killable items must survive, len=%d", q.Len())
	}
}

func TestItemsGetUniqueIDs(t *testing.T) {
	a := NewItem(KindID, ChannelLocal, "")
	b := NewItem(KindID, ChannelLocal, "")
	if a.ID == "" || b.ID == "" {
		t.Fatal("items must get a non-empty ID")
	}
	if a.ID == b.ID {
		t.Fatal("items must get unique IDs")
	}
}
