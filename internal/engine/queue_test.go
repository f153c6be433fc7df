package engine

import (
	"testing"
	"time"
)

func TestWaitingQueue_EnqueueRejectsDuplicates(t *testing.T) {
	q := NewWaitingQueue()
	now := time.Now()

	seq1, ok := q.Enqueue("a", &Preferences{}, now)
	if !ok {
		t.Fatal("first enqueue failed")
	}
	if _, ok := q.Enqueue("a", &Preferences{}, now); ok {
		t.Fatal("duplicate enqueue accepted")
	}
	if q.Size() != 1 {
		t.Errorf("expected size 1, got %d", q.Size())
	}

	// Removing and re-enqueueing yields a fresh generation number.
	q.Remove("a")
	seq2, ok := q.Enqueue("a", &Preferences{}, now)
	if !ok {
		t.Fatal("re-enqueue failed")
	}
	if seq2 <= seq1 {
		t.Errorf("expected generation to advance, got %d then %d", seq1, seq2)
	}
}

func TestWaitingQueue_SnapshotPreservesInsertionOrder(t *testing.T) {
	q := NewWaitingQueue()
	now := time.Now()

	q.Enqueue("a", &Preferences{}, now)
	q.Enqueue("b", &Preferences{}, now)
	q.Enqueue("c", &Preferences{}, now)
	q.Remove("b")

	snap := q.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(snap))
	}
	if snap[0].ConnID != "a" || snap[1].ConnID != "c" {
		t.Errorf("expected order [a c], got [%s %s]", snap[0].ConnID, snap[1].ConnID)
	}
}

func TestWaitingQueue_RemoveReportsPresence(t *testing.T) {
	q := NewWaitingQueue()

	if q.Remove("ghost") {
		t.Error("remove of absent entry reported true")
	}
	q.Enqueue("a", &Preferences{}, time.Now())
	if !q.Remove("a") {
		t.Error("remove of present entry reported false")
	}
	if q.Get("a") != nil {
		t.Error("entry still retrievable after removal")
	}
}
