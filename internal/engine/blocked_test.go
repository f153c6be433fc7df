package engine

import (
	"testing"
	"time"
)

func TestPairKey_Canonical(t *testing.T) {
	if PairKey("a", "b") != PairKey("b", "a") {
		t.Error("pair key must be order independent")
	}
	if PairKey("a", "b") == PairKey("a", "c") {
		t.Error("distinct pairs must have distinct keys")
	}
}

func TestBlockedPairSet_BlockAndLookup(t *testing.T) {
	bp := NewBlockedPairSet()
	now := time.Now()

	bp.Block("a", "b", now.Add(time.Minute))

	if !bp.IsBlocked("a", "b") || !bp.IsBlocked("b", "a") {
		t.Error("blocked pair not found in both orders")
	}
	if bp.IsBlocked("a", "c") {
		t.Error("unrelated pair reported blocked")
	}
}

func TestBlockedPairSet_SweepIsDeterministic(t *testing.T) {
	bp := NewBlockedPairSet()
	now := time.Now()

	bp.Block("a", "b", now.Add(-time.Second))
	bp.Block("c", "d", now)
	bp.Block("e", "f", now.Add(time.Second))

	// Entries at or before now go, strictly future ones stay. Every sweep
	// with the same inputs removes the same entries.
	if removed := bp.SweepExpired(now); removed != 2 {
		t.Errorf("expected 2 removals, got %d", removed)
	}
	if bp.IsBlocked("a", "b") || bp.IsBlocked("c", "d") {
		t.Error("expired pair survived the sweep")
	}
	if !bp.IsBlocked("e", "f") {
		t.Error("unexpired pair was removed")
	}
	if removed := bp.SweepExpired(now); removed != 0 {
		t.Errorf("second sweep removed %d entries", removed)
	}
}

func TestBlockedPairSet_ReblockExtendsExpiry(t *testing.T) {
	bp := NewBlockedPairSet()
	now := time.Now()

	bp.Block("a", "b", now.Add(-time.Minute))
	bp.Block("a", "b", now.Add(time.Minute))

	bp.SweepExpired(now)
	if !bp.IsBlocked("a", "b") {
		t.Error("re-block did not extend the expiry")
	}
}
