package engine

import "time"

// BlockedPairSet is a time-boxed exclusion list that keeps two recently
// separated users from being rematched immediately. Keys are canonical
// (order-independent); expiry is enforced only by the periodic sweep, so a
// pair can stay blocked slightly past its TTL under load. Lookups are O(1).
// Not goroutine safe; the engine serializes access.
type BlockedPairSet struct {
	entries map[string]time.Time // canonical pair key -> absolute expiry
}

// NewBlockedPairSet creates an empty set.
func NewBlockedPairSet() *BlockedPairSet {
	return &BlockedPairSet{entries: make(map[string]time.Time)}
}

// PairKey returns the canonical order-independent key for two connection IDs.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// Block inserts the pair with the given absolute expiry. Re-blocking an
// existing pair extends its expiry.
func (bp *BlockedPairSet) Block(a, b string, expiry time.Time) {
	bp.entries[PairKey(a, b)] = expiry
}

// IsBlocked reports whether the pair is present, regardless of expiry.
func (bp *BlockedPairSet) IsBlocked(a, b string) bool {
	_, ok := bp.entries[PairKey(a, b)]
	return ok
}

// SweepExpired removes every record whose expiry has passed and returns the
// number removed.
func (bp *BlockedPairSet) SweepExpired(now time.Time) int {
	removed := 0
	for key, expiry := range bp.entries {
		if !expiry.After(now) {
			delete(bp.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of blocked pairs, expired ones included.
func (bp *BlockedPairSet) Len() int {
	return len(bp.entries)
}
