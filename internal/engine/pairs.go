package engine

import "fmt"

// PairingTable is the single source of truth for who is talking to whom. A
// pairing is stored as two directed entries that are always inserted and
// removed together, so the relation is never half-present. Each pairing
// carries an opaque episode ID minted at pair time. Not goroutine safe; the
// engine serializes access.
type PairingTable struct {
	partners map[string]string // connID -> partner connID, both directions
	episodes map[string]string // connID -> episode ID, both directions
}

// NewPairingTable creates an empty table.
func NewPairingTable() *PairingTable {
	return &PairingTable{
		partners: make(map[string]string),
		episodes: make(map[string]string),
	}
}

// Pair installs the mutual relation between a and b under the given episode
// ID. It fails if either side is already paired or a == b.
func (pt *PairingTable) Pair(a, b, episodeID string) error {
	if a == b {
		return fmt.Errorf("pairs: cannot pair %s with itself", a)
	}
	if p, ok := pt.partners[a]; ok {
		return fmt.Errorf("pairs: %s already paired with %s", a, p)
	}
	if p, ok := pt.partners[b]; ok {
		return fmt.Errorf("pairs: %s already paired with %s", b, p)
	}
	pt.partners[a] = b
	pt.partners[b] = a
	pt.episodes[a] = episodeID
	pt.episodes[b] = episodeID
	return nil
}

// PartnerOf returns the current partner of connID, if any.
func (pt *PairingTable) PartnerOf(connID string) (string, bool) {
	p, ok := pt.partners[connID]
	return p, ok
}

// EpisodeOf returns the episode ID of connID's current pairing, if any.
func (pt *PairingTable) EpisodeOf(connID string) (string, bool) {
	ep, ok := pt.episodes[connID]
	return ep, ok
}

// Unpair removes both directed entries in one step and returns the former
// partner and episode ID so the caller can notify and block the pair.
func (pt *PairingTable) Unpair(connID string) (partner, episodeID string, ok bool) {
	partner, ok = pt.partners[connID]
	if !ok {
		return "", "", false
	}
	episodeID = pt.episodes[connID]
	delete(pt.partners, connID)
	delete(pt.partners, partner)
	delete(pt.episodes, connID)
	delete(pt.episodes, partner)
	return partner, episodeID, true
}

// Len returns the number of active pairings (not directed entries).
func (pt *PairingTable) Len() int {
	return len(pt.partners) / 2
}
