package engine

import "testing"

func TestPairingTable_PairIsMutual(t *testing.T) {
	pt := NewPairingTable()

	if err := pt.Pair("a", "b", "ep1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p, ok := pt.PartnerOf("a"); !ok || p != "b" {
		t.Errorf("partnerOf(a) = (%q, %v), want b", p, ok)
	}
	if p, ok := pt.PartnerOf("b"); !ok || p != "a" {
		t.Errorf("partnerOf(b) = (%q, %v), want a", p, ok)
	}
	if ep, _ := pt.EpisodeOf("a"); ep != "ep1" {
		t.Errorf("episodeOf(a) = %q, want ep1", ep)
	}
	if pt.Len() != 1 {
		t.Errorf("expected 1 pairing, got %d", pt.Len())
	}
}

func TestPairingTable_RejectsSelfAndDoublePairing(t *testing.T) {
	pt := NewPairingTable()

	if err := pt.Pair("a", "a", "ep1"); err == nil {
		t.Error("self-pairing accepted")
	}

	pt.Pair("a", "b", "ep1")
	if err := pt.Pair("a", "c", "ep2"); err == nil {
		t.Error("double pairing of a accepted")
	}
	if err := pt.Pair("c", "b", "ep2"); err == nil {
		t.Error("double pairing of b accepted")
	}
}

func TestPairingTable_UnpairRemovesBothSides(t *testing.T) {
	pt := NewPairingTable()
	pt.Pair("a", "b", "ep1")

	partner, episodeID, ok := pt.Unpair("a")
	if !ok || partner != "b" || episodeID != "ep1" {
		t.Fatalf("unpair(a) = (%q, %q, %v), want (b, ep1, true)", partner, episodeID, ok)
	}

	if _, ok := pt.PartnerOf("a"); ok {
		t.Error("a still present after unpair")
	}
	if _, ok := pt.PartnerOf("b"); ok {
		t.Error("b still present after partner's unpair")
	}
	if _, _, ok := pt.Unpair("a"); ok {
		t.Error("second unpair reported success")
	}
}
