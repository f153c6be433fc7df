package engine

import (
	"testing"
	"time"
)

// offPeakHour is outside the evening bonus window.
const offPeakHour = 10

func testSession(connID, country, continent, tz string, interests ...string) *Session {
	s := &Session{ConnID: connID, Token: connID + "-token"}
	if country != "" {
		s.Location = &Location{Country: country, Continent: continent, Timezone: tz}
	}
	s.Prefs = &Preferences{Interests: interests}
	return s
}

func TestScoreCandidate_WaitBonusMonotonicAndCapped(t *testing.T) {
	req := testSession("a", "", "", "")
	cand := testSession("b", "", "", "")

	short := ScoreCandidate(req, cand, 10*time.Second, offPeakHour, 0)
	long := ScoreCandidate(req, cand, 40*time.Second, offPeakHour, 0)
	if long <= short {
		t.Errorf("longer wait must score strictly higher: %f vs %f", long, short)
	}

	atCap := ScoreCandidate(req, cand, 80*time.Second, offPeakHour, 0)
	pastCap := ScoreCandidate(req, cand, 200*time.Second, offPeakHour, 0)
	if atCap != pastCap {
		t.Errorf("wait bonus must cap at 80s: %f vs %f", atCap, pastCap)
	}
}

func TestScoreCandidate_SameCountryBeatsSameContinent(t *testing.T) {
	req := testSession("a", "DE", "Europe", "")
	sameCountry := testSession("b", "DE", "Europe", "")
	sameContinent := testSession("c", "FR", "Europe", "")
	elsewhere := testSession("d", "JP", "Asia", "")

	s1 := ScoreCandidate(req, sameCountry, 0, offPeakHour, 0)
	s2 := ScoreCandidate(req, sameContinent, 0, offPeakHour, 0)
	s3 := ScoreCandidate(req, elsewhere, 0, offPeakHour, 0)

	if !(s1 > s2 && s2 > s3) {
		t.Errorf("expected country > continent > neither, got %f / %f / %f", s1, s2, s3)
	}
}

func TestScoreCandidate_PreferSameCountryDoublesBonus(t *testing.T) {
	req := testSession("a", "DE", "Europe", "")
	cand := testSession("b", "DE", "Europe", "")

	plain := ScoreCandidate(req, cand, 0, offPeakHour, 0)

	req.Prefs.PreferSameCountry = true
	doubled := ScoreCandidate(req, cand, 0, offPeakHour, 0)

	if doubled-plain != countryBonus {
		t.Errorf("expected the country bonus doubled with the preference set, delta=%f", doubled-plain)
	}
}

func TestScoreCandidate_PriorPartnerPenalized(t *testing.T) {
	req := testSession("a", "", "", "")
	cand := testSession("b", "", "", "")

	fresh := ScoreCandidate(req, cand, 0, offPeakHour, 0)

	req.PreviousPartners = []string{"b"}
	seen := ScoreCandidate(req, cand, 0, offPeakHour, 0)

	if fresh-seen != priorPartnerPenalty {
		t.Errorf("expected prior-partner penalty %f, got delta %f", priorPartnerPenalty, fresh-seen)
	}
	if seen <= 0 {
		t.Errorf("a prior partner must remain matchable, score=%f", seen)
	}
}

func TestScoreCandidate_SharedInterestsCountOnce(t *testing.T) {
	req := testSession("a", "", "", "", "music", "gaming")
	cand := testSession("b", "", "", "", "music", "music", "gaming", "travel")

	base := ScoreCandidate(testSession("a", "", "", ""), testSession("b", "", "", ""), 0, offPeakHour, 0)
	scored := ScoreCandidate(req, cand, 0, offPeakHour, 0)

	if scored-base != 2*sharedInterestWeight {
		t.Errorf("expected 2 shared interests worth %f, got delta %f",
			2*sharedInterestWeight, scored-base)
	}
}

func TestScoreCandidate_TimezoneNeedsBothSides(t *testing.T) {
	withTZ := testSession("a", "DE", "Europe", "CET")
	noTZ := testSession("b", "FR", "Europe", "")
	alsoTZ := testSession("c", "FR", "Europe", "CEST")

	missing := ScoreCandidate(withTZ, noTZ, 0, offPeakHour, 0)
	both := ScoreCandidate(withTZ, alsoTZ, 0, offPeakHour, 0)

	if both-missing != timezoneBonus {
		t.Errorf("expected timezone bonus only when both sides report one, delta=%f", both-missing)
	}
}

func TestScoreCandidate_PeakHoursBonus(t *testing.T) {
	req := testSession("a", "", "", "")
	cand := testSession("b", "", "", "")

	off := ScoreCandidate(req, cand, 0, offPeakHour, 0)
	peak := ScoreCandidate(req, cand, 0, 20, 0)

	if peak-off != peakHoursBonus {
		t.Errorf("expected peak-hours bonus %f, got delta %f", peakHoursBonus, peak-off)
	}
}

func TestScoreCandidate_JitterBounded(t *testing.T) {
	req := testSession("a", "", "", "")
	cand := testSession("b", "", "", "")

	low := ScoreCandidate(req, cand, 0, offPeakHour, 0)
	high := ScoreCandidate(req, cand, 0, offPeakHour, 0.999)

	if high <= low {
		t.Error("jitter must raise the score")
	}
	if high-low >= jitterRange {
		t.Errorf("jitter delta %f exceeds its range %f", high-low, jitterRange)
	}
}
