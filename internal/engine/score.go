package engine

import "time"

// Scoring weights. Base compatibility is granted to every surviving
// candidate; the rest shift the ranking without excluding anyone.
const (
	baseCompatibilityBonus = 100.0
	priorPartnerPenalty    = 30.0
	countryBonus           = 25.0
	continentBonus         = 10.0
	timezoneBonus          = 5.0
	sharedInterestWeight   = 15.0
	waitBonusCap           = 80.0
	peakHoursBonus         = 10.0
	jitterRange            = 15.0

	peakStartHour = 18
	peakEndHour   = 23
)

// ScoreCandidate computes the matching score of candidate for requester. It
// is a pure function: waited is how long the candidate has been in the
// queue, hour is the server's local hour, and jitter is a random value in
// [0, 1) supplied by the caller so tests can fix it.
//
// Both sessions must have non-nil preferences; candidates without them are
// excluded before scoring, not penalized.
func ScoreCandidate(requester, candidate *Session, waited time.Duration, hour int, jitter float64) float64 {
	score := baseCompatibilityBonus

	// Prior partners are disfavored, not excluded; a rematch is still
	// possible when nobody else is around.
	if requester.HadPartner(candidate.ConnID) {
		score -= priorPartnerPenalty
	}

	if requester.Location != nil && candidate.Location != nil {
		if requester.Location.Country == candidate.Location.Country {
			bonus := countryBonus
			if requester.Prefs != nil && requester.Prefs.PreferSameCountry {
				bonus *= 2
			}
			score += bonus
		} else if requester.Location.Continent == candidate.Location.Continent {
			score += continentBonus
		}

		// Both sides reporting any timezone counts; the values need not
		// match.
		if requester.Location.Timezone != "" && candidate.Location.Timezone != "" {
			score += timezoneBonus
		}
	}

	score += float64(sharedInterests(requester.Prefs, candidate.Prefs)) * sharedInterestWeight

	waitBonus := waited.Seconds()
	if waitBonus > waitBonusCap {
		waitBonus = waitBonusCap
	}
	score += waitBonus

	if hour >= peakStartHour && hour <= peakEndHour {
		score += peakHoursBonus
	}

	score += jitter * jitterRange

	return score
}

// sharedInterests counts the interests present in both preference sets.
func sharedInterests(a, b *Preferences) int {
	if a == nil || b == nil {
		return 0
	}
	set := make(map[string]bool, len(a.Interests))
	for _, tag := range a.Interests {
		set[tag] = true
	}
	count := 0
	for _, tag := range b.Interests {
		if set[tag] {
			count++
			set[tag] = false // count duplicates once
		}
	}
	return count
}
