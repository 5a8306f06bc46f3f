package engine

// Rank turns a settled batch of advisor responses into the final
// recommendation set. The input must be in dispatch order; the output list
// preserves that order for display, with RecommendedID (not position)
// marking the top pick. Selection is deterministic: success rate first,
// genuine responses beat degraded ones at equal rate, and remaining ties go
// to the earlier dispatch slot.
func Rank(responses []AdvisorResponse) RecommendationSet {
	set := RecommendationSet{Responses: responses}

	best := -1
	for i := range responses {
		if best < 0 || outranks(&responses[i], &responses[best]) {
			best = i
		}
	}
	if best >= 0 {
		set.RecommendedID = responses[best].ID
	}
	return set
}

// outranks reports whether a strictly beats b, so equal candidates keep the
// earlier slot.
func outranks(a, b *AdvisorResponse) bool {
	if a.SuccessRate != b.SuccessRate {
		return a.SuccessRate > b.SuccessRate
	}
	return a.Confidence != ParseDegraded && b.Confidence == ParseDegraded
}
