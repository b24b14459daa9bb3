package analysis

import "strings"

// Scorer derives the negotiation power score from a normalized result. It
// must be a pure function of its input.
type Scorer func(Result) int

var issuePenalty = map[Severity]int{
	SeverityHigh:    12,
	SeverityMedium:  6,
	SeverityLow:     2,
	SeverityWarning: 1,
}

const (
	verifiedBonus    = 2
	verifiedBonusCap = 10
)

// NegotiationPower starts from the protection score, takes points off for
// every issue, and adds points for verified clauses and for key terms the
// creator can point to when negotiating.
func NegotiationPower(r Result) int {
	score := r.ProtectionScore
	for _, issue := range r.Issues {
		score -= issuePenalty[issue.Severity]
	}

	bonus := verifiedBonus * len(r.Verified)
	if bonus > verifiedBonusCap {
		bonus = verifiedBonusCap
	}
	score += bonus

	kt := r.KeyTerms
	if kt.DealValue != "" {
		score += 5
	}
	if kt.PaymentSchedule != "" {
		score += 5
	}
	if kt.Duration != "" {
		score += 3
	}
	if kt.Deliverables != "" {
		score += 3
	}
	if kt.Exclusivity != "" {
		if nonExclusive(kt.Exclusivity) {
			score += 4
		} else {
			score -= 5
		}
	}
	return clamp(score, 0, 100)
}

func nonExclusive(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, marker := range []string{"non-exclusive", "non exclusive", "nonexclusive", "not exclusive", "no exclusivity"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return s == "none" || s == "no" || s == "n/a"
}
