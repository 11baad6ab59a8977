package elon

import (
	"regexp"
	"strings"

	"github.com/jhmac/sneebly/internal/types"
)

// nearDuplicateThreshold is the word-overlap (Jaccard) ratio at or above which a
// candidate constraint is treated as a near-duplicate of one already
// blocked or solved, per §4.5 step 5.
const nearDuplicateThreshold = 0.6

var authBrokenPattern = regexp.MustCompile(`(?i)auth(entication|orization)?\s+is\s+broken`)

// IsDismissable reports whether candidate should be rejected outright: it
// frames itself as "authentication is broken" (pre-filtered per step 2, so
// never a genuine finding at this stage) or it's a near-duplicate of a
// blocked or already-solved constraint.
func IsDismissable(candidate types.LimitingFactor, blocked []string, solved []types.ConstraintReport) bool {
	if authBrokenPattern.MatchString(candidate.Description) {
		return true
	}
	candidateWords := wordSet(candidate.Description)
	for _, b := range blocked {
		if jaccard(candidateWords, wordSet(b)) >= nearDuplicateThreshold {
			return true
		}
	}
	for _, s := range solved {
		if jaccard(candidateWords, wordSet(s.LimitingFactor.Description)) >= nearDuplicateThreshold {
			return true
		}
	}
	return false
}

var nonWordPattern = regexp.MustCompile(`[^a-z0-9]+`)

func wordSet(s string) map[string]bool {
	normalized := nonWordPattern.ReplaceAllString(strings.ToLower(s), " ")
	set := map[string]bool{}
	for _, w := range strings.Fields(normalized) {
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
