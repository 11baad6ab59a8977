package dispatch

import (
	"sync"
	"time"

	"github.com/jhmac/sneebly/internal/llm"
)

// tierFlatCostUSD is the per-call estimate used when real token accounting
// is unavailable, ascending with model capability per §3's budget ledger.
var tierFlatCostUSD = map[llm.Tier]float64{
	llm.TierHaiku:  0.01,
	llm.TierSonnet: 0.05,
	llm.TierOpus:   0.15,
}

// EstimatedCost returns the flat per-call cost estimate for tier.
func EstimatedCost(tier llm.Tier) float64 {
	if cost, ok := tierFlatCostUSD[tier]; ok {
		return cost
	}
	return tierFlatCostUSD[llm.TierSonnet]
}

// Budget is the per-cycle ledger: {max, warning, spent, warnedAt?}. It is
// mutated only by the dispatcher and read by orchestrators between calls,
// per the shared-resource ownership rule in §5.
type Budget struct {
	mu       sync.Mutex
	Max      float64
	Warning  float64
	Spent    float64
	WarnedAt *time.Time
}

// NewBudget constructs a ledger with the given ceiling and warning threshold.
func NewBudget(max, warning float64) *Budget {
	return &Budget{Max: max, Warning: warning}
}

// Gate reports whether a call at the given tier may proceed. If spent plus
// the tier's estimated cost would exceed Max, it returns false without
// mutating Spent — the dispatcher must then skip the call entirely.
func (b *Budget) Gate(tier llm.Tier) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Spent+EstimatedCost(tier) <= b.Max
}

// Deduct records the cost of a completed call. actualCost, when known (real
// token accounting), is preferred; otherwise pass EstimatedCost(tier).
func (b *Budget) Deduct(actualCost float64, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Spent += actualCost
	if b.Warning > 0 && b.Spent >= b.Warning && b.WarnedAt == nil {
		t := now
		b.WarnedAt = &t
	}
}

// Remaining returns Max - Spent, floored at zero.
func (b *Budget) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.Max - b.Spent
	if r < 0 {
		return 0
	}
	return r
}

// SpentSoFar returns the current spend, for read-only reporting by
// orchestrators between calls.
func (b *Budget) SpentSoFar() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Spent
}
