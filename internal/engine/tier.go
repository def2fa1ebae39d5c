package engine

import "riskwatch/internal/types"

// tierScale lists the tiers in ascending order. tierScale[i] covers scores in
// [bp[i-1], bp[i]); the last entry is unbounded above.
var tierScale = [8]types.Tier{
	types.TierVeryLow,
	types.TierLow,
	types.TierLowMedium,
	types.TierMedium,
	types.TierMediumHigh,
	types.TierHigh,
	types.TierVeryHigh,
	types.TierCritical,
}

// Classify maps a non-negative score to its risk tier. The intervals are
// half-open with the lower bound inclusive, so a score exactly on a
// breakpoint belongs to the upper tier (8.0 is low_medium, not low). The
// function is total: any score below the first breakpoint, including 0,
// is very_low, and anything at or above the last breakpoint is critical.
func Classify(score float64, bp Breakpoints) types.Tier {
	for i := len(bp) - 1; i >= 0; i-- {
		if score >= bp[i] {
			return tierScale[i+1]
		}
	}
	return tierScale[0]
}
