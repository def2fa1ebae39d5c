package engine

import (
	"fmt"

	"riskwatch/internal/types"
)

// tierAdvice is the fixed ordered advisory template per tier. Wording is a
// presentation contract only; ordering and trigger conditions are what the
// tests pin down.
var tierAdvice = map[types.Tier][]string{
	types.TierVeryLow: {
		"Maintain current preventive actions.",
	},
	types.TierLow: {
		"Maintain current preventive actions.",
		"Continue community engagement programs.",
	},
	types.TierLowMedium: {
		"Keep regular patrol coverage.",
		"Monitor month-over-month indicator movements.",
	},
	types.TierMedium: {
		"Maintain regular vigilance.",
		"Implement community safety initiatives.",
	},
	types.TierMediumHigh: {
		"Reinforce patrols during peak hours.",
		"Implement community safety initiatives.",
	},
	types.TierHigh: {
		"Increase patrol coverage across the neighborhood.",
		"Plan preventive operations.",
		"Reinforce public lighting.",
	},
	types.TierVeryHigh: {
		"Increase patrol coverage across the neighborhood.",
		"Plan preventive operations.",
		"Reinforce public lighting.",
		"Coordinate enforcement with adjacent precincts.",
	},
	types.TierCritical: {
		"Deploy immediate saturation patrols.",
		"Plan preventive operations.",
		"Reinforce public lighting.",
		"Escalate to regional command.",
	},
}

// Recommend produces the ordered advisory list for a neighborhood, highest
// priority first.
//
// Ordering contract:
//  1. A use-of-force review message leads everything else when deaths in
//     police interventions dominate the score.
//  2. An operational-presence message precedes the generic tier advice when
//     effectiveness is defined and low for a high or critical tier.
//  3. The fixed tier template follows.
//  4. A defined effectiveness ratio is reported as a trailing advisory line.
func Recommend(tier types.Tier, effectiveness *float64, dominant types.DominantIndicator, lowEffectiveness float64) []string {
	recs := append([]string(nil), tierAdvice[tier]...)

	if effectiveness != nil && *effectiveness < lowEffectiveness && tier.AtLeast(types.TierHigh) {
		recs = append([]string{
			"Increase operational presence: enforcement effectiveness is low for the current risk tier.",
		}, recs...)
	}

	if dominant == types.DominantInterventionDeaths {
		recs = append([]string{
			"Open a use-of-force review: deaths in police interventions dominate the risk score.",
		}, recs...)
	}

	if effectiveness != nil {
		recs = append(recs, fmt.Sprintf("Effectiveness: %.1f%%", *effectiveness*100))
	}
	return recs
}
