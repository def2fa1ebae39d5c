package engine

import "riskwatch/internal/types"

// Effectiveness derives the enforcement effectiveness ratio in [0,1] from a
// neighborhood's aggregated indicators.
//
// The return is nil -- explicitly undefined, not zero -- when no operation was
// active and every enforcement count is zero, so consumers can tell "no
// operation" apart from "operation with zero measured effect". The nil must
// be propagated as-is and never coerced to 0.
func Effectiveness(rec types.IndicatorRecord, opts EffectivenessOptions) *float64 {
	noOutcome := rec.Arrests == 0 && rec.WeaponsSeized == 0 && rec.DrugsSeizedKg == 0
	if !rec.HasActiveOperation() && noOutcome {
		return nil
	}

	numerator := opts.ArrestWeight*float64(rec.Arrests) +
		opts.WeaponWeight*float64(rec.WeaponsSeized) +
		opts.DrugKgWeight*rec.DrugsSeizedKg

	var denom float64
	switch opts.Denominator {
	case types.DenominatorOfficersInvolved:
		denom = float64(rec.OfficersInvolved)
	default:
		denom = float64(rec.CrimeCount)
	}
	if denom < 1 {
		denom = 1
	}

	ratio := numerator / denom
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return &ratio
}
