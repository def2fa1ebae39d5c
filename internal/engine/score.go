package engine

import "riskwatch/internal/types"

// Score maps one neighborhood's aggregated indicators to its composite risk
// score and the dominant indicator behind it.
//
// The formula is additive with signed weights: the raw crime tally and a
// heavy per-death penalty push the score up; arrests, seizures, and an active
// operation discount it. The result is clamped at zero so enforcement
// benefits can fully offset, but never invert, the crime signal.
func Score(rec types.IndicatorRecord, w Weights) (float64, types.DominantIndicator) {
	crimeTerm := float64(rec.CrimeCount)
	deathTerm := w.DeathInIntervention * float64(rec.DeathsInIntervention)

	score := crimeTerm + deathTerm
	score -= w.Arrest * float64(rec.Arrests)
	score -= w.WeaponSeized * float64(rec.WeaponsSeized)
	score -= w.DrugKgSeized * rec.DrugsSeizedKg
	if rec.HasActiveOperation() {
		score -= w.ActiveOperation
	}
	if score < 0 {
		score = 0
	}

	// The dominant indicator is the largest positive contribution. The
	// discount terms are negative and never dominate. Ties go to crime volume.
	dominant := types.DominantCrimeVolume
	if deathTerm > crimeTerm {
		dominant = types.DominantInterventionDeaths
	}
	return score, dominant
}

// AggregateIndicators collapses a neighborhood's per-period records into the
// single aggregated record the score formula consumes. Counts sum across
// periods; the operation type is taken from the most recent period with an
// active operation, falling back to the none sentinel.
//
// The input must be ordered by period ascending; the caller (the evaluator)
// guarantees this.
func AggregateIndicators(records []types.IndicatorRecord) types.IndicatorRecord {
	if len(records) == 0 {
		return types.IndicatorRecord{OperationType: types.OperationNone}
	}

	agg := types.IndicatorRecord{
		NeighborhoodID: records[0].NeighborhoodID,
		Period:         records[len(records)-1].Period,
		OperationType:  types.OperationNone,
	}
	for _, r := range records {
		agg.CrimeCount += r.CrimeCount
		agg.DeathsInIntervention += r.DeathsInIntervention
		agg.Arrests += r.Arrests
		agg.WeaponsSeized += r.WeaponsSeized
		agg.DrugsSeizedKg += r.DrugsSeizedKg
		agg.OfficersInvolved += r.OfficersInvolved
		if r.HasActiveOperation() {
			agg.OperationType = r.OperationType
		}
	}
	return agg
}
