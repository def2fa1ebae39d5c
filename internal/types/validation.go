package types

import "fmt"

// Validate checks the record against the input invariants: non-negative
// counts, an in-range period, a known operation type, and a present
// neighborhood ID. It returns a *AppError identifying the offending
// neighborhood and period; callers reject the record rather than clamping it.
func (r IndicatorRecord) Validate() error {
	ident := map[string]any{
		"neighborhood_id": r.NeighborhoodID,
		"period":          r.Period.String(),
	}

	if r.NeighborhoodID == "" {
		return NewAppErrorWithDetails(ErrCodeValidationMissingField,
			"neighborhood_id is required", nil, ident)
	}
	if !r.Period.Valid() {
		return NewAppErrorWithDetails(ErrCodeValidationMalformedPeriod,
			fmt.Sprintf("period %s is out of range", r.Period), nil, ident)
	}
	if r.CrimeCount < 0 {
		return negativeCount("crime_count", r.CrimeCount, ident)
	}
	if r.DeathsInIntervention < 0 {
		return negativeCount("deaths_in_intervention", r.DeathsInIntervention, ident)
	}
	if r.Arrests < 0 {
		return negativeCount("arrests", r.Arrests, ident)
	}
	if r.WeaponsSeized < 0 {
		return negativeCount("weapons_seized", r.WeaponsSeized, ident)
	}
	if r.DrugsSeizedKg < 0 {
		return NewAppErrorWithDetails(ErrCodeValidationNegativeCount,
			fmt.Sprintf("drugs_seized_kg must be >= 0, got %g", r.DrugsSeizedKg), nil, ident)
	}
	if r.OfficersInvolved < 0 {
		return negativeCount("officers_involved", r.OfficersInvolved, ident)
	}
	if r.OperationType != "" && !r.OperationType.Known() {
		return NewAppErrorWithDetails(ErrCodeValidationOperationType,
			fmt.Sprintf("unknown operation_type %q", r.OperationType), nil, ident)
	}
	return nil
}

func negativeCount(field string, got int, ident map[string]any) *AppError {
	return NewAppErrorWithDetails(ErrCodeValidationNegativeCount,
		fmt.Sprintf("%s must be >= 0, got %d", field, got), nil, ident)
}
