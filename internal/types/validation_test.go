package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() IndicatorRecord {
	return IndicatorRecord{
		NeighborhoodID:       "centro",
		Period:               Period{Year: 2026, Index: 4},
		CrimeCount:           12,
		DeathsInIntervention: 0,
		Arrests:              3,
		WeaponsSeized:        1,
		DrugsSeizedKg:        0.8,
		OfficersInvolved:     10,
		OperationType:        OperationPatrol,
	}
}

func TestValidateAcceptsValidRecord(t *testing.T) {
	assert.NoError(t, validRecord().Validate())

	// The none sentinel and an empty operation type are both acceptable.
	rec := validRecord()
	rec.OperationType = OperationNone
	assert.NoError(t, rec.Validate())
	rec.OperationType = ""
	assert.NoError(t, rec.Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*IndicatorRecord)
		wantCode ErrorCode
	}{
		{"missing neighborhood", func(r *IndicatorRecord) { r.NeighborhoodID = "" }, ErrCodeValidationMissingField},
		{"period index out of range", func(r *IndicatorRecord) { r.Period.Index = 13 }, ErrCodeValidationMalformedPeriod},
		{"period year out of range", func(r *IndicatorRecord) { r.Period.Year = 0 }, ErrCodeValidationMalformedPeriod},
		{"negative crimes", func(r *IndicatorRecord) { r.CrimeCount = -1 }, ErrCodeValidationNegativeCount},
		{"negative deaths", func(r *IndicatorRecord) { r.DeathsInIntervention = -2 }, ErrCodeValidationNegativeCount},
		{"negative arrests", func(r *IndicatorRecord) { r.Arrests = -1 }, ErrCodeValidationNegativeCount},
		{"negative weapons", func(r *IndicatorRecord) { r.WeaponsSeized = -1 }, ErrCodeValidationNegativeCount},
		{"negative drug weight", func(r *IndicatorRecord) { r.DrugsSeizedKg = -0.1 }, ErrCodeValidationNegativeCount},
		{"negative officers", func(r *IndicatorRecord) { r.OfficersInvolved = -1 }, ErrCodeValidationNegativeCount},
		{"unknown operation type", func(r *IndicatorRecord) { r.OperationType = "siege" }, ErrCodeValidationOperationType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)

			err := rec.Validate()
			require.Error(t, err)

			var appErr *AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantCode, appErr.Code)

			// The offending record must be identifiable by the caller.
			if rec.NeighborhoodID != "" {
				assert.Equal(t, rec.NeighborhoodID, appErr.Details["neighborhood_id"])
			}
			assert.Equal(t, rec.Period.String(), appErr.Details["period"])
		})
	}
}
