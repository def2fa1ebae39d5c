package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskwatch/internal/types"
)

func TestEffectivenessUndefinedSentinel(t *testing.T) {
	opts := DefaultEffectivenessOptions()

	// No operation and no enforcement outcomes: undefined, not zero.
	rec := types.IndicatorRecord{
		CrimeCount:    30,
		OperationType: types.OperationNone,
	}
	assert.Nil(t, Effectiveness(rec, opts))

	// An active operation with zero outcomes is defined (and zero).
	rec.OperationType = types.OperationPatrol
	got := Effectiveness(rec, opts)
	require.NotNil(t, got)
	assert.Zero(t, *got)

	// Enforcement outcomes without a recorded operation are also defined.
	rec = types.IndicatorRecord{
		CrimeCount:    30,
		Arrests:       3,
		OperationType: types.OperationNone,
	}
	require.NotNil(t, Effectiveness(rec, opts))
}

func TestEffectivenessCrimeCountDenominator(t *testing.T) {
	opts := DefaultEffectivenessOptions()
	rec := types.IndicatorRecord{
		CrimeCount:    20,
		Arrests:       8,
		WeaponsSeized: 4,
		DrugsSeizedKg: 8,
		OperationType: types.OperationRaid,
	}

	// (8*1.0 + 4*0.5 + 8*0.25) / 20 = 12/20
	got := Effectiveness(rec, opts)
	require.NotNil(t, got)
	assert.InDelta(t, 0.6, *got, 1e-9)
}

func TestEffectivenessOfficersDenominator(t *testing.T) {
	opts := DefaultEffectivenessOptions()
	opts.Denominator = types.DenominatorOfficersInvolved

	rec := types.IndicatorRecord{
		CrimeCount:       100,
		Arrests:          5,
		OfficersInvolved: 10,
		OperationType:    types.OperationTaskForce,
	}
	got := Effectiveness(rec, opts)
	require.NotNil(t, got)
	assert.InDelta(t, 0.5, *got, 1e-9)
}

func TestEffectivenessClippedToUnit(t *testing.T) {
	opts := DefaultEffectivenessOptions()
	rec := types.IndicatorRecord{
		CrimeCount:    1,
		Arrests:       50,
		OperationType: types.OperationSaturation,
	}
	got := Effectiveness(rec, opts)
	require.NotNil(t, got)
	assert.Equal(t, 1.0, *got)
}

func TestEffectivenessZeroDenominatorFloor(t *testing.T) {
	opts := DefaultEffectivenessOptions()

	// Zero crimes with arrests: denominator floors at 1 instead of dividing
	// by zero, then the ratio clips to 1.
	rec := types.IndicatorRecord{
		Arrests:       2,
		OperationType: types.OperationPatrol,
	}
	got := Effectiveness(rec, opts)
	require.NotNil(t, got)
	assert.Equal(t, 1.0, *got)
}
