// Package engine implements the security risk scoring and forecasting engine:
// synergistic score computation, tier classification, enforcement
// effectiveness, linear trend projection, recommendations, and alerts.
//
// Every function here is pure and synchronous. The engine performs no I/O,
// holds no mutable state between calls (the optional result cache excepted),
// and never mutates its inputs, so calls may run concurrently without
// coordination.
package engine

import (
	"fmt"

	"riskwatch/internal/types"
)

// Weights holds the signed term weights of the score formula. All values are
// stored as positive magnitudes; the formula applies the sign convention
// (deaths add, enforcement outcomes subtract).
type Weights struct {
	DeathInIntervention float64 `json:"death_in_intervention"`
	Arrest              float64 `json:"arrest"`
	WeaponSeized        float64 `json:"weapon_seized"`
	DrugKgSeized        float64 `json:"drug_kg_seized"`
	ActiveOperation     float64 `json:"active_operation"`
}

// DefaultWeights returns the canonical weighting. These constants are a fixed
// design heuristic, not a fitted model; deaths dominate and enforcement
// outcomes discount the raw crime tally.
func DefaultWeights() Weights {
	return Weights{
		DeathInIntervention: 75,
		Arrest:              3,
		WeaponSeized:        8,
		DrugKgSeized:        5,
		ActiveOperation:     2,
	}
}

// Breakpoints are the seven ascending tier boundaries. Each boundary is the
// inclusive lower edge of the tier above it; the top tier is unbounded.
type Breakpoints [7]float64

// DefaultBreakpoints returns the canonical tier table boundaries:
// [0,3) very_low, [3,8) low, [8,15) low_medium, [15,30) medium,
// [30,50) medium_high, [50,80) high, [80,120) very_high, [120,inf) critical.
func DefaultBreakpoints() Breakpoints {
	return Breakpoints{3, 8, 15, 30, 50, 80, 120}
}

// EffectivenessOptions configures the enforcement effectiveness ratio.
// The numerator is arrests*ArrestWeight + weapons*WeaponWeight +
// drugKg*DrugKgWeight; the denominator is selected by Denominator and
// floored at 1 to avoid division by zero.
type EffectivenessOptions struct {
	ArrestWeight float64                        `json:"arrest_weight"`
	WeaponWeight float64                        `json:"weapon_weight"`
	DrugKgWeight float64                        `json:"drug_kg_weight"`
	Denominator  types.EffectivenessDenominator `json:"denominator"`
}

// DefaultEffectivenessOptions normalizes against crime volume, matching the
// operations-per-crime ratio the original analysis used.
func DefaultEffectivenessOptions() EffectivenessOptions {
	return EffectivenessOptions{
		ArrestWeight: 1.0,
		WeaponWeight: 0.5,
		DrugKgWeight: 0.25,
		Denominator:  types.DenominatorCrimeCount,
	}
}

// AlertOptions configures table-level alert generation.
type AlertOptions struct {
	// VolumeThreshold is the latest-period crime count that raises a
	// high-volume alert. Twice the threshold escalates priority to high.
	VolumeThreshold int `json:"volume_threshold"`

	// IncreaseThreshold is the fractional period-over-period rise that raises
	// a significant-increase alert. A rise of 0.5 or more escalates to high.
	IncreaseThreshold float64 `json:"increase_threshold"`
}

// DefaultAlertOptions mirrors the thresholds of the original alert generator.
func DefaultAlertOptions() AlertOptions {
	return AlertOptions{VolumeThreshold: 10, IncreaseThreshold: 0.3}
}

// Options bundles every engine tunable. The zero value is not usable; start
// from DefaultOptions and override fields.
type Options struct {
	Weights       Weights              `json:"weights"`
	Breakpoints   Breakpoints          `json:"breakpoints"`
	Effectiveness EffectivenessOptions `json:"effectiveness"`
	Alerts        AlertOptions         `json:"alerts"`

	// Horizon is the number of future periods the forecaster projects.
	Horizon int `json:"horizon"`

	// LowEffectiveness is the ratio below which high/critical tiers get an
	// operational-presence recommendation prepended.
	LowEffectiveness float64 `json:"low_effectiveness"`

	// StableBand is the fraction of the series mean within which the fitted
	// slope is labeled stable rather than rising or falling.
	StableBand float64 `json:"stable_band"`

	// Concurrency bounds the parallel fan-out across neighborhoods during
	// table evaluation. Values < 1 fall back to the default.
	Concurrency int `json:"concurrency"`
}

// DefaultHorizon is the default forecast projection length in periods.
const DefaultHorizon = 7

// defaultConcurrency bounds table evaluation fan-out.
const defaultConcurrency = 8

// DefaultOptions returns the engine defaults reproducing the canonical
// constants.
func DefaultOptions() Options {
	return Options{
		Weights:          DefaultWeights(),
		Breakpoints:      DefaultBreakpoints(),
		Effectiveness:    DefaultEffectivenessOptions(),
		Alerts:           DefaultAlertOptions(),
		Horizon:          DefaultHorizon,
		LowEffectiveness: 0.3,
		StableBand:       0.2,
		Concurrency:      defaultConcurrency,
	}
}

// Validate rejects option sets that would make the engine's contracts
// meaningless: negative weights, non-ascending breakpoints, a non-positive
// horizon, or an unknown effectiveness denominator.
func (o Options) Validate() error {
	for name, w := range map[string]float64{
		"death_in_intervention": o.Weights.DeathInIntervention,
		"arrest":                o.Weights.Arrest,
		"weapon_seized":         o.Weights.WeaponSeized,
		"drug_kg_seized":        o.Weights.DrugKgSeized,
		"active_operation":      o.Weights.ActiveOperation,
	} {
		if w < 0 {
			return types.NewAppError(types.ErrCodeValidationWeights,
				fmt.Sprintf("weight %s must be >= 0, got %g", name, w), nil)
		}
	}
	if o.Breakpoints[0] <= 0 {
		return types.NewAppError(types.ErrCodeValidationBreakpoints,
			"first breakpoint must be > 0", nil)
	}
	for i := 1; i < len(o.Breakpoints); i++ {
		if o.Breakpoints[i] <= o.Breakpoints[i-1] {
			return types.NewAppError(types.ErrCodeValidationBreakpoints,
				fmt.Sprintf("breakpoints must ascend strictly: [%d]=%g <= [%d]=%g",
					i, o.Breakpoints[i], i-1, o.Breakpoints[i-1]), nil)
		}
	}
	if o.Horizon < 1 {
		return types.NewAppError(types.ErrCodeValidationHorizon,
			fmt.Sprintf("horizon must be >= 1, got %d", o.Horizon), nil)
	}
	switch o.Effectiveness.Denominator {
	case types.DenominatorCrimeCount, types.DenominatorOfficersInvolved:
	default:
		return types.NewAppError(types.ErrCodeValidationWeights,
			fmt.Sprintf("unknown effectiveness denominator %q", o.Effectiveness.Denominator), nil)
	}
	return nil
}
