package engine

import "riskwatch/internal/types"

// ErrInsufficientData is returned when a series has fewer than 2 distinct
// period indices, which is too few for a line fit. Callers omit the forecast
// rather than fabricating a flat projection; the condition is never fatal to
// the rest of a neighborhood's evaluation.
var ErrInsufficientData = types.NewAppError(types.ErrCodeInsufficientData,
	"at least 2 distinct period indices are required to fit a trend", nil)

// FitTrend fits crime_count against period_index with ordinary least squares
// (one predictor, closed form) and returns the slope and intercept. The fit
// is recomputed from scratch on every call; identical series always produce
// identical coefficients.
func FitTrend(series []types.SeriesPoint) (slope, intercept float64, err error) {
	if len(series) < 2 {
		return 0, 0, ErrInsufficientData
	}

	n := float64(len(series))
	var sumX, sumY float64
	for _, pt := range series {
		sumX += float64(pt.PeriodIndex)
		sumY += pt.CrimeCount
	}
	meanX := sumX / n
	meanY := sumY / n

	var sxx, sxy float64
	for _, pt := range series {
		dx := float64(pt.PeriodIndex) - meanX
		sxx += dx * dx
		sxy += dx * (pt.CrimeCount - meanY)
	}
	if sxx == 0 {
		// Every observation shares one period index; no trend is defined.
		return 0, 0, ErrInsufficientData
	}

	slope = sxy / sxx
	intercept = meanY - slope*meanX
	return slope, intercept, nil
}

// Forecast projects the crime-count series over the next horizon periods
// following the last observed period index. Predictions are intercept +
// slope*x, truncated at zero: a strongly declining series must never report
// negative crime counts.
func Forecast(series []types.SeriesPoint, horizon int) ([]types.SeriesPoint, error) {
	slope, intercept, err := FitTrend(series)
	if err != nil {
		return nil, err
	}
	if horizon < 1 {
		return nil, types.NewAppError(types.ErrCodeValidationHorizon,
			"forecast horizon must be >= 1", nil)
	}

	last := series[0].PeriodIndex
	for _, pt := range series[1:] {
		if pt.PeriodIndex > last {
			last = pt.PeriodIndex
		}
	}

	out := make([]types.SeriesPoint, 0, horizon)
	for i := 1; i <= horizon; i++ {
		x := last + i
		predicted := intercept + slope*float64(x)
		if predicted < 0 {
			predicted = 0
		}
		out = append(out, types.SeriesPoint{PeriodIndex: x, CrimeCount: predicted})
	}
	return out, nil
}

// TrendLabel reduces a fitted slope to a qualitative direction. Slopes within
// stableBand times the series mean count as stable; the band guards against
// labeling noise on low-volume series as a trend.
func TrendLabel(slope, meanCount, stableBand float64) types.TrendDirection {
	band := stableBand * meanCount
	if band < 0 {
		band = 0
	}
	switch {
	case slope > band:
		return types.TrendRising
	case slope < -band:
		return types.TrendFalling
	default:
		return types.TrendStable
	}
}
