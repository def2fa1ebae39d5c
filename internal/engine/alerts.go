package engine

import (
	"fmt"
	"sort"

	"riskwatch/internal/types"
)

// GenerateAlerts scans each neighborhood's two most recent periods and emits
// ordered advisories: grave incidents (any intervention death in the latest
// period), high crime volume, and significant period-over-period increases.
//
// The groups map holds records ordered by period ascending, as produced by
// the evaluator's grouping step. Output is sorted most urgent first, then by
// neighborhood ID for determinism.
func GenerateAlerts(groups map[string][]types.IndicatorRecord, opts AlertOptions) []types.Alert {
	var alerts []types.Alert

	for id, records := range groups {
		if len(records) == 0 {
			continue
		}
		latest := records[len(records)-1]

		if latest.DeathsInIntervention > 0 {
			alerts = append(alerts, types.Alert{
				Kind:           types.AlertGraveIncident,
				NeighborhoodID: id,
				Priority:       types.PriorityCritical,
				Message: fmt.Sprintf("%d death(s) in police interventions recorded in %s",
					latest.DeathsInIntervention, latest.Period),
			})
		}

		if opts.VolumeThreshold > 0 && latest.CrimeCount >= opts.VolumeThreshold {
			priority := types.PriorityMedium
			if latest.CrimeCount >= 2*opts.VolumeThreshold {
				priority = types.PriorityHigh
			}
			alerts = append(alerts, types.Alert{
				Kind:           types.AlertHighVolume,
				NeighborhoodID: id,
				Priority:       priority,
				Message: fmt.Sprintf("high crime volume: %d incidents in %s",
					latest.CrimeCount, latest.Period),
			})
		}

		if len(records) >= 2 {
			previous := records[len(records)-2]
			if previous.CrimeCount > 0 {
				rise := float64(latest.CrimeCount-previous.CrimeCount) / float64(previous.CrimeCount)
				if rise >= opts.IncreaseThreshold {
					priority := types.PriorityMedium
					if rise >= 0.5 {
						priority = types.PriorityHigh
					}
					alerts = append(alerts, types.Alert{
						Kind:           types.AlertSignificantIncrease,
						NeighborhoodID: id,
						Priority:       priority,
						Message: fmt.Sprintf("crime count rose %.0f%% from %d to %d between %s and %s",
							rise*100, previous.CrimeCount, latest.CrimeCount, previous.Period, latest.Period),
					})
				}
			}
		}
	}

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Priority.Rank() != alerts[j].Priority.Rank() {
			return alerts[i].Priority.Rank() < alerts[j].Priority.Rank()
		}
		if alerts[i].NeighborhoodID != alerts[j].NeighborhoodID {
			return alerts[i].NeighborhoodID < alerts[j].NeighborhoodID
		}
		return alerts[i].Kind < alerts[j].Kind
	})
	return alerts
}
