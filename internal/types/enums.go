package types

// Tier is one of the eight ordered risk classifications derived from the
// numeric score. Values sort by Rank, not lexically.
type Tier string

const (
	TierVeryLow    Tier = "very_low"
	TierLow        Tier = "low"
	TierLowMedium  Tier = "low_medium"
	TierMedium     Tier = "medium"
	TierMediumHigh Tier = "medium_high"
	TierHigh       Tier = "high"
	TierVeryHigh   Tier = "very_high"
	TierCritical   Tier = "critical"
)

// tierOrder maps each tier to its position in the ascending scale.
var tierOrder = map[Tier]int{
	TierVeryLow:    0,
	TierLow:        1,
	TierLowMedium:  2,
	TierMedium:     3,
	TierMediumHigh: 4,
	TierHigh:       5,
	TierVeryHigh:   6,
	TierCritical:   7,
}

// Rank returns the tier's position on the ascending scale (0 = very_low,
// 7 = critical). Unknown tiers rank -1.
func (t Tier) Rank() int {
	if r, ok := tierOrder[t]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether t ranks at or above other on the risk scale.
func (t Tier) AtLeast(other Tier) bool {
	return t.Rank() >= other.Rank()
}

// OperationType categorizes the police operation active in a period.
// OperationNone is a sentinel meaning no active operation, not a missing value.
type OperationType string

const (
	OperationNone       OperationType = "none"
	OperationPatrol     OperationType = "patrol"
	OperationRaid       OperationType = "raid"
	OperationTaskForce  OperationType = "task_force"
	OperationSaturation OperationType = "saturation"
	OperationCommunity  OperationType = "community"
)

// KnownOperationTypes lists every accepted operation_type value, sentinel
// included. Validation rejects anything else.
var KnownOperationTypes = []OperationType{
	OperationNone,
	OperationPatrol,
	OperationRaid,
	OperationTaskForce,
	OperationSaturation,
	OperationCommunity,
}

// Known reports whether o is an accepted operation type.
func (o OperationType) Known() bool {
	for _, k := range KnownOperationTypes {
		if o == k {
			return true
		}
	}
	return false
}

// DominantIndicator names the input factor contributing the largest positive
// term to a score, used to steer recommendation wording.
type DominantIndicator string

const (
	DominantCrimeVolume        DominantIndicator = "crime_volume"
	DominantInterventionDeaths DominantIndicator = "intervention_deaths"
)

// TrendDirection is the qualitative label derived from the fitted slope.
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendStable  TrendDirection = "stable"
)

// AlertKind categorizes table-level alerts.
type AlertKind string

const (
	AlertHighVolume          AlertKind = "high_volume"
	AlertSignificantIncrease AlertKind = "significant_increase"
	AlertGraveIncident       AlertKind = "grave_incident"
)

// AlertPriority orders alerts for presentation, most urgent first.
type AlertPriority string

const (
	PriorityCritical AlertPriority = "critical"
	PriorityHigh     AlertPriority = "high"
	PriorityMedium   AlertPriority = "medium"
)

// priorityOrder maps priorities to sort keys (lower = more urgent).
var priorityOrder = map[AlertPriority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
}

// Rank returns the priority's sort key; unknown priorities sort last.
func (p AlertPriority) Rank() int {
	if r, ok := priorityOrder[p]; ok {
		return r
	}
	return len(priorityOrder)
}

// EffectivenessDenominator selects the normalizer for the effectiveness ratio.
type EffectivenessDenominator string

const (
	DenominatorCrimeCount       EffectivenessDenominator = "crime_count"
	DenominatorOfficersInvolved EffectivenessDenominator = "officers_involved"
)
