package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricDataFreshness     = "DataFreshnessPeriods"
	MetricEvaluationLatency = "EvaluationLatency"
	MetricEvaluationCount   = "EvaluationCount"
	MetricCacheHit          = "CacheHit"
	MetricCacheMiss         = "CacheMiss"
	MetricIngestAccepted    = "IngestAccepted"
	MetricIngestRejected    = "IngestRejected"
	MetricAPILatency        = "APILatency"
	MetricUpstreamFailure   = "UpstreamSourceFailure"

	// Dimension Keys
	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"
	DimReason   = "Reason"
	DimSource   = "Source"

	// Metric Namespace
	MetricNamespace = "RiskWatch"
)
