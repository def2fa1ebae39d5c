// Package config defines the global configuration for the riskwatch service.
// Configuration is loaded once at process initialization and is immutable
// thereafter, following 12-Factor principles.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails startup immediately.
package config

import (
	"time"

	"riskwatch/internal/engine"
	"riskwatch/internal/types"
)

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"riskwatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	AWS      AWSConfig
	Engine   EngineConfig
	Ingest   IngestConfig
	Archive  ArchiveConfig

	// Build Metadata (injected via ldflags, not env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	// Resolved from SSM or Env
	URL string `envconfig:"DATABASE_URL" validate:"required"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// EvalQueueURL is the SQS queue for re-evaluation triggers.
	EvalQueueURL string `envconfig:"SQS_EVAL_QUEUE"`

	// MetricsEnabled gates CloudWatch metric publication (off for local dev).
	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"false"`
}

// EngineConfig exposes every engine tunable as a named setting. The defaults
// reproduce the canonical scoring constants; operators may override any of
// them without touching the algorithm.
type EngineConfig struct {
	WeightDeath     float64 `envconfig:"WEIGHT_DEATH_IN_INTERVENTION" default:"75"`
	WeightArrest    float64 `envconfig:"WEIGHT_ARREST" default:"3"`
	WeightWeapon    float64 `envconfig:"WEIGHT_WEAPON_SEIZED" default:"8"`
	WeightDrugKg    float64 `envconfig:"WEIGHT_DRUG_KG" default:"5"`
	WeightOperation float64 `envconfig:"WEIGHT_ACTIVE_OPERATION" default:"2"`

	// Breakpoints are the seven ascending tier boundaries.
	Breakpoints []float64 `envconfig:"TIER_BREAKPOINTS" default:"3,8,15,30,50,80,120"`

	ForecastHorizon int `envconfig:"FORECAST_HORIZON" default:"7"`

	EffectivenessDenominator string  `envconfig:"EFFECTIVENESS_DENOMINATOR" default:"crime_count" validate:"oneof=crime_count officers_involved"`
	EffArrestWeight          float64 `envconfig:"EFFECTIVENESS_ARREST_WEIGHT" default:"1.0"`
	EffWeaponWeight          float64 `envconfig:"EFFECTIVENESS_WEAPON_WEIGHT" default:"0.5"`
	EffDrugKgWeight          float64 `envconfig:"EFFECTIVENESS_DRUG_KG_WEIGHT" default:"0.25"`

	LowEffectiveness  float64 `envconfig:"LOW_EFFECTIVENESS_THRESHOLD" default:"0.3"`
	StableBand        float64 `envconfig:"TREND_STABLE_BAND" default:"0.2"`
	AlertVolume       int     `envconfig:"ALERT_VOLUME_THRESHOLD" default:"10"`
	AlertIncrease     float64 `envconfig:"ALERT_INCREASE_THRESHOLD" default:"0.3"`
	EvalConcurrency   int     `envconfig:"EVAL_CONCURRENCY" default:"8"`
	CacheEnabled      bool    `envconfig:"EVAL_CACHE_ENABLED" default:"true"`
}

// EngineOptions converts the flat env-driven settings into the engine's
// option set. The caller validates the result via engine.Options.Validate
// (NewEvaluator does this on construction).
func (c EngineConfig) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.Weights = engine.Weights{
		DeathInIntervention: c.WeightDeath,
		Arrest:              c.WeightArrest,
		WeaponSeized:        c.WeightWeapon,
		DrugKgSeized:        c.WeightDrugKg,
		ActiveOperation:     c.WeightOperation,
	}
	if len(c.Breakpoints) == len(opts.Breakpoints) {
		copy(opts.Breakpoints[:], c.Breakpoints)
	}
	opts.Horizon = c.ForecastHorizon
	opts.Effectiveness = engine.EffectivenessOptions{
		ArrestWeight: c.EffArrestWeight,
		WeaponWeight: c.EffWeaponWeight,
		DrugKgWeight: c.EffDrugKgWeight,
		Denominator:  types.EffectivenessDenominator(c.EffectivenessDenominator),
	}
	opts.LowEffectiveness = c.LowEffectiveness
	opts.StableBand = c.StableBand
	opts.Alerts = engine.AlertOptions{
		VolumeThreshold:   c.AlertVolume,
		IncreaseThreshold: c.AlertIncrease,
	}
	opts.Concurrency = c.EvalConcurrency
	return opts
}

// IngestConfig holds upstream data-source settings for the ingest worker.
type IngestConfig struct {
	// SourceURL is the public-safety statistics feed endpoint.
	SourceURL string `envconfig:"INGEST_SOURCE_URL"`

	// SourceTimeout bounds one upstream fetch.
	SourceTimeout time.Duration `envconfig:"INGEST_SOURCE_TIMEOUT" default:"30s"`

	// MaxBatchRecords caps one ingest message's record count.
	MaxBatchRecords int `envconfig:"INGEST_MAX_BATCH" default:"5000"`
}

// ArchiveConfig holds dataset archival settings.
type ArchiveConfig struct {
	// Dir is the directory archive files are written to.
	Dir string `envconfig:"ARCHIVE_DIR" default:"/tmp/riskwatch-archive"`

	// RetentionPeriods is how many reporting periods stay live before a
	// record is eligible for archival.
	RetentionPeriods int `envconfig:"ARCHIVE_RETENTION_PERIODS" default:"36"`
}

// BuildInfo carries linker-injected build metadata.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Linker-injected build metadata variables, set via -ldflags:
//
//	go build -ldflags "-X riskwatch/internal/config.version=1.2.3 \
//	    -X riskwatch/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X riskwatch/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo constructs a BuildInfo from the linker-injected variables.
func NewBuildInfo() BuildInfo {
	return BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure parsing environment variable values.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
