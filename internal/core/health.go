package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"riskwatch/internal/types"
)

// healthCheckTimeout bounds all health probes together. A probe exceeding
// the deadline marks the service unhealthy.
const healthCheckTimeout = 2 * time.Second

// HealthProbe is a subsystem health check. Each probe represents a critical
// dependency (database, queue) that must be operational.
type HealthProbe interface {
	// Name returns the component identifier, e.g. "database".
	Name() string

	// Check performs the health check, respecting the context deadline.
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to the HealthProbe interface.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

func (p ProbeFunc) Name() string                    { return p.ProbeName }
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

// FreshnessMetrics publishes the indicator data lag observed by the
// freshness probe.
type FreshnessMetrics interface {
	RecordDataFreshness(lagPeriods int)
}

// FreshnessProbe reports unhealthy when the most recent stored indicator
// period lags the current period by more than MaxLagPeriods. A healthy feed
// keeps the lag at 0 or 1 depending on upstream publication timing.
type FreshnessProbe struct {
	Indicators types.IndicatorRepository

	// MaxLagPeriods is the tolerated staleness. Zero means "current period
	// only".
	MaxLagPeriods int

	// Metrics, when set, receives the observed lag on every probe run.
	Metrics FreshnessMetrics

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Name implements HealthProbe.
func (p *FreshnessProbe) Name() string { return "data_freshness" }

// Check implements HealthProbe.
func (p *FreshnessProbe) Check(ctx context.Context) error {
	latest, ok, err := p.Indicators.MaxPeriod(ctx)
	if err != nil {
		return fmt.Errorf("querying latest period: %w", err)
	}
	if !ok {
		return fmt.Errorf("no indicator data stored")
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	t := now().UTC()
	current := types.Period{Year: t.Year(), Index: int(t.Month())}

	lag := current.Ordinal() - latest.Ordinal()
	if p.Metrics != nil {
		p.Metrics.RecordDataFreshness(lag)
	}
	if lag > p.MaxLagPeriods {
		return fmt.Errorf("latest period %s lags current %s by %d periods", latest, current, lag)
	}
	return nil
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth executes all registered probes concurrently under a short
// timeout. Returns 200 when every probe reports healthy, 503 otherwise.
// Public endpoint, mounted at GET /healthz.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	type probeResult struct {
		name string
		err  error
	}

	var (
		mu      sync.Mutex
		results = make([]probeResult, 0, len(probes))
		wg      sync.WaitGroup
	)

	for _, probe := range probes {
		wg.Add(1)
		go func(p HealthProbe) {
			defer wg.Done()

			var err error
			func() {
				defer func() {
					if rvr := recover(); rvr != nil {
						err = fmt.Errorf("probe panicked: %v", rvr)
					}
				}()
				err = p.Check(ctx)
			}()

			mu.Lock()
			results = append(results, probeResult{name: p.Name(), err: err})
			mu.Unlock()
		}(probe)
	}
	wg.Wait()

	components := make(map[string]componentStatus, len(results))
	healthy := true
	for _, res := range results {
		if res.err != nil {
			healthy = false
			components[res.name] = componentStatus{Status: "unhealthy", Message: res.err.Error()}
		} else {
			components[res.name] = componentStatus{Status: "healthy"}
		}
	}

	status := http.StatusOK
	resp := healthResponse{Status: "healthy", Components: components}
	if !healthy {
		status = http.StatusServiceUnavailable
		resp.Status = "unhealthy"
	}
	JSON(w, r, status, resp)
}
