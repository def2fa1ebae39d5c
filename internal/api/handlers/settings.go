package handlers

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"riskwatch/internal/core"
	"riskwatch/internal/engine"
	"riskwatch/internal/types"
)

// EngineRuntime holds the live engine option set and the evaluator built from
// it. Options are externally configurable at runtime via PUT
// /v1/settings/engine; every update rebuilds the evaluator and purges the
// result cache, since cached evaluations fingerprint the options they were
// computed with.
//
// Updates are versioned: writers must present the version they read, and a
// stale version is rejected with a conflict. This keeps concurrent operators
// from silently clobbering each other's tuning.
type EngineRuntime struct {
	mu        sync.RWMutex
	opts      engine.Options
	version   int
	evaluator *engine.Evaluator

	log   *slog.Logger
	cache *engine.ResultCache
}

// NewEngineRuntime builds the initial evaluator from opts. cache may be nil
// to disable memoization.
func NewEngineRuntime(opts engine.Options, log *slog.Logger, cache *engine.ResultCache) (*EngineRuntime, error) {
	if log == nil {
		log = slog.Default()
	}
	evaluator, err := newEvaluator(opts, log, cache)
	if err != nil {
		return nil, err
	}
	return &EngineRuntime{
		opts:      opts,
		version:   1,
		evaluator: evaluator,
		log:       log,
		cache:     cache,
	}, nil
}

func newEvaluator(opts engine.Options, log *slog.Logger, cache *engine.ResultCache) (*engine.Evaluator, error) {
	if cache != nil {
		return engine.NewEvaluator(opts, log, engine.WithCache(cache))
	}
	return engine.NewEvaluator(opts, log)
}

// Evaluator returns the evaluator built from the current options.
func (rt *EngineRuntime) Evaluator() *engine.Evaluator {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.evaluator
}

// CacheStats reports the shared result cache counters. ok is false when no
// cache is wired.
func (rt *EngineRuntime) CacheStats() (engine.CacheStats, bool) {
	if rt.cache == nil {
		return engine.CacheStats{}, false
	}
	return rt.cache.Stats(), true
}

// Snapshot returns the current options and their version.
func (rt *EngineRuntime) Snapshot() (engine.Options, int) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.opts, rt.version
}

// Update replaces the option set if expectedVersion matches the current
// version, returning the new version. A stale expectedVersion returns a
// conflict AppError; invalid options return the engine's validation error.
func (rt *EngineRuntime) Update(opts engine.Options, expectedVersion int) (int, error) {
	evaluator, err := newEvaluator(opts, rt.log, rt.cache)
	if err != nil {
		return 0, err
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if expectedVersion != rt.version {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeConflictConcurrent,
			"engine settings were modified concurrently", nil,
			map[string]any{"expected_version": expectedVersion, "current_version": rt.version})
	}

	rt.opts = opts
	rt.version++
	rt.evaluator = evaluator
	if rt.cache != nil {
		rt.cache.Purge()
	}

	rt.log.Info("engine settings updated", "version", rt.version)
	return rt.version, nil
}

// EngineSettings is the wire shape of GET/PUT /v1/settings/engine.
type EngineSettings struct {
	Options engine.Options `json:"options"`
	Version int            `json:"version"`
}

// SettingsHandler exposes the engine tunables over HTTP.
type SettingsHandler struct {
	runtime *EngineRuntime
	logger  *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(runtime *EngineRuntime, l *slog.Logger) *SettingsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SettingsHandler{runtime: runtime, logger: l}
}

// RegisterRoutes mounts settings routes on the provided chi.Router.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/settings/engine", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Put)
	})
}

// Get handles GET /v1/settings/engine.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	opts, version := h.runtime.Snapshot()
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: EngineSettings{
		Options: opts,
		Version: version,
	}})
}

// Put handles PUT /v1/settings/engine. The full option set is replaced
// atomically; partial updates are not supported, which keeps the version
// semantics unambiguous.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req EngineSettings
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	newVersion, err := h.runtime.Update(req.Options, req.Version)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "engine settings replaced",
		"version", newVersion,
		"horizon", req.Options.Horizon,
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: EngineSettings{
		Options: req.Options,
		Version: newVersion,
	}})
}
