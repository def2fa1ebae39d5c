// Package archive exports closed reporting periods to compressed JSONL files
// and prunes them from the live indicator table.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"riskwatch/internal/config"
	"riskwatch/internal/types"
)

// Report summarizes one archival run.
type Report struct {
	Cutoff   types.Period `json:"cutoff"`
	Archived int          `json:"archived"`
	Deleted  int64        `json:"deleted"`
	Path     string       `json:"path,omitempty"`
}

// Archiver moves indicator records older than the retention window out of the
// live table and into gzip-compressed JSON lines files, one record per line.
// Records are deleted only after the export file is fully written and synced,
// so a failed run never loses data.
type Archiver struct {
	indicators types.IndicatorRepository
	cfg        config.ArchiveConfig
	logger     *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(indicators types.IndicatorRepository, cfg config.ArchiveConfig, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{indicators: indicators, cfg: cfg, logger: logger}
}

// CutoffFor returns the first period still retained at the given time:
// records strictly older than it are archived. The reference time is taken
// in UTC.
func (a *Archiver) CutoffFor(now time.Time) types.Period {
	now = now.UTC()
	current := types.Period{Year: now.Year(), Index: int(now.Month())}
	return types.PeriodFromOrdinal(current.Ordinal() - a.cfg.RetentionPeriods)
}

// Run archives and prunes everything older than the retention window.
// now is a parameter so manual backfills and tests can pin the cutoff.
func (a *Archiver) Run(ctx context.Context, now time.Time) (*Report, error) {
	cutoff := a.CutoffFor(now)

	records, err := a.indicators.ListBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		a.logger.InfoContext(ctx, "nothing to archive", "cutoff", cutoff.String())
		return &Report{Cutoff: cutoff}, nil
	}

	path, err := a.export(cutoff, records)
	if err != nil {
		return nil, err
	}

	deleted, err := a.indicators.DeleteBefore(ctx, cutoff)
	if err != nil {
		// The export file stays behind for the next, possibly overlapping run.
		return nil, fmt.Errorf("archive: export written to %s but prune failed: %w", path, err)
	}

	a.logger.InfoContext(ctx, "archival run completed",
		"cutoff", cutoff.String(),
		"archived", len(records),
		"deleted", deleted,
		"path", path,
	)
	return &Report{Cutoff: cutoff, Archived: len(records), Deleted: deleted, Path: path}, nil
}

// export writes records as gzip JSONL to a temp file and renames it into
// place, so readers never observe a partial archive.
func (a *Archiver) export(cutoff types.Period, records []types.IndicatorRecord) (string, error) {
	if err := os.MkdirAll(a.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("archive: failed to create %s: %w", a.cfg.Dir, err)
	}

	final := filepath.Join(a.cfg.Dir, fmt.Sprintf("indicators-before-%s.jsonl.gz", cutoff.String()))

	tmp, err := os.CreateTemp(a.cfg.Dir, "indicators-*.tmp")
	if err != nil {
		return "", fmt.Errorf("archive: failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	gz := gzip.NewWriter(tmp)
	enc := json.NewEncoder(gz)
	for _, rec := range records {
		line := struct {
			types.IndicatorRecord
			Period string `json:"period"`
		}{IndicatorRecord: rec, Period: rec.Period.String()}
		if err := enc.Encode(line); err != nil {
			gz.Close()
			tmp.Close()
			return "", fmt.Errorf("archive: failed to encode record: %w", err)
		}
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("archive: failed to flush gzip stream: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("archive: failed to sync export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("archive: failed to close export: %w", err)
	}

	if err := os.Rename(tmp.Name(), final); err != nil {
		return "", fmt.Errorf("archive: failed to move export into place: %w", err)
	}
	return final, nil
}
