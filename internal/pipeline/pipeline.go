// Package pipeline runs one report interaction end to end: fetch, normalize,
// merge the optional upload, and project the selected columns.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/reliefscope/internal/cache"
	"github.com/FranksOps/reliefscope/internal/reliefweb"
	"github.com/FranksOps/reliefscope/internal/storage"
	"github.com/FranksOps/reliefscope/internal/table"
	"github.com/FranksOps/reliefscope/pkg/httpclient"
)

// Notice texts shown to the user.
const (
	MsgSupplementLoaded = "Additional data loaded successfully"
	MsgNoReports        = "No reports found"
	MsgNothingSelected  = "No information selected"
)

// Level classifies a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-visible message produced by a run.
type Notice struct {
	Level Level
	Text  string
}

// Request is one interaction's inputs.
type Request struct {
	Query string
	Limit int
	// Supplement is the uploaded table, if any.
	Supplement *table.Table
	// Columns is the selection; empty means nothing is selected.
	Columns []string
	// Cache memoizes fetches for the caller's session. Nil disables caching.
	Cache cache.Cache[reliefweb.QueryKey, []reliefweb.RawReport]
}

// Result is everything a caller needs to render one interaction.
type Result struct {
	// Reports is the normalized report table before merging.
	Reports *table.Table
	// Merged is Reports with the supplement joined in.
	Merged *table.Table
	// View is Merged restricted to the selection. Nil when nothing is selected.
	View  *table.Table
	Stats table.JoinStats

	Notices []Notice
	// Upstream is the fetch failure, if any. The tables are then empty.
	Upstream        error
	NothingSelected bool
	NoReports       bool
}

func (r *Result) notice(level Level, format string, args ...any) {
	r.Notices = append(r.Notices, Notice{Level: level, Text: fmt.Sprintf(format, args...)})
}

// Config configures a Pipeline.
type Config struct {
	Source reliefweb.Source
	// Backend records each fetch as a run. Optional.
	Backend storage.Backend
	// Target is recorded as the run target, normally the API endpoint.
	Target string
	Logger *slog.Logger
}

// Pipeline runs report interactions. It holds no per-session state.
type Pipeline struct {
	source  reliefweb.Source
	backend storage.Backend
	target  string
	logger  *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Source == nil {
		return nil, errors.New("pipeline: source is required")
	}
	if cfg.Backend == nil {
		cfg.Backend = storage.Nop{}
	}
	if cfg.Target == "" {
		cfg.Target = reliefweb.DefaultEndpoint
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		source:  cfg.Source,
		backend: cfg.Backend,
		target:  cfg.Target,
		logger:  cfg.Logger,
	}, nil
}

// Run executes the pipeline for req. Upstream failures do not fail the run:
// they become a notice and an empty table. A bad upload (*table.SchemaError),
// an unknown column (*table.UnknownColumnError) or an invalid limit are
// returned as errors.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.Limit < 1 {
		return nil, reliefweb.ErrInvalidLimit
	}
	if req.Query == "" {
		req.Query = reliefweb.DefaultQuery
	}

	// only real upstream calls are recorded, cache hits are not
	var src reliefweb.Source = sourceFunc(p.fetchAndRecord)
	if req.Cache != nil {
		src = reliefweb.Cached(src, req.Cache)
	}

	res := &Result{}
	reports, err := src.Fetch(ctx, req.Query, req.Limit)
	if err != nil {
		res.Upstream = err
		reports = nil
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			res.notice(LevelError, "ReliefWeb API returned status %d", se.StatusCode)
		} else {
			res.notice(LevelError, "Could not load reports from ReliefWeb: %v", err)
		}
		p.logger.Warn("report fetch failed", "query", req.Query, "limit", req.Limit, "err", err)
	}

	res.Reports = reliefweb.Normalize(reports)
	if res.Reports.Len() == 0 && res.Upstream == nil {
		res.NoReports = true
		res.notice(LevelInfo, MsgNoReports)
	}

	merged, stats, err := table.LeftJoin(res.Reports, req.Supplement, reliefweb.ColTitle, table.TitleAliases...)
	if err != nil {
		return nil, fmt.Errorf("merge uploaded data: %w", err)
	}
	res.Merged = merged
	res.Stats = stats
	if req.Supplement != nil {
		res.notice(LevelInfo, MsgSupplementLoaded)
		if stats.Duplicates > 0 {
			p.logger.Warn("uploaded data has duplicate titles, first match used", "duplicates", stats.Duplicates)
			res.notice(LevelWarning, "%d uploaded rows repeat an earlier title and were ignored", stats.Duplicates)
		}
		for _, from := range slices.Sorted(maps.Keys(stats.Renamed)) {
			res.notice(LevelWarning, "Uploaded column %q renamed to %q", from, stats.Renamed[from])
		}
	}

	view, err := merged.Project(req.Columns)
	switch {
	case errors.Is(err, table.ErrNoColumns):
		res.NothingSelected = true
		res.notice(LevelInfo, MsgNothingSelected)
	case err != nil:
		return nil, err
	default:
		res.View = view
	}

	return res, nil
}

type sourceFunc func(ctx context.Context, query string, limit int) ([]reliefweb.RawReport, error)

func (f sourceFunc) Fetch(ctx context.Context, query string, limit int) ([]reliefweb.RawReport, error) {
	return f(ctx, query, limit)
}

func (p *Pipeline) fetchAndRecord(ctx context.Context, query string, limit int) ([]reliefweb.RawReport, error) {
	start := time.Now()
	reports, err := p.source.Fetch(ctx, query, limit)
	p.record(ctx, query, len(reports), err, start)
	return reports, err
}

func (p *Pipeline) record(ctx context.Context, query string, rows int, fetchErr error, start time.Time) {
	run := &storage.Run{
		ID:        uuid.NewString(),
		Kind:      storage.KindFetch,
		Target:    p.target,
		Query:     query,
		Rows:      rows,
		Duration:  time.Since(start),
		CreatedAt: start.UTC(),
	}
	var se *httpclient.StatusError
	switch {
	case fetchErr == nil:
		run.StatusCode = http.StatusOK
	case errors.As(fetchErr, &se):
		run.StatusCode = se.StatusCode
		run.Error = fetchErr.Error()
	default:
		run.Error = fetchErr.Error()
	}
	if err := p.backend.Save(context.WithoutCancel(ctx), run); err != nil {
		p.logger.Warn("failed to record fetch run", "err", err)
	}
}
