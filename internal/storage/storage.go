package storage

import (
	"context"
	"slices"
	"time"
)

// Kinds of recorded runs.
const (
	KindFetch     = "fetch"
	KindScrapeCSV = "scrape_csv"
	KindScrapeTXT = "scrape_txt"
)

// Run records one pipeline fetch or scraper job.
type Run struct {
	ID          string
	Kind        string
	Target      string // API endpoint or scraped page URL
	Query       string // fetch query; empty for scrapes
	StatusCode  int
	Rows        int    // rows in the report table, or extracted elements
	Output      string // location of the written file, if any
	Duration    time.Duration
	DetectedBot bool
	Error       string // non-empty if the run failed
	CreatedAt   time.Time
}

// Failed reports whether the run ended in an error or a non-200 status.
func (r *Run) Failed() bool {
	return r.Error != "" || (r.StatusCode != 0 && r.StatusCode != 200)
}

// Filter narrows a history query. Results are newest first.
type Filter struct {
	Kind   string
	Since  *time.Time
	Limit  int
	Offset int
}

// Match reports whether r passes the filter's Kind and Since conditions.
func (f Filter) Match(r *Run) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Page sorts runs newest first and applies Offset and Limit. It is for
// backends that filter in memory.
func (f Filter) Page(runs []*Run) []*Run {
	slices.SortStableFunc(runs, func(a, b *Run) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if f.Offset > 0 {
		runs = runs[min(f.Offset, len(runs)):]
	}
	if f.Limit > 0 && f.Limit < len(runs) {
		runs = runs[:f.Limit]
	}
	if runs == nil {
		return []*Run{}
	}
	return runs
}

// Backend stores and queries run history.
type Backend interface {
	Save(ctx context.Context, run *Run) error
	Query(ctx context.Context, filter Filter) ([]*Run, error)
	Close() error
}

// Nop discards every run. It is used when no history backend is configured.
type Nop struct{}

var _ Backend = Nop{}

func (Nop) Save(context.Context, *Run) error              { return nil }
func (Nop) Query(context.Context, Filter) ([]*Run, error) { return []*Run{}, nil }
func (Nop) Close() error                                  { return nil }
