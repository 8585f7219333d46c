package scraper

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Job is one scrape request.
type Job struct {
	URL  string
	Mode Mode
	// Name is the output file name relative to the sink. Empty picks the
	// mode's default.
	Name string
}

// DefaultName is the output file name used when a job names none.
func (m Mode) DefaultName() string {
	if m == ModeCSV {
		return DefaultCSVName
	}
	return DefaultTXTName
}

// DemoJobs returns a CSV job and a TXT job for every URL, in that order.
func DemoJobs(urls ...string) []Job {
	jobs := make([]Job, 0, 2*len(urls))
	for i, u := range urls {
		csvName, txtName := DefaultCSVName, DefaultTXTName
		if len(urls) > 1 {
			csvName = fmt.Sprintf("noticias_%d.csv", i+1)
			txtName = fmt.Sprintf("artigos_%d.txt", i+1)
		}
		jobs = append(jobs,
			Job{URL: u, Mode: ModeCSV, Name: csvName},
			Job{URL: u, Mode: ModeTXT, Name: txtName},
		)
	}
	return jobs
}

// RunBatch runs jobs with bounded concurrency. Every job gets an outcome at
// its own index; a failed job does not stop the others. The returned error
// joins every job error.
func (s *Scraper) RunBatch(ctx context.Context, jobs []Job) ([]*Outcome, error) {
	outcomes := make([]*Outcome, len(jobs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			// job errors are collected from outcomes, never returned here,
			// so gCtx is only canceled by the parent
			outcomes[i], _ = s.Scrape(gCtx, j)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", o.Mode, o.URL, o.Err))
		}
	}
	return outcomes, errors.Join(errs...)
}
