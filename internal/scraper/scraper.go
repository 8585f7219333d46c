package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/reliefscope/internal/sink"
	"github.com/FranksOps/reliefscope/internal/storage"
	"github.com/FranksOps/reliefscope/pkg/httpclient"
	"github.com/FranksOps/reliefscope/pkg/ratelimit"
)

// Defaults carried over from the original scraping script.
const (
	DefaultURL               = "https://reliefweb.int/reports"
	DefaultHeadingSelector   = "h2"
	DefaultParagraphSelector = "p"
	DefaultCSVName           = "noticias.csv"
	DefaultTXTName           = "artigos.txt"
)

// ErrDisallowed is returned when robots.txt forbids fetching a URL.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Mode selects what a scrape extracts and how it is written.
type Mode string

const (
	ModeCSV Mode = "csv"
	ModeTXT Mode = "txt"
)

func (m Mode) kind() string {
	if m == ModeCSV {
		return storage.KindScrapeCSV
	}
	return storage.KindScrapeTXT
}

// Config configures a Scraper.
type Config struct {
	// Sink receives the rendered files. Required.
	Sink sink.Sink
	// Backend records each scrape as a run. Optional.
	Backend storage.Backend

	HeadingSelector   string
	ParagraphSelector string
	// RespectRobots checks robots.txt before fetching
	RespectRobots bool
	// RequestsPerSecond limits the fetch rate (0 = unlimited)
	RequestsPerSecond float64
	// Jitter applies randomness to the rate limiter (0.0 to 1.0)
	Jitter float64
	// Concurrency bounds parallel jobs in RunBatch (0 = default 3)
	Concurrency int
}

// Outcome describes one finished scrape job.
type Outcome struct {
	URL          string
	Mode         Mode
	Name         string
	Location     string // where the file was written; empty on failure
	Items        int
	StatusCode   int
	DetectedBot  bool
	DetectionSrc string
	Duration     time.Duration
	Err          error
}

// Scraper fetches pages, extracts heading or paragraph text, and writes the
// result through a sink. It shares no state with the report pipeline.
type Scraper struct {
	cfg     Config
	fetcher *Fetcher
	logger  *slog.Logger
	auditor *RobotsTxtAuditor
	limiter *ratelimit.Limiter
}

// New creates a Scraper.
func New(cfg Config, fetcher *Fetcher, logger *slog.Logger) (*Scraper, error) {
	if cfg.Sink == nil {
		return nil, errors.New("scraper: sink is required")
	}
	if fetcher == nil {
		return nil, errors.New("scraper: fetcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Backend == nil {
		cfg.Backend = storage.Nop{}
	}
	if cfg.HeadingSelector == "" {
		cfg.HeadingSelector = DefaultHeadingSelector
	}
	if cfg.ParagraphSelector == "" {
		cfg.ParagraphSelector = DefaultParagraphSelector
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}

	var auditor *RobotsTxtAuditor
	if cfg.RespectRobots {
		auditor = NewRobotsTxtAuditor(fetcher, logger)
	}

	return &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger,
		auditor: auditor,
		limiter: ratelimit.NewLimiter(cfg.RequestsPerSecond, cfg.Jitter),
	}, nil
}

// ScrapeToCSV writes one row per heading element under a single Title column.
func (s *Scraper) ScrapeToCSV(ctx context.Context, targetURL, name string) (*Outcome, error) {
	return s.Scrape(ctx, Job{URL: targetURL, Mode: ModeCSV, Name: name})
}

// ScrapeToTXT writes one line per paragraph element.
func (s *Scraper) ScrapeToTXT(ctx context.Context, targetURL, name string) (*Outcome, error) {
	return s.Scrape(ctx, Job{URL: targetURL, Mode: ModeTXT, Name: name})
}

// Scrape runs a single job. A non-200 page returns *httpclient.StatusError
// and writes nothing. The returned Outcome is never nil.
func (s *Scraper) Scrape(ctx context.Context, j Job) (*Outcome, error) {
	if j.Name == "" {
		j.Name = j.Mode.DefaultName()
	}
	out := &Outcome{URL: j.URL, Mode: j.Mode, Name: j.Name}
	start := time.Now()

	err := s.scrape(ctx, j, out)
	out.Duration = time.Since(start)
	out.Err = err
	s.record(ctx, out, start)

	if err != nil {
		return out, err
	}
	s.logger.Info("saved scrape output", "url", j.URL, "mode", j.Mode, "items", out.Items, "location", out.Location)
	return out, nil
}

func (s *Scraper) scrape(ctx context.Context, j Job, out *Outcome) error {
	var selector string
	switch j.Mode {
	case ModeCSV:
		selector = s.cfg.HeadingSelector
	case ModeTXT:
		selector = s.cfg.ParagraphSelector
	default:
		return fmt.Errorf("unknown scrape mode %q", j.Mode)
	}
	if err := sink.CheckName(j.Name); err != nil {
		return err
	}

	if s.auditor != nil {
		allowed, err := s.auditor.IsAllowed(ctx, j.URL, s.fetcher.UserAgent())
		if err != nil {
			return err
		}
		if !allowed {
			s.logger.Warn("url blocked by robots.txt", "url", j.URL)
			return fmt.Errorf("%s: %w", j.URL, ErrDisallowed)
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	page, err := s.fetcher.Fetch(ctx, j.URL)
	if err != nil {
		s.logger.Error("fetch error", "url", j.URL, "err", err)
		return err
	}
	out.StatusCode = page.StatusCode
	out.DetectedBot = page.DetectedBot
	out.DetectionSrc = page.DetectionSrc

	if !page.OK() {
		s.logger.Warn("failed to access page", "url", j.URL, "status", page.StatusCode,
			"detected_bot", page.DetectedBot, "detection_src", page.DetectionSrc)
		var err error = &httpclient.StatusError{URL: j.URL, StatusCode: page.StatusCode}
		if page.DetectedBot {
			err = fmt.Errorf("%w (%s bot challenge)", err, page.DetectionSrc)
		}
		return err
	}

	texts, err := ExtractText(page.Body, selector)
	if err != nil {
		return err
	}
	out.Items = len(texts)

	var data []byte
	if j.Mode == ModeCSV {
		if data, err = RenderCSV(texts); err != nil {
			return fmt.Errorf("render csv: %w", err)
		}
	} else {
		data = RenderTXT(texts)
	}

	loc, err := s.cfg.Sink.Put(ctx, j.Name, data)
	if err != nil {
		return fmt.Errorf("write %s: %w", j.Name, err)
	}
	out.Location = loc
	return nil
}

func (s *Scraper) record(ctx context.Context, out *Outcome, start time.Time) {
	run := &storage.Run{
		ID:          uuid.NewString(),
		Kind:        out.Mode.kind(),
		Target:      out.URL,
		StatusCode:  out.StatusCode,
		Rows:        out.Items,
		Output:      out.Location,
		Duration:    out.Duration,
		DetectedBot: out.DetectedBot,
		CreatedAt:   start.UTC(),
	}
	if out.Err != nil {
		run.Error = out.Err.Error()
	}
	// canceled jobs are still recorded
	if err := s.cfg.Backend.Save(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("failed to record scrape run", "url", out.URL, "err", err)
	}
}
