package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/reliefscope/internal/bypass"
	"github.com/FranksOps/reliefscope/internal/fingerprint"
	"github.com/FranksOps/reliefscope/internal/metrics"
	"github.com/FranksOps/reliefscope/pkg/httpclient"
	"github.com/FranksOps/reliefscope/pkg/useragent"
)

// maxBodyBytes caps how much of a page is read.
const maxBodyBytes = 16 << 20

// FetchConfig configures page fetches.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	Fingerprint  fingerprint.Profile
	// UserAgent is sent with every request unless UAPool is set.
	UserAgent string
	// UAPool rotates User-Agents per request.
	UAPool *useragent.Pool
}

// Page is a fetched page. Any HTTP status produces a Page; only transport
// failures produce an error.
type Page struct {
	URL          string
	StatusCode   int
	Header       http.Header
	Body         []byte
	Duration     time.Duration
	DetectedBot  bool
	DetectionSrc string // e.g. "Cloudflare", "Akamai", "PerimeterX", "DataDome"
}

// OK reports whether the page came back with 200.
func (p *Page) OK() bool { return p.StatusCode == http.StatusOK }

// Fetcher performs single URL fetches through a fingerprinted transport.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher builds the transport once so connections are pooled across fetches.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = httpclient.DefaultTimeout
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UserAgent:    cfg.UserAgent,
		Transport:    transport,
	})

	return &Fetcher{config: cfg, client: client}, nil
}

// UserAgent returns the User-Agent the fetcher identifies as for robots.txt.
func (f *Fetcher) UserAgent() string { return f.client.UserAgent() }

// Fetch GETs targetURL, reads the body and runs bot detection on the result.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	start := time.Now()
	domain := ""
	if u, err := url.Parse(targetURL); err == nil {
		domain = u.Hostname()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	ua := f.client.UserAgent()
	if f.config.UAPool != nil {
		ua = f.config.UAPool.Next()
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.RecordScrape(domain, 0, false, "", time.Since(start))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RecordScrape(domain, resp.StatusCode, false, "", time.Since(start))
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	page := &Page{
		URL:        targetURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   time.Since(start),
	}
	page.DetectedBot, page.DetectionSrc = bypass.Analyze(&bypass.Response{
		StatusCode: page.StatusCode,
		Header:     page.Header,
		Body:       page.Body,
	}, bypass.DefaultDetectors())

	metrics.RecordScrape(domain, page.StatusCode, page.DetectedBot, page.DetectionSrc, page.Duration)
	return page, nil
}
