package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/FranksOps/reliefscope/internal/cache"
)

// robotsTTL bounds how long a host's rules are trusted.
const robotsTTL = time.Hour

// RobotsTxtAuditor answers robots.txt checks, fetching each host's file once
// per robotsTTL.
type RobotsTxtAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger
	// fetchMu serializes misses so concurrent jobs on one host fetch once
	fetchMu sync.Mutex
	rules   cache.Cache[string, *robotstxt.RobotsData]
}

// NewRobotsTxtAuditor creates an auditor that fetches through fetcher.
func NewRobotsTxtAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsTxtAuditor{
		fetcher: fetcher,
		logger:  logger,
		rules:   cache.New[string, *robotstxt.RobotsData](cache.Policy{Size: 256, TTL: robotsTTL}),
	}
}

// IsAllowed reports whether userAgent may fetch targetURL. A robots.txt that
// cannot be fetched allows everything; a 5xx answer disallows everything.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return false, fmt.Errorf("invalid url %q: missing scheme or host", targetURL)
	}

	rules := r.hostRules(ctx, u.Scheme+"://"+u.Host)
	if rules == nil {
		return true, nil
	}

	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	return rules.TestAgent(p, userAgent), nil
}

func (r *RobotsTxtAuditor) hostRules(ctx context.Context, origin string) *robotstxt.RobotsData {
	if rules, ok := r.rules.Get(origin); ok {
		return rules
	}

	r.fetchMu.Lock()
	defer r.fetchMu.Unlock()
	if rules, ok := r.rules.Get(origin); ok {
		return rules
	}

	var rules *robotstxt.RobotsData
	page, err := r.fetcher.Fetch(ctx, origin+"/robots.txt")
	if err == nil {
		// FromStatusAndBytes maps 4xx to allow-all and 5xx to disallow-all
		rules, err = robotstxt.FromStatusAndBytes(page.StatusCode, page.Body)
	}
	if err != nil {
		r.logger.Debug("robots.txt unavailable, allowing", "host", origin, "err", err)
		rules = nil
	}
	// a cancelled job says nothing about the host
	if ctx.Err() != nil {
		return rules
	}
	// nil is cached too so an unreachable host is not retried per job
	r.rules.Put(origin, rules)
	return rules
}
