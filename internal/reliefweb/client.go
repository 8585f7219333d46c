package reliefweb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/FranksOps/reliefscope/internal/metrics"
	"github.com/FranksOps/reliefscope/pkg/httpclient"
	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	DefaultEndpoint = "https://api.reliefweb.int/v1/reports"
	DefaultAppName  = "apidoc"
	DefaultProfile  = "full"
	DefaultQuery    = "projects"
)

var (
	// ErrInvalidLimit is returned for a fetch limit below 1.
	ErrInvalidLimit = errors.New("limit must be at least 1")
	// ErrMalformedResponse is returned when a successful response has no
	// readable data array.
	ErrMalformedResponse = errors.New("malformed report API response")
)

// Source returns report records for a query.
type Source interface {
	Fetch(ctx context.Context, query string, limit int) ([]RawReport, error)
}

// Config configures the report API client.
type Config struct {
	Endpoint string
	AppName  string
	Profile  string
	// HTTP is the underlying client. It bounds every call with its timeout.
	HTTP   *httpclient.Client
	Logger *slog.Logger
}

// Client queries the ReliefWeb reports endpoint.
type Client struct {
	endpoint string
	appName  string
	profile  string
	rc       *resty.Client
	logger   *slog.Logger
}

var _ Source = (*Client)(nil)

// NewClient creates a Client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}
	if cfg.Profile == "" {
		cfg.Profile = DefaultProfile
	}
	if cfg.HTTP == nil {
		cfg.HTTP = httpclient.New(httpclient.Config{})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	rc := resty.NewWithClient(cfg.HTTP.Client).
		SetHeader("User-Agent", cfg.HTTP.UserAgent()).
		SetHeader("Accept", "application/json")

	return &Client{
		endpoint: cfg.Endpoint,
		appName:  cfg.AppName,
		profile:  cfg.Profile,
		rc:       rc,
		logger:   cfg.Logger,
	}
}

// Fetch issues one GET for the query and returns at most limit records.
// A non-200 status yields an empty result and a *httpclient.StatusError.
func (c *Client) Fetch(ctx context.Context, query string, limit int) ([]RawReport, error) {
	if limit < 1 {
		return []RawReport{}, ErrInvalidLimit
	}

	start := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"appname":      c.appName,
			"query[value]": query,
			"limit":        strconv.Itoa(limit),
			"profile":      c.profile,
		}).
		Get(c.endpoint)
	if err != nil {
		metrics.RecordAPIRequest(0, time.Since(start))
		return []RawReport{}, fmt.Errorf("fetch reports: %w", err)
	}
	metrics.RecordAPIRequest(resp.StatusCode(), resp.Time())

	if resp.StatusCode() != http.StatusOK {
		c.logger.Warn("report API returned non-success status",
			"status", resp.StatusCode(), "query", query, "limit", limit)
		return []RawReport{}, &httpclient.StatusError{URL: c.endpoint, StatusCode: resp.StatusCode()}
	}

	reports, err := parseReports(resp.Body(), limit)
	if err != nil {
		return []RawReport{}, err
	}

	c.logger.Debug("fetched reports", "query", query, "limit", limit, "count", len(reports))
	return reports, nil
}

func parseReports(body []byte, limit int) ([]RawReport, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrMalformedResponse)
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, fmt.Errorf("%w: missing data array", ErrMalformedResponse)
	}

	items := data.Array()
	if len(items) > limit {
		items = items[:limit]
	}
	reports := make([]RawReport, 0, len(items))
	for _, item := range items {
		reports = append(reports, RawReport(item.Raw))
	}
	return reports, nil
}
