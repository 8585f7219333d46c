// Package config loads reliefscope settings from defaults, an optional YAML
// file, RELIEFSCOPE_* environment variables and bound command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FranksOps/reliefscope/internal/fingerprint"
	"github.com/FranksOps/reliefscope/internal/logging"
	"github.com/FranksOps/reliefscope/internal/reliefweb"
	"github.com/FranksOps/reliefscope/internal/scraper"
	"github.com/FranksOps/reliefscope/internal/sink/filesystem"
	"github.com/FranksOps/reliefscope/pkg/httpclient"
)

// EnvPrefix prefixes every environment override, e.g. RELIEFSCOPE_API_APP_NAME.
const EnvPrefix = "RELIEFSCOPE"

// Sink and history backend types.
const (
	SinkFilesystem = "filesystem"
	SinkS3         = "s3"

	HistoryNone     = "none"
	HistoryJSON     = "json"
	HistorySQLite   = "sqlite"
	HistoryPostgres = "postgres"
)

// Config is the full application configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	API     APIConfig     `mapstructure:"api"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Server  ServerConfig  `mapstructure:"server"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Sink    SinkConfig    `mapstructure:"sink"`
	History HistoryConfig `mapstructure:"history"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// APIConfig configures the ReliefWeb reports client.
type APIConfig struct {
	Endpoint     string        `mapstructure:"endpoint"`
	AppName      string        `mapstructure:"app_name"`
	Profile      string        `mapstructure:"profile"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DefaultQuery string        `mapstructure:"default_query"`
}

// CacheConfig sets the per-session fetch cache policy. Both zero keeps every
// fetch for the session's lifetime.
type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

type ScraperConfig struct {
	DataDir           string        `mapstructure:"data_dir"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Fingerprint       string        `mapstructure:"fingerprint"`
	UserAgent         string        `mapstructure:"user_agent"`
	RotateUserAgents  bool          `mapstructure:"rotate_user_agents"`
	HeadingSelector   string        `mapstructure:"heading_selector"`
	ParagraphSelector string        `mapstructure:"paragraph_selector"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Jitter            float64       `mapstructure:"jitter"`
	Concurrency       int           `mapstructure:"concurrency"`
}

// SinkConfig selects where scraped files are written.
type SinkConfig struct {
	Type string   `mapstructure:"type"`
	S3   S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Prefix   string `mapstructure:"prefix"`
	Endpoint string `mapstructure:"endpoint"`
}

// HistoryConfig selects the run-history backend. Path is used by the json
// and sqlite backends, DSN by postgres.
type HistoryConfig struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
	DSN  string `mapstructure:"dsn"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		API: APIConfig{
			Endpoint:     reliefweb.DefaultEndpoint,
			AppName:      reliefweb.DefaultAppName,
			Profile:      reliefweb.DefaultProfile,
			Timeout:      httpclient.DefaultTimeout,
			DefaultQuery: reliefweb.DefaultQuery,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			SessionTTL:     30 * time.Minute,
			MaxUploadBytes: 10 << 20,
		},
		Scraper: ScraperConfig{
			DataDir:           filesystem.DefaultDir,
			Timeout:           httpclient.DefaultTimeout,
			Fingerprint:       string(fingerprint.ProfileChrome),
			UserAgent:         httpclient.DefaultUserAgent,
			HeadingSelector:   scraper.DefaultHeadingSelector,
			ParagraphSelector: scraper.DefaultParagraphSelector,
			Concurrency:       3,
		},
		Sink:    SinkConfig{Type: SinkFilesystem},
		History: HistoryConfig{Type: HistorySQLite, Path: "data/history.db"},
	}
}

// NewViper returns a viper instance carrying the defaults and the
// environment overrides. Callers bind flags on it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("api.endpoint", d.API.Endpoint)
	v.SetDefault("api.app_name", d.API.AppName)
	v.SetDefault("api.profile", d.API.Profile)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.default_query", d.API.DefaultQuery)

	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.session_ttl", d.Server.SessionTTL)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)

	v.SetDefault("scraper.data_dir", d.Scraper.DataDir)
	v.SetDefault("scraper.timeout", d.Scraper.Timeout)
	v.SetDefault("scraper.fingerprint", d.Scraper.Fingerprint)
	v.SetDefault("scraper.user_agent", d.Scraper.UserAgent)
	v.SetDefault("scraper.rotate_user_agents", d.Scraper.RotateUserAgents)
	v.SetDefault("scraper.heading_selector", d.Scraper.HeadingSelector)
	v.SetDefault("scraper.paragraph_selector", d.Scraper.ParagraphSelector)
	v.SetDefault("scraper.respect_robots", d.Scraper.RespectRobots)
	v.SetDefault("scraper.requests_per_second", d.Scraper.RequestsPerSecond)
	v.SetDefault("scraper.jitter", d.Scraper.Jitter)
	v.SetDefault("scraper.concurrency", d.Scraper.Concurrency)

	v.SetDefault("sink.type", d.Sink.Type)
	v.SetDefault("sink.s3.bucket", d.Sink.S3.Bucket)
	v.SetDefault("sink.s3.region", d.Sink.S3.Region)
	v.SetDefault("sink.s3.prefix", d.Sink.S3.Prefix)
	v.SetDefault("sink.s3.endpoint", d.Sink.S3.Endpoint)

	v.SetDefault("history.type", d.History.Type)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("history.dsn", d.History.DSN)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional YAML file at path into v, decodes the result and
// validates it.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add("log.level: %w", err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		add("log.format: must be text or json, got %q", c.Log.Format)
	}

	if c.API.Endpoint == "" {
		add("api.endpoint: required")
	}
	if c.API.Timeout <= 0 {
		add("api.timeout: must be positive")
	}

	if c.Cache.Size < 0 {
		add("cache.size: must not be negative")
	}
	if c.Cache.TTL < 0 {
		add("cache.ttl: must not be negative")
	}

	if c.Server.SessionTTL <= 0 {
		add("server.session_ttl: must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		add("server.max_upload_bytes: must be positive")
	}

	if _, err := fingerprint.ParseProfile(c.Scraper.Fingerprint); err != nil {
		add("scraper.fingerprint: %w", err)
	}
	if c.Scraper.Timeout <= 0 {
		add("scraper.timeout: must be positive")
	}
	if c.Scraper.RequestsPerSecond < 0 {
		add("scraper.requests_per_second: must not be negative")
	}
	if c.Scraper.Jitter < 0 || c.Scraper.Jitter > 1 {
		add("scraper.jitter: must be between 0 and 1")
	}
	if c.Scraper.Concurrency < 0 {
		add("scraper.concurrency: must not be negative")
	}

	switch c.Sink.Type {
	case SinkFilesystem:
	case SinkS3:
		if c.Sink.S3.Bucket == "" {
			add("sink.s3.bucket: required for the s3 sink")
		}
	default:
		add("sink.type: unknown sink %q", c.Sink.Type)
	}

	switch c.History.Type {
	case HistoryNone:
	case HistoryJSON, HistorySQLite:
		if c.History.Path == "" {
			add("history.path: required for the %s backend", c.History.Type)
		}
	case HistoryPostgres:
		if c.History.DSN == "" {
			add("history.dsn: required for the postgres backend")
		}
	default:
		add("history.type: unknown backend %q", c.History.Type)
	}

	return errors.Join(errs...)
}
