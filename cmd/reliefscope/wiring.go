package main

import (
	"context"
	"fmt"

	"github.com/FranksOps/reliefscope/internal/config"
	"github.com/FranksOps/reliefscope/internal/fingerprint"
	"github.com/FranksOps/reliefscope/internal/reliefweb"
	"github.com/FranksOps/reliefscope/internal/scraper"
	"github.com/FranksOps/reliefscope/internal/sink"
	"github.com/FranksOps/reliefscope/internal/sink/filesystem"
	s3sink "github.com/FranksOps/reliefscope/internal/sink/s3"
	"github.com/FranksOps/reliefscope/internal/storage"
	"github.com/FranksOps/reliefscope/internal/storage/jsonbackend"
	"github.com/FranksOps/reliefscope/internal/storage/postgres"
	"github.com/FranksOps/reliefscope/internal/storage/sqlite"
	"github.com/FranksOps/reliefscope/pkg/httpclient"
	"github.com/FranksOps/reliefscope/pkg/useragent"
)

// openHistory opens the configured run-history backend. The none type
// yields a backend that discards runs.
func (a *app) openHistory(ctx context.Context) (storage.Backend, error) {
	h := a.cfg.History
	var (
		b   storage.Backend
		err error
	)
	switch h.Type {
	case config.HistoryNone:
		return storage.Nop{}, nil
	case config.HistoryJSON:
		b, err = jsonbackend.New(h.Path)
	case config.HistorySQLite:
		b, err = sqlite.New(h.Path)
	case config.HistoryPostgres:
		b, err = postgres.New(ctx, h.DSN)
	default:
		return nil, fmt.Errorf("unknown history backend %q", h.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s history: %w", h.Type, err)
	}
	a.logger.Debug("run history opened", "type", h.Type)
	return b, nil
}

func (a *app) historyEnabled() bool {
	return a.cfg.History.Type != config.HistoryNone
}

func (a *app) newSink(ctx context.Context) (sink.Sink, error) {
	s := a.cfg.Sink
	switch s.Type {
	case config.SinkFilesystem:
		return filesystem.New(a.cfg.Scraper.DataDir), nil
	case config.SinkS3:
		store, err := s3sink.New(ctx, s3sink.Options{
			Bucket:   s.S3.Bucket,
			Region:   s.S3.Region,
			Prefix:   s.S3.Prefix,
			Endpoint: s.S3.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown sink %q", s.Type)
}

func (a *app) newSource() *reliefweb.Client {
	return reliefweb.NewClient(reliefweb.Config{
		Endpoint: a.cfg.API.Endpoint,
		AppName:  a.cfg.API.AppName,
		Profile:  a.cfg.API.Profile,
		HTTP:     httpclient.New(httpclient.Config{Timeout: a.cfg.API.Timeout}),
		Logger:   a.logger,
	})
}

func (a *app) newScraper(ctx context.Context, history storage.Backend) (*scraper.Scraper, error) {
	sc := a.cfg.Scraper

	profile, err := fingerprint.ParseProfile(sc.Fingerprint)
	if err != nil {
		return nil, err
	}
	fc := scraper.FetchConfig{
		Timeout:     sc.Timeout,
		Fingerprint: profile,
		UserAgent:   sc.UserAgent,
	}
	if sc.RotateUserAgents {
		fc.UAPool = useragent.New()
	}
	fetcher, err := scraper.NewFetcher(fc)
	if err != nil {
		return nil, fmt.Errorf("build page fetcher: %w", err)
	}

	out, err := a.newSink(ctx)
	if err != nil {
		return nil, err
	}

	return scraper.New(scraper.Config{
		Sink:              out,
		Backend:           history,
		HeadingSelector:   sc.HeadingSelector,
		ParagraphSelector: sc.ParagraphSelector,
		RespectRobots:     sc.RespectRobots,
		RequestsPerSecond: sc.RequestsPerSecond,
		Jitter:            sc.Jitter,
		Concurrency:       sc.Concurrency,
	}, fetcher, a.logger)
}
