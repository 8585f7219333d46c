package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/reliefscope/internal/cache"
	"github.com/FranksOps/reliefscope/internal/pipeline"
	"github.com/FranksOps/reliefscope/internal/session"
	"github.com/FranksOps/reliefscope/internal/storage"
	"github.com/FranksOps/reliefscope/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [--addr :8080]",
		Short: "Run the interactive report browser.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	a.bind("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	history, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer history.Close()

	p, err := pipeline.New(pipeline.Config{
		Source:  a.newSource(),
		Backend: history,
		Target:  a.cfg.API.Endpoint,
		Logger:  a.logger,
	})
	if err != nil {
		return err
	}

	store := session.NewStore(session.Options{
		TTL:          a.cfg.Server.SessionTTL,
		CachePolicy:  cache.Policy{Size: a.cfg.Cache.Size, TTL: a.cfg.Cache.TTL},
		DefaultQuery: a.cfg.API.DefaultQuery,
		Logger:       a.logger,
	})
	go store.Run(ctx, 0)

	var historyPage storage.Backend
	if a.historyEnabled() {
		historyPage = history
	}
	handler, err := web.New(web.Config{
		Pipeline:       p,
		Sessions:       store,
		History:        historyPage,
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
		Logger:         a.logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
