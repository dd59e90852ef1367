package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/internal/adapters/http/swagger"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	defaultRefreshInterval = 15 * time.Second
)

func runServe(ctx context.Context, e *env, args []string) error {
	addr := e.cfg.Addr
	interval := defaultRefreshInterval
	fs := newFlagSet(e, "serve")
	fs.StringVar(&addr, "addr", addr, "listen address")
	fs.DurationVar(&interval, "refresh", interval, "background refresh interval; 0 disables")
	if err := parse(fs, args); err != nil {
		return err
	}

	svc, err := newService(ctx, e)
	if err != nil {
		return err
	}
	defer svc.Stop()

	if _, err := svc.Refresh(ctx); err != nil {
		e.log.Warn(ctx, "initial refresh failed", logger.Error(err))
	}
	if interval > 0 {
		go startRefresher(ctx, svc, interval)
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, api.WithNoticeTTL(e.cfg.NoticeTTL())).Register(ctx, mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		e.log.Info(ctx, "starting HTTP server", logger.String("addr", addr), logger.String("server", e.cfg.ServerURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	e.log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		e.log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	e.log.Info(ctx, "server stopped")
	return nil
}

// startRefresher refreshes the view every interval until ctx is done. A
// failed refresh keeps the previous view.
func startRefresher(ctx context.Context, svc *service.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = svc.Refresh(ctx)
		}
	}
}
