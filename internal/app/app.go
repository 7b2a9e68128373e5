// Package app wires the cache daemon together: store, remote clients, the
// sync engine, the push channel and the local HTTP surface.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/adhocore/gronx"

	"chatcache/pkg/config"
	"chatcache/pkg/directory"
	"chatcache/pkg/history"
	"chatcache/pkg/logger"
	"chatcache/pkg/push"
	"chatcache/pkg/store"
	"chatcache/pkg/syncer"
	"chatcache/pkg/validation"
)

// App encapsulates the daemon components and lifecycle.
type App struct {
	cfg     *config.Config
	version string

	st     *store.Store
	queue  *push.Queue
	source push.Source
	svc    *syncer.Service

	srv *http.Server
}

// New initializes resources that do not require a running context: the
// store, the remote clients and the sync engine. Call Run to start the push
// channel and the HTTP server and block until shutdown.
func New(cfg *config.Config, version string) (*App, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	validation.SetRules(validation.Rules{MaxContentLen: cfg.Sync.MaxContentLen})

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", cfg.Storage.DBPath, err)
	}

	dir := directory.NewHTTPClient(cfg.Remote.DirectoryURL)
	fetch := history.NewHTTPFetcher(cfg.Remote.HistoryURL, cfg.Remote.Token, cfg.Sync.FetchRPS, cfg.Sync.FetchBurst)
	queue := push.NewQueue(cfg.Sync.QueueCapacity)

	var source push.Source
	var out push.Outbound
	if cfg.Remote.PushURL != "" {
		ws := push.NewWSSource(cfg.Remote.PushURL, cfg.Remote.Token, queue)
		source = ws
		out = ws
	}

	svc, err := syncer.New(st, dir, fetch, out, syncer.Options{
		Username:     cfg.Remote.Username,
		PageLimit:    cfg.Sync.PageLimit,
		SendWatchdog: cfg.Sync.SendWatchdog.Duration(),
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &App{cfg: cfg, version: version, st: st, queue: queue, source: source, svc: svc}, nil
}

// Service exposes the sync engine, mainly for embedding consumers.
func (a *App) Service() *syncer.Service { return a.svc }

// Run starts the push channel, the event consumer, the resync schedule and
// the HTTP server, runs the initial bootstrap, and blocks until ctx is
// canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()
	logger.Info("push_queue_ready", "capacity", a.queue.Cap())

	stop := make(chan struct{})
	go a.svc.Run(stop, a.queue)

	if a.source != nil {
		go func() {
			if err := a.source.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("push_source_exited", "error", err)
			}
		}()
	}

	go a.bootstrap(ctx)

	if a.cfg.Sync.ResyncCron != "" {
		go a.resyncLoop(ctx)
	}

	errCh := a.startHTTP()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}

	close(stop)
	a.shutdown()
	return err
}

// bootstrap runs the startup reconciliation. Failures are logged, not fatal:
// the cache still serves what it has, and the resync schedule or an explicit
// /v1/sync retries.
func (a *App) bootstrap(ctx context.Context) {
	if _, err := a.svc.Bootstrap(ctx, a.cfg.Remote.Token); err != nil {
		logger.Warn("bootstrap_incomplete", "error", err)
	}
}

// resyncLoop re-runs the pull reconciliation whenever the configured cron
// expression is due, checked once a minute.
func (a *App) resyncLoop(ctx context.Context) {
	gron := gronx.New()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := gron.IsDue(a.cfg.Sync.ResyncCron, time.Now())
			if err != nil || !due {
				continue
			}
			if err := a.svc.PullAll(ctx); err != nil {
				logger.Warn("scheduled_resync_incomplete", "error", err)
			}
		}
	}
}

// shutdown stops the HTTP server, drains the queue and closes the store.
func (a *App) shutdown() {
	if a.srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.srv.Shutdown(sctx)
		cancel()
	}
	a.queue.CloseAndDrain()
	if err := a.st.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("shutdown_complete")
}
