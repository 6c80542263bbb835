// Package daemon assembles the full service for serve mode: HTTP API, all
// three stage workers, and the cleanup sweeper, sharing one store and one
// redis client, with a file lock enforcing single-instance execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/redis/go-redis/v9"

	"clipforge/internal/api"
	"clipforge/internal/config"
	"clipforge/internal/highlights"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/pipeline"
	"clipforge/internal/preflight"
	"clipforge/internal/queue"
	"clipforge/internal/ratelimit"
	"clipforge/internal/redisconn"
	"clipforge/internal/status"
	"clipforge/internal/storage"
	"clipforge/internal/sweeper"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	store      *jobs.Store
	rdb        *redis.Client
	httpServer *http.Server

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon. Nothing is opened until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, opens the store and redis, and launches
// the HTTP server, the three stage workers, and the sweeper.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	// Missing tools fail jobs at runtime, not startup, so they only warn.
	for _, dep := range preflight.CheckSystemDeps(d.cfg) {
		if !dep.Available && !dep.Optional {
			d.logger.Warn("external dependency unavailable",
				logging.String("dependency", dep.Name),
				logging.String("detail", dep.Detail))
		}
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipforge instance is already running")
	}

	store, err := jobs.Open(d.cfg)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}
	rdb, err := redisconn.Connect(ctx, d.cfg)
	if err != nil {
		_ = store.Close()
		_ = d.lock.Unlock()
		return err
	}

	layout := storage.NewLayout(d.cfg.Paths.StorageDir)
	if err := layout.EnsureDirs(); err != nil {
		_ = rdb.Close()
		_ = store.Close()
		_ = d.lock.Unlock()
		return err
	}

	d.store = store
	d.rdb = rdb

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel

	queues := queue.New(rdb)
	publisher := status.NewPublisher(rdb)
	subscriber := status.NewSubscriber(rdb)
	jobLimiter := ratelimit.NewJobLimiter(rdb, d.cfg.Limits.JobsPerWindow, d.cfg.JobWindow())
	loginLimiter := ratelimit.NewLoginLimiter(rdb, d.cfg.Limits.LoginMaxFailures, d.cfg.LoginBlock())

	server := api.NewServer(d.cfg, d.logger, store, queues, publisher, subscriber, jobLimiter, loginLimiter, rdb)
	d.httpServer = &http.Server{
		Addr:              d.cfg.Server.Bind,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	for _, proc := range d.buildProcessors(layout) {
		worker := pipeline.NewWorker(proc, store, queues, publisher, d.logger)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			_ = worker.Run(runCtx)
		}()
	}

	sw := sweeper.New(store, layout, d.cfg.Retention(), d.cfg.SweepInterval(), d.logger)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = sw.Run(runCtx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.logger.Info("http server listening", logging.String("addr", d.cfg.Server.Bind))
		if err := d.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("http server failed", logging.Error(err))
		}
	}()

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) buildProcessors(layout storage.Layout) []pipeline.Processor {
	timeout := d.cfg.ToolTimeout()
	detector := highlights.NewClient(highlights.Config{
		APIKey:         d.cfg.LLM.APIKey,
		BaseURL:        d.cfg.LLM.BaseURL,
		Model:          d.cfg.LLM.Model,
		Referer:        d.cfg.LLM.Referer,
		Title:          d.cfg.LLM.Title,
		TimeoutSeconds: d.cfg.LLM.TimeoutSeconds,
	})
	ffmpeg := media.NewFFmpeg(d.cfg.Tools.FFmpeg)
	return []pipeline.Processor{
		pipeline.NewDownloadStage(layout, media.NewYtDlp(d.cfg.Tools.YtDlp), ffmpeg, timeout),
		pipeline.NewTranscribeStage(layout, media.NewWhisperScript(d.cfg.Tools.Python, d.cfg.Tools.TranscribeScript), timeout),
		pipeline.NewRenderStage(layout, detector, ffmpeg, timeout, d.logger),
	}
}

// Stop shuts down the HTTP server, stops the workers and sweeper, and
// releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := d.httpServer.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("graceful http shutdown failed", logging.Error(err))
			_ = d.httpServer.Close()
		}
		shutdownCancel()
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release instance lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and releases its connections.
func (d *Daemon) Close() error {
	d.Stop()
	var firstErr error
	if d.rdb != nil {
		if err := d.rdb.Close(); err != nil {
			firstErr = err
		}
		d.rdb = nil
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.store = nil
	}
	return firstErr
}

// Running reports whether the daemon has been started and not yet stopped.
func (d *Daemon) Running() bool {
	return d.running.Load()
}
