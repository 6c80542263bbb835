// Package sweeper reclaims storage from completed jobs past their retention
// window. Artifact files are removed and the job row's artifact columns are
// nulled; the row itself survives as a historical record. Failed jobs are
// never swept.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/storage"
)

// Sweeper periodically scans for expired completed jobs.
type Sweeper struct {
	store     *jobs.Store
	layout    storage.Layout
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// Option customizes the sweeper.
type Option func(*Sweeper)

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a sweeper.
func New(store *jobs.Store, layout storage.Layout, retention, interval time.Duration, logger *slog.Logger, opts ...Option) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Sweeper{
		store:     store,
		layout:    layout,
		retention: retention,
		interval:  interval,
		logger:    logger.With(logging.String(logging.FieldComponent, "sweeper")),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps immediately, then on every interval tick, until the context is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("sweeper started",
		logging.Duration("interval", s.interval),
		logging.Duration("retention", s.retention))

	if swept, err := s.Sweep(ctx); err != nil {
		s.logger.Error("sweep failed", logging.Error(err))
	} else if swept > 0 {
		s.logger.Info("sweep finished", logging.Int("jobs_swept", swept))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
			swept, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Error("sweep failed", logging.Error(err))
				continue
			}
			if swept > 0 {
				s.logger.Info("sweep finished", logging.Int("jobs_swept", swept))
			}
		}
	}
}

// Sweep runs one pass and returns the number of jobs reclaimed. A failure on
// one job does not stop the pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	candidates, err := s.store.SweepCandidates(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().UTC().Add(-s.retention)
	swept := 0
	for _, job := range candidates {
		if job.CompletedAt == nil || job.CompletedAt.After(cutoff) {
			continue
		}
		logger := s.logger.With(logging.String(logging.FieldJobID, job.ID))
		if err := s.layout.RemoveArtifacts(job.ID); err != nil {
			logger.Error("remove artifacts failed", logging.Error(err))
			continue
		}
		if err := s.store.ClearArtifacts(ctx, job.ID); err != nil {
			logger.Error("clear artifact columns failed", logging.Error(err))
			continue
		}
		logger.Info("job artifacts reclaimed")
		swept++
	}
	return swept, nil
}
