package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/queue"
	"clipforge/internal/status"
)

// Worker drives one stage role: it blocks on the stage's queue, processes
// each job id it receives, and forwards the job through the pipeline. The
// blocking pop gives mutual exclusion across worker instances of the same
// role, so no additional locking is needed.
type Worker struct {
	proc      Processor
	store     *jobs.Store
	queues    *queue.Queues
	publisher *status.Publisher
	logger    *slog.Logger
}

// NewWorker wires a stage processor to its queue, store, and status channel.
func NewWorker(proc Processor, store *jobs.Store, queues *queue.Queues, publisher *status.Publisher, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		proc:      proc,
		store:     store,
		queues:    queues,
		publisher: publisher,
		logger:    logger.With(logging.String(logging.FieldComponent, "worker"), logging.String(logging.FieldStage, string(proc.Stage()))),
	}
}

// Run loops until the context is cancelled. Per-job failures are absorbed:
// the job is failed and the loop keeps serving the queue.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	for {
		jobID, err := w.queues.Pop(ctx, w.proc.Stage())
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopping")
				return ctx.Err()
			}
			w.logger.Error("queue pop failed", logging.Error(err))
			continue
		}

		jobCtx := logging.WithJobID(ctx, jobID)
		jobCtx = logging.WithStage(jobCtx, string(w.proc.Stage()))
		jobCtx = logging.WithCorrelationID(jobCtx, uuid.NewString())
		w.handle(jobCtx, jobID)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (w *Worker) handle(ctx context.Context, jobID string) {
	logger := logging.WithContext(ctx, w.logger)

	job, err := w.store.Get(ctx, jobID)
	if err != nil {
		logger.Error("load job failed", logging.Error(err))
		return
	}
	if job == nil {
		// Queue and store should never diverge; skip quietly if they do.
		logger.Warn("job id not found in store, skipping")
		return
	}

	inProgress := w.proc.InProgress()
	job, err = w.store.Advance(ctx, jobID, inProgress, jobs.Artifacts{})
	if err != nil {
		if errors.Is(err, jobs.ErrInvalidTransition) {
			logger.Warn("job not eligible for stage, skipping", logging.Error(err))
			return
		}
		logger.Error("mark in progress failed", logging.Error(err))
		return
	}
	if job == nil {
		logger.Warn("job disappeared before stage start")
		return
	}
	w.publish(ctx, jobID, status.Event{Status: inProgress})
	logger.Info("stage started")

	artifacts, procErr := w.proc.Process(ctx, job)
	if procErr != nil {
		w.fail(ctx, jobID, procErr)
		return
	}

	next, hasNext := w.proc.Stage().Next()
	if hasNext {
		if _, err := w.store.Advance(ctx, jobID, inProgress, artifacts); err != nil {
			w.fail(ctx, jobID, err)
			return
		}
		if err := w.queues.Push(ctx, next, jobID); err != nil {
			w.fail(ctx, jobID, err)
			return
		}
		logger.Info("stage finished, job forwarded", logging.String("next_stage", string(next)))
		return
	}

	if artifacts.ClipsPath == nil {
		artifacts.ClipsPath = []string{}
	}
	if _, err := w.store.Advance(ctx, jobID, jobs.StatusCompleted, artifacts); err != nil {
		w.fail(ctx, jobID, err)
		return
	}
	w.publish(ctx, jobID, status.Event{Status: jobs.StatusCompleted, ClipsPath: artifacts.ClipsPath})
	logger.Info("job completed", logging.Int("clips", len(artifacts.ClipsPath)))
}

func (w *Worker) fail(ctx context.Context, jobID string, cause error) {
	logger := logging.WithContext(ctx, w.logger)
	logger.Error("stage failed", logging.Error(cause))

	if _, err := w.store.Advance(ctx, jobID, jobs.StatusFailed, jobs.Artifacts{ErrorMessage: cause.Error()}); err != nil {
		logger.Error("mark failed failed", logging.Error(err))
	}
	w.publish(ctx, jobID, status.Event{Status: jobs.StatusFailed, Error: cause.Error()})
}

func (w *Worker) publish(ctx context.Context, jobID string, event status.Event) {
	if err := w.publisher.Publish(ctx, jobID, event); err != nil {
		logging.WithContext(ctx, w.logger).Error("publish status failed", logging.Error(err))
	}
}
