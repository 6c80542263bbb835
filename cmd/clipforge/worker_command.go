package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"clipforge/internal/config"
	"clipforge/internal/highlights"
	"clipforge/internal/jobs"
	"clipforge/internal/media"
	"clipforge/internal/pipeline"
	"clipforge/internal/queue"
	"clipforge/internal/redisconn"
	"clipforge/internal/status"
	"clipforge/internal/storage"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "worker <download|transcribe|render>",
		Short: "Run a single stage worker process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, ok := queue.ParseStage(args[0])
			if !ok {
				return fmt.Errorf("unknown worker role %q (expected %s)", args[0], strings.Join(stageNames(), ", "))
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := jobs.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			rdb, err := redisconn.Connect(runCtx, cfg)
			if err != nil {
				return err
			}
			defer rdb.Close()

			layout := storage.NewLayout(cfg.Paths.StorageDir)
			if err := layout.EnsureDirs(); err != nil {
				return err
			}

			proc, err := buildProcessor(cfg, stage, layout, logger)
			if err != nil {
				return err
			}

			worker := pipeline.NewWorker(proc, store, queue.New(rdb), status.NewPublisher(rdb), logger)
			if err := worker.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func buildProcessor(cfg *config.Config, stage queue.Stage, layout storage.Layout, logger *slog.Logger) (pipeline.Processor, error) {
	timeout := cfg.ToolTimeout()
	switch stage {
	case queue.StageDownload:
		return pipeline.NewDownloadStage(layout, media.NewYtDlp(cfg.Tools.YtDlp), media.NewFFmpeg(cfg.Tools.FFmpeg), timeout), nil
	case queue.StageTranscribe:
		return pipeline.NewTranscribeStage(layout, media.NewWhisperScript(cfg.Tools.Python, cfg.Tools.TranscribeScript), timeout), nil
	case queue.StageRender:
		detector := highlights.NewClient(highlights.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		})
		return pipeline.NewRenderStage(layout, detector, media.NewFFmpeg(cfg.Tools.FFmpeg), timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
}

func stageNames() []string {
	stages := queue.AllStages()
	names := make([]string, len(stages))
	for i, stage := range stages {
		names[i] = string(stage)
	}
	return names
}
