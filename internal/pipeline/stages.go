package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"clipforge/internal/highlights"
	"clipforge/internal/jobs"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/queue"
	"clipforge/internal/storage"
)

// Processor runs one stage's external collaborators for a job and returns
// the artifact paths it produced. A returned error fails the job.
type Processor interface {
	Stage() queue.Stage
	InProgress() jobs.Status
	Process(ctx context.Context, job *jobs.Job) (jobs.Artifacts, error)
}

// DownloadStage fetches the source video and extracts its audio track.
type DownloadStage struct {
	layout     storage.Layout
	downloader media.Downloader
	extractor  media.AudioExtractor
	timeout    time.Duration
}

// NewDownloadStage builds the download processor.
func NewDownloadStage(layout storage.Layout, downloader media.Downloader, extractor media.AudioExtractor, timeout time.Duration) *DownloadStage {
	return &DownloadStage{layout: layout, downloader: downloader, extractor: extractor, timeout: timeout}
}

func (s *DownloadStage) Stage() queue.Stage      { return queue.StageDownload }
func (s *DownloadStage) InProgress() jobs.Status { return jobs.StatusDownloading }

func (s *DownloadStage) Process(ctx context.Context, job *jobs.Job) (jobs.Artifacts, error) {
	videoPath := s.layout.VideoPath(job.ID)
	if err := invoke(ctx, s.timeout, func(ctx context.Context) error {
		return s.downloader.Download(ctx, job.URL, videoPath)
	}); err != nil {
		return jobs.Artifacts{}, fmt.Errorf("download video: %w", err)
	}

	audioPath := s.layout.AudioPath(job.ID)
	if err := invoke(ctx, s.timeout, func(ctx context.Context) error {
		return s.extractor.ExtractAudio(ctx, videoPath, audioPath)
	}); err != nil {
		return jobs.Artifacts{}, fmt.Errorf("extract audio: %w", err)
	}

	return jobs.Artifacts{VideoPath: videoPath, AudioPath: audioPath}, nil
}

// TranscribeStage turns the extracted audio into a transcript artifact.
type TranscribeStage struct {
	layout      storage.Layout
	transcriber media.Transcriber
	timeout     time.Duration
}

// NewTranscribeStage builds the transcribe processor.
func NewTranscribeStage(layout storage.Layout, transcriber media.Transcriber, timeout time.Duration) *TranscribeStage {
	return &TranscribeStage{layout: layout, transcriber: transcriber, timeout: timeout}
}

func (s *TranscribeStage) Stage() queue.Stage      { return queue.StageTranscribe }
func (s *TranscribeStage) InProgress() jobs.Status { return jobs.StatusTranscribing }

func (s *TranscribeStage) Process(ctx context.Context, job *jobs.Job) (jobs.Artifacts, error) {
	if job.AudioPath == "" {
		return jobs.Artifacts{}, fmt.Errorf("job %s has no audio artifact", job.ID)
	}

	transcriptPath := s.layout.TranscriptPath(job.ID)
	if err := invoke(ctx, s.timeout, func(ctx context.Context) error {
		return s.transcriber.Transcribe(ctx, job.AudioPath, transcriptPath)
	}); err != nil {
		return jobs.Artifacts{}, fmt.Errorf("transcribe audio: %w", err)
	}

	return jobs.Artifacts{TranscriptPath: transcriptPath}, nil
}

// RenderStage detects highlights in the transcript and cuts one clip per
// highlight. Detection failures degrade to an empty highlight list so the
// job still completes; cutter failures are fatal.
type RenderStage struct {
	layout   storage.Layout
	detector highlights.Detector
	cutter   media.ClipCutter
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRenderStage builds the render processor.
func NewRenderStage(layout storage.Layout, detector highlights.Detector, cutter media.ClipCutter, timeout time.Duration, logger *slog.Logger) *RenderStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RenderStage{layout: layout, detector: detector, cutter: cutter, timeout: timeout, logger: logger}
}

func (s *RenderStage) Stage() queue.Stage      { return queue.StageRender }
func (s *RenderStage) InProgress() jobs.Status { return jobs.StatusRendering }

func (s *RenderStage) Process(ctx context.Context, job *jobs.Job) (jobs.Artifacts, error) {
	if job.TranscriptPath == "" {
		return jobs.Artifacts{}, fmt.Errorf("job %s has no transcript artifact", job.ID)
	}

	raw, err := os.ReadFile(job.TranscriptPath)
	if err != nil {
		return jobs.Artifacts{}, fmt.Errorf("read transcript: %w", err)
	}
	var transcript struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &transcript); err != nil {
		return jobs.Artifacts{}, fmt.Errorf("decode transcript: %w", err)
	}

	detected, err := s.detector.Detect(ctx, transcript.Text, job.ClipCount)
	if err != nil {
		// Degraded completion: the job finishes with zero clips.
		logging.WithContext(ctx, s.logger).Warn("highlight detection failed, completing with no clips", logging.Error(err))
		detected = nil
	}

	highlightsPath := s.layout.HighlightsPath(job.ID)
	encoded, err := json.MarshalIndent(detected, "", "  ")
	if err != nil {
		return jobs.Artifacts{}, fmt.Errorf("encode highlights: %w", err)
	}
	if detected == nil {
		encoded = []byte("[]")
	}
	if err := os.WriteFile(highlightsPath, encoded, 0o644); err != nil {
		return jobs.Artifacts{}, fmt.Errorf("write highlights: %w", err)
	}

	if err := os.MkdirAll(s.layout.ClipsDir(job.ID), 0o755); err != nil {
		return jobs.Artifacts{}, fmt.Errorf("create clips directory: %w", err)
	}

	clips := make([]string, 0, len(detected))
	for i, h := range detected {
		clipPath := s.layout.ClipPath(job.ID, i+1)
		if err := invoke(ctx, s.timeout, func(ctx context.Context) error {
			return s.cutter.Cut(ctx, job.VideoPath, h.Start, h.End, clipPath)
		}); err != nil {
			return jobs.Artifacts{}, fmt.Errorf("cut clip %d: %w", i+1, err)
		}
		clips = append(clips, clipPath)
	}

	return jobs.Artifacts{HighlightsPath: highlightsPath, ClipsPath: clips}, nil
}

// invoke runs one collaborator call, applying a deadline only when the
// operator configured one. By default tools run to completion.
func invoke(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

var (
	_ Processor = (*DownloadStage)(nil)
	_ Processor = (*TranscribeStage)(nil)
	_ Processor = (*RenderStage)(nil)
)
