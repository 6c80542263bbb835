package media

import (
	"context"
	"errors"
	"fmt"
)

// AudioExtractor strips the audio track from a video file.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
}

// ClipCutter cuts a time range out of a video into a standalone clip.
type ClipCutter interface {
	Cut(ctx context.Context, videoPath string, start, end float64, outputPath string) error
}

// FFmpeg implements audio extraction and clip cutting with the ffmpeg
// command-line tool.
type FFmpeg struct {
	binary string
}

// NewFFmpeg constructs the wrapper. An empty binary falls back to "ffmpeg".
func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary}
}

// ExtractAudio writes the video's audio track as mp3 to audioPath.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	if videoPath == "" {
		return errors.New("video path required")
	}
	if audioPath == "" {
		return errors.New("audio path required")
	}
	return run(ctx, f.binary, "-i", videoPath, "-vn", "-acodec", "libmp3lame", audioPath, "-y")
}

// Cut re-encodes the [start, end) range of the video into outputPath. Clips
// are re-encoded rather than stream-copied so cut points land exactly on the
// requested timestamps instead of the nearest keyframe.
func (f *FFmpeg) Cut(ctx context.Context, videoPath string, start, end float64, outputPath string) error {
	if videoPath == "" {
		return errors.New("video path required")
	}
	if outputPath == "" {
		return errors.New("output path required")
	}
	if end <= start {
		return fmt.Errorf("invalid clip range [%g, %g)", start, end)
	}
	duration := end - start
	return run(ctx, f.binary,
		"-ss", formatSeconds(start),
		"-i", videoPath,
		"-t", formatSeconds(duration),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-movflags", "+faststart",
		outputPath,
		"-y",
	)
}

func formatSeconds(value float64) string {
	return fmt.Sprintf("%.3f", value)
}

var (
	_ AudioExtractor = (*FFmpeg)(nil)
	_ ClipCutter     = (*FFmpeg)(nil)
)
