package media

import (
	"context"
	"errors"
)

// Downloader fetches a source video to a local path.
type Downloader interface {
	Download(ctx context.Context, url, outputPath string) error
}

// YtDlp downloads videos with the yt-dlp command-line tool.
type YtDlp struct {
	binary string
}

// NewYtDlp constructs a downloader. An empty binary falls back to "yt-dlp".
func NewYtDlp(binary string) *YtDlp {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlp{binary: binary}
}

// Download fetches the video as mp4 into outputPath.
func (y *YtDlp) Download(ctx context.Context, url, outputPath string) error {
	if url == "" {
		return errors.New("url required")
	}
	if outputPath == "" {
		return errors.New("output path required")
	}
	return run(ctx, y.binary, "-f", "mp4", "-o", outputPath, url)
}

var _ Downloader = (*YtDlp)(nil)
