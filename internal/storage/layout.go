// Package storage defines the on-disk artifact layout shared by stage
// workers and the cleanup sweeper: per-job files under fixed category roots,
// named by job id.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	videosDir     = "videos"
	audioDir      = "audio"
	transcriptDir = "transcripts"
	highlightsDir = "highlights"
	clipsDir      = "clips"
)

// Layout resolves artifact paths under a storage root.
type Layout struct {
	root string
}

// NewLayout builds a layout rooted at dir.
func NewLayout(dir string) Layout {
	return Layout{root: dir}
}

// Root returns the storage root directory.
func (l Layout) Root() string {
	return l.root
}

// EnsureDirs creates every category root.
func (l Layout) EnsureDirs() error {
	for _, dir := range []string{videosDir, audioDir, transcriptDir, highlightsDir, clipsDir} {
		if err := os.MkdirAll(filepath.Join(l.root, dir), 0o755); err != nil {
			return fmt.Errorf("create storage directory %s: %w", dir, err)
		}
	}
	return nil
}

// VideoPath returns the downloaded source video location for a job.
func (l Layout) VideoPath(jobID string) string {
	return filepath.Join(l.root, videosDir, jobID+".mp4")
}

// AudioPath returns the extracted audio location for a job.
func (l Layout) AudioPath(jobID string) string {
	return filepath.Join(l.root, audioDir, jobID+".mp3")
}

// TranscriptPath returns the transcript artifact location for a job.
func (l Layout) TranscriptPath(jobID string) string {
	return filepath.Join(l.root, transcriptDir, jobID+".json")
}

// HighlightsPath returns the serialized highlight list location for a job.
func (l Layout) HighlightsPath(jobID string) string {
	return filepath.Join(l.root, highlightsDir, jobID+".json")
}

// ClipsDir returns the directory holding a job's rendered clips.
func (l Layout) ClipsDir(jobID string) string {
	return filepath.Join(l.root, clipsDir, jobID)
}

// ClipPath returns the location of the n-th rendered clip (1-based).
func (l Layout) ClipPath(jobID string, n int) string {
	return filepath.Join(l.ClipsDir(jobID), fmt.Sprintf("clip_%d.mp4", n))
}

// RemoveArtifacts deletes every known artifact for a job. Deletion is
// best-effort and idempotent: missing paths are not errors, and the first
// real failure is returned after attempting the remaining paths.
func (l Layout) RemoveArtifacts(jobID string) error {
	var firstErr error
	record := func(err error) {
		if err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}

	record(os.RemoveAll(l.ClipsDir(jobID)))
	record(removeFile(l.VideoPath(jobID)))
	record(removeFile(l.AudioPath(jobID)))
	record(removeFile(l.TranscriptPath(jobID)))
	record(removeFile(l.HighlightsPath(jobID)))
	return firstErr
}

func removeFile(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
