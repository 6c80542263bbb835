package media

import (
	"context"
	"errors"
)

// Transcriber produces a transcript JSON file from an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, transcriptPath string) error
}

// WhisperScript runs the bundled whisper transcription script through a
// python interpreter.
type WhisperScript struct {
	python string
	script string
}

// NewWhisperScript constructs the transcriber. An empty interpreter falls
// back to "python3".
func NewWhisperScript(python, script string) *WhisperScript {
	if python == "" {
		python = "python3"
	}
	return &WhisperScript{python: python, script: script}
}

// Transcribe writes the transcript for audioPath to transcriptPath.
func (w *WhisperScript) Transcribe(ctx context.Context, audioPath, transcriptPath string) error {
	if w.script == "" {
		return errors.New("transcribe script not configured")
	}
	if audioPath == "" {
		return errors.New("audio path required")
	}
	if transcriptPath == "" {
		return errors.New("transcript path required")
	}
	return run(ctx, w.python, w.script, audioPath, transcriptPath)
}

var _ Transcriber = (*WhisperScript)(nil)
