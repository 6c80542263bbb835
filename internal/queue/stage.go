package queue

import "strings"

// Stage identifies a pipeline phase with its own queue and worker role.
type Stage string

const (
	StageDownload   Stage = "download"
	StageTranscribe Stage = "transcribe"
	StageRender     Stage = "render"
)

var allStages = []Stage{StageDownload, StageTranscribe, StageRender}

// AllStages returns the pipeline stages in processing order.
func AllStages() []Stage {
	cp := make([]Stage, len(allStages))
	copy(cp, allStages)
	return cp
}

// ParseStage converts a worker role string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, stage := range allStages {
		if stage == normalized {
			return stage, true
		}
	}
	return "", false
}

// Key returns the redis list key for the stage's FIFO.
func (s Stage) Key() string {
	return "queue:" + string(s)
}

// Next returns the stage that follows s in the pipeline, if any.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageDownload:
		return StageTranscribe, true
	case StageTranscribe:
		return StageRender, true
	default:
		return "", false
	}
}
