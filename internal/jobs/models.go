package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusDownloading  Status = "downloading"
	StatusTranscribing Status = "transcribing"
	StatusRendering    Status = "rendering"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusDownloading,
	StatusTranscribing,
	StatusRendering,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// statusRank orders the forward progression. Failed is reachable from any
// non-terminal state and compares as terminal.
var statusRank = map[Status]int{
	StatusQueued:       0,
	StatusDownloading:  1,
	StatusTranscribing: 2,
	StatusRendering:    3,
	StatusCompleted:    4,
	StatusFailed:       4,
}

// ClipCount bounds and default for a submission.
const (
	MinClipCount     = 1
	MaxClipCount     = 10
	DefaultClipCount = 3
)

// Job represents a pipeline run persisted in SQLite.
type Job struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id"`
	URL            string     `json:"url"`
	ClipCount      int        `json:"clip_count"`
	Status         Status     `json:"status"`
	VideoPath      string     `json:"video_path,omitempty"`
	AudioPath      string     `json:"audio_path,omitempty"`
	TranscriptPath string     `json:"transcript_path,omitempty"`
	HighlightsPath string     `json:"highlights_path,omitempty"`
	ClipsPath      []string   `json:"clips_path"`
	ErrorMessage   string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// User represents an account able to submit jobs.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the pipeline.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanAdvanceTo reports whether moving from s to next respects the forward-only
// state machine: statuses advance along the stage order, or jump from any
// non-terminal state to failed. Re-asserting the current non-terminal status
// is allowed so workers can persist artifacts mid-stage.
func (s Status) CanAdvanceTo(next Status) bool {
	if _, ok := statusSet[next]; !ok {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	if next == s {
		return true
	}
	if next == StatusFailed {
		return true
	}
	if next == StatusCompleted {
		// Completion is only reachable from the render stage.
		return s == StatusRendering
	}
	return statusRank[next] > statusRank[s]
}

// ClampClipCount resolves a requested clip count to the valid range,
// substituting the default for anything outside it.
func ClampClipCount(count int) int {
	if count < MinClipCount || count > MaxClipCount {
		return DefaultClipCount
	}
	return count
}
