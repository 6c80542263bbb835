package highlights

import (
	"context"
	"fmt"
	"strings"
)

// maxTranscriptChars bounds the transcript text sent to the model so long
// videos never overflow the context window.
const maxTranscriptChars = 25000

const detectionSystemPrompt = `You are a world-class viral content editor, retention analyst,
and short-form algorithm expert (YouTube Shorts, Reels, TikTok).

SELECTION CRITERIA:
Select emotional spikes, bold claims, secrets,
money stories, transformation, controversy, humor, value bombs.

REJECT greetings, context setup, repetition, sponsor talk,
generic advice, neutral tone.

CLIP RULES:
- Each clip must feel COMPLETE
- Minimum duration: 18 seconds
- Maximum duration: 65 seconds
- First 3 seconds must hook strongly
- Ending must feel impactful

LANGUAGE:
Auto-detect the transcript language and preserve it.
Do NOT translate.

OUTPUT FORMAT (STRICT JSON ARRAY ONLY):

[
  {
    "start": number,
    "end": number,
    "title": "Short viral hook title",
    "hook": "Powerful opening sentence",
    "viral_score": number,
    "reason": "Why this clip works"
  }
]

Return ONLY JSON. No markdown. No explanation.`

// Highlight is one moment the model selected from the transcript. Start and
// End are offsets in seconds from the beginning of the video.
type Highlight struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Title      string  `json:"title,omitempty"`
	Hook       string  `json:"hook,omitempty"`
	ViralScore float64 `json:"viral_score,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// Detector selects highlight moments from transcript text.
type Detector interface {
	Detect(ctx context.Context, transcriptText string, clipCount int) ([]Highlight, error)
}

// Detect asks the model for clipCount highlights and returns the valid ones,
// oldest-ranked first as the model ordered them. Entries whose end does not
// come after their start are dropped, and the list is truncated to clipCount.
func (c *Client) Detect(ctx context.Context, transcriptText string, clipCount int) ([]Highlight, error) {
	transcriptText = strings.TrimSpace(transcriptText)
	if transcriptText == "" {
		return nil, fmt.Errorf("detect highlights: transcript text required")
	}
	if clipCount < 1 {
		return nil, fmt.Errorf("detect highlights: invalid clip count %d", clipCount)
	}
	if len(transcriptText) > maxTranscriptChars {
		transcriptText = transcriptText[:maxTranscriptChars]
	}

	userPrompt := fmt.Sprintf(
		"Extract EXACTLY %d high-retention viral clips from this transcript:\n\n%s",
		clipCount, transcriptText,
	)

	content, err := c.CompleteJSON(ctx, detectionSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("detect highlights: %w", err)
	}

	var parsed []Highlight
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return nil, fmt.Errorf("detect highlights: parse payload: %w", err)
	}

	valid := make([]Highlight, 0, len(parsed))
	for _, h := range parsed {
		if h.End > h.Start {
			valid = append(valid, h)
		}
	}
	if len(valid) > clipCount {
		valid = valid[:clipCount]
	}
	return valid, nil
}

var _ Detector = (*Client)(nil)
