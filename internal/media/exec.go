package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// maxErrorOutput bounds how much tool output is carried into error messages.
const maxErrorOutput = 512

// run executes a tool and folds the tail of its combined output into the
// error, since ffmpeg and yt-dlp report the actual cause on stderr.
func run(ctx context.Context, name string, args ...string) error {
	cmd := commandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(output))
	}
	return nil
}

func tail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) > maxErrorOutput {
		text = "..." + text[len(text)-maxErrorOutput:]
	}
	return text
}
