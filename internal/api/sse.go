package api

import (
	"encoding/json"
	"fmt"
	"io"

	"clipforge/internal/status"
)

// writeSSE frames one status event as a server-sent-events data record.
func writeSSE(w io.Writer, event status.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode sse event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write sse event: %w", err)
	}
	return nil
}
