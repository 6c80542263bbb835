package highlights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newDetectorServer(t *testing.T, modelContent string, status int) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream unavailable"}}`))
			return
		}
		payload := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": modelContent}},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(server.Close)
	return NewClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "test-model"})
}

func TestDetectFiltersAndTruncates(t *testing.T) {
	content := `[
		{"start": 10, "end": 40, "title": "a"},
		{"start": 50, "end": 50, "title": "degenerate"},
		{"start": 90, "end": 60, "title": "inverted"},
		{"start": 100, "end": 130, "title": "b"},
		{"start": 200, "end": 240, "title": "c"}
	]`
	client := newDetectorServer(t, content, http.StatusOK)

	detected, err := client.Detect(context.Background(), "some transcript", 2)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(detected) != 2 {
		t.Fatalf("len = %d, want truncation to 2", len(detected))
	}
	if detected[0].Title != "a" || detected[1].Title != "b" {
		t.Fatalf("detected = %+v, want invalid ranges dropped", detected)
	}
}

func TestDetectToleratesCodeFences(t *testing.T) {
	content := "```json\n[{\"start\": 1, \"end\": 20}]\n```"
	client := newDetectorServer(t, content, http.StatusOK)

	detected, err := client.Detect(context.Background(), "transcript", 3)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(detected) != 1 || detected[0].End != 20 {
		t.Fatalf("detected = %+v", detected)
	}
}

func TestDetectUpstreamFailure(t *testing.T) {
	client := newDetectorServer(t, "", http.StatusInternalServerError)
	if _, err := client.Detect(context.Background(), "transcript", 3); err == nil {
		t.Fatal("expected error for upstream failure")
	}
}

func TestDetectValidatesInput(t *testing.T) {
	client := NewClient(Config{APIKey: "k"})
	if _, err := client.Detect(context.Background(), "", 3); err == nil {
		t.Fatal("expected error for empty transcript")
	}
	if _, err := client.Detect(context.Background(), "text", 0); err == nil {
		t.Fatal("expected error for zero clip count")
	}
}

func TestDecodeLLMJSON(t *testing.T) {
	type payload struct {
		OK bool `json:"ok"`
	}

	cases := []struct {
		name    string
		content string
	}{
		{"plain", `{"ok": true}`},
		{"fenced", "```json\n{\"ok\": true}\n```"},
		{"prose prefix", "Here is the result: {\"ok\": true}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var parsed payload
			if err := DecodeLLMJSON(tc.content, &parsed); err != nil {
				t.Fatalf("DecodeLLMJSON: %v", err)
			}
			if !parsed.OK {
				t.Fatal("payload not decoded")
			}
		})
	}

	var parsed payload
	if err := DecodeLLMJSON("", &parsed); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if err := DecodeLLMJSON("not json at all", &parsed); err == nil {
		t.Fatal("expected error for unparseable payload")
	}
}
