package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clipforge/internal/jobs"
	"clipforge/internal/queue"
	"clipforge/internal/ratelimit"
	"clipforge/internal/status"
	"clipforge/internal/testsupport"
)

type testServer struct {
	server    *httptest.Server
	store     *jobs.Store
	queues    *queue.Queues
	publisher *status.Publisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Server.RequestsPerSec = 1000
	cfg.Server.RequestBurst = 1000
	cfg.Limits.JobsPerWindow = 2
	cfg.Limits.LoginMaxFailures = 2

	store := testsupport.MustOpenStore(t, cfg)
	_, client := testsupport.NewRedis(t)

	queues := queue.New(client)
	publisher := status.NewPublisher(client)
	s := NewServer(
		cfg,
		nil,
		store,
		queues,
		publisher,
		status.NewSubscriber(client),
		ratelimit.NewJobLimiter(client, cfg.Limits.JobsPerWindow, cfg.JobWindow()),
		ratelimit.NewLoginLimiter(client, cfg.Limits.LoginMaxFailures, cfg.LoginBlock()),
		client,
	)

	server := httptest.NewServer(s.Router())
	t.Cleanup(server.Close)
	return &testServer{server: server, store: store, queues: queues, publisher: publisher}
}

type response struct {
	Status  int
	Success bool
	Message string
	Data    json.RawMessage
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode %s %s response: %v", method, path, err)
	}
	return response{
		Status:  resp.StatusCode,
		Success: parsed.Success,
		Message: parsed.Message,
		Data:    parsed.Data,
	}
}

func (ts *testServer) registerUser(t *testing.T, email string) (userID, token string) {
	t.Helper()

	resp := ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"password": "correct horse",
	})
	if resp.Status != http.StatusCreated {
		t.Fatalf("register %s: status %d message %q", email, resp.Status, resp.Message)
	}
	var body struct {
		UserID string `json:"user_id"`
		Token  string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &body); err != nil {
		t.Fatalf("decode register data: %v", err)
	}
	return body.UserID, body.Token
}

func decodeJob(t *testing.T, data json.RawMessage) *jobs.Job {
	t.Helper()
	var job jobs.Job
	if err := json.Unmarshal(data, &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	return &job
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/healthz", "", nil)
	if resp.Status != http.StatusOK || !resp.Success {
		t.Fatalf("healthz = %d success=%v", resp.Status, resp.Success)
	}
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "not-an-email", "password": "long enough",
	})
	if resp.Status != http.StatusBadRequest || resp.Success {
		t.Fatalf("bad email: status %d", resp.Status)
	}

	resp = ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "short@example.com", "password": "short",
	})
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("short password: status %d", resp.Status)
	}

	ts.registerUser(t, "taken@example.com")
	resp = ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "taken@example.com", "password": "correct horse",
	})
	if resp.Status != http.StatusConflict {
		t.Fatalf("duplicate email: status %d message %q", resp.Status, resp.Message)
	}
}

func TestLoginFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.registerUser(t, "login@example.com")

	resp := ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "login@example.com", "password": "correct horse",
	})
	if resp.Status != http.StatusOK || !resp.Success {
		t.Fatalf("login: status %d message %q", resp.Status, resp.Message)
	}

	resp = ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "login@example.com", "password": "wrong",
	})
	if resp.Status != http.StatusUnauthorized {
		t.Fatalf("wrong password: status %d", resp.Status)
	}

	resp = ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "whatever!",
	})
	if resp.Status != http.StatusUnauthorized {
		t.Fatalf("unknown user: status %d", resp.Status)
	}
}

func TestLoginBlockedAfterRepeatedFailures(t *testing.T) {
	ts := newTestServer(t)
	ts.registerUser(t, "blocked@example.com")

	bad := map[string]string{"email": "blocked@example.com", "password": "wrong"}
	for i := 0; i < 2; i++ {
		if resp := ts.do(t, http.MethodPost, "/auth/login", "", bad); resp.Status != http.StatusUnauthorized {
			t.Fatalf("failure #%d: status %d", i+1, resp.Status)
		}
	}

	// Block applies even with the right password once the threshold is hit.
	good := map[string]string{"email": "blocked@example.com", "password": "correct horse"}
	if resp := ts.do(t, http.MethodPost, "/auth/login", "", good); resp.Status != http.StatusTooManyRequests {
		t.Fatalf("blocked login: status %d", resp.Status)
	}
}

func TestLoginSuccessResetsFailureCount(t *testing.T) {
	ts := newTestServer(t)
	ts.registerUser(t, "reset@example.com")

	bad := map[string]string{"email": "reset@example.com", "password": "wrong"}
	good := map[string]string{"email": "reset@example.com", "password": "correct horse"}

	if resp := ts.do(t, http.MethodPost, "/auth/login", "", bad); resp.Status != http.StatusUnauthorized {
		t.Fatalf("first failure: status %d", resp.Status)
	}
	if resp := ts.do(t, http.MethodPost, "/auth/login", "", good); resp.Status != http.StatusOK {
		t.Fatalf("recovery login: status %d", resp.Status)
	}

	// The counter restarted, so one more failure is below the threshold again.
	if resp := ts.do(t, http.MethodPost, "/auth/login", "", bad); resp.Status != http.StatusUnauthorized {
		t.Fatalf("post-reset failure: status %d", resp.Status)
	}
	if resp := ts.do(t, http.MethodPost, "/auth/login", "", good); resp.Status != http.StatusOK {
		t.Fatalf("post-reset login: status %d", resp.Status)
	}
}

func TestJobsRequireAuthentication(t *testing.T) {
	ts := newTestServer(t)

	if resp := ts.do(t, http.MethodGet, "/jobs", "", nil); resp.Status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list: status %d", resp.Status)
	}
	if resp := ts.do(t, http.MethodPost, "/jobs", "garbage-token", map[string]any{
		"url": "https://example.com/v", "count": 3,
	}); resp.Status != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", resp.Status)
	}
}

func TestCreateJobEnqueuesDownload(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.registerUser(t, "creator@example.com")

	resp := ts.do(t, http.MethodPost, "/jobs", token, map[string]any{
		"url": "https://example.com/watch?v=abc", "count": 4,
	})
	if resp.Status != http.StatusCreated {
		t.Fatalf("create: status %d message %q", resp.Status, resp.Message)
	}
	job := decodeJob(t, resp.Data)
	if job.Status != jobs.StatusQueued || job.ClipCount != 4 {
		t.Fatalf("created job = %+v", job)
	}

	n, err := ts.queues.Len(context.Background(), queue.StageDownload)
	if err != nil || n != 1 {
		t.Fatalf("download queue len = %d, %v", n, err)
	}
}

func TestCreateJobRejectsBadURL(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.registerUser(t, "badurl@example.com")

	for _, raw := range []string{"", "ftp://example.com/x", "not a url", "https://"} {
		resp := ts.do(t, http.MethodPost, "/jobs", token, map[string]any{"url": raw, "count": 3})
		if resp.Status != http.StatusBadRequest {
			t.Fatalf("url %q: status %d", raw, resp.Status)
		}
	}
}

func TestCreateJobRateLimited(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.registerUser(t, "heavy@example.com")

	body := map[string]any{"url": "https://example.com/v", "count": 3}
	for i := 0; i < 2; i++ {
		if resp := ts.do(t, http.MethodPost, "/jobs", token, body); resp.Status != http.StatusCreated {
			t.Fatalf("job #%d: status %d", i+1, resp.Status)
		}
	}
	if resp := ts.do(t, http.MethodPost, "/jobs", token, body); resp.Status != http.StatusTooManyRequests {
		t.Fatalf("over-limit job: status %d", resp.Status)
	}

	// Other accounts keep their own budget.
	_, other := ts.registerUser(t, "light@example.com")
	if resp := ts.do(t, http.MethodPost, "/jobs", other, body); resp.Status != http.StatusCreated {
		t.Fatalf("other user's job: status %d", resp.Status)
	}
}

func TestJobVisibilityScopedToOwner(t *testing.T) {
	ts := newTestServer(t)
	_, alice := ts.registerUser(t, "alice@example.com")
	_, bob := ts.registerUser(t, "bob@example.com")

	created := ts.do(t, http.MethodPost, "/jobs", alice, map[string]any{
		"url": "https://example.com/v", "count": 3,
	})
	job := decodeJob(t, created.Data)

	resp := ts.do(t, http.MethodGet, "/jobs", bob, nil)
	var list []*jobs.Job
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("bob sees %d jobs, want 0", len(list))
	}

	if resp := ts.do(t, http.MethodGet, "/jobs/"+job.ID, bob, nil); resp.Status != http.StatusNotFound {
		t.Fatalf("cross-owner get: status %d", resp.Status)
	}
	if resp := ts.do(t, http.MethodGet, "/jobs/"+job.ID, alice, nil); resp.Status != http.StatusOK {
		t.Fatalf("owner get: status %d", resp.Status)
	}
}

func TestOverrideStatus(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.registerUser(t, "admin@example.com")

	created := ts.do(t, http.MethodPost, "/jobs", token, map[string]any{
		"url": "https://example.com/v", "count": 3,
	})
	job := decodeJob(t, created.Data)
	path := "/jobs/" + job.ID + "/status"

	if resp := ts.do(t, http.MethodPatch, path, token, map[string]string{"status": "bogus"}); resp.Status != http.StatusBadRequest {
		t.Fatalf("unknown status: status %d", resp.Status)
	}
	if resp := ts.do(t, http.MethodPatch, path, token, map[string]string{"status": "completed"}); resp.Status != http.StatusBadRequest {
		t.Fatalf("completed from queued: status %d", resp.Status)
	}

	resp := ts.do(t, http.MethodPatch, path, token, map[string]string{"status": "failed"})
	if resp.Status != http.StatusOK {
		t.Fatalf("override to failed: status %d message %q", resp.Status, resp.Message)
	}
	if updated := decodeJob(t, resp.Data); updated.Status != jobs.StatusFailed {
		t.Fatalf("status = %s", updated.Status)
	}

	if resp := ts.do(t, http.MethodPatch, "/jobs/nope/status", token, map[string]string{"status": "failed"}); resp.Status != http.StatusNotFound {
		t.Fatalf("missing job: status %d", resp.Status)
	}
}

func TestStreamDeliversEventsPublishedAfterConnect(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.registerUser(t, "live@example.com")

	created := ts.do(t, http.MethodPost, "/jobs", token, map[string]any{
		"url": "https://example.com/v", "count": 3,
	})
	job := decodeJob(t, created.Data)

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/jobs/%s/stream?token=%s", ts.server.URL, job.ID, token), nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := ts.server.Client().Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	readEvent := func() status.Event {
		t.Helper()
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var event status.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				t.Fatalf("decode event %q: %v", line, err)
			}
			return event
		}
		t.Fatalf("stream ended early: %v", scanner.Err())
		return status.Event{}
	}

	// The snapshot arrives after the subscription is live, so anything
	// published from here on must reach the client.
	if event := readEvent(); event.Status != jobs.StatusQueued {
		t.Fatalf("snapshot status = %s", event.Status)
	}

	ctx := context.Background()
	if err := ts.publisher.Publish(ctx, job.ID, status.Event{Status: jobs.StatusDownloading}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := ts.publisher.Publish(ctx, job.ID, status.Event{Status: jobs.StatusFailed, Error: "boom"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if event := readEvent(); event.Status != jobs.StatusDownloading {
		t.Fatalf("live event status = %s", event.Status)
	}
	terminal := readEvent()
	if terminal.Status != jobs.StatusFailed || terminal.Error != "boom" {
		t.Fatalf("terminal event = %+v", terminal)
	}

	// Terminal event ends the stream.
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "data: ") {
			t.Fatalf("unexpected extra event %q", scanner.Text())
		}
	}
}

func TestStreamSendsTerminalSnapshotAndCloses(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.registerUser(t, "stream@example.com")

	created := ts.do(t, http.MethodPost, "/jobs", token, map[string]any{
		"url": "https://example.com/v", "count": 3,
	})
	job := decodeJob(t, created.Data)

	// Fail the job, then connect. The stream must replay the terminal state
	// once and end rather than hang waiting for live events.
	if resp := ts.do(t, http.MethodPatch, "/jobs/"+job.ID+"/status", token, map[string]string{"status": "failed"}); resp.Status != http.StatusOK {
		t.Fatalf("override: status %d", resp.Status)
	}

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/jobs/%s/stream?token=%s", ts.server.URL, job.ID, token), nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := ts.server.Client().Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); !strings.HasPrefix(got, "text/event-stream") {
		t.Fatalf("content type = %q", got)
	}

	scanner := bufio.NewScanner(resp.Body)
	var payload string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			payload = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	if payload == "" {
		t.Fatal("no event received")
	}

	var event status.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		t.Fatalf("decode event %q: %v", payload, err)
	}
	if event.Status != jobs.StatusFailed {
		t.Fatalf("event status = %s", event.Status)
	}

	// The body ends after the terminal event.
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "data: ") {
			t.Fatalf("unexpected extra event %q", scanner.Text())
		}
	}
}
