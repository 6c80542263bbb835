package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func newTestUser(t *testing.T, store *Store, email string) *User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), email, "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func TestCreateClampsClipCount(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "clamp@example.com")
	ctx := context.Background()

	job, err := store.Create(ctx, owner.ID, "https://example.com/video", 99)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.ClipCount != DefaultClipCount {
		t.Fatalf("clip count = %d, want default %d", job.ClipCount, DefaultClipCount)
	}
	if job.Status != StatusQueued {
		t.Fatalf("status = %s, want queued", job.Status)
	}
	if job.ID == "" || job.CreatedAt.IsZero() {
		t.Fatalf("job identity incomplete: %+v", job)
	}

	job, err = store.Create(ctx, owner.ID, "https://example.com/video", 5)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.ClipCount != 5 {
		t.Fatalf("clip count = %d, want 5", job.ClipCount)
	}
}

func TestGetOwnedScopesToOwner(t *testing.T) {
	store := newTestStore(t)
	alice := newTestUser(t, store, "alice@example.com")
	mallory := newTestUser(t, store, "mallory@example.com")
	ctx := context.Background()

	job, err := store.Create(ctx, alice.ID, "https://example.com/video", 3)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.GetOwned(ctx, job.ID, alice.ID)
	if err != nil || got == nil {
		t.Fatalf("GetOwned by owner = %v, %v", got, err)
	}
	got, err = store.GetOwned(ctx, job.ID, mallory.ID)
	if err != nil {
		t.Fatalf("GetOwned: %v", err)
	}
	if got != nil {
		t.Fatal("GetOwned by other user should return nil")
	}
	got, err = store.Get(ctx, "no-such-id")
	if err != nil || got != nil {
		t.Fatalf("Get absent = %v, %v, want nil, nil", got, err)
	}
}

func TestListByOwnerNewestFirst(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "list@example.com")
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := store.Create(ctx, owner.ID, "https://example.com/video", 3)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, job.ID)
		time.Sleep(2 * time.Millisecond)
	}

	list, err := store.ListByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i, job := range list {
		if want := ids[len(ids)-1-i]; job.ID != want {
			t.Fatalf("position %d = %s, want %s", i, job.ID, want)
		}
	}
}

func TestAdvanceRejectsInvalidTransitions(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "advance@example.com")
	ctx := context.Background()

	job, err := store.Create(ctx, owner.ID, "https://example.com/video", 3)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := store.Advance(ctx, job.ID, StatusCompleted, Artifacts{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("queued -> completed err = %v, want ErrInvalidTransition", err)
	}

	if _, err := store.Advance(ctx, job.ID, StatusDownloading, Artifacts{}); err != nil {
		t.Fatalf("queued -> downloading: %v", err)
	}
	if _, err := store.Advance(ctx, job.ID, StatusQueued, Artifacts{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("downloading -> queued err = %v, want ErrInvalidTransition", err)
	}

	if _, err := store.Advance(ctx, job.ID, StatusFailed, Artifacts{ErrorMessage: "boom"}); err != nil {
		t.Fatalf("downloading -> failed: %v", err)
	}
	if _, err := store.Advance(ctx, job.ID, StatusRendering, Artifacts{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("failed -> rendering err = %v, want ErrInvalidTransition", err)
	}

	updated, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.Status != StatusFailed || updated.ErrorMessage != "boom" {
		t.Fatalf("job = %s/%q, want failed/boom", updated.Status, updated.ErrorMessage)
	}
}

func TestAdvanceMissingJobReturnsNil(t *testing.T) {
	store := newTestStore(t)
	job, err := store.Advance(context.Background(), "no-such-id", StatusDownloading, Artifacts{})
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if job != nil {
		t.Fatal("expected nil job for unknown id")
	}
}

func TestAdvancePersistsArtifactsIncrementally(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "artifacts@example.com")
	ctx := context.Background()

	job, err := store.Create(ctx, owner.ID, "https://example.com/video", 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := store.Advance(ctx, job.ID, StatusDownloading, Artifacts{}); err != nil {
		t.Fatalf("to downloading: %v", err)
	}
	if _, err := store.Advance(ctx, job.ID, StatusDownloading, Artifacts{
		VideoPath: "/tmp/v.mp4",
		AudioPath: "/tmp/a.mp3",
	}); err != nil {
		t.Fatalf("record download artifacts: %v", err)
	}
	if _, err := store.Advance(ctx, job.ID, StatusTranscribing, Artifacts{}); err != nil {
		t.Fatalf("to transcribing: %v", err)
	}

	updated, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if updated.VideoPath != "/tmp/v.mp4" || updated.AudioPath != "/tmp/a.mp3" {
		t.Fatalf("earlier artifacts lost: %+v", updated)
	}

	if _, err := store.Advance(ctx, job.ID, StatusRendering, Artifacts{TranscriptPath: "/tmp/t.json"}); err != nil {
		t.Fatalf("to rendering: %v", err)
	}
	completed, err := store.Advance(ctx, job.ID, StatusCompleted, Artifacts{
		HighlightsPath: "/tmp/h.json",
		ClipsPath:      []string{"/tmp/c/clip_1.mp4", "/tmp/c/clip_2.mp4"},
	})
	if err != nil {
		t.Fatalf("to completed: %v", err)
	}
	if completed.TranscriptPath != "/tmp/t.json" || completed.HighlightsPath != "/tmp/h.json" {
		t.Fatalf("artifacts = %+v", completed)
	}
	if len(completed.ClipsPath) != 2 {
		t.Fatalf("clips = %v", completed.ClipsPath)
	}
	if completed.CompletedAt == nil {
		t.Fatal("completed_at should be set on completion")
	}
}

func TestAdvanceSetsCompletedAtOnce(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "once@example.com")
	ctx := context.Background()

	job, err := store.Create(ctx, owner.ID, "https://example.com/video", 3)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, next := range []Status{StatusDownloading, StatusTranscribing, StatusRendering} {
		if _, err := store.Advance(ctx, job.ID, next, Artifacts{}); err != nil {
			t.Fatalf("to %s: %v", next, err)
		}
	}
	first, err := store.Advance(ctx, job.ID, StatusCompleted, Artifacts{ClipsPath: []string{}})
	if err != nil {
		t.Fatalf("to completed: %v", err)
	}
	if first.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}
	if _, err := store.Advance(ctx, job.ID, StatusCompleted, Artifacts{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("re-completing err = %v, want ErrInvalidTransition", err)
	}
}

func TestSweepCandidatesAndClearArtifacts(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "sweep@example.com")
	ctx := context.Background()

	completed, err := store.Create(ctx, owner.ID, "https://example.com/a", 3)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, next := range []Status{StatusDownloading, StatusTranscribing, StatusRendering} {
		if _, err := store.Advance(ctx, completed.ID, next, Artifacts{}); err != nil {
			t.Fatalf("to %s: %v", next, err)
		}
	}
	if _, err := store.Advance(ctx, completed.ID, StatusCompleted, Artifacts{
		VideoPath: "/tmp/v.mp4",
		ClipsPath: []string{"/tmp/c/clip_1.mp4"},
	}); err != nil {
		t.Fatalf("to completed: %v", err)
	}

	failed, err := store.Create(ctx, owner.ID, "https://example.com/b", 3)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Advance(ctx, failed.ID, StatusFailed, Artifacts{VideoPath: "/tmp/f.mp4", ErrorMessage: "x"}); err != nil {
		t.Fatalf("to failed: %v", err)
	}

	candidates, err := store.SweepCandidates(ctx)
	if err != nil {
		t.Fatalf("SweepCandidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != completed.ID {
		t.Fatalf("candidates = %+v, want only the completed job", candidates)
	}

	if err := store.ClearArtifacts(ctx, completed.ID); err != nil {
		t.Fatalf("ClearArtifacts: %v", err)
	}
	cleared, err := store.Get(ctx, completed.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cleared.VideoPath != "" || cleared.ClipsPath != nil {
		t.Fatalf("artifacts not cleared: %+v", cleared)
	}
	if cleared.Status != StatusCompleted || cleared.CompletedAt == nil {
		t.Fatal("clearing artifacts must not touch status or timestamps")
	}

	candidates, err = store.SweepCandidates(ctx)
	if err != nil {
		t.Fatalf("SweepCandidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("cleared job still a candidate: %+v", candidates)
	}
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, "Dup@Example.com", "hash"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := store.CreateUser(ctx, "dup@example.com", "hash2"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate err = %v, want ErrEmailTaken", err)
	}

	user, err := store.UserByEmail(ctx, "DUP@example.com")
	if err != nil || user == nil {
		t.Fatalf("UserByEmail = %v, %v", user, err)
	}
	byID, err := store.UserByID(ctx, user.ID)
	if err != nil || byID == nil || byID.Email != "dup@example.com" {
		t.Fatalf("UserByID = %+v, %v", byID, err)
	}
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	owner := newTestUser(t, store, "stats@example.com")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := store.Create(ctx, owner.ID, "https://example.com/v", 3); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	job, err := store.Create(ctx, owner.ID, "https://example.com/v", 3)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Advance(ctx, job.ID, StatusFailed, Artifacts{ErrorMessage: "x"}); err != nil {
		t.Fatalf("to failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[StatusQueued] != 2 || stats[StatusFailed] != 1 {
		t.Fatalf("stats = %v", stats)
	}
}
