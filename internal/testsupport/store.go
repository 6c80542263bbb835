package testsupport

import (
	"context"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewUser creates an account for tests using the provided store.
func NewUser(t testing.TB, store *jobs.Store, email string) *jobs.User {
	t.Helper()

	user, err := store.CreateUser(context.Background(), email, "$2a$10$testhashtesthashtesthash")
	if err != nil {
		t.Fatalf("store.CreateUser: %v", err)
	}
	return user
}

// NewJob creates a queued job for tests using the provided store.
func NewJob(t testing.TB, store *jobs.Store, ownerID, url string, clipCount int) *jobs.Job {
	t.Helper()

	job, err := store.Create(context.Background(), ownerID, url, clipCount)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}
