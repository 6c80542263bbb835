package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"clipforge/internal/config"
)

// ErrInvalidTransition reports an Advance call that would move a job backward
// or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the job database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Create inserts a new job in the queued state and returns it.
func (s *Store) Create(ctx context.Context, ownerID, url string, clipCount int) (*Job, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (id, owner_id, url, clip_count, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		ownerID,
		url,
		ClampClipCount(clipCount),
		StatusQueued,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a job by identifier regardless of owner. Returns nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetOwned fetches a job scoped to its owner. Returns nil when absent or not owned.
func (s *Store) GetOwned(ctx context.Context, id, ownerID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ? AND owner_id = ?`, id, ownerID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get owned job: %w", err)
	}
	return job, nil
}

// ListByOwner returns the owner's jobs ordered newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE owner_id = ? ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at DESC`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// Artifacts carries the optional file references an Advance call persists.
// Empty string fields leave the stored column untouched; a nil ClipsPath
// leaves the clip list untouched.
type Artifacts struct {
	VideoPath      string
	AudioPath      string
	TranscriptPath string
	HighlightsPath string
	ClipsPath      []string
	ErrorMessage   string
}

// Advance moves a job to a new status and persists any produced artifact
// paths. It is the only mutation path after creation. The transition must
// respect the forward-only state machine; completed_at is set exactly once,
// when the job first reaches completed. Returns nil when the job is absent.
func (s *Store) Advance(ctx context.Context, id string, next Status, artifacts Artifacts) (*Job, error) {
	if _, ok := statusSet[next]; !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin advance tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var currentRaw string
	err = tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&currentRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read current status: %w", err)
	}
	current := Status(currentRaw)
	if !current.CanAdvanceTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}

	var clipsJSON any
	if artifacts.ClipsPath != nil {
		encoded, err := json.Marshal(artifacts.ClipsPath)
		if err != nil {
			return nil, fmt.Errorf("encode clips path: %w", err)
		}
		clipsJSON = string(encoded)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?,
             video_path = COALESCE(?, video_path),
             audio_path = COALESCE(?, audio_path),
             transcript_path = COALESCE(?, transcript_path),
             highlights_path = COALESCE(?, highlights_path),
             clips_path = COALESCE(?, clips_path),
             error_message = COALESCE(?, error_message),
             completed_at = CASE WHEN ? = 'completed' AND completed_at IS NULL THEN ? ELSE completed_at END
         WHERE id = ?`,
		next,
		nullableString(artifacts.VideoPath),
		nullableString(artifacts.AudioPath),
		nullableString(artifacts.TranscriptPath),
		nullableString(artifacts.HighlightsPath),
		clipsJSON,
		nullableString(artifacts.ErrorMessage),
		next,
		now,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("advance job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit advance: %w", err)
	}
	return s.Get(ctx, id)
}

// SweepCandidates returns completed jobs that still hold artifact references.
func (s *Store) SweepCandidates(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status = ?
           AND completed_at IS NOT NULL
           AND (video_path IS NOT NULL
             OR audio_path IS NOT NULL
             OR transcript_path IS NOT NULL
             OR highlights_path IS NOT NULL
             OR clips_path IS NOT NULL)
         ORDER BY completed_at`,
		StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("query sweep candidates: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ClearArtifacts nulls every artifact column for a job while leaving
// identity, status, and timestamps untouched.
func (s *Store) ClearArtifacts(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET video_path = NULL, audio_path = NULL, transcript_path = NULL,
             highlights_path = NULL, clips_path = NULL
         WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	return nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const jobColumns = "id, owner_id, url, clip_count, status, video_path, audio_path, transcript_path, highlights_path, clips_path, error_message, created_at, completed_at"

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		ownerID      string
		url          string
		clipCount    int
		statusStr    string
		videoPath    sql.NullString
		audioPath    sql.NullString
		transcript   sql.NullString
		highlights   sql.NullString
		clipsRaw     sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&ownerID,
		&url,
		&clipCount,
		&statusStr,
		&videoPath,
		&audioPath,
		&transcript,
		&highlights,
		&clipsRaw,
		&errorMessage,
		&createdRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:             id,
		OwnerID:        ownerID,
		URL:            url,
		ClipCount:      clipCount,
		Status:         Status(statusStr),
		VideoPath:      videoPath.String,
		AudioPath:      audioPath.String,
		TranscriptPath: transcript.String,
		HighlightsPath: highlights.String,
		ErrorMessage:   errorMessage.String,
	}
	if clipsRaw.Valid && clipsRaw.String != "" {
		if err := json.Unmarshal([]byte(clipsRaw.String), &job.ClipsPath); err != nil {
			return nil, fmt.Errorf("decode clips path: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
