package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrEmailTaken reports a registration attempt for an existing email.
var ErrEmailTaken = errors.New("email already registered")

// CreateUser inserts a new user with a pre-hashed password.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id,
		email,
		passwordHash,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		var sqlErr *sqlite.Error
		if errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &User{ID: id, Email: email, PasswordHash: passwordHash, CreatedAt: now}, nil
}

// UserByEmail fetches a user by email. Returns nil when absent.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`,
		email,
	)

	var (
		user       User
		createdRaw string
	)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if created, parseErr := parseTimeString(createdRaw); parseErr == nil {
		user.CreatedAt = created
	}
	return &user, nil
}

// UserByID fetches a user by identifier. Returns nil when absent.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?`,
		id,
	)

	var (
		user       User
		createdRaw string
	)
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if created, parseErr := parseTimeString(createdRaw); parseErr == nil {
		user.CreatedAt = created
	}
	return &user, nil
}
