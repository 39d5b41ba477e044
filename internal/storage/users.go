package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is an operator account for the HTTP API, optionally linked to the
// player it plays as
type User struct {
	ID                     int64
	Username               string
	PasswordHash           string
	IsAdmin                bool
	PlayerID               *uuid.UUID
	PasswordChangeRequired bool
	CreatedAt              time.Time
	LastLogin              *time.Time
}

const userColumns = `id, username, password_hash, is_admin, player_uuid, password_change_required, created_at, last_login`

// CreateUser adds an account that must change its password at first login
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool, player *uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, is_admin, player_uuid, password_change_required, created_at)
		 VALUES (?, ?, ?, ?, TRUE, ?)`,
		username, passwordHash, isAdmin, nullUUID(player), formatTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("creating user %s: %w", username, err)
	}
	return nil
}

func (s *Store) userWhere(ctx context.Context, what, clause string, arg interface{}) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+clause, arg)
	user, err := scanUser(row)
	if err != nil {
		return nil, notFound(err, what)
	}
	return user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.userWhere(ctx, "user "+username, "username = ?", username)
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return s.userWhere(ctx, fmt.Sprintf("user %d", id), "id = ?", id)
}

// ListUsers returns every account ordered by username
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// DeleteUser removes an account by username
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	return s.execOne(ctx, "user "+username, `DELETE FROM users WHERE username = ?`, username)
}

func (s *Store) UpdateUserLastLogin(ctx context.Context, userID int64) error {
	return s.updateUser(ctx, userID, `last_login = ?`, formatTimestamp(time.Now()))
}

// UpdateUserPassword stores a password the user chose, clearing the
// change-required flag
func (s *Store) UpdateUserPassword(ctx context.Context, userID int64, hash string) error {
	return s.updateUser(ctx, userID, `password_hash = ?, password_change_required = FALSE`, hash)
}

// ResetUserPassword stores a temporary password set by an operator
func (s *Store) ResetUserPassword(ctx context.Context, userID int64, hash string) error {
	return s.updateUser(ctx, userID, `password_hash = ?, password_change_required = TRUE`, hash)
}

func (s *Store) UpdateUserAdmin(ctx context.Context, userID int64, isAdmin bool) error {
	return s.updateUser(ctx, userID, `is_admin = ?`, isAdmin)
}

func (s *Store) updateUser(ctx context.Context, userID int64, set string, args ...interface{}) error {
	return s.execOne(ctx, fmt.Sprintf("user %d", userID), `UPDATE users SET `+set+` WHERE id = ?`, append(args, userID)...)
}

// execOne runs a statement that must touch exactly one row
func (s *Store) execOne(ctx context.Context, what, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
