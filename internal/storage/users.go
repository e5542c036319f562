package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// --- User methods ---

// User represents an authenticated operator
type User struct {
	ID                     int64
	Username               string
	PasswordHash           string
	IsAdmin                bool
	Permissions            []string
	PasswordChangeRequired bool
	CreatedAt              time.Time
	LastLogin              *time.Time
}

const userColumns = `id, username, password_hash, is_admin, permissions, password_change_required, created_at, last_login`

func joinPermissions(perms []string) string {
	uniq := make(map[string]bool, len(perms))
	var out []string
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" || uniq[p] {
			continue
		}
		uniq[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func splitPermissions(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// CreateUser creates a new user account that must change its password on first login
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, isAdmin bool, permissions []string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.exec(ctx, `
		INSERT INTO users (username, password_hash, is_admin, permissions, password_change_required)
		VALUES (?, ?, ?, ?, TRUE)
	`, username, passwordHash, isAdmin, joinPermissions(permissions))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrUserExists, username)
	}
	return err
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	row := s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	row := s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// DeleteUser removes a user by username
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	if err := s.ready(); err != nil {
		return err
	}
	result, err := s.exec(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return nil
}

// ListUsers returns all users ordered by username
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
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

// UpdateUserLastLogin updates the last login timestamp
func (s *Store) UpdateUserLastLogin(ctx context.Context, userID int64) error {
	_, err := s.exec(ctx, `UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?`, userID)
	return err
}

// UpdateUserPassword updates a user's password and clears the password_change_required flag
func (s *Store) UpdateUserPassword(ctx context.Context, userID int64, newPasswordHash string) error {
	_, err := s.exec(ctx, `
		UPDATE users SET password_hash = ?, password_change_required = FALSE WHERE id = ?
	`, newPasswordHash, userID)
	return err
}

// ResetUserPassword sets a new temporary password (admin action)
func (s *Store) ResetUserPassword(ctx context.Context, userID int64, newPasswordHash string) error {
	_, err := s.exec(ctx, `
		UPDATE users SET password_hash = ?, password_change_required = TRUE WHERE id = ?
	`, newPasswordHash, userID)
	return err
}

// UpdateUserAdmin updates the admin status of a user
func (s *Store) UpdateUserAdmin(ctx context.Context, userID int64, isAdmin bool) error {
	_, err := s.exec(ctx, `UPDATE users SET is_admin = ? WHERE id = ?`, isAdmin, userID)
	return err
}

// UpdateUserPermissions replaces the permission set of a user
func (s *Store) UpdateUserPermissions(ctx context.Context, userID int64, permissions []string) error {
	result, err := s.exec(ctx, `UPDATE users SET permissions = ? WHERE id = ?`, joinPermissions(permissions), userID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
	}
	return nil
}
