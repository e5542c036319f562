package storage

import (
	"database/sql"
	"errors"
	"time"
)

// Null scanner helpers

func scanNullTime(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

// scanUser scans a user row from the database
func scanUser(s scanner) (*User, error) {
	var user User
	var perms string
	var lastLogin sql.NullTime
	err := s.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin,
		&perms, &user.PasswordChangeRequired, &user.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	user.Permissions = splitPermissions(perms)
	user.LastLogin = scanNullTime(lastLogin)
	return &user, nil
}
