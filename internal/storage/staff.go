package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/studsched/studsched-bot/internal/errors"
)

// GetStaff returns a console account by username.
// Returns apperrors.ErrNotFound when the account does not exist.
func (db *DB) GetStaff(ctx context.Context, username string) (*Staff, error) {
	query := `SELECT id, username, password_hash, created_at FROM staff WHERE username = ?`

	var st Staff
	var createdAt int64
	err := db.conn.QueryRowContext(ctx, query, username).Scan(
		&st.ID, &st.Username, &st.PasswordHash, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		db.recordError("get_staff", err)
		return nil, fmt.Errorf("failed to get staff %q: %w", username, err)
	}
	st.CreatedAt = time.Unix(createdAt, 0)
	return &st, nil
}

// CreateStaff inserts a console account with an already hashed password.
func (db *DB) CreateStaff(ctx context.Context, username, passwordHash string) error {
	query := `INSERT INTO staff (username, password_hash, created_at) VALUES (?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query, username, passwordHash, time.Now().Unix())
	if err != nil {
		db.recordError("create_staff", err)
		return fmt.Errorf("failed to create staff %q: %w", username, err)
	}
	return nil
}
