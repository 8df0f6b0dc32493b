package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/studsched/studsched-bot/internal/errors"
)

// GetStudent returns the student record for a Telegram user.
// Returns apperrors.ErrNotFound when no record exists.
func (db *DB) GetStudent(ctx context.Context, userID int64) (*Student, error) {
	query := `
	SELECT user_id, first_name, last_name, direction, group_number,
	       portal_login, portal_password, created_at, updated_at
	FROM students WHERE user_id = ?`

	var s Student
	var createdAt, updatedAt int64
	err := db.conn.QueryRowContext(ctx, query, userID).Scan(
		&s.UserID, &s.FirstName, &s.LastName, &s.Direction, &s.GroupNumber,
		&s.PortalLogin, &s.PortalPassword, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		db.recordError("get_student", err)
		return nil, fmt.Errorf("failed to get student %d: %w", userID, err)
	}

	s.CreatedAt = time.Unix(createdAt, 0)
	s.UpdatedAt = time.Unix(updatedAt, 0)
	return &s, nil
}

// UpsertStudent inserts or updates a student keyed by user id. Stored
// portal credentials survive a re-registration.
func (db *DB) UpsertStudent(ctx context.Context, s *Student) error {
	query := `
	INSERT INTO students (user_id, first_name, last_name, direction, group_number,
	                      portal_login, portal_password, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		first_name = excluded.first_name,
		last_name = excluded.last_name,
		direction = excluded.direction,
		group_number = excluded.group_number,
		updated_at = excluded.updated_at`

	now := time.Now().Unix()
	_, err := db.conn.ExecContext(ctx, query,
		s.UserID, s.FirstName, s.LastName, s.Direction, s.GroupNumber,
		s.PortalLogin, s.PortalPassword, now, now,
	)
	if err != nil {
		db.recordError("upsert_student", err)
		return fmt.Errorf("failed to upsert student %d: %w", s.UserID, err)
	}
	return nil
}

// SaveCredentials stores the LMS login pair for an already registered
// student. Returns apperrors.ErrNotFound for unknown users.
func (db *DB) SaveCredentials(ctx context.Context, userID int64, login, password string) error {
	query := `
	UPDATE students SET portal_login = ?, portal_password = ?, updated_at = ?
	WHERE user_id = ?`

	res, err := db.conn.ExecContext(ctx, query, login, password, time.Now().Unix(), userID)
	if err != nil {
		db.recordError("save_credentials", err)
		return fmt.Errorf("failed to save credentials for %d: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check credentials update for %d: %w", userID, err)
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ListStudents returns all registered students ordered by group, then name.
// Used by the staff console for broadcast recipient selection.
func (db *DB) ListStudents(ctx context.Context) ([]Student, error) {
	query := `
	SELECT user_id, first_name, last_name, direction, group_number,
	       portal_login, portal_password, created_at, updated_at
	FROM students
	ORDER BY direction, group_number, last_name, first_name`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		db.recordError("list_students", err)
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var s Student
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&s.UserID, &s.FirstName, &s.LastName, &s.Direction, &s.GroupNumber,
			&s.PortalLogin, &s.PortalPassword, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan student row: %w", err)
		}
		s.CreatedAt = time.Unix(createdAt, 0)
		s.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}
	return out, nil
}
