package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/studsched/studsched-bot/internal/errors"
)

// GetScheduleText performs a point lookup by the full schedule key.
// Returns apperrors.ErrNotFound when no row matches.
func (db *DB) GetScheduleText(ctx context.Context, direction, groupNumber, weekType, day string) (string, error) {
	query := `
	SELECT lessons FROM schedule
	WHERE direction = ? AND group_number = ? AND week_type = ? AND day_of_week = ?`

	var lessons string
	err := db.conn.QueryRowContext(ctx, query, direction, groupNumber, weekType, day).Scan(&lessons)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		db.recordError("get_schedule", err)
		return "", fmt.Errorf("failed to get schedule %s/%s %s %s: %w",
			direction, groupNumber, weekType, day, err)
	}
	return lessons, nil
}

// UpsertScheduleText stores the schedule text for a key. Idempotent: the
// same key overwrites, never duplicates.
func (db *DB) UpsertScheduleText(ctx context.Context, direction, groupNumber, weekType, day, lessons string) error {
	query := `
	INSERT INTO schedule (direction, group_number, week_type, day_of_week, lessons, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(direction, group_number, week_type, day_of_week) DO UPDATE SET
		lessons = excluded.lessons,
		updated_at = excluded.updated_at`

	_, err := db.conn.ExecContext(ctx, query,
		direction, groupNumber, weekType, day, lessons, time.Now().Unix())
	if err != nil {
		db.recordError("upsert_schedule", err)
		return fmt.Errorf("failed to upsert schedule %s/%s %s %s: %w",
			direction, groupNumber, weekType, day, err)
	}
	return nil
}

// CountScheduleEntries returns the total number of stored schedule rows.
// Shown on the staff console dashboard.
func (db *DB) CountScheduleEntries(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedule`).Scan(&count); err != nil {
		db.recordError("count_schedule", err)
		return 0, fmt.Errorf("failed to count schedule entries: %w", err)
	}
	return count, nil
}
