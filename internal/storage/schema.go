package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
// Note: WAL mode and pragmas are configured in db.go.
func InitSchema(db *sql.DB) error {
	if err := createStudentsTable(db); err != nil {
		return err
	}
	if err := createScheduleTable(db); err != nil {
		return err
	}
	return createStaffTable(db)
}

func createStudentsTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS students (
		user_id INTEGER PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		direction TEXT NOT NULL,
		group_number TEXT NOT NULL,
		portal_login TEXT NOT NULL DEFAULT '',
		portal_password TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_students_group ON students(direction, group_number);
	`

	if _, err := db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("failed to create students table: %w", err)
	}

	return nil
}

// One keyed table for all directions. The stored text keeps the inline
// <br> line-break markers; translation to real newlines happens at render
// time.
func createScheduleTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS schedule (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		direction TEXT NOT NULL,
		group_number TEXT NOT NULL,
		week_type TEXT NOT NULL,
		day_of_week TEXT NOT NULL,
		lessons TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(direction, group_number, week_type, day_of_week)
	);
	CREATE INDEX IF NOT EXISTS idx_schedule_group ON schedule(direction, group_number);
	`

	if _, err := db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("failed to create schedule table: %w", err)
	}

	return nil
}

func createStaffTable(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS staff (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`

	if _, err := db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("failed to create staff table: %w", err)
	}

	return nil
}
