package storage

import "context"

// StudentStore is the student-record contract consumed by the dialogue
// flows and the staff console. *DB implements it.
type StudentStore interface {
	GetStudent(ctx context.Context, userID int64) (*Student, error)
	UpsertStudent(ctx context.Context, s *Student) error
	SaveCredentials(ctx context.Context, userID int64, login, password string) error
	ListStudents(ctx context.Context) ([]Student, error)
}

// ScheduleStore is the schedule-entry contract. *DB implements it.
type ScheduleStore interface {
	GetScheduleText(ctx context.Context, direction, groupNumber, weekType, day string) (string, error)
	UpsertScheduleText(ctx context.Context, direction, groupNumber, weekType, day, lessons string) error
}

// StaffStore is the console-account contract. *DB implements it.
type StaffStore interface {
	GetStaff(ctx context.Context, username string) (*Staff, error)
	CreateStaff(ctx context.Context, username, passwordHash string) error
}

var (
	_ StudentStore  = (*DB)(nil)
	_ ScheduleStore = (*DB)(nil)
	_ StaffStore    = (*DB)(nil)
)
