package storage

import "time"

// Student links a Telegram user to a study group and optional LMS portal
// credentials. Credentials are stored verbatim and only ever forwarded to
// the portal collaborator.
type Student struct {
	UserID         int64
	FirstName      string
	LastName       string
	Direction      string
	GroupNumber    string
	PortalLogin    string
	PortalPassword string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName returns "First Last".
func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// HasCredentials reports whether both portal credentials are stored.
func (s *Student) HasCredentials() bool {
	return s.PortalLogin != "" && s.PortalPassword != ""
}

// ScheduleEntry is one stored schedule text, unique per
// (direction, group_number, week_type, day_of_week).
type ScheduleEntry struct {
	Direction   string
	GroupNumber string
	WeekType    string
	DayOfWeek   string
	Lessons     string // HTML text with <br> line-break markers
	UpdatedAt   time.Time
}

// Staff is a console account. PasswordHash is a bcrypt hash.
type Staff struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
