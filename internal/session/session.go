// Package session holds per-user conversation state.
//
// Every Telegram user has at most one session: the current dialogue state
// plus a small string context map (selected week type, pending login, the
// message id of the last rendered menu). All operations are atomic per user
// and there is no global lock on the hot path.
package session

import "time"

// State identifies a position in the conversation state machine.
type State string

const (
	// StateIdle is the root state. Commands and menu choices dispatch from here.
	StateIdle State = "idle"

	// StateAwaitingWeekType follows a schedule request. The user picks the
	// week parity.
	StateAwaitingWeekType State = "awaiting_week_type"

	// StateAwaitingDay follows a week type choice. The user picks a weekday.
	StateAwaitingDay State = "awaiting_day"

	// StateAwaitingPortalLogin waits for the LMS login typed as free text.
	StateAwaitingPortalLogin State = "awaiting_portal_login"

	// StateAwaitingPortalPassword waits for the LMS password typed as free text.
	StateAwaitingPortalPassword State = "awaiting_portal_password"
)

// Session is a point-in-time snapshot of one user's conversation.
// The context map is a copy; mutating it does not affect the store.
type Session struct {
	UserID    int64
	State     State
	Context   map[string]string
	UpdatedAt time.Time
}

// Value returns the context value for key, or "" when absent.
func (s Session) Value(key string) string {
	return s.Context[key]
}

// Store is the session persistence contract used by the dialogue engine.
type Store interface {
	// Get returns a snapshot of the user's session, creating an idle one
	// if none exists.
	Get(userID int64) Session

	// SetState replaces the user's state.
	SetState(userID int64, state State)

	// MergeContext applies the patch to the user's context map. Keys with
	// empty values are removed.
	MergeContext(userID int64, patch map[string]string)

	// Clear resets the user to the idle state with an empty context.
	Clear(userID int64)

	// LockUser acquires the user's dispatch lock and returns the unlock
	// function. Events for one user are processed single-flight.
	LockUser(userID int64) (unlock func())

	// SweepIdle clears sessions untouched for longer than ttl and returns
	// how many were cleared. Idle sessions with empty context are skipped.
	SweepIdle(ttl time.Duration) int
}
