// Package registerflow handles student registration from free text of the
// form "Имя Фамилия Группа". It owns the global catch-all, so it must be
// registered after every other flow.
package registerflow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/studsched/studsched-bot/internal/dialog"
	apperrors "github.com/studsched/studsched-bot/internal/errors"
	"github.com/studsched/studsched-bot/internal/flows/menuflow"
	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/session"
	"github.com/studsched/studsched-bot/internal/storage"
)

// groupPattern splits a group token like "ПИ-201" or "пи201" into the
// direction letters and the group digits. Prefix-anchored: trailing junk
// after the digits is tolerated.
var groupPattern = regexp.MustCompile(`(?i)^([А-ЯЁA-Z]+)-?(\d+)`)

// DirectionOther is stored when the group token has no recognizable
// direction prefix.
const DirectionOther = "OTHER"

const (
	formatHelpText = "Не понял сообщение.\n" +
		"Для регистрации отправь: Имя Фамилия Группа\n" +
		"Например: Иван Петров ПИ-201"

	useButtonsText = "Пожалуйста, используй кнопки выше или /cancel."

	registeredText = "Готово! Ты зарегистрирован(а).\nГруппа: %s"
)

// Flow implements the registration catch-all.
type Flow struct {
	students storage.StudentStore
	log      *logger.Logger
}

// New creates the registration flow.
func New(students storage.StudentStore, log *logger.Logger) *Flow {
	return &Flow{
		students: students,
		log:      log.WithModule("registerflow"),
	}
}

// Register adds the free-text catch-all as the last global handler.
func (f *Flow) Register(r *dialog.Router) {
	r.HandleGlobal("register.catch_all", dialog.Trigger{OnText: true}, f.catchAll)
}

// catchAll fires only when no state-scoped handler claimed the text.
// Outside the idle state that means the user typed instead of pressing a
// button; the session is left untouched.
func (f *Flow) catchAll(ctx context.Context, sess session.Session, ev dialog.Event) (*dialog.Reply, error) {
	if sess.State != session.StateIdle {
		return dialog.NewReply().Say(useButtonsText), nil
	}

	student, err := ParseRegistration(ev.UserID, ev.Text)
	if errors.Is(err, apperrors.ErrInvalidInput) {
		return dialog.NewReply().Say(formatHelpText), nil
	}
	if err != nil {
		return nil, err
	}

	if err := f.students.UpsertStudent(ctx, student); err != nil {
		return nil, apperrors.NewCollaboratorError("storage", "upsert_student", err)
	}

	f.log.WithUserID(ev.UserID).
		WithFields(map[string]any{"direction": student.Direction, "group_number": student.GroupNumber}).
		Info("student registered")

	return dialog.NewReply().Add(dialog.Message{
		Text:    fmt.Sprintf(registeredText, groupLabel(student)),
		Choices: menuflow.MainMenu(),
		Columns: 2,
	}), nil
}

// ParseRegistration parses free text of the form "Имя Фамилия Группа" into
// a student record. Anything but exactly three words is a validation error.
func ParseRegistration(userID int64, text string) (*storage.Student, error) {
	tokens := strings.Fields(text)
	if len(tokens) != 3 {
		return nil, apperrors.NewValidationError("text", "expected three words: first name, last name, group")
	}

	direction, groupNumber := ParseGroupToken(tokens[2])
	return &storage.Student{
		UserID:      userID,
		FirstName:   tokens[0],
		LastName:    tokens[1],
		Direction:   direction,
		GroupNumber: groupNumber,
	}, nil
}

// groupLabel renders the stored group for the confirmation message.
func groupLabel(s *storage.Student) string {
	if s.Direction == DirectionOther {
		return s.GroupNumber
	}
	return s.Direction + "-" + s.GroupNumber
}

// ParseGroupToken splits a raw group token into direction and group number.
// Unrecognized tokens fall back to DirectionOther with the token kept whole.
func ParseGroupToken(token string) (direction, groupNumber string) {
	m := groupPattern.FindStringSubmatch(token)
	if m == nil {
		return DirectionOther, token
	}
	return strings.ToUpper(m[1]), m[2]
}
