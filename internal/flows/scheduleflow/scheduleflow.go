// Package scheduleflow implements the schedule lookup dialogue: week parity,
// then weekday, then the stored schedule text, with back navigation
// re-rendered from session context.
package scheduleflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/studsched/studsched-bot/internal/dialog"
	apperrors "github.com/studsched/studsched-bot/internal/errors"
	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/session"
	"github.com/studsched/studsched-bot/internal/storage"
)

// Context keys. Populated when entering AwaitingWeekType so every later
// prompt can be regenerated without re-querying storage.
const (
	keyDirection = "direction"
	keyGroup     = "group_number"
	keyWeekType  = "week_type"
)

// WeekTypes are the two week parities, in render order.
var WeekTypes = []string{"Четная", "Нечетная"}

// Days are the six study days, in render order.
var Days = []string{
	"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота",
}

const (
	notRegisteredText = "Сначала нужно зарегистрироваться.\n" +
		"Отправь сообщение в формате: Имя Фамилия Группа"
	weekPromptText = "Выбери тип недели:"
	dayPromptText  = "Неделя: %s\nВыбери день:"
	notFoundText   = "Расписание не найдено."
)

// Flow implements the schedule lookup conversation.
type Flow struct {
	students storage.StudentStore
	schedule storage.ScheduleStore
	log      *logger.Logger
}

// New creates the schedule flow.
func New(students storage.StudentStore, schedule storage.ScheduleStore, log *logger.Logger) *Flow {
	return &Flow{
		students: students,
		schedule: schedule,
		log:      log.WithModule("scheduleflow"),
	}
}

// Register adds the lookup entry points and the state handlers.
func (f *Flow) Register(r *dialog.Router) {
	r.Handle(session.StateAwaitingWeekType, "schedule.pick_week", dialog.Trigger{Namespace: "week"}, f.pickWeek)
	r.Handle(session.StateAwaitingWeekType, "schedule.back", dialog.Trigger{Namespace: "back"}, f.back)
	r.Handle(session.StateAwaitingDay, "schedule.pick_day", dialog.Trigger{Namespace: "day"}, f.pickDay)
	r.Handle(session.StateAwaitingDay, "schedule.back", dialog.Trigger{Namespace: "back"}, f.back)

	r.HandleGlobal("schedule.start_cmd", dialog.Trigger{Command: "schedule"}, f.start)
	r.HandleGlobal("schedule.start_menu", dialog.Trigger{Namespace: "schedule"}, f.start)
}

// start opens the lookup. Unregistered users are prompted to register and
// stay idle.
func (f *Flow) start(ctx context.Context, sess session.Session, ev dialog.Event) (*dialog.Reply, error) {
	student, err := f.students.GetStudent(ctx, ev.UserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return dialog.NewReply().Say(notRegisteredText), nil
	}
	if err != nil {
		return nil, apperrors.NewCollaboratorError("storage", "get_student", err)
	}

	return dialog.NewReply().
		Add(weekPrompt(ev.Kind == dialog.KindChoice)).
		Put(keyDirection, student.Direction).
		Put(keyGroup, student.GroupNumber).
		Transition(session.StateAwaitingWeekType), nil
}

func (f *Flow) pickWeek(ctx context.Context, sess session.Session, ev dialog.Event) (*dialog.Reply, error) {
	weekType := ev.Value
	return dialog.NewReply().
		Add(dayPrompt(weekType)).
		Put(keyWeekType, weekType).
		Transition(session.StateAwaitingDay), nil
}

// pickDay renders the schedule text for the chosen day. The state stays at
// AwaitingDay so the user can keep picking days or go back.
func (f *Flow) pickDay(ctx context.Context, sess session.Session, ev dialog.Event) (*dialog.Reply, error) {
	day := ev.Value
	text, err := f.schedule.GetScheduleText(ctx,
		sess.Value(keyDirection), sess.Value(keyGroup), sess.Value(keyWeekType), day)

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		f.log.WithUserID(ev.UserID).
			WithFields(map[string]any{"day": day, "week_type": sess.Value(keyWeekType)}).
			Debug("no schedule row")
		text = notFoundText
	case err != nil:
		return nil, apperrors.NewCollaboratorError("storage", "get_schedule", err)
	default:
		text = fmt.Sprintf("<b>%s</b> (%s неделя)\n\n%s", day, sess.Value(keyWeekType), text)
	}

	return dialog.NewReply().Add(dialog.Message{
		Text: text,
		Choices: []dialog.Choice{
			{Label: "⬅️ Назад", Token: dialog.Token("back", "day")},
			{Label: "Завершить", Token: dialog.Token("done", "")},
		},
		Columns:     2,
		EditInPlace: true,
		HTML:        true,
	}), nil
}

// back re-renders a previous prompt from stored context. No storage calls.
func (f *Flow) back(ctx context.Context, sess session.Session, ev dialog.Event) (*dialog.Reply, error) {
	switch ev.Value {
	case "week":
		return dialog.NewReply().
			Add(weekPrompt(true)).
			Put(keyWeekType, "").
			Transition(session.StateAwaitingWeekType), nil
	case "day":
		return dialog.NewReply().
			Add(dayPrompt(sess.Value(keyWeekType))).
			Transition(session.StateAwaitingDay), nil
	default:
		// Unknown back target; repeat the week prompt rather than stranding
		// the user.
		return dialog.NewReply().
			Add(weekPrompt(true)).
			Transition(session.StateAwaitingWeekType), nil
	}
}

func weekPrompt(edit bool) dialog.Message {
	choices := make([]dialog.Choice, 0, len(WeekTypes))
	for _, wt := range WeekTypes {
		choices = append(choices, dialog.Choice{Label: wt, Token: dialog.Token("week", wt)})
	}
	return dialog.Message{
		Text:        weekPromptText,
		Choices:     choices,
		Columns:     2,
		EditInPlace: edit,
	}
}

func dayPrompt(weekType string) dialog.Message {
	choices := make([]dialog.Choice, 0, len(Days)+1)
	for _, d := range Days {
		choices = append(choices, dialog.Choice{Label: d, Token: dialog.Token("day", d)})
	}
	choices = append(choices, dialog.Choice{Label: "⬅️ Назад", Token: dialog.Token("back", "week")})
	return dialog.Message{
		Text:        fmt.Sprintf(dayPromptText, weekType),
		Choices:     choices,
		Columns:     2,
		EditInPlace: true,
	}
}
