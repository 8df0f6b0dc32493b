// Package menuflow handles the root menu: greeting, help, cancel and the
// terminal "done" choice shared by every flow.
package menuflow

import (
	"context"

	"github.com/studsched/studsched-bot/internal/dialog"
	"github.com/studsched/studsched-bot/internal/session"
)

const (
	greetingText = "Привет! Я бот расписания.\n\n" +
		"Чтобы зарегистрироваться, отправь сообщение в формате:\n" +
		"Имя Фамилия Группа\n" +
		"Например: Иван Петров ПИ-201"

	helpText = "Команды:\n" +
		"/schedule — расписание занятий\n" +
		"/grades — оценки из личного кабинета\n" +
		"/cancel — прервать текущий диалог\n\n" +
		"Для регистрации отправь: Имя Фамилия Группа"

	cancelText  = "Хорошо, диалог прерван."
	closingText = "До встречи!"
)

// MainMenu returns the root menu keyboard. Menu buttons carry bare tokens;
// each target flow owns its namespace.
func MainMenu() []dialog.Choice {
	return []dialog.Choice{
		{Label: "📅 Расписание", Token: dialog.Token("schedule", "")},
		{Label: "🎓 Оценки", Token: dialog.Token("grades", "")},
	}
}

// Flow wires the root handlers.
type Flow struct{}

// New creates the menu flow.
func New() *Flow {
	return &Flow{}
}

// Register adds the global command handlers and the shared "done" handler.
func (f *Flow) Register(r *dialog.Router) {
	r.HandleGlobal("menu.start", dialog.Trigger{Command: "start"}, f.start)
	r.HandleGlobal("menu.help", dialog.Trigger{Command: "help"}, f.help)
	r.HandleGlobal("menu.cancel", dialog.Trigger{Command: "cancel"}, f.cancel)
	r.HandleGlobal("menu.done", dialog.Trigger{Namespace: "done"}, f.done)
}

func (f *Flow) start(ctx context.Context, sess session.Session, ev dialog.Event) (*dialog.Reply, error) {
	return dialog.NewReply().
		Add(dialog.Message{Text: greetingText, Choices: MainMenu(), Columns: 2}).
		ClearSession(), nil
}

func (f *Flow) help(ctx context.Context, sess session.Session, ev dialog.Event) (*dialog.Reply, error) {
	return dialog.NewReply().Say(helpText), nil
}

func (f *Flow) cancel(ctx context.Context, sess session.Session, ev dialog.Event) (*dialog.Reply, error) {
	return dialog.NewReply().Say(cancelText).ClearSession(), nil
}

// done terminates whatever flow the user is in.
func (f *Flow) done(ctx context.Context, sess session.Session, ev dialog.Event) (*dialog.Reply, error) {
	return dialog.NewReply().
		Add(dialog.Message{Text: closingText, EditInPlace: true}).
		ClearSession(), nil
}
