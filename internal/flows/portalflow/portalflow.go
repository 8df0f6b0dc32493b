// Package portalflow captures LMS credentials across two turns and pulls
// grade and retake data through the portal collaborator.
package portalflow

import (
	"context"
	"errors"
	"strings"

	"github.com/studsched/studsched-bot/internal/dialog"
	apperrors "github.com/studsched/studsched-bot/internal/errors"
	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/portal"
	"github.com/studsched/studsched-bot/internal/session"
	"github.com/studsched/studsched-bot/internal/storage"
)

// keyPendingLogin holds the login typed on the first turn until the
// password arrives on the second.
const keyPendingLogin = "pending_login"

const (
	notRegisteredText = "Сначала нужно зарегистрироваться.\n" +
		"Отправь сообщение в формате: Имя Фамилия Группа"
	askLoginText    = "Отправь логин от личного кабинета:"
	askPasswordText = "Теперь отправь пароль:"
	authFailedText  = "Неверный логин или пароль. Попробуй ещё раз: /grades"
	portalDownText  = "Личный кабинет сейчас недоступен. Попробуй позже."
	noMarksText     = "Оценок пока нет."
)

// Flow implements the credential capture and grade lookup conversation.
type Flow struct {
	students storage.StudentStore
	portal   portal.Service
	log      *logger.Logger
}

// New creates the portal flow.
func New(students storage.StudentStore, p portal.Service, log *logger.Logger) *Flow {
	return &Flow{
		students: students,
		portal:   p,
		log:      log.WithModule("portalflow"),
	}
}

// Register adds the entry points and the two credential capture states.
func (f *Flow) Register(r *dialog.Router) {
	r.Handle(session.StateAwaitingPortalLogin, "portal.capture_login", dialog.Trigger{OnText: true}, f.captureLogin)
	r.Handle(session.StateAwaitingPortalPassword, "portal.capture_password", dialog.Trigger{OnText: true}, f.capturePassword)

	r.HandleGlobal("portal.start_cmd", dialog.Trigger{Command: "grades"}, f.start)
	r.HandleGlobal("portal.start_menu", dialog.Trigger{Namespace: "grades"}, f.start)
}

// start fetches marks directly when credentials are already stored;
// otherwise it begins the two-turn capture.
func (f *Flow) start(ctx context.Context, sess session.Session, ev dialog.Event) (*dialog.Reply, error) {
	student, err := f.students.GetStudent(ctx, ev.UserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return dialog.NewReply().Say(notRegisteredText), nil
	}
	if err != nil {
		return nil, apperrors.NewCollaboratorError("storage", "get_student", err)
	}

	if !student.HasCredentials() {
		return dialog.NewReply().
			Say(askLoginText).
			Transition(session.StateAwaitingPortalLogin), nil
	}

	reply, retry := f.fetchAndRender(ctx, ev.UserID, student.PortalLogin, student.PortalPassword)
	if retry {
		// Stored credentials no longer work; capture fresh ones.
		return dialog.NewReply().
			Say(authFailedText).
			Say(askLoginText).
			Transition(session.StateAwaitingPortalLogin), nil
	}
	return reply, nil
}

func (f *Flow) captureLogin(ctx context.Context, sess session.Session, ev dialog.Event) (*dialog.Reply, error) {
	login := strings.TrimSpace(ev.Text)
	if login == "" {
		return dialog.NewReply().Say(askLoginText), nil
	}
	return dialog.NewReply().
		Say(askPasswordText).
		Put(keyPendingLogin, login).
		Transition(session.StateAwaitingPortalPassword), nil
}

// capturePassword persists the pair, then tries it against the portal.
// Whatever the portal says, the flow ends here; /grades restarts it.
func (f *Flow) capturePassword(ctx context.Context, sess session.Session, ev dialog.Event) (*dialog.Reply, error) {
	login := sess.Value(keyPendingLogin)
	password := strings.TrimSpace(ev.Text)

	if err := f.students.SaveCredentials(ctx, ev.UserID, login, password); err != nil {
		return nil, apperrors.NewCollaboratorError("storage", "save_credentials", err)
	}

	reply, retry := f.fetchAndRender(ctx, ev.UserID, login, password)
	if retry {
		reply = dialog.NewReply().Say(authFailedText)
	}
	return reply.ClearSession(), nil
}

// fetchAndRender logs in and renders the marks and retakes. retry is true
// when the portal rejected the credentials. Portal outages are rendered as
// a failure message, never surfaced as a handler error: the transition in
// the caller must still happen.
func (f *Flow) fetchAndRender(ctx context.Context, userID int64, login, password string) (reply *dialog.Reply, retry bool) {
	log := f.log.WithUserID(userID)

	sess, err := f.portal.LogIn(ctx, login, password)
	if errors.Is(err, apperrors.ErrPortalAuth) {
		log.Info("portal rejected credentials")
		return nil, true
	}
	if err != nil {
		log.WithError(err).Error("portal login failed")
		return dialog.NewReply().Say(portalDownText), false
	}

	marks, err := f.portal.FetchMarks(ctx, sess)
	if err != nil {
		log.WithError(err).Error("failed to fetch marks")
		return dialog.NewReply().Say(portalDownText), false
	}

	retakes, err := f.portal.FetchRetakes(ctx, sess)
	if err != nil {
		log.WithError(err).Warn("failed to fetch retakes")
		retakes = nil
	}

	return dialog.NewReply().Add(dialog.Message{
		Text: renderMarks(marks, retakes),
		HTML: true,
	}), false
}

// renderMarks formats the portal rows as an HTML message.
func renderMarks(marks, retakes []portal.Mark) string {
	if len(marks) == 0 && len(retakes) == 0 {
		return noMarksText
	}

	var b strings.Builder
	if len(marks) > 0 {
		b.WriteString("<b>Оценки</b>\n")
		for _, m := range marks {
			b.WriteString(m.Subject)
			if m.Control != "" {
				b.WriteString(" (" + m.Control + ")")
			}
			b.WriteString(" — " + m.Value + "\n")
		}
	}
	if len(retakes) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("<b>Пересдачи</b>\n")
		for _, m := range retakes {
			b.WriteString(m.Subject + " — " + m.Value + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
