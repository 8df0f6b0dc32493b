// Package admin serves the staff web console: login, schedule entry and
// broadcast announcements.
package admin

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/studsched/studsched-bot/internal/errors"
	"github.com/studsched/studsched-bot/internal/flows/scheduleflow"
	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/notify"
	"github.com/studsched/studsched-bot/internal/storage"
)

//go:embed templates/*.html
var templateFS embed.FS

const sessionCookie = "admin_session"

// lessonSlots are the eight daily lesson periods. The schedule form has one
// input per slot; empty slots render as "Пары нет." in the stored text.
var lessonSlots = []string{
	"08:00-09:30", "09:40-11:10", "11:20-12:50", "13:20-14:50",
	"15:00-16:30", "16:40-18:10", "18:20-19:50", "19:55-21:25",
}

const emptySlotText = "Пары нет."

// ScheduleWriter is the schedule surface the console needs. *storage.DB
// implements it.
type ScheduleWriter interface {
	UpsertScheduleText(ctx context.Context, direction, groupNumber, weekType, day, lessons string) error
	CountScheduleEntries(ctx context.Context) (int, error)
}

// Broadcaster fans an announcement out to students.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) (*notify.Report, error)
	BroadcastTo(ctx context.Context, userIDs []int64, text string) (*notify.Report, error)
}

// Handler serves the /admin routes.
type Handler struct {
	staff     storage.StaffStore
	students  storage.StudentStore
	schedule  ScheduleWriter
	notifier  Broadcaster
	sessions  *sessionStore
	templates *template.Template
	log       *logger.Logger
}

// New creates the console handler.
func New(staff storage.StaffStore, students storage.StudentStore, schedule ScheduleWriter, notifier Broadcaster, sessionTTL time.Duration, log *logger.Logger) *Handler {
	return &Handler{
		staff:     staff,
		students:  students,
		schedule:  schedule,
		notifier:  notifier,
		sessions:  newSessionStore(sessionTTL),
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
		log:       log.WithModule("admin"),
	}
}

// Register mounts the console under /admin.
func (h *Handler) Register(router *gin.Engine) {
	admin := router.Group("/admin")
	admin.GET("/login", h.loginPage)
	admin.POST("/login", h.login)
	admin.GET("/logout", h.logout)

	authed := admin.Group("", h.requireSession)
	authed.GET("/", h.dashboard)
	authed.GET("/schedule", h.schedulePage)
	authed.POST("/schedule", h.saveSchedule)
	authed.GET("/broadcast", h.broadcastPage)
	authed.POST("/broadcast", h.broadcast)
}

// Bootstrap creates the staff account when it does not exist yet. Called
// once at startup with credentials from the environment.
func (h *Handler) Bootstrap(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	if _, err := h.staff.GetStaff(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash staff password: %w", err)
	}
	if err := h.staff.CreateStaff(ctx, username, string(hash)); err != nil {
		return err
	}
	h.log.WithField("username", username).Info("staff account created")
	return nil
}

// requireSession redirects unauthenticated requests to the login page.
func (h *Handler) requireSession(c *gin.Context) {
	token, err := c.Cookie(sessionCookie)
	if err != nil {
		c.Redirect(http.StatusFound, "/admin/login")
		c.Abort()
		return
	}
	username, ok := h.sessions.Lookup(token)
	if !ok {
		c.Redirect(http.StatusFound, "/admin/login")
		c.Abort()
		return
	}
	c.Set("staff_username", username)
	c.Next()
}

func (h *Handler) render(c *gin.Context, status int, name string, data any) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		h.log.WithError(err).Error("template render failed")
	}
}

func (h *Handler) loginPage(c *gin.Context) {
	h.render(c, http.StatusOK, "login", gin.H{})
}

func (h *Handler) login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")

	staff, err := h.staff.GetStaff(c.Request.Context(), username)
	if errors.Is(err, apperrors.ErrNotFound) {
		h.render(c, http.StatusUnauthorized, "login", gin.H{"Error": "Неверный логин или пароль."})
		return
	}
	if err != nil {
		h.log.WithError(err).Error("staff lookup failed")
		h.render(c, http.StatusInternalServerError, "login", gin.H{"Error": "Внутренняя ошибка. Попробуйте позже."})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(password)) != nil {
		h.log.WithField("username", username).Warn("console login rejected")
		h.render(c, http.StatusUnauthorized, "login", gin.H{"Error": "Неверный логин или пароль."})
		return
	}

	token := h.sessions.Create(username)
	c.SetCookie(sessionCookie, token, int(h.sessions.ttl.Seconds()), "/admin", "", false, true)
	h.log.WithField("username", username).Info("console login")
	c.Redirect(http.StatusFound, "/admin/")
}

func (h *Handler) logout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil {
		h.sessions.Revoke(token)
	}
	c.SetCookie(sessionCookie, "", -1, "/admin", "", false, true)
	c.Redirect(http.StatusFound, "/admin/login")
}

func (h *Handler) dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.schedule.CountScheduleEntries(ctx)
	if err != nil {
		h.log.WithError(err).Error("failed to count schedule entries")
	}
	students, err := h.students.ListStudents(ctx)
	if err != nil {
		h.log.WithError(err).Error("failed to list students")
	}

	h.render(c, http.StatusOK, "dashboard", gin.H{
		"Username":      c.GetString("staff_username"),
		"ScheduleCount": count,
		"Students":      students,
	})
}

func (h *Handler) schedulePage(c *gin.Context) {
	h.render(c, http.StatusOK, "schedule", h.scheduleForm(nil))
}

// saveSchedule stores one (direction, group, week, day) cell built from the
// eight slot inputs.
func (h *Handler) saveSchedule(c *gin.Context) {
	direction := strings.ToUpper(strings.TrimSpace(c.PostForm("direction")))
	group := strings.TrimSpace(c.PostForm("group_number"))
	weekType := c.PostForm("week_type")
	day := c.PostForm("day")

	if direction == "" || group == "" || !validWeekType(weekType) || !validDay(day) {
		h.render(c, http.StatusBadRequest, "schedule",
			h.scheduleForm(gin.H{"Error": "Заполните все поля формы."}))
		return
	}

	lessons := make([]string, len(lessonSlots))
	for i := range lessonSlots {
		lessons[i] = c.PostForm(fmt.Sprintf("lesson%d", i))
	}

	err := h.schedule.UpsertScheduleText(c.Request.Context(),
		direction, group, weekType, day, BuildLessonsText(lessons))
	if err != nil {
		h.log.WithError(err).Error("failed to save schedule")
		h.render(c, http.StatusInternalServerError, "schedule",
			h.scheduleForm(gin.H{"Error": "Не удалось сохранить. Попробуйте ещё раз."}))
		return
	}

	h.log.WithFields(map[string]any{
		"direction": direction, "group_number": group,
		"week_type": weekType, "day": day,
	}).Info("schedule saved")
	h.render(c, http.StatusOK, "schedule",
		h.scheduleForm(gin.H{"Message": fmt.Sprintf("Сохранено: %s-%s, %s, %s.", direction, group, weekType, day)}))
}

func (h *Handler) broadcastPage(c *gin.Context) {
	h.render(c, http.StatusOK, "broadcast", h.broadcastForm(c, nil))
}

// broadcast sends the message to the checked students, or to everyone when
// nothing is checked.
func (h *Handler) broadcast(c *gin.Context) {
	text := strings.TrimSpace(c.PostForm("text"))
	if text == "" {
		h.render(c, http.StatusBadRequest, "broadcast",
			h.broadcastForm(c, gin.H{"Error": "Текст сообщения пуст."}))
		return
	}

	var recipients []int64
	for _, raw := range c.PostFormArray("recipients") {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.render(c, http.StatusBadRequest, "broadcast",
				h.broadcastForm(c, gin.H{"Error": "Некорректный список получателей."}))
			return
		}
		recipients = append(recipients, id)
	}

	var report *notify.Report
	var err error
	if len(recipients) > 0 {
		report, err = h.notifier.BroadcastTo(c.Request.Context(), recipients, text)
	} else {
		report, err = h.notifier.Broadcast(c.Request.Context(), text)
	}
	if err != nil {
		h.log.WithError(err).Error("broadcast failed")
		h.render(c, http.StatusInternalServerError, "broadcast",
			h.broadcastForm(c, gin.H{"Error": "Рассылка не выполнена. Попробуйте позже."}))
		return
	}

	h.render(c, http.StatusOK, "broadcast", h.broadcastForm(c, gin.H{
		"Message": fmt.Sprintf("Отправлено: %d из %d (ошибок: %d).", report.Sent, report.Total, report.Failed),
	}))
}

// broadcastForm builds the broadcast page data with the student list for
// the recipient picker.
func (h *Handler) broadcastForm(c *gin.Context, extra gin.H) gin.H {
	students, err := h.students.ListStudents(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to list students")
	}
	data := gin.H{"Students": students}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// scheduleForm builds the schedule page data, merging in flash values.
func (h *Handler) scheduleForm(extra gin.H) gin.H {
	data := gin.H{
		"WeekTypes": scheduleflow.WeekTypes,
		"Days":      scheduleflow.Days,
		"Slots":     lessonSlots,
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// BuildLessonsText joins the slot inputs into the stored schedule text, one
// line per slot separated by <br>. Empty slots become "Пары нет.".
func BuildLessonsText(lessons []string) string {
	lines := make([]string, len(lessonSlots))
	for i, slot := range lessonSlots {
		text := emptySlotText
		if i < len(lessons) {
			if t := strings.TrimSpace(lessons[i]); t != "" {
				text = t
			}
		}
		lines[i] = slot + " " + text
	}
	return strings.Join(lines, "<br>")
}

func validWeekType(weekType string) bool {
	for _, wt := range scheduleflow.WeekTypes {
		if wt == weekType {
			return true
		}
	}
	return false
}

func validDay(day string) bool {
	for _, d := range scheduleflow.Days {
		if d == day {
			return true
		}
	}
	return false
}
