package admin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/studsched/studsched-bot/internal/errors"
	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/notify"
	"github.com/studsched/studsched-bot/internal/storage"
)

type fakeStaff struct {
	accounts map[string]string
}

func (f *fakeStaff) GetStaff(ctx context.Context, username string) (*storage.Staff, error) {
	hash, ok := f.accounts[username]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &storage.Staff{Username: username, PasswordHash: hash}, nil
}

func (f *fakeStaff) CreateStaff(ctx context.Context, username, passwordHash string) error {
	f.accounts[username] = passwordHash
	return nil
}

type fakeStudents struct{}

func (fakeStudents) GetStudent(ctx context.Context, userID int64) (*storage.Student, error) {
	return nil, apperrors.ErrNotFound
}

func (fakeStudents) UpsertStudent(ctx context.Context, s *storage.Student) error { return nil }

func (fakeStudents) SaveCredentials(ctx context.Context, userID int64, login, password string) error {
	return nil
}

func (fakeStudents) ListStudents(ctx context.Context) ([]storage.Student, error) {
	return []storage.Student{{UserID: 7, FirstName: "Иван", LastName: "Петров", Direction: "ПИ", GroupNumber: "201"}}, nil
}

type savedEntry struct {
	direction, group, weekType, day, lessons string
}

type fakeScheduleWriter struct {
	saved []savedEntry
}

func (f *fakeScheduleWriter) UpsertScheduleText(ctx context.Context, direction, groupNumber, weekType, day, lessons string) error {
	f.saved = append(f.saved, savedEntry{direction, groupNumber, weekType, day, lessons})
	return nil
}

func (f *fakeScheduleWriter) CountScheduleEntries(ctx context.Context) (int, error) {
	return len(f.saved), nil
}

type fakeBroadcaster struct {
	text       string
	recipients []int64
	err        error
}

func (f *fakeBroadcaster) Broadcast(ctx context.Context, text string) (*notify.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.text = text
	return &notify.Report{ID: "b-1", Total: 3, Sent: 2, Failed: 1}, nil
}

func (f *fakeBroadcaster) BroadcastTo(ctx context.Context, userIDs []int64, text string) (*notify.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.text = text
	f.recipients = userIDs
	return &notify.Report{ID: "b-2", Total: len(userIDs), Sent: len(userIDs)}, nil
}

type consoleFixture struct {
	router   *gin.Engine
	handler  *Handler
	schedule *fakeScheduleWriter
	notifier *fakeBroadcaster
}

func newConsole(t *testing.T) *consoleFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	staff := &fakeStaff{accounts: map[string]string{"dean": string(hash)}}
	schedule := &fakeScheduleWriter{}
	notifier := &fakeBroadcaster{}
	log := logger.NewWithWriter("error", io.Discard)

	h := New(staff, fakeStudents{}, schedule, notifier, time.Hour, log)
	router := gin.New()
	h.Register(router)

	return &consoleFixture{router: router, handler: h, schedule: schedule, notifier: notifier}
}

func (f *consoleFixture) login(t *testing.T) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {"dean"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func (f *consoleFixture) postForm(t *testing.T, cookie *http.Cookie, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestLogin_GoodCredentialsRedirectToDashboard(t *testing.T) {
	f := newConsole(t)
	cookie := f.login(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dean")
	assert.Contains(t, w.Body.String(), "Петров")
}

func TestLogin_BadPasswordRejected(t *testing.T) {
	f := newConsole(t)
	w := f.postForm(t, nil, "/admin/login",
		url.Values{"username": {"dean"}, "password": {"wrong"}})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Неверный логин или пароль")
}

func TestLogin_UnknownUserGetsSameMessage(t *testing.T) {
	f := newConsole(t)
	w := f.postForm(t, nil, "/admin/login",
		url.Values{"username": {"ghost"}, "password": {"secret"}})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Неверный логин или пароль")
}

func TestDashboard_WithoutSessionRedirectsToLogin(t *testing.T) {
	f := newConsole(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/login", w.Header().Get("Location"))
}

func TestLogout_RevokesSession(t *testing.T) {
	f := newConsole(t)
	cookie := f.login(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/logout", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code, "revoked cookie must not open the dashboard")
}

func TestSaveSchedule_StoresJoinedSlots(t *testing.T) {
	f := newConsole(t)
	cookie := f.login(t)

	form := url.Values{
		"direction":    {"пи"},
		"group_number": {"201"},
		"week_type":    {"Четная"},
		"day":          {"Среда"},
		"lesson0":      {"Матанализ"},
		"lesson3":      {"Физика"},
	}
	w := f.postForm(t, cookie, "/admin/schedule", form)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.schedule.saved, 1)

	entry := f.schedule.saved[0]
	assert.Equal(t, "ПИ", entry.direction, "direction is upper-cased like in registration")
	assert.Equal(t, "201", entry.group)
	assert.Equal(t, "Четная", entry.weekType)
	assert.Equal(t, "Среда", entry.day)

	lines := strings.Split(entry.lessons, "<br>")
	require.Len(t, lines, 8)
	assert.Equal(t, "08:00-09:30 Матанализ", lines[0])
	assert.Equal(t, "09:40-11:10 Пары нет.", lines[1])
	assert.Equal(t, "13:20-14:50 Физика", lines[3])
}

func TestSaveSchedule_RejectsUnknownDay(t *testing.T) {
	f := newConsole(t)
	cookie := f.login(t)

	form := url.Values{
		"direction":    {"ПИ"},
		"group_number": {"201"},
		"week_type":    {"Четная"},
		"day":          {"Воскресенье"},
	}
	w := f.postForm(t, cookie, "/admin/schedule", form)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.schedule.saved)
}

func TestBroadcast_ReportsOutcome(t *testing.T) {
	f := newConsole(t)
	cookie := f.login(t)

	w := f.postForm(t, cookie, "/admin/broadcast", url.Values{"text": {"Пар завтра нет"}})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Пар завтра нет", f.notifier.text)
	assert.Contains(t, w.Body.String(), "Отправлено: 2 из 3")
}

func TestBroadcast_SelectedRecipientsOnly(t *testing.T) {
	f := newConsole(t)
	cookie := f.login(t)

	w := f.postForm(t, cookie, "/admin/broadcast", url.Values{
		"text":       {"Пересдача в пятницу"},
		"recipients": {"7", "42"},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{7, 42}, f.notifier.recipients)
	assert.Contains(t, w.Body.String(), "Отправлено: 2 из 2")
}

func TestBroadcast_BadRecipientIDRejected(t *testing.T) {
	f := newConsole(t)
	cookie := f.login(t)

	w := f.postForm(t, cookie, "/admin/broadcast", url.Values{
		"text":       {"Пересдача в пятницу"},
		"recipients": {"не число"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.notifier.text)
}

func TestBroadcast_PageListsStudents(t *testing.T) {
	f := newConsole(t)
	cookie := f.login(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/broadcast", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Петров")
	assert.Contains(t, w.Body.String(), `value="7"`)
}

func TestBroadcast_EmptyTextRejected(t *testing.T) {
	f := newConsole(t)
	cookie := f.login(t)

	w := f.postForm(t, cookie, "/admin/broadcast", url.Values{"text": {"   "}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.notifier.text)
}

func TestBootstrap_CreatesAccountOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	staff := &fakeStaff{accounts: map[string]string{}}
	log := logger.NewWithWriter("error", io.Discard)
	h := New(staff, fakeStudents{}, &fakeScheduleWriter{}, &fakeBroadcaster{}, time.Hour, log)

	require.NoError(t, h.Bootstrap(context.Background(), "dean", "secret"))
	first := staff.accounts["dean"]
	require.NotEmpty(t, first)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(first), []byte("secret")))

	require.NoError(t, h.Bootstrap(context.Background(), "dean", "changed"))
	assert.Equal(t, first, staff.accounts["dean"], "existing account is left alone")
}

func TestBuildLessonsText_AllEmpty(t *testing.T) {
	text := BuildLessonsText(nil)
	lines := strings.Split(text, "<br>")
	require.Len(t, lines, 8)
	for _, line := range lines {
		assert.Contains(t, line, "Пары нет.")
	}
}
