package scheduleflow

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studsched/studsched-bot/internal/dialog"
	apperrors "github.com/studsched/studsched-bot/internal/errors"
	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/metrics"
	"github.com/studsched/studsched-bot/internal/session"
	"github.com/studsched/studsched-bot/internal/storage"
)

type fakeStudents struct {
	students map[int64]*storage.Student
	err      error
}

func (f *fakeStudents) GetStudent(ctx context.Context, userID int64) (*storage.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.students[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return s, nil
}

func (f *fakeStudents) UpsertStudent(ctx context.Context, s *storage.Student) error { return nil }

func (f *fakeStudents) SaveCredentials(ctx context.Context, userID int64, login, password string) error {
	return nil
}

func (f *fakeStudents) ListStudents(ctx context.Context) ([]storage.Student, error) {
	return nil, nil
}

type scheduleKey struct {
	direction, group, weekType, day string
}

type fakeSchedule struct {
	rows map[scheduleKey]string
}

func (f *fakeSchedule) GetScheduleText(ctx context.Context, direction, groupNumber, weekType, day string) (string, error) {
	text, ok := f.rows[scheduleKey{direction, groupNumber, weekType, day}]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return text, nil
}

func (f *fakeSchedule) UpsertScheduleText(ctx context.Context, direction, groupNumber, weekType, day, lessons string) error {
	f.rows[scheduleKey{direction, groupNumber, weekType, day}] = lessons
	return nil
}

type captureSink struct {
	mu        sync.Mutex
	delivered []dialog.Message
}

func (c *captureSink) Deliver(ctx context.Context, userID int64, replyTo int, messages []dialog.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delivered = append(c.delivered, messages...)
	return nil
}

func (c *captureSink) last(t *testing.T) dialog.Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.delivered)
	return c.delivered[len(c.delivered)-1]
}

func labels(m dialog.Message) []string {
	out := make([]string, len(m.Choices))
	for i, c := range m.Choices {
		out[i] = c.Label
	}
	return out
}

func newTestEngine(students *fakeStudents, schedule *fakeSchedule) (*dialog.Engine, *session.MemoryStore, *captureSink) {
	store := session.NewMemoryStore()
	sink := &captureSink{}
	log := logger.NewWithWriter("error", io.Discard)
	flow := New(students, schedule, log)
	engine := dialog.NewEngine(store, sink, log, metrics.New(prometheus.NewRegistry()), flow)
	return engine, store, sink
}

func registered() *fakeStudents {
	return &fakeStudents{students: map[int64]*storage.Student{
		7: {UserID: 7, FirstName: "Иван", LastName: "Петров", Direction: "ПИ", GroupNumber: "201"},
	}}
}

func TestStart_RendersWeekPrompt(t *testing.T) {
	engine, store, sink := newTestEngine(registered(), &fakeSchedule{})

	err := engine.Dispatch(context.Background(), dialog.NormalizeText(7, "/schedule", 0))

	require.NoError(t, err)
	sess := store.Get(7)
	assert.Equal(t, session.StateAwaitingWeekType, sess.State)
	assert.Equal(t, "ПИ", sess.Value(keyDirection))
	assert.Equal(t, "201", sess.Value(keyGroup))

	msg := sink.last(t)
	assert.Equal(t, weekPromptText, msg.Text)
	assert.Equal(t, []string{"Четная", "Нечетная"}, labels(msg))
	assert.False(t, msg.EditInPlace, "typed command must not edit the user's message")
}

func TestStart_UnregisteredStaysIdle(t *testing.T) {
	engine, store, sink := newTestEngine(&fakeStudents{}, &fakeSchedule{})

	err := engine.Dispatch(context.Background(), dialog.NormalizeText(7, "/schedule", 0))

	require.NoError(t, err)
	assert.Equal(t, session.StateIdle, store.Get(7).State)
	assert.Equal(t, notRegisteredText, sink.last(t).Text)
}

func TestPickWeek_RendersDayPrompt(t *testing.T) {
	engine, store, sink := newTestEngine(registered(), &fakeSchedule{})
	ctx := context.Background()

	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeText(7, "/schedule", 0)))
	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeCallback(7, "week:Нечетная", 10)))

	sess := store.Get(7)
	assert.Equal(t, session.StateAwaitingDay, sess.State)
	assert.Equal(t, "Нечетная", sess.Value(keyWeekType))

	msg := sink.last(t)
	assert.Contains(t, msg.Text, "Нечетная")
	assert.Equal(t, append(append([]string{}, Days...), "⬅️ Назад"), labels(msg))
	assert.True(t, msg.EditInPlace)
}

func TestPickDay_RendersScheduleText(t *testing.T) {
	schedule := &fakeSchedule{rows: map[scheduleKey]string{
		{"ПИ", "201", "Нечетная", "Среда"}: "1. Матанализ<br>2. Физика",
	}}
	engine, store, sink := newTestEngine(registered(), schedule)
	ctx := context.Background()

	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeText(7, "/schedule", 0)))
	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeCallback(7, "week:Нечетная", 10)))
	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeCallback(7, "day:Среда", 10)))

	assert.Equal(t, session.StateAwaitingDay, store.Get(7).State,
		"result screen keeps accepting day picks")

	msg := sink.last(t)
	assert.Contains(t, msg.Text, "<b>Среда</b>")
	assert.Contains(t, msg.Text, "Матанализ")
	assert.True(t, msg.HTML)
	assert.Equal(t, []string{"⬅️ Назад", "Завершить"}, labels(msg))
}

func TestPickDay_MissingRowShowsNotFound(t *testing.T) {
	engine, store, sink := newTestEngine(registered(), &fakeSchedule{})
	ctx := context.Background()

	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeText(7, "/schedule", 0)))
	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeCallback(7, "week:Четная", 10)))
	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeCallback(7, "day:Воскресенье", 10)))

	assert.Equal(t, session.StateAwaitingDay, store.Get(7).State)
	assert.Contains(t, sink.last(t).Text, notFoundText)
}

func TestBack_FromDayToWeekPrompt(t *testing.T) {
	engine, store, sink := newTestEngine(registered(), &fakeSchedule{})
	ctx := context.Background()

	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeText(7, "/schedule", 0)))
	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeCallback(7, "week:Четная", 10)))
	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeCallback(7, "back:week", 10)))

	sess := store.Get(7)
	assert.Equal(t, session.StateAwaitingWeekType, sess.State)
	assert.Empty(t, sess.Value(keyWeekType), "week choice is discarded on back")

	msg := sink.last(t)
	assert.Equal(t, weekPromptText, msg.Text)
	assert.True(t, msg.EditInPlace)
}

func TestBack_FromResultToDayPrompt(t *testing.T) {
	engine, store, sink := newTestEngine(registered(), &fakeSchedule{})
	ctx := context.Background()

	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeText(7, "/schedule", 0)))
	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeCallback(7, "week:Четная", 10)))
	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeCallback(7, "day:Среда", 10)))
	require.NoError(t, engine.Dispatch(ctx, dialog.NormalizeCallback(7, "back:day", 10)))

	sess := store.Get(7)
	assert.Equal(t, session.StateAwaitingDay, sess.State)
	assert.Equal(t, "Четная", sess.Value(keyWeekType))
	assert.Contains(t, sink.last(t).Text, "Четная")
}

func TestStart_ViaMenuButtonEditsInPlace(t *testing.T) {
	engine, _, sink := newTestEngine(registered(), &fakeSchedule{})

	err := engine.Dispatch(context.Background(), dialog.NormalizeCallback(7, "schedule", 42))

	require.NoError(t, err)
	assert.True(t, sink.last(t).EditInPlace)
}

func TestStorageError_KeepsState(t *testing.T) {
	students := registered()
	engine, store, _ := newTestEngine(students, &fakeSchedule{})

	students.err = assert.AnError
	err := engine.Dispatch(context.Background(), dialog.NormalizeText(7, "/schedule", 0))

	require.Error(t, err)
	assert.True(t, apperrors.IsCollaborator(err))
	assert.Equal(t, session.StateIdle, store.Get(7).State)
}
