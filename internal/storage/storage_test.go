package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/studsched/studsched-bot/internal/errors"
)

func newDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStudents_GetNotFound(t *testing.T) {
	db := newDB(t)

	_, err := db.GetStudent(context.Background(), 404)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStudents_UpsertAndGet(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	err := db.UpsertStudent(ctx, &Student{
		UserID:      1,
		FirstName:   "Иван",
		LastName:    "Петров",
		Direction:   "ПИ",
		GroupNumber: "201",
	})
	require.NoError(t, err)

	got, err := db.GetStudent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Иван", got.FirstName)
	assert.Equal(t, "ПИ", got.Direction)
	assert.Equal(t, "201", got.GroupNumber)
	assert.False(t, got.HasCredentials())
}

func TestStudents_ReRegistrationKeepsCredentials(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertStudent(ctx, &Student{
		UserID: 1, FirstName: "Иван", LastName: "Петров",
		Direction: "ПИ", GroupNumber: "201",
	}))
	require.NoError(t, db.SaveCredentials(ctx, 1, "ivanov", "secret"))

	// User registers again with a new group
	require.NoError(t, db.UpsertStudent(ctx, &Student{
		UserID: 1, FirstName: "Иван", LastName: "Петров",
		Direction: "ПИ", GroupNumber: "202",
	}))

	got, err := db.GetStudent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "202", got.GroupNumber)
	assert.Equal(t, "ivanov", got.PortalLogin, "credentials must survive re-registration")
}

func TestStudents_SaveCredentialsUnknownUser(t *testing.T) {
	db := newDB(t)

	err := db.SaveCredentials(context.Background(), 999, "a", "b")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStudents_ListOrdered(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	for _, s := range []Student{
		{UserID: 1, FirstName: "Борис", LastName: "Яковлев", Direction: "ПИ", GroupNumber: "202"},
		{UserID: 2, FirstName: "Анна", LastName: "Иванова", Direction: "ПИ", GroupNumber: "201"},
	} {
		require.NoError(t, db.UpsertStudent(ctx, &s))
	}

	got, err := db.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "201", got[0].GroupNumber)
	assert.Equal(t, "202", got[1].GroupNumber)
}

func TestSchedule_UpsertIsIdempotent(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	const lessons = "<b>08:00-09:30</b><br><i>Математика</i>"

	require.NoError(t, db.UpsertScheduleText(ctx, "ПИ", "201", "Четная", "Понедельник", lessons))
	require.NoError(t, db.UpsertScheduleText(ctx, "ПИ", "201", "Четная", "Понедельник", lessons))

	count, err := db.CountScheduleEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "same key must overwrite, never duplicate")

	got, err := db.GetScheduleText(ctx, "ПИ", "201", "Четная", "Понедельник")
	require.NoError(t, err)
	assert.Equal(t, lessons, got)
}

func TestSchedule_UpsertOverwrites(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertScheduleText(ctx, "ПИ", "201", "Четная", "Вторник", "old"))
	require.NoError(t, db.UpsertScheduleText(ctx, "ПИ", "201", "Четная", "Вторник", "new"))

	got, err := db.GetScheduleText(ctx, "ПИ", "201", "Четная", "Вторник")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestSchedule_GetNotFound(t *testing.T) {
	db := newDB(t)

	_, err := db.GetScheduleText(context.Background(), "ПИ", "201", "Четная", "Воскресенье")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStaff_CreateAndGet(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateStaff(ctx, "dean", "$2a$10$hash"))

	got, err := db.GetStaff(ctx, "dean")
	require.NoError(t, err)
	assert.Equal(t, "dean", got.Username)
	assert.Equal(t, "$2a$10$hash", got.PasswordHash)
}

func TestStaff_GetNotFound(t *testing.T) {
	db := newDB(t)

	_, err := db.GetStaff(context.Background(), "nobody")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStaff_DuplicateUsername(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()

	require.NoError(t, db.CreateStaff(ctx, "dean", "h1"))

	assert.Error(t, db.CreateStaff(ctx, "dean", "h2"))
}
