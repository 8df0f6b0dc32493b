package registerflow

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studsched/studsched-bot/internal/dialog"
	apperrors "github.com/studsched/studsched-bot/internal/errors"
	"github.com/studsched/studsched-bot/internal/logger"
	"github.com/studsched/studsched-bot/internal/session"
	"github.com/studsched/studsched-bot/internal/storage"
)

type fakeStudents struct {
	upserted *storage.Student
	err      error
}

func (f *fakeStudents) GetStudent(ctx context.Context, userID int64) (*storage.Student, error) {
	return nil, apperrors.ErrNotFound
}

func (f *fakeStudents) UpsertStudent(ctx context.Context, s *storage.Student) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = s
	return nil
}

func (f *fakeStudents) SaveCredentials(ctx context.Context, userID int64, login, password string) error {
	return nil
}

func (f *fakeStudents) ListStudents(ctx context.Context) ([]storage.Student, error) {
	return nil, nil
}

func newFlow(students *fakeStudents) *Flow {
	return New(students, logger.NewWithWriter("error", io.Discard))
}

func idleSession(userID int64) session.Session {
	return session.Session{UserID: userID, State: session.StateIdle, Context: map[string]string{}}
}

func TestCatchAll_RegistersStudent(t *testing.T) {
	students := &fakeStudents{}
	f := newFlow(students)

	reply, err := f.catchAll(context.Background(), idleSession(7),
		dialog.NormalizeText(7, "Иван Петров ПИ-201", 0))

	require.NoError(t, err)
	require.NotNil(t, students.upserted)
	assert.Equal(t, int64(7), students.upserted.UserID)
	assert.Equal(t, "Иван", students.upserted.FirstName)
	assert.Equal(t, "Петров", students.upserted.LastName)
	assert.Equal(t, "ПИ", students.upserted.Direction)
	assert.Equal(t, "201", students.upserted.GroupNumber)

	require.Len(t, reply.Messages, 1)
	assert.Contains(t, reply.Messages[0].Text, "ПИ-201")
	assert.NotEmpty(t, reply.Messages[0].Choices, "success reply carries the menu")
}

func TestCatchAll_WrongTokenCountRendersHelp(t *testing.T) {
	students := &fakeStudents{}
	f := newFlow(students)

	reply, err := f.catchAll(context.Background(), idleSession(7),
		dialog.NormalizeText(7, "привет", 0))

	require.NoError(t, err)
	assert.Nil(t, students.upserted)
	assert.Equal(t, formatHelpText, reply.Messages[0].Text)
}

func TestCatchAll_NonIdleStateHints(t *testing.T) {
	students := &fakeStudents{}
	f := newFlow(students)
	sess := session.Session{UserID: 7, State: session.StateAwaitingDay, Context: map[string]string{}}

	reply, err := f.catchAll(context.Background(), sess,
		dialog.NormalizeText(7, "Иван Петров ПИ-201", 0))

	require.NoError(t, err)
	assert.Nil(t, students.upserted, "mid-flow text must not register")
	assert.Equal(t, useButtonsText, reply.Messages[0].Text)
}

func TestCatchAll_StorageErrorSurfaces(t *testing.T) {
	students := &fakeStudents{err: assert.AnError}
	f := newFlow(students)

	_, err := f.catchAll(context.Background(), idleSession(7),
		dialog.NormalizeText(7, "Иван Петров ПИ-201", 0))

	require.Error(t, err)
	assert.True(t, apperrors.IsCollaborator(err))
}

func TestParseRegistration_InvalidTextIsValidationError(t *testing.T) {
	_, err := ParseRegistration(7, "привет")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	var verr *apperrors.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParseGroupToken(t *testing.T) {
	tests := []struct {
		token         string
		wantDirection string
		wantGroup     string
	}{
		{"ПИ-201", "ПИ", "201"},
		{"пи201", "ПИ", "201"},
		{"PRI-201", "PRI", "201"},
		{"ЭК-11а", "ЭК", "11"},
		{"201", DirectionOther, "201"},
		{"группа", DirectionOther, "группа"},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			direction, group := ParseGroupToken(tt.token)
			assert.Equal(t, tt.wantDirection, direction)
			assert.Equal(t, tt.wantGroup, group)
		})
	}
}
