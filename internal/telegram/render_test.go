package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studsched/studsched-bot/internal/dialog"
)

func TestFormatForDelivery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Пары нет.", "Пары нет."},
		{"br marker", "<b>08:00</b><br>Математика", "<b>08:00</b>\nМатематика"},
		{"self closing", "a<br/>b<br />c", "a\nb\nc"},
		{"keeps other tags", "<b>жирный</b> и <i>курсив</i>", "<b>жирный</b> и <i>курсив</i>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatForDelivery(tt.in))
		})
	}
}

func TestBuildSend_PreservesChoiceTokens(t *testing.T) {
	msg := BuildSend(42, dialog.Message{
		Text: "Выбери неделю",
		Choices: []dialog.Choice{
			{Label: "Четная", Token: "week:Четная"},
			{Label: "Нечетная", Token: "week:Нечетная"},
		},
	})

	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 2)
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "week:Четная", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "week:Нечетная", *kb.InlineKeyboard[1][0].CallbackData)
}

func TestBuildSend_ColumnsLayout(t *testing.T) {
	choices := []dialog.Choice{
		{Label: "Пн", Token: "day:Понедельник"},
		{Label: "Вт", Token: "day:Вторник"},
		{Label: "Ср", Token: "day:Среда"},
	}

	msg := BuildSend(1, dialog.Message{Text: "x", Choices: choices, Columns: 2})

	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Len(t, kb.InlineKeyboard[0], 2)
	assert.Len(t, kb.InlineKeyboard[1], 1)
}

func TestBuildSend_HTMLMode(t *testing.T) {
	msg := BuildSend(1, dialog.Message{Text: "<b>пары</b>", HTML: true})

	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
}

func TestBuildSend_NoKeyboardWithoutChoices(t *testing.T) {
	msg := BuildSend(1, dialog.Message{Text: "привет"})

	assert.Nil(t, msg.ReplyMarkup)
}

func TestBuildEdit(t *testing.T) {
	edit := BuildEdit(42, 7, dialog.Message{
		Text:    "День?",
		Choices: []dialog.Choice{{Label: "Назад", Token: "back:week"}},
		HTML:    true,
	})

	assert.Equal(t, int64(42), edit.ChatID)
	assert.Equal(t, 7, edit.MessageID)
	assert.Equal(t, tgbotapi.ModeHTML, edit.ParseMode)
	require.NotNil(t, edit.ReplyMarkup)
	assert.Equal(t, "back:week", *edit.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}
