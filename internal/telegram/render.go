// Package telegram adapts the dialogue engine to the Telegram Bot API:
// rendering abstract messages into API payloads, delivering them and
// receiving webhook updates.
package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/studsched/studsched-bot/internal/dialog"
)

// lineBreaks translates the stored inline <br> markers into real newlines.
// Stored schedule text keeps the markers; only delivery flattens them.
var lineBreaks = strings.NewReplacer("<br/>", "\n", "<br />", "\n", "<br>", "\n")

// FormatForDelivery converts stored rich text into deliverable text.
func FormatForDelivery(text string) string {
	return lineBreaks.Replace(text)
}

// BuildSend renders an abstract message as a new Telegram message.
// Choice tokens are passed through byte-for-byte as callback data.
func BuildSend(chatID int64, m dialog.Message) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, FormatForDelivery(m.Text))
	if m.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	if kb := buildKeyboard(m.Choices, m.Columns); kb != nil {
		msg.ReplyMarkup = *kb
	}
	return msg
}

// BuildEdit renders an abstract message as an in-place edit of messageID.
func BuildEdit(chatID int64, messageID int, m dialog.Message) tgbotapi.EditMessageTextConfig {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, FormatForDelivery(m.Text))
	if m.HTML {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	if kb := buildKeyboard(m.Choices, m.Columns); kb != nil {
		edit.ReplyMarkup = kb
	}
	return edit
}

// buildKeyboard lays the choices out as an inline keyboard.
// columns <= 0 means one button per row.
func buildKeyboard(choices []dialog.Choice, columns int) *tgbotapi.InlineKeyboardMarkup {
	if len(choices) == 0 {
		return nil
	}
	if columns <= 0 {
		columns = 1
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, ch := range choices {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(ch.Label, ch.Token))
		if len(row) == columns {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}
