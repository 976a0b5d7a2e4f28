package telegram

import (
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
)

const (
	CallbackConfirmPrefix = "confirm_"
	CallbackScorePrefix   = "nps_"

	callbackConfirmYes = CallbackConfirmPrefix + "sim"
	callbackConfirmNo  = CallbackConfirmPrefix + "nao"
)

// InlineButton creates a single inline keyboard button.
func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// InlineKeyboard creates an inline keyboard from rows of buttons.
func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// ButtonRow creates a row of buttons.
func ButtonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

// ConfirmKeyboard asks whether the customer wants to answer the survey.
func ConfirmKeyboard() *models.InlineKeyboardMarkup {
	return InlineKeyboard(ButtonRow(
		InlineButton("✅ Sim", callbackConfirmYes),
		InlineButton("❌ Não", callbackConfirmNo),
	))
}

// ScoreKeyboard lays out the 0..10 scale in two rows.
func ScoreKeyboard() *models.InlineKeyboardMarkup {
	first := make([]models.InlineKeyboardButton, 0, 6)
	second := make([]models.InlineKeyboardButton, 0, 5)
	for score := 0; score <= 10; score++ {
		s := strconv.Itoa(score)
		btn := InlineButton(s, CallbackScorePrefix+s)
		if score <= 5 {
			first = append(first, btn)
		} else {
			second = append(second, btn)
		}
	}
	return InlineKeyboard(first, second)
}

// CallbackText maps keyboard callback data to the text the customer would
// have typed. Unknown data yields false.
func CallbackText(data string) (string, bool) {
	switch {
	case data == callbackConfirmYes:
		return "sim", true
	case data == callbackConfirmNo:
		return "não", true
	case strings.HasPrefix(data, CallbackScorePrefix):
		score, err := strconv.Atoi(strings.TrimPrefix(data, CallbackScorePrefix))
		if err != nil || score < 0 || score > 10 {
			return "", false
		}
		return strconv.Itoa(score), true
	default:
		return "", false
	}
}
