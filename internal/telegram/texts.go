package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const botName = "Herzen Scheduler"

// Reply keyboard buttons.
const (
	configureGroupButton = "Настроить группу"
	settingsButton       = "⚙️ Настройки"
)

// Callback payloads. Numbered choices are packed as "num:<i>".
const (
	cbCancel   = "cancel"
	cbYes      = "yes"
	cbNo       = "no"
	cbPersonal = "personal"
	cbRecent   = "recent"
	numPrefix  = "num:"
)

var startText = fmt.Sprintf(
	"Привет! Я <b>%s</b> — помогу организовать учебный процесс. "+
		"Я буду запоминать твои заметки и дедлайны, привязывая их к расписанию.", botName)

var cancelButton = tgbotapi.NewInlineKeyboardButtonData("Отмена", cbCancel)

func startKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(configureGroupButton)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(settingsButton)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func packNum(i int) string { return numPrefix + strconv.Itoa(i) }

// unpackNum parses a "num:<i>" payload; ok is false for anything else.
func unpackNum(data string) (int, bool) {
	if len(data) <= len(numPrefix) || data[:len(numPrefix)] != numPrefix {
		return 0, false
	}
	i, err := strconv.Atoi(data[len(numPrefix):])
	if err != nil {
		return 0, false
	}
	return i, true
}

// numberedChoice renders an enumerated list plus one numbered button per
// item, the way every selection screen in the bot looks.
func numberedChoice(names []string) (string, [][]tgbotapi.InlineKeyboardButton) {
	text := ""
	var row []tgbotapi.InlineKeyboardButton
	var rows [][]tgbotapi.InlineKeyboardButton

	for i, name := range names {
		text += fmt.Sprintf("%d. <b>%s</b>\n", i+1, name)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(i+1), packNum(i)))
		if len(row) == 5 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{cancelButton})
	return text, rows
}
