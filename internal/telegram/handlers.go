package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
)

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	r.resetSession(chatID)

	exists, err := r.repo.UserExists(ctx, chatID)
	if err != nil {
		r.log.Error("user lookup failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
	if exists {
		r.sendWithMarkup(chatID, startText, mainKeyboard())
		return
	}
	r.sendWithMarkup(chatID, startText, startKeyboard())
}

// handleSettings shows the numbered settings menu.
func (r *Router) handleSettings(ctx context.Context, chatID int64) {
	if !r.ensureRegistered(ctx, chatID) {
		return
	}
	user, err := r.repo.GetUserByID(ctx, chatID)
	if err != nil {
		r.log.Error("get user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Не удалось открыть настройки. Попробуйте позже.")
		return
	}

	text := "<b>Введите номер пункта, который хотите изменить.</b>\n" +
		fmt.Sprintf("1. 🎓  Группа: %s\n", user.Group.Name) +
		fmt.Sprintf("2. 🔔  Напоминания о дедлайнах: %s\n", domain.OffsetsText(user.Offsets))

	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("1", packNum(0)),
			tgbotapi.NewInlineKeyboardButtonData("2", packNum(1)),
		},
		{cancelButton},
	}

	s := r.session(chatID)
	s.step = stepSettings
	r.sendWithMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (r *Router) handleSettingsChoice(ctx context.Context, chatID int64, data string) {
	num, ok := unpackNum(data)
	if !ok {
		return
	}
	switch num {
	case 0:
		r.startGroupWizard(ctx, chatID)
	case 1:
		r.startRemindersConfig(chatID)
	}
}
