package telegram

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
)

const maxFirstOffsetHours = 168 // one week

// startRemindersConfig asks how many reminder stages the user wants.
func (r *Router) startRemindersConfig(chatID int64) {
	s := r.session(chatID)
	*s = session{step: stepRemindCount}

	var row []tgbotapi.InlineKeyboardButton
	for i := 1; i <= domain.MaxReminderStages; i++ {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(i), packNum(i)))
	}
	rows := [][]tgbotapi.InlineKeyboardButton{row, {cancelButton}}
	r.sendWithMarkup(chatID,
		fmt.Sprintf("🔔 <b>Сколько раз напоминать о каждом дедлайне?</b> От 1 до %d.",
			domain.MaxReminderStages),
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (r *Router) handleRemindCount(ctx context.Context, chatID int64, data string) {
	num, ok := unpackNum(data)
	if !ok || num < 1 || num > domain.MaxReminderStages {
		return
	}
	s := r.session(chatID)
	s.remindTotal = num
	s.remindValues = nil
	s.step = stepRemindValue
	r.askRemindValue(chatID, s)
}

// askRemindValue prompts for the next stage's offset. Stages go
// largest-first, so each one is bounded above by the previous value. The
// last stage of a multi-stage ladder is asked in minutes to allow
// short-notice reminders.
func (r *Router) askRemindValue(chatID int64, s *session) {
	current := len(s.remindValues) + 1
	lo := s.remindTotal - current + 1
	hi := maxFirstOffsetHours
	if current > 1 {
		hi = s.remindValues[current-2] - 1
	}
	unit := "часов"
	if s.remindTotal > 1 && current == s.remindTotal {
		hi *= 60
		unit = "минут"
	}
	s.remindRangeLo, s.remindRangeHi = lo, hi

	r.sendText(chatID, fmt.Sprintf(
		"⏰ Укажи количество <b>%s</b> до дедлайна, за которое напомнить в %d-й раз "+
			"(от %d до %d).", unit, current, lo, hi))
}

func (r *Router) handleRemindValue(ctx context.Context, chatID int64, text string) {
	s := r.session(chatID)

	v, err := strconv.Atoi(text)
	if err != nil || v < s.remindRangeLo || v > s.remindRangeHi {
		r.sendText(chatID, fmt.Sprintf(
			"Значение должно быть целым числом от %d до %d. Попробуй ещё раз.",
			s.remindRangeLo, s.remindRangeHi))
		return
	}

	s.remindValues = append(s.remindValues, v)
	if len(s.remindValues) < s.remindTotal {
		r.askRemindValue(chatID, s)
		return
	}
	r.saveReminders(ctx, chatID, s)
}

func (r *Router) saveReminders(ctx context.Context, chatID int64, s *session) {
	user, err := r.repo.GetUserByID(ctx, chatID)
	if err != nil {
		r.log.Error("get user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Не удалось сохранить настройки. Попробуйте позже.")
		return
	}

	var offsets domain.ReminderOffsets
	for i, v := range s.remindValues {
		d := time.Duration(v) * time.Hour
		if s.remindTotal > 1 && i == s.remindTotal-1 {
			d = time.Duration(v) * time.Minute
		}
		offsets[i] = &d
	}
	user.Offsets = offsets

	if err := r.repo.UpsertUser(ctx, user); err != nil {
		r.log.Error("upsert user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Не удалось сохранить настройки. Попробуйте позже.")
		return
	}

	r.resetSession(chatID)
	r.sendText(chatID, "✅ Готово! Буду напоминать: "+domain.OffsetsText(offsets))
}
