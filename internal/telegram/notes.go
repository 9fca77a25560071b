package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
	"github.com/orangebtw/HerzenSchedulerBot/internal/schedule"
)

// A message sent during a class still counts for that class a little after
// it ends, and slightly before it starts.
const (
	classStartSlack = 3 * time.Minute
	classEndSlack   = 7 * time.Minute
)

const siteDateLayout = "02.01.2006"

// startNoteCreation is triggered by any free-form text from an idle chat.
// The text becomes the note; the current class, if any, becomes its subject.
func (r *Router) startNoteCreation(ctx context.Context, chatID int64, sentAt time.Time, text string) {
	if !r.ensureRegistered(ctx, chatID) {
		return
	}
	user, err := r.repo.GetUserByID(ctx, chatID)
	if err != nil {
		r.log.Error("get user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Внутренняя ошибка. Попробуйте позже.")
		return
	}

	day := sentAt.In(r.loc).Format(siteDateLayout)
	subjects, err := r.cache.Subjects(ctx, schedule.Key{
		GroupID:  user.Group.ID,
		Subgroup: user.Group.Subgroup,
		From:     day,
		To:       day,
	})
	if err != nil {
		r.log.Warn("timetable fetch failed", zap.Error(err), zap.String("groupID", user.Group.ID))
		r.sendText(chatID, "Не удалось получить расписание. Попробуйте позже.")
		return
	}

	s := r.session(chatID)
	*s = session{noteText: text, noteDay: day}

	if current := currentSubject(subjects, sentAt.In(r.loc)); current != "" {
		s.subjectName = current
		s.step = stepNoteConfirmSubject
		rows := [][]tgbotapi.InlineKeyboardButton{
			{
				tgbotapi.NewInlineKeyboardButtonData("Да", cbYes),
				tgbotapi.NewInlineKeyboardButtonData("Нет", cbNo),
			},
			{cancelButton},
		}
		r.sendWithMarkup(chatID,
			fmt.Sprintf("Привязать заметку к предмету <b>%s</b>?", current),
			tgbotapi.NewInlineKeyboardMarkup(rows...))
		return
	}

	// No class right now. Offer the day's last subject when there is one.
	s.step = stepNoteChooseSubject
	rows := [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("📝 Личная заметка", cbPersonal)},
	}
	prompt := "Сейчас нет пары. К чему привязать заметку?"
	if len(subjects) > 0 {
		s.subjectName = subjects[len(subjects)-1].Name
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📖 "+s.subjectName, cbRecent),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{cancelButton})
	r.sendWithMarkup(chatID, prompt, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (r *Router) handleNoteSubjectConfirm(ctx context.Context, chatID int64, data string) {
	s := r.session(chatID)
	switch data {
	case cbYes:
		r.askDueDate(chatID, s)
	case cbNo:
		// Let the user pick any subject from today's distinct list instead.
		user, err := r.repo.GetUserByID(ctx, chatID)
		if err != nil {
			r.log.Error("get user failed", zap.Error(err), zap.Int64("chatID", chatID))
			r.sendText(chatID, "Внутренняя ошибка. Попробуйте позже.")
			return
		}
		// Same day as the triggering message, so both lookups hit one
		// cache key even around midnight.
		subjects, err := r.cache.Subjects(ctx, schedule.Key{
			GroupID:  user.Group.ID,
			Subgroup: user.Group.Subgroup,
			From:     s.noteDay,
			To:       s.noteDay,
		})
		if err != nil {
			r.sendText(chatID, "Не удалось получить расписание. Попробуйте позже.")
			return
		}

		s.subjectNames = distinctNames(subjects)
		s.step = stepNoteChooseSubject

		text, rows := numberedChoice(s.subjectNames)
		personal := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📝 Личная заметка", cbPersonal),
		}
		rows = append(rows[:len(rows)-1], personal, []tgbotapi.InlineKeyboardButton{cancelButton})
		r.sendWithMarkup(chatID, "<b>Выбери предмет.</b>\n"+text,
			tgbotapi.NewInlineKeyboardMarkup(rows...))
	}
}

func (r *Router) handleNoteSubjectChoice(ctx context.Context, chatID int64, data string) {
	s := r.session(chatID)
	switch {
	case data == cbPersonal:
		s.subjectName = ""
	case data == cbRecent:
		// subjectName already holds the day's last class
	default:
		num, ok := unpackNum(data)
		if !ok || num < 0 || num >= len(s.subjectNames) {
			return
		}
		s.subjectName = s.subjectNames[num]
	}
	r.askDueDate(chatID, s)
}

func (r *Router) askDueDate(chatID int64, s *session) {
	s.step = stepNoteDueDate
	r.sendText(chatID, "📅 Когда дедлайн? Отправь дату в формате <b>ДД.ММ.ГГГГ</b>.")
}

func (r *Router) handleNoteDueDate(ctx context.Context, chatID int64, text string) {
	s := r.session(chatID)
	due, ok := r.parseDueDateInput(chatID, text)
	if !ok {
		return
	}

	note := domain.NewNote(chatID, s.subjectName, s.noteText, due)
	if err := r.repo.InsertNote(ctx, note); err != nil {
		r.log.Error("insert note failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Не удалось сохранить заметку. Попробуйте позже.")
		return
	}

	r.resetSession(chatID)
	if note.Personal() {
		r.sendText(chatID, fmt.Sprintf("✅ Личная заметка сохранена, дедлайн %s.",
			due.Format(siteDateLayout)))
		return
	}
	r.sendText(chatID, fmt.Sprintf("✅ Заметка по предмету «%s» сохранена, дедлайн %s.",
		note.SubjectID, due.Format(siteDateLayout)))
}

// parseDueDateInput validates a DD.MM.YYYY deadline and reports problems to
// the chat itself.
func (r *Router) parseDueDateInput(chatID int64, text string) (time.Time, bool) {
	due, err := domain.ParseDueDate(text, r.loc)
	if err != nil {
		r.sendText(chatID, "Неверный формат даты. Нужно <b>ДД.ММ.ГГГГ</b>, например 24.05.2026.")
		return time.Time{}, false
	}
	now := time.Now().In(r.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
	if due.Before(today) {
		r.sendText(chatID, "Дата не должна быть раньше сегодняшнего дня.")
		return time.Time{}, false
	}
	return due, true
}

// handleNotes lists the chat's notes with a numbered edit menu.
func (r *Router) handleNotes(ctx context.Context, chatID int64) {
	if !r.ensureRegistered(ctx, chatID) {
		return
	}
	notes, err := r.repo.GetNotesByUserID(ctx, chatID)
	if err != nil {
		r.log.Error("list notes failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Не удалось получить заметки. Попробуйте позже.")
		return
	}
	if len(notes) == 0 {
		r.sendText(chatID, "У тебя пока нет заметок. Просто отправь мне текст, чтобы создать первую.")
		return
	}

	s := r.session(chatID)
	*s = session{step: stepNotePick}

	text := "<b>Твои заметки. Выбери номер, чтобы изменить.</b>\n"
	names := make([]string, 0, len(notes))
	for _, n := range notes {
		line := fmt.Sprintf("«%s» — %s", n.Text, n.DueDate.In(r.loc).Format(siteDateLayout))
		if !n.Personal() {
			line += " (" + n.SubjectID + ")"
		}
		if n.IsCompleted {
			line = "<s>" + line + "</s>"
		}
		names = append(names, line)
		s.noteIDs = append(s.noteIDs, n.ID)
	}

	body, rows := numberedChoice(names)
	r.sendWithMarkup(chatID, text+body, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (r *Router) handleNotePick(ctx context.Context, chatID int64, data string) {
	s := r.session(chatID)
	num, ok := unpackNum(data)
	if !ok || num < 0 || num >= len(s.noteIDs) {
		return
	}
	s.noteID = s.noteIDs[num]
	s.step = stepNoteMenu

	text := "<b>Что сделать с заметкой?</b>\n" +
		"1. ✏️  Изменить текст\n" +
		"2. 📅  Изменить дедлайн\n" +
		"3. ✅  Выполнена / не выполнена\n" +
		"4. 🗑  Удалить\n"
	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("1", packNum(0)),
			tgbotapi.NewInlineKeyboardButtonData("2", packNum(1)),
			tgbotapi.NewInlineKeyboardButtonData("3", packNum(2)),
			tgbotapi.NewInlineKeyboardButtonData("4", packNum(3)),
		},
		{cancelButton},
	}
	r.sendWithMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (r *Router) handleNoteMenuChoice(ctx context.Context, chatID int64, data string) {
	s := r.session(chatID)
	num, ok := unpackNum(data)
	if !ok {
		return
	}

	switch num {
	case 0:
		s.step = stepNoteEditText
		r.sendText(chatID, "✏️ Отправь новый текст заметки.")
	case 1:
		s.step = stepNoteEditDue
		r.sendText(chatID, "📅 Отправь новый дедлайн в формате <b>ДД.ММ.ГГГГ</b>.")
	case 2:
		note, err := r.repo.GetNoteByID(ctx, s.noteID)
		if err != nil {
			r.noteEditFailed(chatID, err)
			return
		}
		if err := r.repo.SetNoteCompleted(ctx, s.noteID, !note.IsCompleted); err != nil {
			r.noteEditFailed(chatID, err)
			return
		}
		r.resetSession(chatID)
		r.sendText(chatID, "✅ Статус заметки изменён.")
	case 3:
		if err := r.repo.DeleteNoteByID(ctx, s.noteID); err != nil {
			r.noteEditFailed(chatID, err)
			return
		}
		r.resetSession(chatID)
		r.sendText(chatID, "✅ Заметка удалена.")
	}
}

func (r *Router) handleNoteNewText(ctx context.Context, chatID int64, text string) {
	s := r.session(chatID)
	note, err := r.repo.GetNoteByID(ctx, s.noteID)
	if err != nil {
		r.noteEditFailed(chatID, err)
		return
	}
	note.Text = text
	if err := r.repo.UpdateNote(ctx, note); err != nil {
		r.noteEditFailed(chatID, err)
		return
	}
	r.resetSession(chatID)
	r.sendText(chatID, "✅ Текст заметки изменён.")
}

func (r *Router) handleNoteNewDueDate(ctx context.Context, chatID int64, text string) {
	s := r.session(chatID)
	due, ok := r.parseDueDateInput(chatID, text)
	if !ok {
		return
	}
	note, err := r.repo.GetNoteByID(ctx, s.noteID)
	if err != nil {
		r.noteEditFailed(chatID, err)
		return
	}
	note.DueDate = due
	note.RemindedTimes = 0
	if err := r.repo.UpdateNote(ctx, note); err != nil {
		r.noteEditFailed(chatID, err)
		return
	}
	r.resetSession(chatID)
	r.sendText(chatID, "✅ Дедлайн заметки обновлён.")
}

func (r *Router) noteEditFailed(chatID int64, err error) {
	r.log.Error("note edit failed", zap.Error(err), zap.Int64("chatID", chatID))
	r.sendText(chatID, "Не удалось изменить заметку. Попробуйте позже.")
}

// currentSubject returns the class in progress at the given moment, with a
// little slack around its boundaries, or "" when there is none.
func currentSubject(subjects []domain.Subject, at time.Time) string {
	for _, sub := range subjects {
		if !at.Before(sub.TimeStart.Add(-classStartSlack)) && !at.After(sub.TimeEnd.Add(classEndSlack)) {
			return sub.Name
		}
	}
	return ""
}

func distinctNames(subjects []domain.Subject) []string {
	seen := make(map[string]struct{}, len(subjects))
	var names []string
	for _, s := range subjects {
		if _, ok := seen[s.Name]; ok {
			continue
		}
		seen[s.Name] = struct{}{}
		names = append(names, s.Name)
	}
	return names
}
