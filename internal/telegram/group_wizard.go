package telegram

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
	"github.com/orangebtw/HerzenSchedulerBot/internal/store"
)

// defaultFirstOffset is the reminder ladder every fresh registration starts
// with: a single stage one day before the deadline.
const defaultFirstOffset = 24 * time.Hour

// startGroupWizard begins the faculty -> form -> stage -> course -> group ->
// subgroup selection. Registration and re-configuration share this flow.
func (r *Router) startGroupWizard(ctx context.Context, chatID int64) {
	faculties := r.cache.Groups()
	if len(faculties) == 0 {
		r.sendText(chatID, "Расписание ещё загружается. Попробуйте через минуту.")
		return
	}

	s := r.session(chatID)
	*s = session{step: stepGroupFaculty}

	names := make([]string, len(faculties))
	for i, f := range faculties {
		names[i] = f.Name
	}
	r.askChoice(chatID, "🏛️ <b>Выбери свой факультет.</b>", names)
}

func (r *Router) handleGroupWizardCallback(ctx context.Context, chatID int64, data string) {
	num, ok := unpackNum(data)
	if !ok {
		return
	}

	s := r.session(chatID)

	// The directory is replaced wholesale by the nightly refresh, so any
	// remembered index may no longer be valid. Restart rather than guess.
	faculties := r.cache.Groups()
	restart := func() {
		r.sendText(chatID, "Список групп обновился. Давай начнём выбор заново.")
		r.startGroupWizard(ctx, chatID)
	}

	switch s.step {
	case stepGroupFaculty:
		if num < 0 || num >= len(faculties) {
			restart()
			return
		}
		s.faculty = num
		s.step = stepGroupForm
		r.askChoice(chatID, "📚 <b>Выбери форму обучения.</b>", formNames(faculties[num].Forms))

	case stepGroupForm:
		if s.faculty >= len(faculties) || num < 0 || num >= len(faculties[s.faculty].Forms) {
			restart()
			return
		}
		s.form = num
		s.step = stepGroupStage
		r.askChoice(chatID, "🎓 <b>Выбери ступень образования.</b>",
			stageNames(faculties[s.faculty].Forms[num].Stages))

	case stepGroupStage:
		if s.faculty >= len(faculties) || s.form >= len(faculties[s.faculty].Forms) {
			restart()
			return
		}
		stages := faculties[s.faculty].Forms[s.form].Stages
		if num < 0 || num >= len(stages) {
			restart()
			return
		}
		s.stage = num
		s.step = stepGroupCourse
		r.askChoice(chatID, "🔢 <b>Выбери курс.</b>", courseNames(stages[num].Courses))

	case stepGroupCourse:
		courses, ok := r.wizardCourses(faculties, s)
		if !ok || num < 0 || num >= len(courses) {
			restart()
			return
		}
		s.course = num
		s.step = stepGroupGroup
		r.askChoice(chatID, "👥 <b>Выбери свою группу.</b>", groupNames(courses[num].Groups))

	case stepGroupGroup:
		courses, ok := r.wizardCourses(faculties, s)
		if !ok || s.course >= len(courses) {
			restart()
			return
		}
		groups := courses[s.course].Groups
		if num < 0 || num >= len(groups) {
			restart()
			return
		}
		s.groupID = groups[num].ID
		s.groupName = groups[num].Name
		s.step = stepGroupSubgroup
		r.askSubgroup(chatID)

	case stepGroupSubgroup:
		if num < 0 || num > 2 {
			return
		}
		r.saveGroup(ctx, chatID, s, num)
	}
}

func (r *Router) askChoice(chatID int64, prompt string, names []string) {
	text, rows := numberedChoice(names)
	r.sendWithMarkup(chatID, prompt+"\n"+text, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (r *Router) askSubgroup(chatID int64) {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("1", packNum(1)),
			tgbotapi.NewInlineKeyboardButtonData("2", packNum(2)),
		},
		{tgbotapi.NewInlineKeyboardButtonData("Нет подгрупп", packNum(0))},
		{cancelButton},
	}
	r.sendWithMarkup(chatID, "👤 <b>Укажи номер своей подгруппы.</b>",
		tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// saveGroup persists the selection. Existing users keep their reminder
// ladder; new ones get the default single-stage ladder.
func (r *Router) saveGroup(ctx context.Context, chatID int64, s *session, subgroup int) {
	user, err := r.repo.GetUserByID(ctx, chatID)
	firstTime := false
	switch {
	case errors.Is(err, store.ErrNotFound):
		firstTime = true
		first := defaultFirstOffset
		user = &domain.User{
			ID:      chatID,
			Offsets: domain.ReminderOffsets{&first},
		}
	case err != nil:
		r.log.Error("get user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Не удалось сохранить группу. Попробуйте позже.")
		return
	}

	user.Group = domain.UserGroup{ID: s.groupID, Subgroup: subgroup, Name: s.groupName}
	if err := r.repo.UpsertUser(ctx, user); err != nil {
		r.log.Error("upsert user failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Не удалось сохранить группу. Попробуйте позже.")
		return
	}

	r.resetSession(chatID)
	text := "✅ Готово! Группа <b>" + s.groupName + "</b> сохранена.\n" +
		"Теперь просто отправь мне текст заметки, и я привяжу её к паре и дедлайну."
	if firstTime {
		r.sendWithMarkup(chatID, text, mainKeyboard())
		return
	}
	r.sendText(chatID, text)
}

// wizardCourses resolves the course list for the session's remembered
// faculty/form/stage indexes, reporting false when any of them is stale.
func (r *Router) wizardCourses(faculties []domain.Faculty, s *session) ([]domain.Course, bool) {
	if s.faculty >= len(faculties) {
		return nil, false
	}
	forms := faculties[s.faculty].Forms
	if s.form >= len(forms) {
		return nil, false
	}
	stages := forms[s.form].Stages
	if s.stage >= len(stages) {
		return nil, false
	}
	return stages[s.stage].Courses, true
}

func formNames(forms []domain.Form) []string {
	names := make([]string, len(forms))
	for i, f := range forms {
		names[i] = f.Name
	}
	return names
}

func stageNames(stages []domain.Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}

func courseNames(courses []domain.Course) []string {
	names := make([]string, len(courses))
	for i, c := range courses {
		names[i] = c.Name
	}
	return names
}

func groupNames(groups []domain.Group) []string {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	return names
}
