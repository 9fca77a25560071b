package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orangebtw/HerzenSchedulerBot/internal/schedule"
	"github.com/orangebtw/HerzenSchedulerBot/internal/store"
)

// step identifies where a chat currently is inside a conversational flow.
type step int

const (
	stepNone step = iota

	// group wizard (registration and re-configuration share it)
	stepGroupFaculty
	stepGroupForm
	stepGroupStage
	stepGroupCourse
	stepGroupGroup
	stepGroupSubgroup

	// settings menu
	stepSettings

	// reminder ladder configuration
	stepRemindCount
	stepRemindValue

	// note creation
	stepNoteConfirmSubject
	stepNoteChooseSubject
	stepNoteDueDate

	// note editing
	stepNotePick
	stepNoteMenu
	stepNoteEditText
	stepNoteEditDue
)

// session is the in-memory conversational state for one chat. It lives only
// for the duration of a flow and is dropped on completion or cancel.
type session struct {
	step step

	// group wizard selections (indexes into the cached directory)
	faculty, form, stage, course int
	groupID, groupName           string

	// reminder ladder flow
	remindTotal   int
	remindValues  []int
	remindRangeLo int
	remindRangeHi int

	// note creation flow
	noteText     string
	noteDay      string // timetable day of the triggering message, site form
	subjectName  string
	subjectNames []string

	// note editing flow
	noteIDs []uuid.UUID
	noteID  uuid.UUID
}

// botAPI is the slice of *tgbotapi.BotAPI the router talks to. Handler
// tests substitute a recording fake.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Router wires Telegram updates to handlers and holds per-chat flow state.
type Router struct {
	bot   botAPI
	log   *zap.Logger
	repo  store.Repo
	cache *schedule.Cache
	loc   *time.Location

	mu       sync.Mutex
	sessions map[int64]*session
}

// NewRouter creates a Telegram router on top of the persistence and
// timetable layers.
func NewRouter(bot botAPI, log *zap.Logger, repo store.Repo, cache *schedule.Cache, loc *time.Location) *Router {
	return &Router{
		bot:      bot,
		log:      log,
		repo:     repo,
		cache:    cache,
		loc:      loc,
		sessions: make(map[int64]*session),
	}
}

// session returns the chat's session, creating an empty one on first use.
func (r *Router) session(chatID int64) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[chatID]
	if !ok {
		s = &session{}
		r.sessions[chatID] = s
	}
	return s
}

// resetSession drops the chat's flow state.
func (r *Router) resetSession(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, chatID)
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)

		switch {
		case strings.HasPrefix(text, "/start"):
			r.handleStart(ctx, chatID)
		case strings.HasPrefix(text, "/notes"):
			r.handleNotes(ctx, chatID)
		case text == configureGroupButton:
			r.startGroupWizard(ctx, chatID)
		case text == settingsButton:
			r.handleSettings(ctx, chatID)
		default:
			r.handleText(ctx, chatID, msg.Time(), text)
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			return
		}
		chatID := cb.Message.Chat.ID
		r.answerCallback(cb.ID)

		if cb.Data == cbCancel {
			r.handleCancel(chatID)
			return
		}
		r.handleCallback(ctx, chatID, cb.Data)
	}
}

// handleText dispatches free-form text: either input for the pending flow
// step, or the start of note creation when the chat is idle.
func (r *Router) handleText(ctx context.Context, chatID int64, sentAt time.Time, text string) {
	if text == "" {
		return
	}
	switch r.session(chatID).step {
	case stepRemindValue:
		r.handleRemindValue(ctx, chatID, text)
	case stepNoteDueDate:
		r.handleNoteDueDate(ctx, chatID, text)
	case stepNoteEditText:
		r.handleNoteNewText(ctx, chatID, text)
	case stepNoteEditDue:
		r.handleNoteNewDueDate(ctx, chatID, text)
	default:
		r.startNoteCreation(ctx, chatID, sentAt, text)
	}
}

// handleCallback dispatches inline button presses by the pending step.
func (r *Router) handleCallback(ctx context.Context, chatID int64, data string) {
	s := r.session(chatID)
	switch s.step {
	case stepGroupFaculty, stepGroupForm, stepGroupStage, stepGroupCourse, stepGroupGroup, stepGroupSubgroup:
		r.handleGroupWizardCallback(ctx, chatID, data)
	case stepSettings:
		r.handleSettingsChoice(ctx, chatID, data)
	case stepRemindCount:
		r.handleRemindCount(ctx, chatID, data)
	case stepNoteConfirmSubject:
		r.handleNoteSubjectConfirm(ctx, chatID, data)
	case stepNoteChooseSubject:
		r.handleNoteSubjectChoice(ctx, chatID, data)
	case stepNotePick:
		r.handleNotePick(ctx, chatID, data)
	case stepNoteMenu:
		r.handleNoteMenuChoice(ctx, chatID, data)
	default:
		// Stale button from a finished flow; ignore silently.
	}
}

func (r *Router) handleCancel(chatID int64) {
	r.resetSession(chatID)
	r.sendText(chatID, "Отменено.")
}

// --- messaging helpers ---

func (r *Router) sendText(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

func (r *Router) sendWithMarkup(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn("send failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}

func (r *Router) answerCallback(id string) {
	if _, err := r.bot.Request(tgbotapi.NewCallback(id, "")); err != nil {
		r.log.Debug("answer callback failed", zap.Error(err))
	}
}

// Send delivers a plain text message to the given chat. This makes Router
// satisfy sweep.Sender, so reminders and digests go through the same bot.
func (r *Router) Send(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := r.bot.Send(msg)
	return err
}

// ensureRegistered checks registration and nudges unregistered chats
// towards /start.
func (r *Router) ensureRegistered(ctx context.Context, chatID int64) bool {
	exists, err := r.repo.UserExists(ctx, chatID)
	if err != nil {
		r.log.Error("user lookup failed", zap.Error(err), zap.Int64("chatID", chatID))
		r.sendText(chatID, "Внутренняя ошибка. Попробуйте позже.")
		return false
	}
	if !exists {
		r.sendText(chatID, "Я тебя не знаю. Пожалуйста, напиши /start и пройди регистрацию.")
		return false
	}
	return true
}
