// Package sweep drives the reminder ladder across all active notes on a
// fixed interval and applies the resolver's decisions.
package sweep

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
	"github.com/orangebtw/HerzenSchedulerBot/internal/store"
)

// DefaultInterval is how often the sweep re-evaluates active notes.
const DefaultInterval = 30 * time.Second

// sendPause is the minimum spacing between consecutive successful
// deliveries, respecting the transport's rate limit.
const sendPause = 500 * time.Millisecond

// Sender delivers a rendered reminder to a user. Failures must be returned,
// not propagated as fatal; a failed stage is retried on the next tick.
type Sender interface {
	Send(userID int64, text string) error
}

// Sweeper is the notification sweep scheduler.
type Sweeper struct {
	notes    store.NoteRepo
	users    store.UserRepo
	sender   Sender
	log      *zap.Logger
	interval time.Duration
	limiter  *rate.Limiter
}

// New creates a Sweeper. A non-positive interval selects DefaultInterval.
func New(notes store.NoteRepo, users store.UserRepo, sender Sender, log *zap.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		notes:    notes,
		users:    users,
		sender:   sender,
		log:      log,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(sendPause), 1),
	}
}

// Run loops until ctx is cancelled. It never returns for any other reason;
// per-note failures are logged and skipped.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweep stopping")
			return
		case <-ticker.C:
			s.tick(ctx, time.Now())
		}
	}
}

// tick performs one full pass. Every note in the pass is evaluated against
// the same now instant.
func (s *Sweeper) tick(ctx context.Context, now time.Time) {
	notes, err := s.notes.ActiveNotes(ctx)
	if err != nil {
		s.log.Error("fetch active notes failed", zap.Error(err))
		return
	}

	// Per-tick user memoization: discarded at tick end so the next tick
	// observes fresh settings.
	userCache := make(map[int64]*domain.User)

	for i := range notes {
		if ctx.Err() != nil {
			return
		}
		note := &notes[i]

		user, ok := userCache[note.UserID]
		if !ok {
			user, err = s.users.GetUserByID(ctx, note.UserID)
			if err != nil {
				s.log.Error("note owner not found, skipping note",
					zap.Error(err),
					zap.String("noteID", note.ID.String()),
					zap.Int64("userID", note.UserID),
				)
				continue
			}
			userCache[note.UserID] = user
		}

		switch action := domain.Resolve(note, user, now); action.Kind {
		case domain.Complete:
			if err := s.notes.SetNoteCompleted(ctx, note.ID, true); err != nil {
				s.log.Error("mark note completed failed",
					zap.Error(err), zap.String("noteID", note.ID.String()))
			}

		case domain.Fire:
			s.fire(ctx, note, action.Stage, now)

		case domain.NoAction:
		}
	}
}

// fire delivers one ladder stage and, on success, advances the note's
// counter. Delivery failure leaves the note untouched so the stage is
// retried on the next tick.
func (s *Sweeper) fire(ctx context.Context, note *domain.Note, stage int, now time.Time) {
	// Space out deliveries. Waiting before the send keeps every pair of
	// sends in a tick at least sendPause apart; the bucket refills between
	// ticks, so the first send of a tick goes out immediately. A cancelled
	// wait ends the tick early.
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	if err := s.sender.Send(note.UserID, RenderReminder(note, now)); err != nil {
		s.log.Warn("reminder delivery failed",
			zap.Error(err),
			zap.String("noteID", note.ID.String()),
			zap.Int64("userID", note.UserID),
			zap.Int("stage", stage),
		)
		return
	}

	note.RemindedTimes++
	if err := s.notes.UpdateNote(ctx, note); err != nil {
		s.log.Error("persist reminded note failed",
			zap.Error(err), zap.String("noteID", note.ID.String()))
	}
}

// RenderReminder builds the reminder message text. Schedule-linked notes
// mention their subject; personal notes do not.
func RenderReminder(note *domain.Note, now time.Time) string {
	remaining := domain.FormatRemaining(note.DueDate.Sub(now))
	if note.Personal() {
		return fmt.Sprintf("🔔 Напоминание: «%s»\nДо дедлайна осталось %s", note.Text, remaining)
	}
	return fmt.Sprintf("🔔 Напоминание по предмету «%s»: «%s»\nДо дедлайна осталось %s", note.SubjectID, note.Text, remaining)
}
