// Package digest sends each user a daily summary of their outstanding
// deadlines at a fixed time of day.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
	"github.com/orangebtw/HerzenSchedulerBot/internal/store"
	"github.com/orangebtw/HerzenSchedulerBot/internal/sweep"
)

// Service schedules the daily digest with a cron spec (default "0 18 * * *")
// evaluated in the bot's home timezone.
type Service struct {
	users  store.UserRepo
	notes  store.NoteRepo
	sender sweep.Sender
	log    *zap.Logger

	spec string
	c    *cron.Cron
}

func New(users store.UserRepo, notes store.NoteRepo, sender sweep.Sender, spec string, loc *time.Location, log *zap.Logger) *Service {
	return &Service{
		users:  users,
		notes:  notes,
		sender: sender,
		log:    log,
		spec:   spec,
		c:      cron.New(cron.WithLocation(loc)),
	}
}

// Start registers the digest job and starts the cron runner.
func (s *Service) Start(ctx context.Context) error {
	_, err := s.c.AddFunc(s.spec, func() {
		s.run(ctx, time.Now())
	})
	if err != nil {
		return fmt.Errorf("digest cron spec %q: %w", s.spec, err)
	}
	s.c.Start()
	return nil
}

// Stop halts the cron runner; a digest already in flight is not interrupted.
func (s *Service) Stop() {
	s.c.Stop()
}

// run sends one digest pass. Users without active notes are skipped, and a
// failed delivery for one user never blocks the rest.
func (s *Service) run(ctx context.Context, now time.Time) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.log.Error("digest: list users failed", zap.Error(err))
		return
	}

	for _, u := range users {
		if ctx.Err() != nil {
			return
		}

		notes, err := s.notes.GetNotesByUserID(ctx, u.ID)
		if err != nil {
			s.log.Error("digest: fetch notes failed", zap.Error(err), zap.Int64("userID", u.ID))
			continue
		}

		text := Render(notes, now)
		if text == "" {
			continue
		}
		if err := s.sender.Send(u.ID, text); err != nil {
			s.log.Warn("digest delivery failed", zap.Error(err), zap.Int64("userID", u.ID))
		}
	}
}

// Render builds the digest text from a user's notes. Completed and past-due
// notes are omitted; an empty string means there is nothing to send.
func Render(notes []domain.Note, now time.Time) string {
	var b strings.Builder
	i := 0
	for _, n := range notes {
		if n.IsCompleted || !now.Before(n.DueDate) {
			continue
		}
		i++
		if i == 1 {
			b.WriteString("📊 Сводка дедлайнов:\n")
		}
		if n.Personal() {
			fmt.Fprintf(&b, "%d. «%s» — осталось %s\n", i, n.Text, domain.FormatRemaining(n.DueDate.Sub(now)))
		} else {
			fmt.Fprintf(&b, "%d. «%s» (%s) — осталось %s\n", i, n.Text, n.SubjectID, domain.FormatRemaining(n.DueDate.Sub(now)))
		}
	}
	if i == 0 {
		return ""
	}
	return strings.TrimRight(b.String(), "\n")
}
