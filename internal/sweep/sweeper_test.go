package sweep

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
)

type fakeNotes struct {
	notes    map[uuid.UUID]*domain.Note
	listErr  error
	storeErr error
}

func newFakeNotes(notes ...*domain.Note) *fakeNotes {
	m := make(map[uuid.UUID]*domain.Note)
	for _, n := range notes {
		m[n.ID] = n
	}
	return &fakeNotes{notes: m}
}

func (f *fakeNotes) ActiveNotes(context.Context) ([]domain.Note, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var res []domain.Note
	for _, n := range f.notes {
		if !n.IsCompleted {
			res = append(res, *n)
		}
	}
	return res, nil
}

func (f *fakeNotes) GetNoteByID(_ context.Context, id uuid.UUID) (*domain.Note, error) {
	n, ok := f.notes[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return n, nil
}

func (f *fakeNotes) GetNotesByUserID(_ context.Context, userID int64) ([]domain.Note, error) {
	var res []domain.Note
	for _, n := range f.notes {
		if n.UserID == userID {
			res = append(res, *n)
		}
	}
	return res, nil
}

func (f *fakeNotes) InsertNote(_ context.Context, n *domain.Note) error {
	f.notes[n.ID] = n
	return nil
}

func (f *fakeNotes) UpdateNote(_ context.Context, n *domain.Note) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	cp := *n
	f.notes[n.ID] = &cp
	return nil
}

func (f *fakeNotes) SetNoteCompleted(_ context.Context, id uuid.UUID, completed bool) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	n, ok := f.notes[id]
	if !ok {
		return errors.New("not found")
	}
	n.IsCompleted = completed
	return nil
}

func (f *fakeNotes) DeleteNoteByID(_ context.Context, id uuid.UUID) error {
	delete(f.notes, id)
	return nil
}

func (f *fakeNotes) DeleteNotesByUserID(_ context.Context, userID int64) error {
	for id, n := range f.notes {
		if n.UserID == userID {
			delete(f.notes, id)
		}
	}
	return nil
}

type fakeUsers struct {
	users map[int64]*domain.User
	gets  int
}

func (f *fakeUsers) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	f.gets++
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func (f *fakeUsers) UserExists(_ context.Context, id int64) (bool, error) {
	_, ok := f.users[id]
	return ok, nil
}

func (f *fakeUsers) ListUsers(context.Context) ([]domain.User, error) {
	var res []domain.User
	for _, u := range f.users {
		res = append(res, *u)
	}
	return res, nil
}

func (f *fakeUsers) UpsertUser(_ context.Context, u *domain.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsers) DeleteUserByID(_ context.Context, id int64) error {
	delete(f.users, id)
	return nil
}

type fakeSender struct {
	sent  []string
	times []time.Time
	err   error
}

func (f *fakeSender) Send(_ int64, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	f.times = append(f.times, time.Now())
	return nil
}

func dur(d time.Duration) *time.Duration { return &d }

func newSweeper(notes *fakeNotes, users *fakeUsers, sender *fakeSender) *Sweeper {
	return New(notes, users, sender, zap.NewNop(), time.Second)
}

func TestTick_LadderWalk(t *testing.T) {
	due := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	user := &domain.User{ID: 1, Offsets: domain.ReminderOffsets{dur(2 * time.Hour), dur(30 * time.Minute), nil}}
	note := domain.NewNote(1, "Математический анализ", "сдать лабу", due)

	notes := newFakeNotes(note)
	users := &fakeUsers{users: map[int64]*domain.User{1: user}}
	sender := &fakeSender{}
	s := newSweeper(notes, users, sender)
	ctx := context.Background()

	at := func(hh, mm, ss int) time.Time {
		return time.Date(2025, time.January, 1, hh, mm, ss, 0, time.UTC)
	}

	// Before the first threshold: nothing happens.
	s.tick(ctx, at(9, 59, 59))
	if len(sender.sent) != 0 || notes.notes[note.ID].RemindedTimes != 0 {
		t.Fatalf("fired too early: sent=%d reminded=%d", len(sender.sent), notes.notes[note.ID].RemindedTimes)
	}

	// Exactly at the threshold: stage 0 fires.
	s.tick(ctx, at(10, 0, 0))
	if len(sender.sent) != 1 {
		t.Fatalf("stage 0 not fired at the boundary: %d sends", len(sender.sent))
	}
	if got := notes.notes[note.ID].RemindedTimes; got != 1 {
		t.Fatalf("reminded times after stage 0: want 1, got %d", got)
	}

	// Between thresholds: nothing.
	s.tick(ctx, at(11, 29, 0))
	if len(sender.sent) != 1 {
		t.Fatalf("fired between thresholds")
	}

	// Second threshold: stage 1.
	s.tick(ctx, at(11, 30, 0))
	if len(sender.sent) != 2 {
		t.Fatalf("stage 1 not fired")
	}
	if got := notes.notes[note.ID].RemindedTimes; got != 2 {
		t.Fatalf("reminded times after stage 1: want 2, got %d", got)
	}

	// Ladder exhausted before the due instant: complete, no extra send.
	s.tick(ctx, at(11, 45, 0))
	if len(sender.sent) != 2 {
		t.Fatalf("sent after ladder exhausted")
	}
	if !notes.notes[note.ID].IsCompleted {
		t.Fatal("exhausted note not completed")
	}

	// Completed notes are excluded from later sweeps.
	s.tick(ctx, at(11, 50, 0))
	if len(sender.sent) != 2 {
		t.Fatalf("completed note processed again")
	}
}

func TestTick_PastDuePersonalNoteCompletesSilently(t *testing.T) {
	due := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	user := &domain.User{ID: 1, Offsets: domain.ReminderOffsets{dur(2 * time.Hour)}}
	note := domain.NewNote(1, "", "личная заметка", due)

	notes := newFakeNotes(note)
	sender := &fakeSender{}
	s := newSweeper(notes, &fakeUsers{users: map[int64]*domain.User{1: user}}, sender)

	s.tick(context.Background(), due.Add(time.Hour))
	if len(sender.sent) != 0 {
		t.Fatalf("past-due note must not be delivered: %v", sender.sent)
	}
	if !notes.notes[note.ID].IsCompleted {
		t.Fatal("past-due note not completed")
	}
}

func TestTick_DeliveryFailureRetriedNextTick(t *testing.T) {
	due := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	user := &domain.User{ID: 1, Offsets: domain.ReminderOffsets{dur(2 * time.Hour)}}
	note := domain.NewNote(1, "", "сдать отчёт", due)

	notes := newFakeNotes(note)
	sender := &fakeSender{err: errors.New("chat unreachable")}
	s := newSweeper(notes, &fakeUsers{users: map[int64]*domain.User{1: user}}, sender)
	ctx := context.Background()

	now := due.Add(-time.Hour)
	s.tick(ctx, now)
	if got := notes.notes[note.ID].RemindedTimes; got != 0 {
		t.Fatalf("failed delivery advanced the counter: %d", got)
	}

	// Transport recovers; the same stage fires on the next tick.
	sender.err = nil
	s.tick(ctx, now.Add(30*time.Second))
	if len(sender.sent) != 1 {
		t.Fatalf("stage not retried after failure")
	}
	if got := notes.notes[note.ID].RemindedTimes; got != 1 {
		t.Fatalf("counter after retry: want 1, got %d", got)
	}
}

func TestTick_MissingUserSkipsNote(t *testing.T) {
	due := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	orphan := domain.NewNote(42, "", "без хозяина", due)
	owned := domain.NewNote(1, "", "с хозяином", due)
	user := &domain.User{ID: 1, Offsets: domain.ReminderOffsets{dur(2 * time.Hour)}}

	notes := newFakeNotes(orphan, owned)
	sender := &fakeSender{}
	s := newSweeper(notes, &fakeUsers{users: map[int64]*domain.User{1: user}}, sender)

	s.tick(context.Background(), due.Add(-time.Hour))

	if notes.notes[orphan.ID].RemindedTimes != 0 || notes.notes[orphan.ID].IsCompleted {
		t.Fatal("orphan note was touched")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("owned note not processed despite the orphan: %d sends", len(sender.sent))
	}
}

func TestTick_StoreFailuresDoNotAbortSweep(t *testing.T) {
	due := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	user := &domain.User{ID: 1, Offsets: domain.ReminderOffsets{dur(2 * time.Hour)}}
	a := domain.NewNote(1, "", "первая", due)
	b := domain.NewNote(1, "", "вторая", due)

	notes := newFakeNotes(a, b)
	notes.storeErr = errors.New("disk full")
	sender := &fakeSender{}
	s := newSweeper(notes, &fakeUsers{users: map[int64]*domain.User{1: user}}, sender)

	// Both notes are attempted even though every persist fails.
	s.tick(context.Background(), due.Add(-time.Hour))
	if len(sender.sent) != 2 {
		t.Fatalf("sweep aborted on store failure: %d sends", len(sender.sent))
	}
}

func TestTick_ListFailureIsNotFatal(t *testing.T) {
	notes := newFakeNotes()
	notes.listErr = errors.New("db locked")
	s := newSweeper(notes, &fakeUsers{users: map[int64]*domain.User{}}, &fakeSender{})

	// Must not panic; the tick is simply skipped.
	s.tick(context.Background(), time.Now())
}

func TestTick_UserFetchedOncePerTick(t *testing.T) {
	due := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	user := &domain.User{ID: 1, Offsets: domain.ReminderOffsets{dur(2 * time.Hour)}}

	var all []*domain.Note
	for i := 0; i < 5; i++ {
		all = append(all, domain.NewNote(1, "", "заметка", due))
	}
	notes := newFakeNotes(all...)
	users := &fakeUsers{users: map[int64]*domain.User{1: user}}
	s := newSweeper(notes, users, &fakeSender{})

	s.tick(context.Background(), due.Add(-3*time.Hour))
	if users.gets != 1 {
		t.Fatalf("user record fetched %d times in one tick, want 1", users.gets)
	}
}

func TestTick_ConsecutiveFiresArePaced(t *testing.T) {
	due := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	user := &domain.User{ID: 1, Offsets: domain.ReminderOffsets{dur(2 * time.Hour)}}

	notes := newFakeNotes(
		domain.NewNote(1, "", "первая", due),
		domain.NewNote(1, "", "вторая", due),
	)
	users := &fakeUsers{users: map[int64]*domain.User{1: user}}
	sender := &fakeSender{}
	s := newSweeper(notes, users, sender)

	s.tick(context.Background(), due.Add(-time.Hour))
	if len(sender.times) != 2 {
		t.Fatalf("sent %d reminders, want 2", len(sender.times))
	}
	if gap := sender.times[1].Sub(sender.times[0]); gap < sendPause {
		t.Fatalf("gap between consecutive deliveries = %v, want >= %v", gap, sendPause)
	}
}

func TestRenderReminder(t *testing.T) {
	due := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	now := due.Add(-26*time.Hour - 30*time.Minute)

	personal := domain.NewNote(1, "", "купить билеты", due)
	got := RenderReminder(personal, now)
	if !strings.Contains(got, "купить билеты") || strings.Contains(got, "предмету") {
		t.Errorf("personal reminder: %q", got)
	}
	if !strings.Contains(got, "1 д. 2 ч. 30 м.") {
		t.Errorf("remaining time missing: %q", got)
	}

	linked := domain.NewNote(1, "Физика", "доделать отчёт", due)
	got = RenderReminder(linked, now)
	if !strings.Contains(got, "Физика") || !strings.Contains(got, "доделать отчёт") {
		t.Errorf("linked reminder: %q", got)
	}
}
