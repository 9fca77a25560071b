package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
	"github.com/orangebtw/HerzenSchedulerBot/internal/schedule"
)

type fakeBot struct {
	sent []tgbotapi.Chattable
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type fakeRepo struct {
	user *domain.User
}

func (f *fakeRepo) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, errors.New("not found")
	}
	return f.user, nil
}

func (f *fakeRepo) UserExists(_ context.Context, id int64) (bool, error) {
	return f.user != nil && f.user.ID == id, nil
}

func (f *fakeRepo) ListUsers(context.Context) ([]domain.User, error) { return nil, nil }
func (f *fakeRepo) UpsertUser(context.Context, *domain.User) error   { return nil }
func (f *fakeRepo) DeleteUserByID(context.Context, int64) error      { return nil }

func (f *fakeRepo) ActiveNotes(context.Context) ([]domain.Note, error) { return nil, nil }

func (f *fakeRepo) GetNoteByID(context.Context, uuid.UUID) (*domain.Note, error) {
	return nil, errors.New("not found")
}

func (f *fakeRepo) GetNotesByUserID(context.Context, int64) ([]domain.Note, error) {
	return nil, nil
}

func (f *fakeRepo) InsertNote(context.Context, *domain.Note) error          { return nil }
func (f *fakeRepo) UpdateNote(context.Context, *domain.Note) error          { return nil }
func (f *fakeRepo) SetNoteCompleted(context.Context, uuid.UUID, bool) error { return nil }
func (f *fakeRepo) DeleteNoteByID(context.Context, uuid.UUID) error         { return nil }
func (f *fakeRepo) DeleteNotesByUserID(context.Context, int64) error        { return nil }
func (f *fakeRepo) Close() error                                            { return nil }

type fakeFetcher struct {
	keys     []schedule.Key
	subjects []domain.Subject
}

func (f *fakeFetcher) FetchGroups(context.Context) ([]domain.Faculty, error) { return nil, nil }

func (f *fakeFetcher) FetchSubjects(_ context.Context, key schedule.Key) ([]domain.Subject, error) {
	f.keys = append(f.keys, key)
	return f.subjects, nil
}

// The subject list offered after "Нет" must come from the day the note's
// message was sent, not from the wall clock at button-press time.
func TestNoteSubjectList_UsesMessageDayTimetable(t *testing.T) {
	sentAt := time.Date(2026, time.May, 18, 10, 15, 0, 0, time.UTC)
	day := sentAt.Format("02.01.2006")

	fetcher := &fakeFetcher{subjects: []domain.Subject{{
		Name:      "Физика",
		TimeStart: time.Date(2026, time.May, 18, 10, 0, 0, 0, time.UTC),
		TimeEnd:   time.Date(2026, time.May, 18, 11, 30, 0, 0, time.UTC),
	}}}
	repo := &fakeRepo{user: &domain.User{
		ID:    7,
		Group: domain.UserGroup{ID: "12345", Subgroup: 1, Name: "1 ИВТ"},
	}}
	r := NewRouter(&fakeBot{}, zap.NewNop(), repo, schedule.NewCache(fetcher), time.UTC)

	ctx := context.Background()
	r.startNoteCreation(ctx, 7, sentAt, "сдать отчёт")
	if step := r.session(7).step; step != stepNoteConfirmSubject {
		t.Fatalf("step after message = %d, want confirm", step)
	}

	r.handleNoteSubjectConfirm(ctx, 7, cbNo)
	if step := r.session(7).step; step != stepNoteChooseSubject {
		t.Fatalf("step after decline = %d, want choose", step)
	}

	// Both lookups share one cache key, so the fetcher saw exactly one
	// request and it carried the message's day.
	if len(fetcher.keys) != 1 {
		t.Fatalf("timetable fetched %d times, want 1: %+v", len(fetcher.keys), fetcher.keys)
	}
	if k := fetcher.keys[0]; k.From != day || k.To != day {
		t.Fatalf("fetch key dates = %q..%q, want %q", k.From, k.To, day)
	}
}
