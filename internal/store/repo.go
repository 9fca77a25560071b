package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
)

// UserRepo defines storage operations for registered users. Implementations
// must be safe for concurrent calls from the sweep and the Telegram flows.
type UserRepo interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpsertUser(ctx context.Context, u *domain.User) error
	DeleteUserByID(ctx context.Context, id int64) error
}

// NoteRepo defines storage operations for deadline notes.
// "Active" means is_completed = false.
type NoteRepo interface {
	ActiveNotes(ctx context.Context) ([]domain.Note, error)
	GetNoteByID(ctx context.Context, id uuid.UUID) (*domain.Note, error)
	GetNotesByUserID(ctx context.Context, userID int64) ([]domain.Note, error)
	InsertNote(ctx context.Context, n *domain.Note) error
	UpdateNote(ctx context.Context, n *domain.Note) error
	SetNoteCompleted(ctx context.Context, id uuid.UUID, completed bool) error
	DeleteNoteByID(ctx context.Context, id uuid.UUID) error
	DeleteNotesByUserID(ctx context.Context, userID int64) error
}

// Repo is the full persistence surface backed by one database.
type Repo interface {
	UserRepo
	NoteRepo
	Close() error
}
