package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
)

// ErrNotFound is returned when a requested user or note does not exist.
var ErrNotFound = errors.New("store: not found")

// SQLiteRepo implements Repo using an embedded SQLite database.
//
// The pool is capped at a single connection, so every individual statement is
// serialized — this is the per-operation exclusive lock the sweep and the
// front-end flows rely on. There is no multi-statement transaction across
// read-then-write sequences.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// --- users ---

// UpsertUser inserts or updates a user's group and reminder ladder.
func (r *SQLiteRepo) UpsertUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}

	created := u.CreatedAt.UTC().Unix()
	if u.CreatedAt.IsZero() {
		created = time.Now().UTC().Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, group_id, subgroup, group_name,
			offset1_sec, offset2_sec, offset3_sec, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			group_id    = excluded.group_id,
			subgroup    = excluded.subgroup,
			group_name  = excluded.group_name,
			offset1_sec = excluded.offset1_sec,
			offset2_sec = excluded.offset2_sec,
			offset3_sec = excluded.offset3_sec`,
		u.ID, u.Group.ID, u.Group.Subgroup, u.Group.Name,
		offsetToNull(u.Offsets[0]), offsetToNull(u.Offsets[1]), offsetToNull(u.Offsets[2]),
		created,
	)
	return err
}

// GetUserByID returns a user by id, or ErrNotFound.
func (r *SQLiteRepo) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, group_id, subgroup, group_name,
		       offset1_sec, offset2_sec, offset3_sec, created_at
		FROM users
		WHERE id = ?`,
		id,
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// UserExists reports whether a user row exists.
func (r *SQLiteRepo) UserExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListUsers returns every registered user.
func (r *SQLiteRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, group_id, subgroup, group_name,
		       offset1_sec, offset2_sec, offset3_sec, created_at
		FROM users
		ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteUserByID removes a user; their notes go with them (FK cascade).
func (r *SQLiteRepo) DeleteUserByID(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		id        int64
		groupID   string
		subgroup  int
		groupName string
		off1      sql.NullInt64
		off2      sql.NullInt64
		off3      sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&id, &groupID, &subgroup, &groupName, &off1, &off2, &off3, &createdAt); err != nil {
		return nil, err
	}
	return &domain.User{
		ID:        id,
		Group:     domain.UserGroup{ID: groupID, Subgroup: subgroup, Name: groupName},
		Offsets:   domain.ReminderOffsets{offsetFromNull(off1), offsetFromNull(off2), offsetFromNull(off3)},
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}, nil
}

// --- notes ---

const noteColumns = `id, user_id, subject_id, text, due_date, reminded_times, is_completed, created_at`

// InsertNote stores a new note. Note ids are assigned by the caller and
// never reused.
func (r *SQLiteRepo) InsertNote(ctx context.Context, n *domain.Note) error {
	if n == nil {
		return errors.New("nil note")
	}

	created := n.CreatedAt.UTC().Unix()
	if n.CreatedAt.IsZero() {
		created = time.Now().UTC().Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID.String(), n.UserID, n.SubjectID, n.Text,
		n.DueDate.UTC().Unix(), n.RemindedTimes, boolToInt(n.IsCompleted),
		created,
	)
	return err
}

// UpdateNote persists the full note row.
func (r *SQLiteRepo) UpdateNote(ctx context.Context, n *domain.Note) error {
	if n == nil {
		return errors.New("nil note")
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE notes
		SET subject_id = ?, text = ?, due_date = ?, reminded_times = ?, is_completed = ?
		WHERE id = ?`,
		n.SubjectID, n.Text, n.DueDate.UTC().Unix(),
		n.RemindedTimes, boolToInt(n.IsCompleted), n.ID.String(),
	)
	return err
}

// ActiveNotes returns all notes that have not been completed yet,
// ordered by due date ascending.
func (r *SQLiteRepo) ActiveNotes(ctx context.Context) ([]domain.Note, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE is_completed = 0
		ORDER BY due_date ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotes(rows)
}

// GetNoteByID returns a note by id, or ErrNotFound.
func (r *SQLiteRepo) GetNoteByID(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE id = ?`,
		id.String(),
	)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return n, err
}

// GetNotesByUserID returns all of a user's notes, newest deadline last.
func (r *SQLiteRepo) GetNotesByUserID(ctx context.Context, userID int64) ([]domain.Note, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE user_id = ?
		ORDER BY due_date ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNotes(rows)
}

// SetNoteCompleted flips the terminal flag for a note.
func (r *SQLiteRepo) SetNoteCompleted(ctx context.Context, id uuid.UUID, completed bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notes
		SET is_completed = ?
		WHERE id = ?`,
		boolToInt(completed), id.String(),
	)
	return err
}

// DeleteNoteByID removes a single note.
func (r *SQLiteRepo) DeleteNoteByID(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id.String())
	return err
}

// DeleteNotesByUserID removes all notes belonging to a user.
func (r *SQLiteRepo) DeleteNotesByUserID(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE user_id = ?`, userID)
	return err
}

func scanNote(row rowScanner) (*domain.Note, error) {
	var (
		idStr         string
		userID        int64
		subjectID     string
		text          string
		dueDate       int64
		remindedTimes int
		completedInt  int
		createdAt     int64
	)
	if err := row.Scan(&idStr, &userID, &subjectID, &text, &dueDate, &remindedTimes, &completedInt, &createdAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("note id %q: %w", idStr, err)
	}
	return &domain.Note{
		ID:            id,
		UserID:        userID,
		SubjectID:     subjectID,
		Text:          text,
		DueDate:       time.Unix(dueDate, 0).UTC(),
		RemindedTimes: remindedTimes,
		IsCompleted:   completedInt != 0,
		CreatedAt:     time.Unix(createdAt, 0).UTC(),
	}, nil
}

func collectNotes(rows *sql.Rows) ([]domain.Note, error) {
	var res []domain.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
