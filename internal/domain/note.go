package domain

import (
	"time"

	"github.com/google/uuid"
)

// Note is a tracked deadline item, optionally linked to a timetable subject.
// SubjectID is the subject name as shown in the timetable; empty means a
// personal free-form deadline.
type Note struct {
	ID            uuid.UUID
	UserID        int64
	SubjectID     string
	Text          string
	DueDate       time.Time // timezone-aware
	RemindedTimes int       // ladder stages fired so far; never decreases
	IsCompleted   bool      // terminal; completed notes are excluded from sweeps
	CreatedAt     time.Time // UTC
}

// NewNote assigns a fresh id and creation time. Ids are never reused.
func NewNote(userID int64, subjectID, text string, due time.Time) *Note {
	return &Note{
		ID:        uuid.New(),
		UserID:    userID,
		SubjectID: subjectID,
		Text:      text,
		DueDate:   due,
		CreatedAt: time.Now().UTC(),
	}
}

// Personal reports whether the note is a free-form deadline with no
// timetable subject attached.
func (n *Note) Personal() bool {
	return n.SubjectID == ""
}
