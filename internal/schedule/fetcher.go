package schedule

import (
	"context"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
)

// Key identifies a distinct timetable lookup. Date bounds use the site's
// "02.01.2006" form; empty bounds select the source's default period.
type Key struct {
	GroupID  string
	Subgroup int
	From     string
	To       string
}

// Fetcher pulls timetable data from the external source. Both calls are
// network calls with no implicit retry; retry policy belongs to the caller.
// FetchSubjects returns nil (no error) when the source has no classes for
// the requested period.
type Fetcher interface {
	FetchGroups(ctx context.Context) ([]domain.Faculty, error)
	FetchSubjects(ctx context.Context, key Key) ([]domain.Subject, error)
}
