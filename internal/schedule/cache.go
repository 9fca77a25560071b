package schedule

import (
	"context"
	"sync"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
)

// Cache memoizes timetable lookups per key until the next daily refresh
// wipes it. It also holds the last successfully fetched faculty directory.
//
// The subjects mutex covers the whole miss-check/fetch/insert sequence, so
// at most one external fetch happens per key per refresh cycle. "No data"
// results are cached too; fetch errors are not.
type Cache struct {
	fetcher Fetcher

	mu       sync.Mutex
	subjects map[Key][]domain.Subject

	groupsMu sync.RWMutex
	groups   []domain.Faculty
}

// NewCache creates an empty cache backed by the given fetcher.
func NewCache(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher:  fetcher,
		subjects: make(map[Key][]domain.Subject),
	}
}

// Subjects returns the timetable for a key, fetching and caching it on the
// first lookup. A nil slice with nil error means the source has no classes
// for that period.
func (c *Cache) Subjects(ctx context.Context, key Key) ([]domain.Subject, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if subjects, ok := c.subjects[key]; ok {
		return subjects, nil
	}
	subjects, err := c.fetcher.FetchSubjects(ctx, key)
	if err != nil {
		return nil, err
	}
	c.subjects[key] = subjects
	return subjects, nil
}

// Clear drops every cached timetable entry. There is no partial or
// TTL-based expiry; the refresh loop calls this once per day.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = make(map[Key][]domain.Subject)
}

// Len reports the number of cached keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subjects)
}

// Groups returns the last fetched faculty directory.
func (c *Cache) Groups() []domain.Faculty {
	c.groupsMu.RLock()
	defer c.groupsMu.RUnlock()
	return c.groups
}

// SetGroups replaces the faculty directory wholesale.
func (c *Cache) SetGroups(groups []domain.Faculty) {
	c.groupsMu.Lock()
	defer c.groupsMu.Unlock()
	c.groups = groups
}
