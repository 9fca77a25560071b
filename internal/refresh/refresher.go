// Package refresh keeps the faculty directory current and wipes the
// timetable cache once per day.
package refresh

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
	"github.com/orangebtw/HerzenSchedulerBot/internal/schedule"
)

// Refresher re-fetches the authoritative group directory at a fixed
// wall-clock time each day and clears the schedule cache wholesale.
type Refresher struct {
	fetcher schedule.Fetcher
	cache   *schedule.Cache
	at      string // "HH:MM" in loc
	loc     *time.Location
	log     *zap.Logger
}

func New(fetcher schedule.Fetcher, cache *schedule.Cache, at string, loc *time.Location, log *zap.Logger) *Refresher {
	return &Refresher{fetcher: fetcher, cache: cache, at: at, loc: loc, log: log}
}

// Run performs one refresh immediately so the directory is usable at
// startup, then repeats at the configured time of day until ctx is
// cancelled. A failed fetch is logged; the loop keeps the stale directory
// and retries on the next cycle.
func (r *Refresher) Run(ctx context.Context) {
	r.tick(ctx)

	for {
		wait, err := domain.DurationUntil(time.Now().In(r.loc), r.at)
		if err != nil {
			// Config is validated at startup; treat this as fatal for the loop.
			r.log.Error("invalid refresh time", zap.Error(err), zap.String("at", r.at))
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.log.Info("refresh loop stopping")
			return
		case <-timer.C:
			r.tick(ctx)
		}
	}
}

// tick fetches the directory and, on success, swaps it in and clears the
// subject cache. Cached groups stay intact on failure.
func (r *Refresher) tick(ctx context.Context) {
	groups, err := r.fetcher.FetchGroups(ctx)
	if err != nil {
		r.log.Warn("group directory fetch failed, keeping stale data", zap.Error(err))
		return
	}

	r.cache.SetGroups(groups)
	r.cache.Clear()
	r.log.Info("group directory refreshed, schedule cache cleared",
		zap.Int("faculties", len(groups)))
}
