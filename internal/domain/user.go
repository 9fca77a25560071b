package domain

import "time"

// MaxReminderStages is the length of the reminder ladder. The first slot is
// filled for every registered user; slots 2 and 3 are optional.
const MaxReminderStages = 3

// UserGroup identifies which timetable applies to a user.
// Subgroup 0 means the group has no subgroup split.
type UserGroup struct {
	ID       string
	Subgroup int
	Name     string
}

// ReminderOffsets is the user's reminder ladder: offsets measured backward
// from a note's due date. A nil slot shortens the ladder. Values are expected
// to be supplied largest-first; they are never re-sorted.
type ReminderOffsets [MaxReminderStages]*time.Duration

// Count returns the number of usable stages. Counting stops at the first nil
// slot, so a ladder with a gap behaves as the shorter ladder rather than
// being rejected.
func (o ReminderOffsets) Count() int {
	for i, d := range o {
		if d == nil {
			return i
		}
	}
	return len(o)
}

// Stage returns the offset for the given zero-based stage, or nil when the
// slot is out of range or unset.
func (o ReminderOffsets) Stage(i int) *time.Duration {
	if i < 0 || i >= len(o) {
		return nil
	}
	return o[i]
}

// User is a registered bot user with a timetable group and a reminder ladder.
type User struct {
	ID        int64
	Group     UserGroup
	Offsets   ReminderOffsets
	CreatedAt time.Time // UTC
}
