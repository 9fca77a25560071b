package domain

import (
	"testing"
	"time"
)

func dur(d time.Duration) *time.Duration { return &d }

func ladderUser(offsets ...*time.Duration) *User {
	u := &User{ID: 1}
	copy(u.Offsets[:], offsets)
	return u
}

func noteDue(due time.Time, reminded int) *Note {
	return &Note{UserID: 1, Text: "сдать лабу", DueDate: due, RemindedTimes: reminded}
}

func TestResolve_PastDueCompletesRegardlessOfCounter(t *testing.T) {
	due := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	u := ladderUser(dur(24*time.Hour), dur(3*time.Hour))

	for _, reminded := range []int{0, 1, 2} {
		for _, now := range []time.Time{due, due.Add(time.Second), due.Add(48 * time.Hour)} {
			got := Resolve(noteDue(due, reminded), u, now)
			if got.Kind != Complete {
				t.Errorf("reminded=%d now=%v: want Complete, got %+v", reminded, now, got)
			}
		}
	}
}

func TestResolve_ExhaustedLadderCompletes(t *testing.T) {
	due := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	now := due.Add(-time.Hour)

	cases := []struct {
		name     string
		user     *User
		reminded int
	}{
		{"one stage fired", ladderUser(dur(24 * time.Hour)), 1},
		{"two stages fired", ladderUser(dur(24*time.Hour), dur(3*time.Hour)), 2},
		{"counter beyond ladder", ladderUser(dur(24 * time.Hour)), 3},
	}
	for _, tc := range cases {
		if got := Resolve(noteDue(due, tc.reminded), tc.user, now); got.Kind != Complete {
			t.Errorf("%s: want Complete, got %+v", tc.name, got)
		}
	}
}

func TestResolve_StageWalkWithExactBoundaries(t *testing.T) {
	due := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	u := ladderUser(dur(24*time.Hour), dur(3*time.Hour))

	cases := []struct {
		name      string
		now       time.Time
		reminded  int
		wantKind  ActionKind
		wantStage int
	}{
		{"just before first threshold", due.Add(-24*time.Hour - time.Second), 0, NoAction, 0},
		{"exactly at first threshold", due.Add(-24 * time.Hour), 0, Fire, 0},
		{"past first threshold", due.Add(-23 * time.Hour), 0, Fire, 0},
		{"stage 0 fired, before second", due.Add(-4 * time.Hour), 1, NoAction, 0},
		{"exactly at second threshold", due.Add(-3 * time.Hour), 1, Fire, 1},
		{"ladder exhausted before due", due.Add(-time.Hour), 2, Complete, 0},
	}
	for _, tc := range cases {
		got := Resolve(noteDue(due, tc.reminded), u, tc.now)
		if got.Kind != tc.wantKind {
			t.Errorf("%s: want kind %v, got %+v", tc.name, tc.wantKind, got)
			continue
		}
		if got.Kind == Fire && got.Stage != tc.wantStage {
			t.Errorf("%s: want stage %d, got %d", tc.name, tc.wantStage, got.Stage)
		}
	}
}

func TestResolve_Idempotent(t *testing.T) {
	due := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	u := ladderUser(dur(2 * time.Hour))
	n := noteDue(due, 0)
	now := due.Add(-time.Hour)

	first := Resolve(n, u, now)
	for i := 0; i < 10; i++ {
		if got := Resolve(n, u, now); got != first {
			t.Fatalf("call %d: got %+v, want %+v", i, got, first)
		}
	}
	if first.Kind != Fire || first.Stage != 0 {
		t.Fatalf("want Fire(0), got %+v", first)
	}
}

func TestResolve_LadderGapTreatedAsShorter(t *testing.T) {
	due := time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)
	// Slot 1 is nil while slot 2 is set: the ladder counts as one stage.
	u := ladderUser(dur(24*time.Hour), nil, dur(30*time.Minute))

	if got := Resolve(noteDue(due, 0), u, due.Add(-24*time.Hour)); got.Kind != Fire || got.Stage != 0 {
		t.Fatalf("stage 0 should still fire, got %+v", got)
	}
	if got := Resolve(noteDue(due, 1), u, due.Add(-30*time.Minute)); got.Kind != Complete {
		t.Fatalf("gapped slot must not fire, got %+v", got)
	}
}

func TestReminderOffsets_Count(t *testing.T) {
	cases := []struct {
		name string
		o    ReminderOffsets
		want int
	}{
		{"empty", ReminderOffsets{}, 0},
		{"one", ReminderOffsets{dur(time.Hour)}, 1},
		{"full", ReminderOffsets{dur(24 * time.Hour), dur(3 * time.Hour), dur(30 * time.Minute)}, 3},
		{"gap stops the count", ReminderOffsets{dur(time.Hour), nil, dur(time.Minute)}, 1},
	}
	for _, tc := range cases {
		if got := tc.o.Count(); got != tc.want {
			t.Errorf("%s: want %d, got %d", tc.name, tc.want, got)
		}
	}
}
