package domain

import "time"

// ActionKind classifies what the sweep must do with a note.
type ActionKind int

const (
	// NoAction means the next threshold has not been reached yet.
	NoAction ActionKind = iota
	// Fire means the reminder for Action.Stage must be delivered.
	Fire
	// Complete means the note is done: either its due instant has passed or
	// the whole ladder has fired.
	Complete
)

// Action is the resolver's decision for one note at one instant.
type Action struct {
	Kind  ActionKind
	Stage int // ladder stage to fire; meaningful only when Kind == Fire
}

// Resolve decides the next step of a note's reminder ladder. It is a pure
// function: same (note, user, now) always yields the same Action.
//
// Policy: once the due instant has passed no reminder is sent, even if a
// lower stage never fired — the note just completes. RemindedTimes beyond the
// ladder length also completes, so a shortened ladder drains stale counters.
func Resolve(note *Note, user *User, now time.Time) Action {
	if !now.Before(note.DueDate) {
		return Action{Kind: Complete}
	}

	stages := user.Offsets.Count()
	if note.RemindedTimes >= stages {
		return Action{Kind: Complete}
	}

	offset := user.Offsets.Stage(note.RemindedTimes)
	if offset == nil {
		// Gap in the ladder; Count already treats it as the end.
		return Action{Kind: Complete}
	}

	threshold := note.DueDate.Add(-*offset)
	if !now.Before(threshold) {
		return Action{Kind: Fire, Stage: note.RemindedTimes}
	}
	return Action{Kind: NoAction}
}
