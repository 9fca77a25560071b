package domain

import "time"

// Subject is a single timetable occurrence.
type Subject struct {
	Name      string
	Type      string // лекция, практика, ...
	Teacher   string
	Room      string
	Mod       string // periodicity marker from the timetable, e.g. "по чётным"
	TimeStart time.Time
	TimeEnd   time.Time
}

// The faculty directory mirrors the structure of the timetable site:
// faculty -> education form -> stage -> course -> group.

type Group struct {
	Name string
	ID   string
}

type Course struct {
	Name   string
	Groups []Group
}

type Stage struct {
	Name    string
	Courses []Course
}

type Form struct {
	Name   string
	Stages []Stage
}

type Faculty struct {
	Name  string
	Forms []Form
}
