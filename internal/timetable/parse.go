package timetable

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/orangebtw/HerzenSchedulerBot/internal/domain"
)

var ErrUnexpectedPage = errors.New("timetable: unexpected page structure")

const groupPrefix = "группа "

// ParseGroups extracts the faculty directory from the schedule index page.
// The page lays faculties out as h3 headers, each followed by a div of h4
// education forms, each followed by a ul of "stage, course, группа X" items
// whose button onclick carries the group id.
func ParseGroups(r io.Reader) ([]domain.Faculty, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	h1 := doc.Find("h1").First()
	if h1.Length() == 0 {
		return nil, fmt.Errorf("%w: no h1 header", ErrUnexpectedPage)
	}

	var faculties []domain.Faculty

	h1.NextAllFiltered("h3").Each(func(_ int, fac *goquery.Selection) {
		faculty := domain.Faculty{Name: strings.TrimSpace(fac.Text())}

		fac.NextAllFiltered("div").First().Find("h4").Each(func(_ int, formSel *goquery.Selection) {
			form := domain.Form{Name: strings.TrimSpace(formSel.Text())}

			formSel.NextAllFiltered("ul").First().Find("li").Each(func(_ int, li *goquery.Selection) {
				groupID := groupIDFromOnclick(li.Find("button").First().AttrOr("onclick", ""))
				if groupID == "" {
					return
				}

				// The li's own text (minus the button div) is
				// "ступень, курс, группа имя".
				clone := li.Clone()
				clone.Find("div").Remove()
				parts := strings.SplitN(strings.TrimSpace(clone.Text()), ", ", 3)
				if len(parts) != 3 {
					return
				}
				stageName, courseName := parts[0], parts[1]
				groupName := strings.TrimPrefix(parts[2], groupPrefix)

				stage := findOrAddStage(&form, stageName)
				course := findOrAddCourse(stage, courseName)
				course.Groups = append(course.Groups, domain.Group{Name: groupName, ID: groupID})
			})

			if len(form.Stages) > 0 {
				faculty.Forms = append(faculty.Forms, form)
			}
		})

		faculties = append(faculties, faculty)
	})
	return faculties, nil
}

// groupIDFromOnclick digs the id_group query value out of an onclick like
// location.href='schedule_dates.php?id_group=12345&...'.
func groupIDFromOnclick(onclick string) string {
	quoted := strings.Split(onclick, "'")
	if len(quoted) < 2 {
		return ""
	}
	eq := strings.SplitN(quoted[1], "=", 2)
	if len(eq) < 2 {
		return ""
	}
	return strings.SplitN(eq[1], "&", 2)[0]
}

func findOrAddStage(form *domain.Form, name string) *domain.Stage {
	for i := range form.Stages {
		if form.Stages[i].Name == name {
			return &form.Stages[i]
		}
	}
	form.Stages = append(form.Stages, domain.Stage{Name: name})
	return &form.Stages[len(form.Stages)-1]
}

func findOrAddCourse(stage *domain.Stage, name string) *domain.Course {
	for i := range stage.Courses {
		if stage.Courses[i].Name == name {
			return &stage.Courses[i]
		}
	}
	stage.Courses = append(stage.Courses, domain.Course{Name: name})
	return &stage.Courses[len(stage.Courses)-1]
}

var timeRangeRe = regexp.MustCompile(`\d{1,2}[.:]\d{2}—\d{1,2}[.:]\d{2}|\d{1,2}[.:]\d{2}`)

// ParseSubjects extracts one group's timetable. Rows with a th.dayname carry
// the date for the rows below; other rows hold the time span in a th and one
// td per subgroup. A "другую группу" link means no classes in the period —
// reported as nil with no error.
func ParseSubjects(r io.Reader, subgroup int, loc *time.Location) ([]domain.Subject, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	noData := false
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.Contains(a.Text(), "другую группу") {
			noData = true
			return false
		}
		return true
	})
	if noData {
		return nil, nil
	}

	tbody := doc.Find("tbody").First()
	if tbody.Length() == 0 {
		return nil, nil
	}

	var subjects []domain.Subject
	var day time.Time
	var haveDay bool
	var parseErr error

	tbody.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if dayname := row.Find("th.dayname"); dayname.Length() > 0 {
			// "02.09.2024, понедельник"
			dateStr := strings.TrimSpace(strings.SplitN(dayname.Text(), ",", 2)[0])
			d, err := time.ParseInLocation("02.01.2006", dateStr, loc)
			if err != nil {
				parseErr = fmt.Errorf("%w: day header %q", ErrUnexpectedPage, dateStr)
				return false
			}
			day = d
			haveDay = true
			return true
		}
		if !haveDay {
			return true
		}

		startH, startM, endH, endM, err := parseTimeSpan(row.Find("th").First().Text())
		if err != nil {
			return true // not a class row
		}

		cells := row.Find("td")
		if cells.Length() == 0 {
			return true
		}
		cell := cells.Eq(0)
		if cells.Length() > 1 && subgroup > 0 && subgroup <= cells.Length() {
			cell = cells.Eq(subgroup - 1)
		}
		if cell.Find("strong").Length() == 0 {
			return true
		}

		start := time.Date(day.Year(), day.Month(), day.Day(), startH, startM, 0, 0, loc)
		end := time.Date(day.Year(), day.Month(), day.Day(), endH, endM, 0, 0, loc)

		for _, c := range splitClasses(cell) {
			s := parseClassTail(c.tail)
			s.Name = c.name
			s.TimeStart = start
			s.TimeEnd = end
			subjects = append(subjects, s)
		}
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return subjects, nil
}

// parseTimeSpan parses "09:50—11:20" (also tolerates "9.50—11.20").
func parseTimeSpan(s string) (startH, startM, endH, endM int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), "—", 2)
	if len(parts) != 2 {
		return 0, 0, 0, 0, fmt.Errorf("%w: time span %q", ErrUnexpectedPage, s)
	}
	startH, startM, err = parseClock(parts[0])
	if err != nil {
		return 0, 0, 0, 0, err
	}
	endH, endM, err = parseClock(parts[1])
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return startH, startM, endH, endM, nil
}

func parseClock(s string) (h, m int, err error) {
	s = strings.TrimSpace(s)
	sep := ":"
	if !strings.Contains(s, ":") {
		sep = "."
	}
	parts := strings.SplitN(s, sep, 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: clock %q", ErrUnexpectedPage, s)
	}
	h, err = strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("%w: clock %q", ErrUnexpectedPage, s)
	}
	m, err = strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: clock %q", ErrUnexpectedPage, s)
	}
	return h, m, nil
}

type rawClass struct {
	name string
	tail string
}

// splitClasses breaks a timetable cell into per-class chunks: each strong
// element starts a class and owns the trailing text up to the next strong.
func splitClasses(cell *goquery.Selection) []rawClass {
	var classes []rawClass
	var cur *rawClass

	cell.Contents().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "strong" {
			if cur != nil {
				classes = append(classes, *cur)
			}
			cur = &rawClass{name: strings.TrimSpace(node.Text())}
			return
		}
		if cur != nil {
			cur.tail += node.Text()
		}
	})
	if cur != nil {
		classes = append(classes, *cur)
	}
	return classes
}

// parseClassTail pulls the class type, periodicity mod, teacher and room out
// of the text that follows a subject name, shaped like
// " (лекция) (по чётным 09.50—11.20), Иванов И.И., ауд. 32".
// Remote classes carry no teacher or room.
func parseClassTail(tail string) domain.Subject {
	var s domain.Subject

	remote := strings.Contains(tail, "дистанционное обучение")
	tail = strings.Trim(tail, ", \n\t")

	if strings.HasPrefix(tail, "(") {
		if end := strings.Index(tail, ")"); end > 0 {
			s.Type = strings.TrimSpace(tail[1:end])
			tail = strings.TrimSpace(tail[end+1:])
		}
	}

	if strings.HasPrefix(tail, "(") {
		if end := strings.Index(tail, ")"); end > 0 {
			mod := tail[1:end]
			mod = timeRangeRe.ReplaceAllString(mod, "")
			mod = strings.ReplaceAll(mod, "* дистанционное обучение", "")
			s.Mod = strings.TrimSpace(mod)
			tail = strings.TrimSpace(tail[end+1:])
		}
	}

	if remote {
		return s
	}

	var fields []string
	for _, f := range strings.Split(tail, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	if len(fields) > 0 {
		s.Teacher = fields[0]
	}
	if len(fields) > 1 {
		s.Room = strings.Trim(fields[1], ", \n")
	}
	return s
}
