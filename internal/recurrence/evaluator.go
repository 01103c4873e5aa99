package recurrence

import (
	"fmt"
	"time"

	"chore-planner/internal/model"
)

const day = 24 * time.Hour

// WeekStart returns the Monday 00:00 UTC that owns t.
func WeekStart(t time.Time) time.Time {
	d := startOfDay(t)
	return d.AddDate(0, 0, 1-isoWeekday(d.Weekday()))
}

// WeekEnd returns the exclusive end of the week that owns t.
func WeekEnd(t time.Time) time.Time {
	return WeekStart(t).AddDate(0, 0, 7)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// OccursBetween reports whether the rule has an occurrence day inside [from, to).
// Occurrences start on the anchor day and stop after UNTIL.
func (r Rule) OccursBetween(anchor, from, to time.Time) bool {
	first := startOfDay(anchor)
	for d := startOfDay(from); d.Before(to); d = d.AddDate(0, 0, 1) {
		if d.Before(first) {
			continue
		}
		if r.Until != nil && d.After(*r.Until) {
			return false
		}
		if r.matches(first, d) {
			return true
		}
	}
	return false
}

// Next returns the first occurrence day on or after from, looking at most ten
// intervals of the rule's period ahead.
func (r Rule) Next(anchor, from time.Time) (time.Time, bool) {
	first := startOfDay(anchor)
	d := startOfDay(from)
	if d.Before(first) {
		d = first
	}
	limit := d.AddDate(10*r.Interval, 0, 0)
	for ; d.Before(limit); d = d.AddDate(0, 0, 1) {
		if r.Until != nil && d.After(*r.Until) {
			return time.Time{}, false
		}
		if r.matches(first, d) {
			return d, true
		}
	}
	return time.Time{}, false
}

// matches assumes both arguments are UTC midnights with d not before first.
func (r Rule) matches(first, d time.Time) bool {
	interval := r.Interval
	if interval <= 0 {
		interval = 1
	}
	switch r.Freq {
	case Daily:
		days := int(d.Sub(first) / day)
		return days%interval == 0
	case Weekly:
		weeks := int(WeekStart(d).Sub(WeekStart(first)) / (7 * day))
		return weeks%interval == 0 && r.onWeekday(d.Weekday())
	case Monthly:
		months := monthsBetween(first, d)
		return months%interval == 0 && d.Day() == r.dayInMonth(first, d.Year(), d.Month())
	case Yearly:
		month := r.ByMonth
		if month == 0 {
			month = first.Month()
		}
		years := d.Year() - first.Year()
		return years%interval == 0 && d.Month() == month && d.Day() == r.dayInMonth(first, d.Year(), month)
	default:
		return false
	}
}

func (r Rule) onWeekday(wd time.Weekday) bool {
	for _, day := range r.ByDay {
		if day == wd {
			return true
		}
	}
	return false
}

// dayInMonth resolves BYMONTHDAY for a concrete month. Days past the month end
// clamp to its last day.
func (r Rule) dayInMonth(first time.Time, year int, month time.Month) int {
	last := daysInMonth(year, month)
	target := r.ByMonthDay
	if target == 0 {
		target = first.Day()
	}
	if target == LastDayOfMonth || target > last {
		return last
	}
	return target
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Due decides whether task should be worked on in the week of asOf.
//
// A one-time task is due once its due date has passed and until it is completed
// (completion deactivates it). A recurring task is due when its rule has an
// occurrence in the current week and its end date has not passed. An error is
// returned only for a stored rule that no longer parses.
func Due(task model.Task, asOf time.Time) (bool, error) {
	if !task.IsActive {
		return false, nil
	}
	asOf = asOf.UTC()

	switch task.Kind {
	case model.KindOneTime:
		if task.DueDate == nil {
			return false, fmt.Errorf("task %d: one-time task without due date", task.ID)
		}
		return !task.DueDate.After(asOf), nil
	case model.KindRecurring:
		if task.RecurrenceEndDate != nil && asOf.After(*task.RecurrenceEndDate) {
			return false, nil
		}
		rule, err := Parse(task.RecurrenceRule)
		if err != nil {
			return false, fmt.Errorf("task %d: %w", task.ID, err)
		}
		return rule.OccursBetween(task.CreatedAt, WeekStart(asOf), WeekEnd(asOf)), nil
	default:
		return false, fmt.Errorf("task %d: unknown kind %q", task.ID, task.Kind)
	}
}

// NextOccurrence returns the first occurrence day of a recurring task on or
// after from. ok is false for one-time or inactive tasks, broken rules, and
// rules that have run out.
func NextOccurrence(task model.Task, from time.Time) (next time.Time, ok bool) {
	if !task.IsActive || !task.IsRecurring() {
		return time.Time{}, false
	}
	rule, err := Parse(task.RecurrenceRule)
	if err != nil {
		return time.Time{}, false
	}
	next, ok = rule.Next(task.CreatedAt, from.UTC())
	if !ok || (task.RecurrenceEndDate != nil && next.After(*task.RecurrenceEndDate)) {
		return time.Time{}, false
	}
	return next, true
}

// IsDue is Due for callers that treat a broken stored rule as "not due".
func IsDue(task model.Task, asOf time.Time) bool {
	due, err := Due(task, asOf)
	return err == nil && due
}
