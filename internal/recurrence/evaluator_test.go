package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chore-planner/internal/model"
)

func utc(year int, month time.Month, d, hour, min, sec int) time.Time {
	return time.Date(year, month, d, hour, min, sec, 0, time.UTC)
}

func recurringTask(rule string, created time.Time) model.Task {
	return model.Task{
		ID:             1,
		Kind:           model.KindRecurring,
		RecurrenceRule: rule,
		IsActive:       true,
		CreatedAt:      created,
	}
}

func TestWeekStart(t *testing.T) {
	monday := utc(2026, time.October, 12, 0, 0, 0)

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"monday midnight", monday, monday},
		{"friday afternoon", utc(2026, time.October, 16, 13, 30, 0), monday},
		{"sunday last second", utc(2026, time.October, 18, 23, 59, 59), monday},
		{"next monday", utc(2026, time.October, 19, 0, 0, 0), utc(2026, time.October, 19, 0, 0, 0)},
		{"offset zone normalizes to utc", time.Date(2026, time.October, 19, 1, 0, 0, 0, time.FixedZone("MSK", 3*3600)), monday},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeekStart(tt.in))
		})
	}
	assert.Equal(t, utc(2026, time.October, 19, 0, 0, 0), WeekEnd(monday))
}

func TestDue_WeeklyBoundary(t *testing.T) {
	monday := utc(2026, time.October, 12, 0, 0, 0)
	task := recurringTask("FREQ=WEEKLY;BYDAY=MO", monday)

	assert.True(t, IsDue(task, monday), "due at Monday 00:00:00 of its first week")
	assert.False(t, IsDue(task, monday.Add(-time.Second)), "not due on the Sunday 23:59:59 before")
	assert.True(t, IsDue(task, utc(2026, time.October, 18, 23, 59, 59)), "stays due for the whole week")

	t.Run("anchor weeks earlier", func(t *testing.T) {
		sunday := monday.Add(-time.Second)
		nextMonday := utc(2026, time.October, 19, 0, 0, 0)

		biweekly := recurringTask("FREQ=WEEKLY;INTERVAL=2;BYDAY=MO", utc(2026, time.September, 14, 8, 0, 0))
		assert.False(t, IsDue(biweekly, sunday), "off week ends at Sunday 23:59:59")
		assert.True(t, IsDue(biweekly, monday), "on week starts at Monday 00:00:00")
		assert.True(t, IsDue(biweekly, nextMonday.Add(-time.Second)))
		assert.False(t, IsDue(biweekly, nextMonday))

		monthly := recurringTask("FREQ=MONTHLY;BYMONTHDAY=12", utc(2026, time.August, 3, 8, 0, 0))
		assert.False(t, IsDue(monthly, sunday))
		assert.True(t, IsDue(monthly, monday))
		assert.True(t, IsDue(monthly, nextMonday.Add(-time.Second)))
		assert.False(t, IsDue(monthly, nextMonday))
	})
}

func TestDue_Recurring(t *testing.T) {
	anchor := utc(2026, time.October, 12, 9, 0, 0)

	tests := []struct {
		name    string
		rule    string
		created time.Time
		asOf    time.Time
		want    bool
	}{
		{"biweekly skips odd week", "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO", anchor, utc(2026, time.October, 20, 12, 0, 0), false},
		{"biweekly hits even week", "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO", anchor, utc(2026, time.October, 27, 12, 0, 0), true},
		{"weekly later weekday in first week", "FREQ=WEEKLY;BYDAY=SA", anchor, utc(2026, time.October, 12, 10, 0, 0), true},
		{"daily every ten days hit", "FREQ=DAILY;INTERVAL=10", anchor, utc(2026, time.October, 21, 0, 0, 0), true},
		{"daily every ten days sunday hit", "FREQ=DAILY;INTERVAL=10", anchor, utc(2026, time.October, 27, 0, 0, 0), true},
		{"daily every ten days miss", "FREQ=DAILY;INTERVAL=10", anchor, utc(2026, time.November, 4, 0, 0, 0), false},
		{"monthly last day in february", "FREQ=MONTHLY;BYMONTHDAY=-1", utc(2026, time.January, 5, 0, 0, 0), utc(2026, time.February, 24, 0, 0, 0), true},
		{"monthly last day wrong week", "FREQ=MONTHLY;BYMONTHDAY=-1", utc(2026, time.January, 5, 0, 0, 0), utc(2026, time.February, 17, 0, 0, 0), false},
		{"monthly 31 clamps in february", "FREQ=MONTHLY;BYMONTHDAY=31", utc(2026, time.January, 5, 0, 0, 0), utc(2026, time.February, 26, 0, 0, 0), true},
		{"monthly defaults to anchor day", "FREQ=MONTHLY", utc(2026, time.January, 14, 0, 0, 0), utc(2026, time.February, 11, 0, 0, 0), true},
		{"bimonthly skips month", "FREQ=MONTHLY;INTERVAL=2;BYMONTHDAY=10", utc(2026, time.January, 5, 0, 0, 0), utc(2026, time.February, 10, 0, 0, 0), false},
		{"yearly on month and day", "FREQ=YEARLY;BYMONTH=3;BYMONTHDAY=15", utc(2026, time.January, 1, 0, 0, 0), utc(2026, time.March, 10, 0, 0, 0), true},
		{"yearly next week", "FREQ=YEARLY;BYMONTH=3;BYMONTHDAY=15", utc(2026, time.January, 1, 0, 0, 0), utc(2026, time.March, 16, 0, 0, 0), false},
		{"until in the past", "FREQ=DAILY;UNTIL=20261014", anchor, utc(2026, time.October, 20, 0, 0, 0), false},
		{"until inside the week", "FREQ=DAILY;UNTIL=20261014", anchor, utc(2026, time.October, 16, 0, 0, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, err := Due(recurringTask(tt.rule, tt.created), tt.asOf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, due)
		})
	}
}

func TestDue_RecurrenceEndDate(t *testing.T) {
	task := recurringTask("FREQ=DAILY", utc(2026, time.October, 1, 0, 0, 0))
	end := utc(2026, time.October, 14, 23, 59, 59)
	task.RecurrenceEndDate = &end

	assert.True(t, IsDue(task, utc(2026, time.October, 14, 8, 0, 0)))
	assert.False(t, IsDue(task, utc(2026, time.October, 15, 8, 0, 0)))
}

func TestDue_OneTime(t *testing.T) {
	now := utc(2026, time.October, 16, 12, 0, 0)
	past := now.Add(-72 * time.Hour)
	future := now.Add(48 * time.Hour)

	task := model.Task{ID: 7, Kind: model.KindOneTime, DueDate: &past, IsActive: true}
	assert.True(t, IsDue(task, now), "overdue task stays due")

	task.DueDate = &now
	assert.True(t, IsDue(task, now), "due exactly at due date")

	task.DueDate = &future
	assert.False(t, IsDue(task, now))

	task.DueDate = &past
	task.IsActive = false
	assert.False(t, IsDue(task, now), "completed one-time task is inactive")
}

func TestDue_BrokenStoredRule(t *testing.T) {
	task := recurringTask("FREQ=WEEKLY", utc(2026, time.October, 12, 0, 0, 0))

	_, err := Due(task, utc(2026, time.October, 13, 0, 0, 0))
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.False(t, IsDue(task, utc(2026, time.October, 13, 0, 0, 0)))
}

func TestRuleNext(t *testing.T) {
	rule, err := Parse("FREQ=WEEKLY;BYDAY=MO,TH")
	require.NoError(t, err)

	next, ok := rule.Next(utc(2026, time.October, 12, 0, 0, 0), utc(2026, time.October, 13, 15, 0, 0))
	require.True(t, ok)
	assert.Equal(t, utc(2026, time.October, 15, 0, 0, 0), next)

	ended, err := Parse("FREQ=DAILY;UNTIL=20261013")
	require.NoError(t, err)
	_, ok = ended.Next(utc(2026, time.October, 12, 0, 0, 0), utc(2026, time.October, 20, 0, 0, 0))
	assert.False(t, ok)
}

func TestNextOccurrence(t *testing.T) {
	created := utc(2026, time.October, 1, 9, 0, 0)
	now := utc(2026, time.October, 14, 10, 0, 0)

	next, ok := NextOccurrence(recurringTask("FREQ=WEEKLY;BYDAY=SA", created), now)
	require.True(t, ok)
	assert.Equal(t, utc(2026, time.October, 17, 0, 0, 0), next)

	next, ok = NextOccurrence(recurringTask("FREQ=MONTHLY;BYMONTHDAY=-1", created), now)
	require.True(t, ok)
	assert.Equal(t, utc(2026, time.October, 31, 0, 0, 0), next)

	ending := recurringTask("FREQ=WEEKLY;BYDAY=SA", created)
	end := utc(2026, time.October, 16, 0, 0, 0)
	ending.RecurrenceEndDate = &end
	_, ok = NextOccurrence(ending, now)
	assert.False(t, ok, "next occurrence falls after the end date")

	paused := recurringTask("FREQ=DAILY", created)
	paused.IsActive = false
	_, ok = NextOccurrence(paused, now)
	assert.False(t, ok)

	_, ok = NextOccurrence(recurringTask("FREQ=WEEKLY", created), now)
	assert.False(t, ok, "broken rule")

	due := now
	_, ok = NextOccurrence(model.Task{Kind: model.KindOneTime, DueDate: &due, IsActive: true}, now)
	assert.False(t, ok)
}
