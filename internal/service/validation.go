package service

import (
	"errors"
	"strings"
	"time"

	"chore-planner/internal/model"
	"chore-planner/internal/recurrence"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	HouseholdID            uint
	Title                  string
	Description            string
	Kind                   model.TaskKind
	RecurrenceRule         string
	RecurrenceEndDate      *time.Time
	DueDate                *time.Time
	Priority               model.Priority
	EstimatedEffortMinutes int
}

type taskCheck func(in TaskInput, now time.Time) *model.ValidationError

// taskChecks run in order; the first failure is reported.
var taskChecks = []taskCheck{
	checkTitle,
	checkKind,
	checkKindFields,
	checkRecurrenceRule,
	checkRecurrenceEndDate,
	checkDueDate,
	checkPriority,
	checkEffort,
}

// ValidateTask returns the first *model.ValidationError for in, or nil.
func ValidateTask(in TaskInput, now time.Time) error {
	for _, check := range taskChecks {
		if vErr := check(in, now); vErr != nil {
			return vErr
		}
	}
	return nil
}

func checkTitle(in TaskInput, _ time.Time) *model.ValidationError {
	if strings.TrimSpace(in.Title) == "" {
		return model.NewValidationError("title", "is required")
	}
	return nil
}

func checkKind(in TaskInput, _ time.Time) *model.ValidationError {
	switch in.Kind {
	case model.KindRecurring, model.KindOneTime:
		return nil
	default:
		return model.NewValidationError("kind", "must be %q or %q, got %q", model.KindRecurring, model.KindOneTime, in.Kind)
	}
}

func checkKindFields(in TaskInput, _ time.Time) *model.ValidationError {
	if in.Kind == model.KindRecurring {
		if in.DueDate != nil {
			return model.NewValidationError("dueDate", "recurring tasks cannot have a due date")
		}
		if strings.TrimSpace(in.RecurrenceRule) == "" {
			return model.NewValidationError("recurrenceRule", "is required for recurring tasks")
		}
		return nil
	}
	if strings.TrimSpace(in.RecurrenceRule) != "" {
		return model.NewValidationError("recurrenceRule", "one-time tasks cannot have a recurrence rule")
	}
	if in.RecurrenceEndDate != nil {
		return model.NewValidationError("recurrenceEndDate", "one-time tasks cannot have a recurrence end date")
	}
	if in.DueDate == nil {
		return model.NewValidationError("dueDate", "is required for one-time tasks")
	}
	return nil
}

func checkRecurrenceRule(in TaskInput, _ time.Time) *model.ValidationError {
	if in.Kind != model.KindRecurring {
		return nil
	}
	if _, err := recurrence.Parse(in.RecurrenceRule); err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			return vErr
		}
		return model.NewValidationError("recurrenceRule", "%v", err)
	}
	return nil
}

func checkRecurrenceEndDate(in TaskInput, now time.Time) *model.ValidationError {
	if in.RecurrenceEndDate != nil && in.RecurrenceEndDate.Before(now) {
		return model.NewValidationError("recurrenceEndDate", "must not be in the past")
	}
	return nil
}

func checkDueDate(in TaskInput, now time.Time) *model.ValidationError {
	if in.Kind == model.KindOneTime && !in.DueDate.After(now) {
		return model.NewValidationError("dueDate", "must be in the future")
	}
	return nil
}

func checkPriority(in TaskInput, _ time.Time) *model.ValidationError {
	if !in.Priority.Valid() {
		return model.NewValidationError("priority", "must be low, medium or high")
	}
	return nil
}

func checkEffort(in TaskInput, _ time.Time) *model.ValidationError {
	if in.EstimatedEffortMinutes < model.MinEffortMinutes || in.EstimatedEffortMinutes > model.MaxEffortMinutes {
		return model.NewValidationError("estimatedEffortMinutes", "must be between %d and %d, got %d",
			model.MinEffortMinutes, model.MaxEffortMinutes, in.EstimatedEffortMinutes)
	}
	return nil
}
