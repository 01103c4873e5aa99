package model

import "time"

// TaskKind separates chores that repeat from chores done once.
type TaskKind string

const (
	KindRecurring TaskKind = "recurring"
	KindOneTime   TaskKind = "one_time"
)

// Priority is ordinal: a higher value always weighs more.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

const (
	MinEffortMinutes = 5
	MaxEffortMinutes = 480
)

// Task represents a chore in a household.
//
// Recurring tasks carry RecurrenceRule (and optionally RecurrenceEndDate) and never a DueDate;
// one-time tasks carry DueDate only. CreatedAt anchors the first possible occurrence.
type Task struct {
	ID                     uint     `gorm:"primaryKey"`
	HouseholdID            uint     `gorm:"index;not null"`
	CreatedByID            uint     `gorm:"not null"`
	Title                  string   `gorm:"not null"`
	Description            string
	Kind                   TaskKind `gorm:"size:16;not null"`
	RecurrenceRule         string
	RecurrenceEndDate      *time.Time
	DueDate                *time.Time
	Priority               Priority `gorm:"not null"`
	EstimatedEffortMinutes int      `gorm:"not null"`
	AssignedMemberID       *uint    `gorm:"index"`
	IsActive               bool     `gorm:"index;not null"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (t Task) IsRecurring() bool {
	return t.Kind == KindRecurring
}

func (t Task) IsAssigned() bool {
	return t.AssignedMemberID != nil
}
