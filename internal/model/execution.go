package model

import "time"

// Execution is an immutable completion record. Only CountsForCompletion and the
// notes/photo pair are ever updated after insert.
type Execution struct {
	ID                  string    `gorm:"primaryKey;size:36"`
	TaskID              uint      `gorm:"index;not null"`
	MemberID            uint      `gorm:"index;not null"`
	TaskKind            TaskKind  `gorm:"size:16;not null"`
	CompletedAt         time.Time `gorm:"not null"`
	WeekStarting        time.Time `gorm:"index;not null"`
	Notes               string
	PhotoPath           string
	CountsForCompletion *bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Counts reports whether the execution still counts as a completion; unset means true.
func (e Execution) Counts() bool {
	return e.CountsForCompletion == nil || *e.CountsForCompletion
}
