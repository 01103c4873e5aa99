package model

import "time"

// Household groups members and the chores they share.
type Household struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Members   []Member `gorm:"foreignKey:HouseholdID"`
}

// Role decides which household operations a member may run.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Member stores a household participant and, optionally, their Telegram identity.
type Member struct {
	ID          uint   `gorm:"primaryKey"`
	HouseholdID uint   `gorm:"index;not null"`
	TelegramID  *int64 `gorm:"uniqueIndex"`
	Name        string
	Role        Role `gorm:"size:16;not null"`
	IsActive    bool `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (m Member) IsOwner() bool {
	return m.Role == RoleOwner
}
