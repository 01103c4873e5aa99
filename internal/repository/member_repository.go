package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"chore-planner/internal/model"
)

// MemberRepository handles household members.
type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Create(ctx context.Context, member *model.Member) error {
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (r *MemberRepository) FindByID(ctx context.Context, id uint) (*model.Member, error) {
	var member model.Member
	if err := r.db.WithContext(ctx).First(&member, id).Error; err != nil {
		return nil, notFound(err, "find member")
	}
	return &member, nil
}

func (r *MemberRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.Member, error) {
	var member model.Member
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&member).Error; err != nil {
		return nil, notFound(err, "find member")
	}
	return &member, nil
}

// ListActive returns the active members of a household ordered by id.
func (r *MemberRepository) ListActive(ctx context.Context, householdID uint) ([]model.Member, error) {
	var members []model.Member
	if err := r.db.WithContext(ctx).
		Where("household_id = ? AND is_active = ?", householdID, true).
		Order("id ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}
