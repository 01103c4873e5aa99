package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"chore-planner/internal/model"
)

// HouseholdRepository handles households and their members.
type HouseholdRepository struct {
	db *gorm.DB
}

func NewHouseholdRepository(db *gorm.DB) *HouseholdRepository {
	return &HouseholdRepository{db: db}
}

// CreateWithOwner stores a household together with its first owner.
func (r *HouseholdRepository) CreateWithOwner(ctx context.Context, household *model.Household, owner *model.Member) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(household).Error; err != nil {
			return fmt.Errorf("create household: %w", err)
		}
		owner.HouseholdID = household.ID
		owner.Role = model.RoleOwner
		owner.IsActive = true
		if err := tx.Create(owner).Error; err != nil {
			return fmt.Errorf("create owner: %w", err)
		}
		return nil
	})
}

func (r *HouseholdRepository) FindByID(ctx context.Context, id uint) (*model.Household, error) {
	var household model.Household
	if err := r.db.WithContext(ctx).First(&household, id).Error; err != nil {
		return nil, notFound(err, "find household")
	}
	return &household, nil
}

func (r *HouseholdRepository) ListAll(ctx context.Context) ([]model.Household, error) {
	var households []model.Household
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&households).Error; err != nil {
		return nil, fmt.Errorf("list households: %w", err)
	}
	return households, nil
}

// notFound maps gorm's missing-record error onto the shared taxonomy.
func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
