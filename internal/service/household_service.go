package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"chore-planner/internal/model"
	"chore-planner/internal/repository"
)

// HouseholdService covers the little household bookkeeping the bot needs:
// creating a household and joining it.
type HouseholdService struct {
	householdRepo *repository.HouseholdRepository
	memberRepo    *repository.MemberRepository
}

func NewHouseholdService(householdRepo *repository.HouseholdRepository, memberRepo *repository.MemberRepository) *HouseholdService {
	return &HouseholdService{householdRepo: householdRepo, memberRepo: memberRepo}
}

// ErrAlreadyMember is returned when a Telegram account already belongs to a household.
var ErrAlreadyMember = errors.New("already a household member")

// Create starts a household owned by the given Telegram account.
func (s *HouseholdService) Create(ctx context.Context, name, ownerName string, telegramID int64) (*model.Household, *model.Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, model.NewValidationError("name", "is required")
	}
	if err := s.ensureUnregistered(ctx, telegramID); err != nil {
		return nil, nil, err
	}

	household := &model.Household{Name: name}
	owner := &model.Member{Name: strings.TrimSpace(ownerName), TelegramID: &telegramID}
	if err := s.householdRepo.CreateWithOwner(ctx, household, owner); err != nil {
		return nil, nil, err
	}
	log.Info().Uint("household_id", household.ID).Uint("owner_id", owner.ID).Msg("household created")
	return household, owner, nil
}

// Join adds the Telegram account to an existing household as a regular member.
func (s *HouseholdService) Join(ctx context.Context, householdID uint, name string, telegramID int64) (*model.Member, error) {
	if _, err := s.householdRepo.FindByID(ctx, householdID); err != nil {
		return nil, err
	}
	if err := s.ensureUnregistered(ctx, telegramID); err != nil {
		return nil, err
	}
	member := &model.Member{
		HouseholdID: householdID,
		TelegramID:  &telegramID,
		Name:        strings.TrimSpace(name),
		Role:        model.RoleMember,
		IsActive:    true,
	}
	if err := s.memberRepo.Create(ctx, member); err != nil {
		return nil, err
	}
	log.Info().Uint("household_id", householdID).Uint("member_id", member.ID).Msg("member joined")
	return member, nil
}

func (s *HouseholdService) MemberByTelegramID(ctx context.Context, telegramID int64) (*model.Member, error) {
	return s.memberRepo.FindByTelegramID(ctx, telegramID)
}

func (s *HouseholdService) Members(ctx context.Context, householdID uint) ([]model.Member, error) {
	return s.memberRepo.ListActive(ctx, householdID)
}

func (s *HouseholdService) ListAll(ctx context.Context) ([]model.Household, error) {
	return s.householdRepo.ListAll(ctx)
}

func (s *HouseholdService) ensureUnregistered(ctx context.Context, telegramID int64) error {
	_, err := s.memberRepo.FindByTelegramID(ctx, telegramID)
	switch {
	case err == nil:
		return fmt.Errorf("telegram user %d: %w", telegramID, ErrAlreadyMember)
	case errors.Is(err, model.ErrNotFound):
		return nil
	default:
		return err
	}
}
