package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chore-planner/internal/model"
	"chore-planner/internal/repository"
)

// Clock returns the current instant; services take it so tests can pin time.
type Clock func() time.Time

// Now is the current instant in UTC; a nil Clock reads the wall clock.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// requireOwner resolves the requester and checks they own the household.
// An unknown requester is reported as forbidden, not as a missing member.
func requireOwner(ctx context.Context, members *repository.MemberRepository, householdID, requesterID uint) (*model.Member, error) {
	member, err := members.FindByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("member %d is not part of household %d: %w", requesterID, householdID, model.ErrForbidden)
		}
		return nil, err
	}
	if member.HouseholdID != householdID || !member.IsActive || !member.IsOwner() {
		return nil, fmt.Errorf("member %d does not own household %d: %w", requesterID, householdID, model.ErrForbidden)
	}
	return member, nil
}

// leastLoaded picks the candidate with the strictly lowest load; ties go to the
// lowest member id. candidates must be sorted by id ascending.
func leastLoaded(candidates []uint, loads map[uint]int) (uint, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	best := candidates[0]
	for _, id := range candidates[1:] {
		if loads[id] < loads[best] {
			best = id
		}
	}
	return best, true
}
