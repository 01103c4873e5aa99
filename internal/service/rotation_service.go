package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"chore-planner/internal/model"
	"chore-planner/internal/repository"
)

// RotationService hands a single task over to another member when the current
// assignee cannot do it.
type RotationService struct {
	taskRepo   *repository.TaskRepository
	memberRepo *repository.MemberRepository
	workload   *WorkloadService
	clock      Clock
}

func NewRotationService(taskRepo *repository.TaskRepository, memberRepo *repository.MemberRepository, workload *WorkloadService, clock Clock) *RotationService {
	return &RotationService{taskRepo: taskRepo, memberRepo: memberRepo, workload: workload, clock: clock}
}

// Reassign picks the least loaded active member other than the current assignee,
// ties broken by lowest id, and stores the new assignee. Owner only.
func (s *RotationService) Reassign(ctx context.Context, taskID, requesterID uint) (uint, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return 0, err
	}
	if _, err := requireOwner(ctx, s.memberRepo, task.HouseholdID, requesterID); err != nil {
		return 0, err
	}
	if !task.IsActive {
		return 0, model.NewValidationError("isActive", "task %d is inactive and cannot be reassigned", task.ID)
	}

	members, err := s.memberRepo.ListActive(ctx, task.HouseholdID)
	if err != nil {
		return 0, err
	}
	var candidates []uint
	for _, m := range members {
		if task.AssignedMemberID != nil && *task.AssignedMemberID == m.ID {
			continue
		}
		candidates = append(candidates, m.ID)
	}
	if len(candidates) == 0 {
		return 0, fmt.Errorf("reassign task %d: no other eligible member: %w", task.ID, model.ErrNotFound)
	}

	loads, err := s.workload.ComputeLoads(ctx, task.HouseholdID, candidates, s.clock.Now())
	if err != nil {
		return 0, err
	}
	next, _ := leastLoaded(candidates, loads)

	if err := s.taskRepo.SetAssignee(ctx, task.ID, &next); err != nil {
		return 0, err
	}

	event := log.Info().Uint("task_id", task.ID).Uint("member_id", next).Int("load", loads[next])
	if task.IsAssigned() {
		event = event.Uint("previous_member_id", *task.AssignedMemberID)
	}
	event.Msg("task reassigned")
	return next, nil
}
