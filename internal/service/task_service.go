package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"chore-planner/internal/model"
	"chore-planner/internal/recurrence"
	"chore-planner/internal/repository"
)

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo   *repository.TaskRepository
	memberRepo *repository.MemberRepository
	ledger     *LedgerService
	photos     PhotoStore
	clock      Clock
}

func NewTaskService(taskRepo *repository.TaskRepository, memberRepo *repository.MemberRepository, ledger *LedgerService, photos PhotoStore, clock Clock) *TaskService {
	if photos == nil {
		photos = NopPhotoStore{}
	}
	return &TaskService{taskRepo: taskRepo, memberRepo: memberRepo, ledger: ledger, photos: photos, clock: clock}
}

// CreateTask validates input and stores an unassigned active task. Owner only.
func (s *TaskService) CreateTask(ctx context.Context, requesterID uint, input TaskInput) (*model.Task, error) {
	if _, err := requireOwner(ctx, s.memberRepo, input.HouseholdID, requesterID); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := ValidateTask(input, now); err != nil {
		return nil, err
	}

	task := model.Task{
		HouseholdID:            input.HouseholdID,
		CreatedByID:            requesterID,
		Title:                  strings.TrimSpace(input.Title),
		Description:            strings.TrimSpace(input.Description),
		Kind:                   input.Kind,
		Priority:               input.Priority,
		EstimatedEffortMinutes: input.EstimatedEffortMinutes,
		IsActive:               true,
		CreatedAt:              now,
	}
	if input.Kind == model.KindRecurring {
		rule, _ := recurrence.Parse(input.RecurrenceRule)
		task.RecurrenceRule = rule.String()
		task.RecurrenceEndDate = utcPtr(input.RecurrenceEndDate)
	} else {
		task.DueDate = utcPtr(input.DueDate)
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}

	log.Info().
		Uint("task_id", task.ID).
		Uint("household_id", task.HouseholdID).
		Str("kind", string(task.Kind)).
		Msg("task created")
	return &task, nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, taskID)
}

func (s *TaskService) ListTasks(ctx context.Context, householdID uint) ([]model.Task, error) {
	return s.taskRepo.ListByHousehold(ctx, householdID)
}

// Assign sets the assignee by hand. Owner only; the member must be active in the
// task's household.
func (s *TaskService) Assign(ctx context.Context, taskID, memberID, requesterID uint) error {
	task, err := s.ownedTask(ctx, taskID, requesterID)
	if err != nil {
		return err
	}
	member, err := s.memberRepo.FindByID(ctx, memberID)
	if err != nil {
		return err
	}
	if member.HouseholdID != task.HouseholdID || !member.IsActive {
		return fmt.Errorf("member %d in household %d: %w", memberID, task.HouseholdID, model.ErrNotFound)
	}
	return s.taskRepo.SetAssignee(ctx, task.ID, &member.ID)
}

// Unassign returns the task to the pool of the next auto-assignment. Owner only.
func (s *TaskService) Unassign(ctx context.Context, taskID, requesterID uint) error {
	task, err := s.ownedTask(ctx, taskID, requesterID)
	if err != nil {
		return err
	}
	return s.taskRepo.SetAssignee(ctx, task.ID, nil)
}

// SetActive switches a task in or out of scheduling. Owner only.
func (s *TaskService) SetActive(ctx context.Context, taskID, requesterID uint, active bool) error {
	task, err := s.ownedTask(ctx, taskID, requesterID)
	if err != nil {
		return err
	}
	return s.taskRepo.SetActive(ctx, task.ID, active)
}

// DeleteTask removes a task with its history and releases attached photos. Owner only.
func (s *TaskService) DeleteTask(ctx context.Context, taskID, requesterID uint) (*model.Task, error) {
	task, err := s.ownedTask(ctx, taskID, requesterID)
	if err != nil {
		return nil, err
	}
	photos, err := s.taskRepo.Delete(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	for _, path := range photos {
		if err := s.photos.Release(ctx, path); err != nil {
			log.Warn().Err(err).Uint("task_id", task.ID).Str("photo_path", path).Msg("release photo")
		}
	}
	log.Info().Uint("task_id", task.ID).Int("photos", len(photos)).Msg("task deleted")
	return task, nil
}

// CompleteTask records a completion by memberID at the current instant.
func (s *TaskService) CompleteTask(ctx context.Context, taskID, memberID uint, notes string) (*model.Execution, error) {
	return s.ledger.RecordCompletion(ctx, CompletionInput{
		TaskID:      taskID,
		MemberID:    memberID,
		Notes:       notes,
		CompletedAt: s.clock.Now(),
	})
}

func (s *TaskService) ownedTask(ctx context.Context, taskID, requesterID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := requireOwner(ctx, s.memberRepo, task.HouseholdID, requesterID); err != nil {
		return nil, err
	}
	return task, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
