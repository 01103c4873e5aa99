package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chore-planner/internal/model"
	"chore-planner/internal/recurrence"
	"chore-planner/internal/repository"
)

// CompletionInput describes one completion action.
type CompletionInput struct {
	TaskID      uint
	MemberID    uint
	Notes       string
	PhotoPath   string
	CompletedAt time.Time // zero means now
}

// LedgerService records completions and answers weekly completion questions.
// Executions are never deleted to reopen a week; they are flagged instead.
type LedgerService struct {
	taskRepo      *repository.TaskRepository
	memberRepo    *repository.MemberRepository
	executionRepo *repository.ExecutionRepository
	photos        PhotoStore
	clock         Clock
}

func NewLedgerService(taskRepo *repository.TaskRepository, memberRepo *repository.MemberRepository, executionRepo *repository.ExecutionRepository, photos PhotoStore, clock Clock) *LedgerService {
	if photos == nil {
		photos = NopPhotoStore{}
	}
	return &LedgerService{
		taskRepo:      taskRepo,
		memberRepo:    memberRepo,
		executionRepo: executionRepo,
		photos:        photos,
		clock:         clock,
	}
}

// RecordCompletion appends an execution for the week owning CompletedAt.
// A recurring task may count only once per week; a one-time task is deactivated
// together with the insert.
func (s *LedgerService) RecordCompletion(ctx context.Context, input CompletionInput) (*model.Execution, error) {
	task, err := s.taskRepo.FindByID(ctx, input.TaskID)
	if err != nil {
		return nil, err
	}
	member, err := s.memberRepo.FindByID(ctx, input.MemberID)
	if err != nil {
		return nil, err
	}
	if member.HouseholdID != task.HouseholdID || !member.IsActive {
		return nil, fmt.Errorf("member %d in household %d: %w", member.ID, task.HouseholdID, model.ErrNotFound)
	}
	if !task.IsActive {
		return nil, model.NewValidationError("isActive", "task %d is inactive and cannot be completed", task.ID)
	}

	completedAt := input.CompletedAt
	if completedAt.IsZero() {
		completedAt = s.clock.Now()
	}
	completedAt = completedAt.UTC()
	weekStarting := recurrence.WeekStart(completedAt)

	if task.IsRecurring() {
		_, err := s.executionRepo.FindCounting(ctx, task.ID, weekStarting)
		switch {
		case err == nil:
			return nil, fmt.Errorf("task %d week %s: %w", task.ID, weekStarting.Format("2006-01-02"), model.ErrDuplicateCompletion)
		case !errors.Is(err, model.ErrNotFound):
			return nil, err
		}
	}

	execution := &model.Execution{
		ID:           uuid.New().String(),
		TaskID:       task.ID,
		MemberID:     member.ID,
		TaskKind:     task.Kind,
		CompletedAt:  completedAt,
		WeekStarting: weekStarting,
		Notes:        strings.TrimSpace(input.Notes),
		PhotoPath:    input.PhotoPath,
	}
	// The unique index closes the window between the check above and this insert.
	if err := s.executionRepo.Create(ctx, execution, !task.IsRecurring()); err != nil {
		if errors.Is(err, model.ErrDuplicateCompletion) {
			return nil, fmt.Errorf("task %d week %s: %w", task.ID, weekStarting.Format("2006-01-02"), err)
		}
		return nil, err
	}

	log.Info().
		Uint("task_id", task.ID).
		Uint("member_id", member.ID).
		Str("execution_id", execution.ID).
		Time("week_starting", weekStarting).
		Msg("completion recorded")
	return execution, nil
}

// IsCompletedThisWeek reports whether a counting execution exists for the current week.
func (s *LedgerService) IsCompletedThisWeek(ctx context.Context, taskID uint) (bool, error) {
	if _, err := s.taskRepo.FindByID(ctx, taskID); err != nil {
		return false, err
	}
	_, err := s.executionRepo.FindCounting(ctx, taskID, recurrence.WeekStart(s.clock.Now()))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, model.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// InvalidateCurrentWeek reopens a task for the current week. Owner only.
// A one-time task closed by that completion becomes active again.
func (s *LedgerService) InvalidateCurrentWeek(ctx context.Context, taskID, requesterID uint) error {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if _, err := requireOwner(ctx, s.memberRepo, task.HouseholdID, requesterID); err != nil {
		return err
	}

	weekStarting := recurrence.WeekStart(s.clock.Now())
	execution, err := s.executionRepo.FindCounting(ctx, taskID, weekStarting)
	if err != nil {
		return err
	}
	if err := s.executionRepo.Invalidate(ctx, execution.ID, !task.IsRecurring()); err != nil {
		return err
	}

	log.Info().
		Uint("task_id", taskID).
		Uint("requester_id", requesterID).
		Str("execution_id", execution.ID).
		Msg("week invalidated")
	return nil
}

// GetLatest returns the most recent execution of a task whether it counts or
// not, or nil when the task was never completed.
func (s *LedgerService) GetLatest(ctx context.Context, taskID uint) (*model.Execution, error) {
	execution, err := s.executionRepo.Latest(ctx, taskID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	return execution, err
}

// History lists every execution of a task, newest first, invalidated ones included.
func (s *LedgerService) History(ctx context.Context, taskID uint) ([]model.Execution, error) {
	if _, err := s.taskRepo.FindByID(ctx, taskID); err != nil {
		return nil, err
	}
	return s.executionRepo.ListByTask(ctx, taskID)
}

// UpdateNotes edits the notes and photo of an execution. Allowed for its creator
// and household owners. A replaced photo is released.
func (s *LedgerService) UpdateNotes(ctx context.Context, executionID string, requesterID uint, notes, photoPath string) error {
	execution, err := s.authorizeExecution(ctx, executionID, requesterID)
	if err != nil {
		return err
	}
	if err := s.executionRepo.UpdateNotes(ctx, execution.ID, strings.TrimSpace(notes), photoPath); err != nil {
		return err
	}
	if execution.PhotoPath != "" && execution.PhotoPath != photoPath {
		s.releasePhoto(ctx, execution.PhotoPath)
	}
	return nil
}

// DeleteExecution removes an execution and releases its photo. Allowed for its
// creator and household owners.
func (s *LedgerService) DeleteExecution(ctx context.Context, executionID string, requesterID uint) error {
	execution, err := s.authorizeExecution(ctx, executionID, requesterID)
	if err != nil {
		return err
	}
	if err := s.executionRepo.Delete(ctx, execution.ID); err != nil {
		return err
	}
	if execution.PhotoPath != "" {
		s.releasePhoto(ctx, execution.PhotoPath)
	}
	log.Info().Str("execution_id", execution.ID).Uint("requester_id", requesterID).Msg("execution deleted")
	return nil
}

func (s *LedgerService) authorizeExecution(ctx context.Context, executionID string, requesterID uint) (*model.Execution, error) {
	execution, err := s.executionRepo.FindByID(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if execution.MemberID == requesterID {
		return execution, nil
	}
	task, err := s.taskRepo.FindByID(ctx, execution.TaskID)
	if err != nil {
		return nil, err
	}
	if _, err := requireOwner(ctx, s.memberRepo, task.HouseholdID, requesterID); err != nil {
		return nil, err
	}
	return execution, nil
}

func (s *LedgerService) releasePhoto(ctx context.Context, path string) {
	if err := s.photos.Release(ctx, path); err != nil {
		log.Warn().Err(err).Str("photo_path", path).Msg("release photo")
	}
}
