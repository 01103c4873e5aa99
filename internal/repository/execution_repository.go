package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"chore-planner/internal/model"
)

// ExecutionRepository stores completion records.
type ExecutionRepository struct {
	db *gorm.DB
}

func NewExecutionRepository(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// WeeklyCredit is one counting completion of an active task, reduced to what
// workload scoring needs.
type WeeklyCredit struct {
	TaskID                 uint
	MemberID               uint
	Priority               model.Priority
	EstimatedEffortMinutes int
}

// Create inserts an execution. When deactivateTask is set the task is switched
// off in the same transaction, which is how one-time tasks close.
func (r *ExecutionRepository) Create(ctx context.Context, execution *model.Execution, deactivateTask bool) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(execution).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return model.ErrDuplicateCompletion
			}
			return fmt.Errorf("create execution: %w", err)
		}
		if !deactivateTask {
			return nil
		}
		result := tx.Model(&model.Task{}).Where("id = ?", execution.TaskID).Update("is_active", false)
		if err := result.Error; err != nil {
			return fmt.Errorf("deactivate task: %w", err)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("deactivate task %d: %w", execution.TaskID, model.ErrNotFound)
		}
		return nil
	})
	return err
}

func (r *ExecutionRepository) FindByID(ctx context.Context, id string) (*model.Execution, error) {
	var execution model.Execution
	if err := r.db.WithContext(ctx).First(&execution, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "find execution")
	}
	return &execution, nil
}

// FindCounting returns the execution that counts as the task's completion in the
// given week.
func (r *ExecutionRepository) FindCounting(ctx context.Context, taskID uint, weekStarting time.Time) (*model.Execution, error) {
	var execution model.Execution
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND week_starting = ?", taskID, weekStarting.UTC()).
		Where("(counts_for_completion IS NULL OR counts_for_completion = ?)", true).
		Order("completed_at DESC").
		First(&execution).Error
	if err != nil {
		return nil, notFound(err, "find counting execution")
	}
	return &execution, nil
}

// Latest returns the most recent execution regardless of invalidation.
func (r *ExecutionRepository) Latest(ctx context.Context, taskID uint) (*model.Execution, error) {
	var execution model.Execution
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).
		Order("completed_at DESC").
		First(&execution).Error; err != nil {
		return nil, notFound(err, "find latest execution")
	}
	return &execution, nil
}

// ListByTask returns the full history of a task, newest first.
func (r *ExecutionRepository) ListByTask(ctx context.Context, taskID uint) ([]model.Execution, error) {
	var executions []model.Execution
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).
		Order("completed_at DESC").
		Find(&executions).Error; err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	return executions, nil
}

// ListWeeklyCredits returns counting executions of the household's active tasks
// recorded for the given week.
func (r *ExecutionRepository) ListWeeklyCredits(ctx context.Context, householdID uint, weekStarting time.Time) ([]WeeklyCredit, error) {
	var credits []WeeklyCredit
	err := r.db.WithContext(ctx).
		Table("executions").
		Select("executions.task_id, executions.member_id, tasks.priority, tasks.estimated_effort_minutes").
		Joins("JOIN tasks ON tasks.id = executions.task_id").
		Where("tasks.household_id = ? AND tasks.is_active = ?", householdID, true).
		Where("executions.week_starting = ?", weekStarting.UTC()).
		Where("(executions.counts_for_completion IS NULL OR executions.counts_for_completion = ?)", true).
		Order("executions.completed_at ASC").
		Scan(&credits).Error
	if err != nil {
		return nil, fmt.Errorf("list weekly credits: %w", err)
	}
	return credits, nil
}

// Invalidate marks an execution as not counting. The record itself stays.
// When reactivateTask is set the task is switched back on in the same
// transaction, which is how a closed one-time task reopens.
func (r *ExecutionRepository) Invalidate(ctx context.Context, id string, reactivateTask bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var execution model.Execution
		if err := tx.First(&execution, "id = ?", id).Error; err != nil {
			return notFound(err, "find execution")
		}
		result := tx.Model(&model.Execution{}).Where("id = ?", id).Update("counts_for_completion", false)
		if err := result.Error; err != nil {
			return fmt.Errorf("invalidate execution: %w", err)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("invalidate execution %s: %w", id, model.ErrNotFound)
		}
		if !reactivateTask {
			return nil
		}
		result = tx.Model(&model.Task{}).Where("id = ?", execution.TaskID).Update("is_active", true)
		if err := result.Error; err != nil {
			return fmt.Errorf("reactivate task: %w", err)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("reactivate task %d: %w", execution.TaskID, model.ErrNotFound)
		}
		return nil
	})
}

func (r *ExecutionRepository) UpdateNotes(ctx context.Context, id, notes, photoPath string) error {
	result := r.db.WithContext(ctx).Model(&model.Execution{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"notes":      notes,
			"photo_path": photoPath,
		})
	if err := result.Error; err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update execution %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (r *ExecutionRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&model.Execution{}, "id = ?", id)
	if err := result.Error; err != nil {
		return fmt.Errorf("delete execution: %w", err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete execution %s: %w", id, model.ErrNotFound)
	}
	return nil
}
