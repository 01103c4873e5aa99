package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"chore-planner/internal/model"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, notFound(err, "find task")
	}
	return &task, nil
}

// ListByHousehold returns every task of a household, active ones first.
func (r *TaskRepository) ListByHousehold(ctx context.Context, householdID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("household_id = ?", householdID).
		Order("is_active DESC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListUnassignedActive returns the candidates for automatic assignment.
func (r *TaskRepository) ListUnassignedActive(ctx context.Context, householdID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("household_id = ? AND is_active = ? AND assigned_member_id IS NULL", householdID, true).
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list unassigned tasks: %w", err)
	}
	return tasks, nil
}

// ListAssignedActive returns active tasks that already have an assignee.
func (r *TaskRepository) ListAssignedActive(ctx context.Context, householdID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("household_id = ? AND is_active = ? AND assigned_member_id IS NOT NULL", householdID, true).
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list assigned tasks: %w", err)
	}
	return tasks, nil
}

// SetAssignee writes the assignee of an active task in its own transaction.
// A nil memberID unassigns the task.
func (r *TaskRepository) SetAssignee(ctx context.Context, taskID uint, memberID *uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Task{}).
			Where("id = ? AND is_active = ?", taskID, true).
			Update("assigned_member_id", memberID)
		if err := result.Error; err != nil {
			return fmt.Errorf("assign task: %w", err)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("assign task %d: %w", taskID, model.ErrNotFound)
		}
		return nil
	})
}

func (r *TaskRepository) SetActive(ctx context.Context, taskID uint, active bool) error {
	result := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", taskID).Update("is_active", active)
	if err := result.Error; err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("set task status %d: %w", taskID, model.ErrNotFound)
	}
	return nil
}

// Delete removes a task with its executions and returns the photo paths that
// were attached to them, so the caller can release the files.
func (r *TaskRepository) Delete(ctx context.Context, taskID uint) ([]string, error) {
	var photos []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Execution{}).
			Where("task_id = ? AND photo_path <> ''", taskID).
			Pluck("photo_path", &photos).Error; err != nil {
			return fmt.Errorf("collect photos: %w", err)
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&model.Execution{}).Error; err != nil {
			return fmt.Errorf("delete executions: %w", err)
		}
		result := tx.Delete(&model.Task{}, taskID)
		if err := result.Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("delete task %d: %w", taskID, model.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return photos, nil
}
