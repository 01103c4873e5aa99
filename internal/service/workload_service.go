package service

import (
	"context"
	"fmt"
	"time"

	"chore-planner/internal/model"
	"chore-planner/internal/recurrence"
	"chore-planner/internal/repository"
)

// PriorityWeights multiply a task's effort into load. Only their order matters:
// Low < Medium < High.
type PriorityWeights struct {
	Low    int `yaml:"low"`
	Medium int `yaml:"medium"`
	High   int `yaml:"high"`
}

func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{Low: 1, Medium: 2, High: 3}
}

func (w PriorityWeights) Validate() error {
	if w.Low <= 0 || w.Low >= w.Medium || w.Medium >= w.High {
		return fmt.Errorf("priority weights must satisfy 0 < low < medium < high, got %d/%d/%d", w.Low, w.Medium, w.High)
	}
	return nil
}

func (w PriorityWeights) For(p model.Priority) int {
	switch p {
	case model.PriorityLow:
		return w.Low
	case model.PriorityMedium:
		return w.Medium
	case model.PriorityHigh:
		return w.High
	default:
		return 0
	}
}

// WorkloadService scores how busy each member is in the active week.
type WorkloadService struct {
	taskRepo      *repository.TaskRepository
	executionRepo *repository.ExecutionRepository
	weights       PriorityWeights
}

func NewWorkloadService(taskRepo *repository.TaskRepository, executionRepo *repository.ExecutionRepository, weights PriorityWeights) *WorkloadService {
	return &WorkloadService{taskRepo: taskRepo, executionRepo: executionRepo, weights: weights}
}

// Weight is priority weight times estimated effort.
func (s *WorkloadService) Weight(task model.Task) int {
	return s.weightOf(task.Priority, task.EstimatedEffortMinutes)
}

func (s *WorkloadService) weightOf(p model.Priority, effort int) int {
	return s.weights.For(p) * effort
}

// ComputeLoads returns the weighted load of every requested member: active tasks
// assigned to them (due or not) plus counting completions they recorded in the
// week of asOf. Every requested member gets an entry, zero included.
func (s *WorkloadService) ComputeLoads(ctx context.Context, householdID uint, memberIDs []uint, asOf time.Time) (map[uint]int, error) {
	loads := make(map[uint]int, len(memberIDs))
	for _, id := range memberIDs {
		loads[id] = 0
	}

	assigned, err := s.taskRepo.ListAssignedActive(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("compute loads: %w", err)
	}
	for _, task := range assigned {
		if _, ok := loads[*task.AssignedMemberID]; ok {
			loads[*task.AssignedMemberID] += s.Weight(task)
		}
	}

	credits, err := s.executionRepo.ListWeeklyCredits(ctx, householdID, recurrence.WeekStart(asOf))
	if err != nil {
		return nil, fmt.Errorf("compute loads: %w", err)
	}
	for _, credit := range credits {
		if _, ok := loads[credit.MemberID]; ok {
			loads[credit.MemberID] += s.weightOf(credit.Priority, credit.EstimatedEffortMinutes)
		}
	}

	return loads, nil
}
