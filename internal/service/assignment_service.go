package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"chore-planner/internal/model"
	"chore-planner/internal/recurrence"
	"chore-planner/internal/repository"
)

// Reasons a candidate task stays out of a plan.
const (
	SkipNotDue            = "not due this week"
	SkipCompletedThisWeek = "already completed this week"
	SkipNoMembers         = "no eligible members"
)

// Assignment is one line of a plan. LoadBefore and LoadAfter are the chosen
// member's running load around this task, which makes the choice explainable.
type Assignment struct {
	TaskID     uint
	TaskTitle  string
	MemberID   uint
	Weight     int
	LoadBefore int
	LoadAfter  int
	Err        error // set by commit when this task's write failed
}

// Skip records why an unassigned task was left out.
type Skip struct {
	TaskID    uint
	TaskTitle string
	Reason    string
}

// Plan is the ordered result of an auto-assignment pass.
type Plan struct {
	HouseholdID  uint
	WeekStarting time.Time
	GeneratedAt  time.Time
	Committed    bool
	Assignments  []Assignment
	Skipped      []Skip
}

func (p *Plan) clone() *Plan {
	c := *p
	c.Assignments = append([]Assignment(nil), p.Assignments...)
	c.Skipped = append([]Skip(nil), p.Skipped...)
	return &c
}

// Failed returns the assignments whose commit did not persist.
func (p *Plan) Failed() []Assignment {
	var failed []Assignment
	for _, a := range p.Assignments {
		if a.Err != nil {
			failed = append(failed, a)
		}
	}
	return failed
}

// AssignmentService distributes unassigned due tasks across household members.
type AssignmentService struct {
	taskRepo      *repository.TaskRepository
	memberRepo    *repository.MemberRepository
	executionRepo *repository.ExecutionRepository
	workload      *WorkloadService
	rotation      *RotationService
	clock         Clock
	commits       singleflight.Group
}

func NewAssignmentService(
	taskRepo *repository.TaskRepository,
	memberRepo *repository.MemberRepository,
	executionRepo *repository.ExecutionRepository,
	workload *WorkloadService,
	rotation *RotationService,
	clock Clock,
) *AssignmentService {
	return &AssignmentService{
		taskRepo:      taskRepo,
		memberRepo:    memberRepo,
		executionRepo: executionRepo,
		workload:      workload,
		rotation:      rotation,
		clock:         clock,
	}
}

// PreviewAutoAssign computes the plan without writing anything.
func (s *AssignmentService) PreviewAutoAssign(ctx context.Context, householdID uint) (*Plan, error) {
	return s.buildPlan(ctx, householdID, s.clock.Now())
}

// CommitAutoAssignAs checks that the requester owns the household, then commits.
func (s *AssignmentService) CommitAutoAssignAs(ctx context.Context, householdID, requesterID uint) (*Plan, error) {
	if _, err := requireOwner(ctx, s.memberRepo, householdID, requesterID); err != nil {
		return nil, err
	}
	return s.CommitAutoAssign(ctx, householdID)
}

// CommitAutoAssign builds the plan and persists it task by task, in plan order.
// A failed task write is recorded on its Assignment and the batch continues.
// Concurrent commits for one household in this process share a single run; the
// run is not tied to any one caller, and each caller stops waiting when its own
// ctx is done.
func (s *AssignmentService) CommitAutoAssign(ctx context.Context, householdID uint) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := strconv.FormatUint(uint64(householdID), 10)
	results := s.commits.DoChan(key, func() (interface{}, error) {
		return s.commit(context.WithoutCancel(ctx), householdID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Plan).clone(), nil
	}
}

// Reassign moves a single task to the least loaded other member.
func (s *AssignmentService) Reassign(ctx context.Context, taskID, requesterID uint) (uint, error) {
	return s.rotation.Reassign(ctx, taskID, requesterID)
}

func (s *AssignmentService) commit(ctx context.Context, householdID uint) (*Plan, error) {
	plan, err := s.buildPlan(ctx, householdID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	for i := range plan.Assignments {
		a := &plan.Assignments[i]
		if err := ctx.Err(); err != nil {
			a.Err = err
			continue
		}
		memberID := a.MemberID
		if err := s.taskRepo.SetAssignee(ctx, a.TaskID, &memberID); err != nil {
			a.Err = err
			log.Warn().Err(err).
				Uint("household_id", householdID).
				Uint("task_id", a.TaskID).
				Uint("member_id", a.MemberID).
				Msg("assignment not persisted")
		}
	}
	plan.Committed = true

	log.Info().
		Uint("household_id", householdID).
		Int("assigned", len(plan.Assignments)-len(plan.Failed())).
		Int("failed", len(plan.Failed())).
		Int("skipped", len(plan.Skipped)).
		Msg("assignment committed")
	return plan, nil
}

// buildPlan is the greedy pass: candidates in (priority desc, effort desc, id asc)
// order, each to the member with the lowest running load, ties to the lowest id.
// The chosen member's load grows before the next task is placed.
func (s *AssignmentService) buildPlan(ctx context.Context, householdID uint, asOf time.Time) (*Plan, error) {
	plan := &Plan{
		HouseholdID:  householdID,
		WeekStarting: recurrence.WeekStart(asOf),
		GeneratedAt:  asOf,
	}

	tasks, err := s.taskRepo.ListUnassignedActive(ctx, householdID)
	if err != nil {
		return nil, err
	}
	completed, err := s.completedThisWeek(ctx, householdID, plan.WeekStarting)
	if err != nil {
		return nil, err
	}

	var candidates []model.Task
	for _, task := range tasks {
		due, err := recurrence.Due(task, asOf)
		switch {
		case err != nil:
			plan.Skipped = append(plan.Skipped, Skip{TaskID: task.ID, TaskTitle: task.Title, Reason: err.Error()})
		case !due:
			plan.Skipped = append(plan.Skipped, Skip{TaskID: task.ID, TaskTitle: task.Title, Reason: SkipNotDue})
		case completed[task.ID]:
			plan.Skipped = append(plan.Skipped, Skip{TaskID: task.ID, TaskTitle: task.Title, Reason: SkipCompletedThisWeek})
		default:
			candidates = append(candidates, task)
		}
	}
	sortCandidates(candidates)

	members, err := s.memberRepo.ListActive(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		for _, task := range candidates {
			plan.Skipped = append(plan.Skipped, Skip{TaskID: task.ID, TaskTitle: task.Title, Reason: SkipNoMembers})
		}
		return plan, nil
	}
	memberIDs := make([]uint, 0, len(members))
	for _, m := range members {
		memberIDs = append(memberIDs, m.ID)
	}
	sort.Slice(memberIDs, func(i, j int) bool { return memberIDs[i] < memberIDs[j] })

	loads, err := s.workload.ComputeLoads(ctx, householdID, memberIDs, asOf)
	if err != nil {
		return nil, err
	}

	for _, task := range candidates {
		memberID, _ := leastLoaded(memberIDs, loads)
		weight := s.workload.Weight(task)
		before := loads[memberID]
		loads[memberID] = before + weight
		plan.Assignments = append(plan.Assignments, Assignment{
			TaskID:     task.ID,
			TaskTitle:  task.Title,
			MemberID:   memberID,
			Weight:     weight,
			LoadBefore: before,
			LoadAfter:  loads[memberID],
		})
	}
	return plan, nil
}

func (s *AssignmentService) completedThisWeek(ctx context.Context, householdID uint, weekStarting time.Time) (map[uint]bool, error) {
	credits, err := s.executionRepo.ListWeeklyCredits(ctx, householdID, weekStarting)
	if err != nil {
		return nil, fmt.Errorf("load weekly completions: %w", err)
	}
	done := make(map[uint]bool, len(credits))
	for _, c := range credits {
		done[c.TaskID] = true
	}
	return done, nil
}

func sortCandidates(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.EstimatedEffortMinutes != b.EstimatedEffortMinutes {
			return a.EstimatedEffortMinutes > b.EstimatedEffortMinutes
		}
		return a.ID < b.ID
	})
}
