package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// SchedulerService wraps cron-based jobs.
type SchedulerService struct {
	cron *cron.Cron
}

func NewSchedulerService(loc *time.Location) *SchedulerService {
	return &SchedulerService{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
	}
}

// Schedule registers job under either a HH:MM daily time or a six-field cron spec.
func (s *SchedulerService) Schedule(spec string, job func()) (cron.EntryID, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, fmt.Errorf("empty schedule")
	}
	if strings.Count(spec, ":") == 1 && !strings.Contains(spec, " ") {
		return s.ScheduleDaily(spec, job)
	}
	return s.cron.AddFunc(spec, job)
}

// ScheduleDaily registers a daily job at the given HH:MM time string.
func (s *SchedulerService) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return s.cron.AddFunc(spec, job)
}

func (s *SchedulerService) Start() {
	s.cron.Start()
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}

// AutoAssignRunner commits auto-assignment for every household. It is the job the
// scheduler fires; tasks that were not due on the previous pass get picked up here.
type AutoAssignRunner struct {
	households  *HouseholdService
	assignments *AssignmentService
	onPlan      func(context.Context, *Plan)
}

func NewAutoAssignRunner(households *HouseholdService, assignments *AssignmentService, onPlan func(context.Context, *Plan)) *AutoAssignRunner {
	return &AutoAssignRunner{households: households, assignments: assignments, onPlan: onPlan}
}

// Run commits every household in id order. A failing household is logged and
// the rest still run; the joined errors are returned.
func (r *AutoAssignRunner) Run(ctx context.Context) error {
	households, err := r.households.ListAll(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, household := range households {
		if err := ctx.Err(); err != nil {
			return err
		}
		plan, err := r.assignments.CommitAutoAssign(ctx, household.ID)
		if err != nil {
			log.Error().Err(err).Uint("household_id", household.ID).Msg("auto-assign")
			errs = append(errs, fmt.Errorf("household %d: %w", household.ID, err))
			continue
		}
		if r.onPlan != nil && len(plan.Assignments) > 0 {
			r.onPlan(ctx, plan)
		}
	}
	return errors.Join(errs...)
}
