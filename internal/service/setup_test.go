package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chore-planner/internal/model"
	"chore-planner/internal/repository"
)

// Wednesday; the week starts on monday below.
var (
	monday = time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)
	today  = time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)
)

type recordingPhotoStore struct {
	mu       sync.Mutex
	released []string
}

func (s *recordingPhotoStore) Release(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, path)
	return nil
}

type testEnv struct {
	db          *gorm.DB
	now         time.Time
	taskRepo    *repository.TaskRepository
	memberRepo  *repository.MemberRepository
	execRepo    *repository.ExecutionRepository
	workload    *WorkloadService
	ledger      *LedgerService
	rotation    *RotationService
	assignments *AssignmentService
	tasks       *TaskService
	households  *HouseholdService
	photos      *recordingPhotoStore
	household   *model.Household
	owner       *model.Member
}

// newTestEnv wires every service on an in-memory database with a pinned clock
// and a household owned by "owner".
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := repository.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		db:         db,
		now:        today,
		taskRepo:   repository.NewTaskRepository(db),
		memberRepo: repository.NewMemberRepository(db),
		execRepo:   repository.NewExecutionRepository(db),
		photos:     &recordingPhotoStore{},
	}
	clock := Clock(func() time.Time { return env.now })

	env.workload = NewWorkloadService(env.taskRepo, env.execRepo, DefaultPriorityWeights())
	env.ledger = NewLedgerService(env.taskRepo, env.memberRepo, env.execRepo, env.photos, clock)
	env.rotation = NewRotationService(env.taskRepo, env.memberRepo, env.workload, clock)
	env.assignments = NewAssignmentService(env.taskRepo, env.memberRepo, env.execRepo, env.workload, env.rotation, clock)
	env.tasks = NewTaskService(env.taskRepo, env.memberRepo, env.ledger, env.photos, clock)
	env.households = NewHouseholdService(repository.NewHouseholdRepository(db), env.memberRepo)

	env.household, env.owner, err = env.households.Create(context.Background(), "Flat 4", "owner", 1000)
	require.NoError(t, err)
	return env
}

func (e *testEnv) addMember(t *testing.T, name string) *model.Member {
	t.Helper()
	member := &model.Member{HouseholdID: e.household.ID, Name: name, Role: model.RoleMember, IsActive: true}
	require.NoError(t, e.memberRepo.Create(context.Background(), member))
	return member
}

// addWeekly stores a task due every day of the week, anchored on monday.
func (e *testEnv) addWeekly(t *testing.T, title string, priority model.Priority, effort int) *model.Task {
	t.Helper()
	return e.addTask(t, &model.Task{
		Title:                  title,
		Kind:                   model.KindRecurring,
		RecurrenceRule:         "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR,SA,SU",
		Priority:               priority,
		EstimatedEffortMinutes: effort,
	})
}

func (e *testEnv) addOneTime(t *testing.T, title string, due time.Time) *model.Task {
	t.Helper()
	return e.addTask(t, &model.Task{
		Title:                  title,
		Kind:                   model.KindOneTime,
		DueDate:                &due,
		Priority:               model.PriorityMedium,
		EstimatedEffortMinutes: 30,
	})
}

func (e *testEnv) addTask(t *testing.T, task *model.Task) *model.Task {
	t.Helper()
	task.HouseholdID = e.household.ID
	task.CreatedByID = e.owner.ID
	task.IsActive = true
	if task.CreatedAt.IsZero() {
		task.CreatedAt = monday
	}
	require.NoError(t, e.taskRepo.Create(context.Background(), task))
	return task
}

func (e *testEnv) reload(t *testing.T, taskID uint) *model.Task {
	t.Helper()
	task, err := e.taskRepo.FindByID(context.Background(), taskID)
	require.NoError(t, err)
	return task
}

func countByMember(plan *Plan) map[uint]int {
	counts := make(map[uint]int)
	for _, a := range plan.Assignments {
		counts[a.MemberID]++
	}
	return counts
}
