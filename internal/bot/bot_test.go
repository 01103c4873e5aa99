package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chore-planner/internal/model"
	"chore-planner/internal/repository"
	"chore-planner/internal/service"
)

const (
	annaID  int64 = 100
	borisID int64 = 200
)

var today = time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)

type sentMessage struct {
	chatID int64
	text   string
	markup interface{}
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []sentMessage
	requests int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, sentMessage{chatID: m.ChatID, text: m.Text, markup: m.ReplyMarkup})
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
}

func (f *fakeSender) to(chatID int64) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// said reports whether any message to chatID contains substr.
func (f *fakeSender) said(chatID int64, substr string) bool {
	for _, m := range f.to(chatID) {
		if strings.Contains(m.text, substr) {
			return true
		}
	}
	return false
}

type botEnv struct {
	bot   *Bot
	api   *fakeSender
	tasks *service.TaskService
	svc   Services
}

func setupBot(t *testing.T) *botEnv {
	t.Helper()

	db, err := repository.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	clock := service.Clock(func() time.Time { return today })
	taskRepo := repository.NewTaskRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	execRepo := repository.NewExecutionRepository(db)

	workload := service.NewWorkloadService(taskRepo, execRepo, service.DefaultPriorityWeights())
	ledger := service.NewLedgerService(taskRepo, memberRepo, execRepo, nil, clock)
	rotation := service.NewRotationService(taskRepo, memberRepo, workload, clock)
	svc := Services{
		Households:  service.NewHouseholdService(repository.NewHouseholdRepository(db), memberRepo),
		Tasks:       service.NewTaskService(taskRepo, memberRepo, ledger, nil, clock),
		Ledger:      ledger,
		Workload:    workload,
		Assignments: service.NewAssignmentService(taskRepo, memberRepo, execRepo, workload, rotation, clock),
		Clock:       clock,
	}

	api := &fakeSender{}
	return &botEnv{bot: newBot(api, svc), api: api, tasks: svc.Tasks, svc: svc}
}

func (e *botEnv) say(t *testing.T, from int64, name, text string) {
	t.Helper()
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: from, FirstName: name},
		Chat: &tgbotapi.Chat{ID: from, Type: "private"},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		command, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}}
	}
	e.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: msg})
}

func (e *botEnv) householdOf(t *testing.T, telegramID int64) uint {
	t.Helper()
	member, err := e.svc.Households.MemberByTelegramID(context.Background(), telegramID)
	require.NoError(t, err)
	return member.HouseholdID
}

func (e *botEnv) taskID(t *testing.T, householdID uint, title string) uint {
	t.Helper()
	tasks, err := e.tasks.ListTasks(context.Background(), householdID)
	require.NoError(t, err)
	for _, task := range tasks {
		if task.Title == title {
			return task.ID
		}
	}
	t.Fatalf("task %q not found", title)
	return 0
}

// setupHousehold creates Anna's household with Boris as a member and two tasks.
func (e *botEnv) setupHousehold(t *testing.T) uint {
	t.Helper()
	e.say(t, annaID, "Анна", "/household Лесная 5")
	householdID := e.householdOf(t, annaID)
	e.say(t, borisID, "Борис", fmt.Sprintf("/join %d", householdID))
	e.say(t, annaID, "Анна", "/newtask Кухня | FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR,SA,SU | medium | 30")
	e.say(t, annaID, "Анна", "/newtask Ванная | FREQ=DAILY | high | 45")
	e.api.reset()
	return householdID
}

func TestBot_Onboarding(t *testing.T) {
	env := setupBot(t)

	env.say(t, annaID, "Анна", "/tasks")
	assert.True(t, env.api.said(annaID, "Сначала создай дом"))

	env.say(t, annaID, "Анна", "/household Лесная 5")
	assert.True(t, env.api.said(annaID, "Дом «Лесная 5» создан"))
	householdID := env.householdOf(t, annaID)

	env.say(t, annaID, "Анна", "/household Ещё один")
	assert.True(t, env.api.said(annaID, "уже состоишь"))

	env.say(t, borisID, "Борис", "/join 999")
	assert.True(t, env.api.said(borisID, "Не найдено"))
	env.say(t, borisID, "Борис", fmt.Sprintf("/join %d", householdID))
	assert.True(t, env.api.said(borisID, fmt.Sprintf("Ты в доме #%d", householdID)))

	env.say(t, borisID, "Борис", "/start")
	assert.True(t, env.api.said(borisID, fmt.Sprintf("Ты состоишь в доме #%d", householdID)))
}

func TestBot_NewTask(t *testing.T) {
	env := setupBot(t)
	householdID := env.setupHousehold(t)

	env.say(t, borisID, "Борис", "/newtask Пылесос | FREQ=WEEKLY;BYDAY=SA | medium | 30")
	assert.True(t, env.api.said(borisID, "только владелец"))

	env.say(t, annaID, "Анна", "/newtask Пылесос | FREQ=WEEKLY | medium | 30")
	assert.True(t, env.api.said(annaID, "BYDAY is required"))

	env.say(t, annaID, "Анна", "/newtask Пылесос")
	assert.True(t, env.api.said(annaID, "Неверные данные"))

	env.say(t, annaID, "Анна", "/newtask Лампочка | 2026-10-20 | low | 10")
	assert.True(t, env.api.said(annaID, "«Лампочка» создана"))
	assert.NotZero(t, env.taskID(t, householdID, "Лампочка"))
}

func TestBot_AssignAndNotify(t *testing.T) {
	env := setupBot(t)
	householdID := env.setupHousehold(t)

	env.say(t, borisID, "Борис", "/preview")
	assert.True(t, env.api.said(borisID, "План распределения"))

	env.say(t, borisID, "Борис", "/assign")
	assert.True(t, env.api.said(borisID, "только владелец"))
	env.api.reset()

	env.say(t, annaID, "Анна", "/assign")
	assert.True(t, env.api.said(annaID, "Задачи распределены"))
	assert.True(t, env.api.said(annaID, "Ванная → Анна"))
	assert.True(t, env.api.said(annaID, "Кухня → Борис"))

	borisInbox := env.api.to(borisID)
	require.Len(t, borisInbox, 1)
	assert.Contains(t, borisInbox[0].text, "Твои задачи")
	assert.Contains(t, borisInbox[0].text, "Кухня")
	markup, ok := borisInbox[0].markup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, fmt.Sprintf("done:%d", env.taskID(t, householdID, "Кухня")), *markup.InlineKeyboard[0][0].CallbackData)

	env.api.reset()
	env.say(t, annaID, "Анна", "/assign")
	assert.True(t, env.api.said(annaID, "Нечего распределять"))
	assert.Empty(t, env.api.to(borisID), "nothing new to notify")
}

func TestBot_CompletionLifecycle(t *testing.T) {
	env := setupBot(t)
	householdID := env.setupHousehold(t)
	kitchen := env.taskID(t, householdID, "Кухня")

	env.say(t, borisID, "Борис", fmt.Sprintf("/done %d всё блестит", kitchen))
	assert.True(t, env.api.said(borisID, "отмечена выполненной на неделе с 2026-10-12"))

	env.say(t, borisID, "Борис", fmt.Sprintf("/done %d", kitchen))
	assert.True(t, env.api.said(borisID, "уже отмечена выполненной"))

	env.say(t, annaID, "Анна", "/load")
	assert.True(t, env.api.said(annaID, "Борис — 60"))
	assert.True(t, env.api.said(annaID, "Анна — 0"))

	env.say(t, borisID, "Борис", fmt.Sprintf("/reopen %d", kitchen))
	assert.True(t, env.api.said(borisID, "только владелец"))
	env.say(t, annaID, "Анна", fmt.Sprintf("/reopen %d", kitchen))
	assert.True(t, env.api.said(annaID, "снова открыта"))

	env.say(t, annaID, "Анна", fmt.Sprintf("/history %d", kitchen))
	assert.True(t, env.api.said(annaID, "Борис (отменено) · всё блестит"))
}

func TestBot_CallbackCompletes(t *testing.T) {
	env := setupBot(t)
	householdID := env.setupHousehold(t)
	bath := env.taskID(t, householdID, "Ванная")

	env.bot.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: annaID, FirstName: "Анна"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: annaID, Type: "private"}},
		Data:    fmt.Sprintf("done:%d", bath),
	}})

	assert.Equal(t, 1, env.api.requests)
	assert.True(t, env.api.said(annaID, "«Ванная» отмечена выполненной"))
	assert.True(t, env.api.said(annaID, "выполнена на этой неделе"), "list is refreshed")

	done, err := env.svc.Ledger.IsCompletedThisWeek(context.Background(), bath)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestBot_ReassignAndPause(t *testing.T) {
	env := setupBot(t)
	householdID := env.setupHousehold(t)
	kitchen := env.taskID(t, householdID, "Кухня")

	env.say(t, annaID, "Анна", fmt.Sprintf("/reassign %d", kitchen))
	assert.True(t, env.api.said(annaID, "передана: Анна"))
	assert.Empty(t, env.api.to(borisID))

	env.say(t, annaID, "Анна", fmt.Sprintf("/reassign %d", kitchen))
	assert.True(t, env.api.said(annaID, "передана: Борис"))
	assert.True(t, env.api.said(borisID, "Тебе передали задачу"))

	env.say(t, annaID, "Анна", fmt.Sprintf("/unassign %d", kitchen))
	assert.True(t, env.api.said(annaID, "без исполнителя"))

	env.say(t, annaID, "Анна", fmt.Sprintf("/pause %d", kitchen))
	assert.True(t, env.api.said(annaID, "на паузе"))
	task, err := env.tasks.GetTask(context.Background(), kitchen)
	require.NoError(t, err)
	assert.False(t, task.IsActive)

	env.say(t, annaID, "Анна", fmt.Sprintf("/resume %d", kitchen))
	assert.True(t, env.api.said(annaID, "снова в работе"))
}

func TestBot_DeleteNeedsConfirmation(t *testing.T) {
	env := setupBot(t)
	householdID := env.setupHousehold(t)
	kitchen := env.taskID(t, householdID, "Кухня")

	env.say(t, borisID, "Борис", fmt.Sprintf("/delete %d", kitchen))
	assert.True(t, env.api.said(borisID, "только владелец"))

	env.say(t, annaID, "Анна", fmt.Sprintf("/delete %d", kitchen))
	assert.True(t, env.api.said(annaID, "Удалить задачу «Кухня»"))
	env.say(t, annaID, "Анна", btnCancel)
	assert.True(t, env.api.said(annaID, "Действие отменено"))
	_, err := env.tasks.GetTask(context.Background(), kitchen)
	require.NoError(t, err)

	env.say(t, annaID, "Анна", fmt.Sprintf("/delete %d", kitchen))
	env.say(t, annaID, "Анна", btnConfirm)
	assert.True(t, env.api.said(annaID, "🗑 Задача «Кухня» удалена"))
	_, err = env.tasks.GetTask(context.Background(), kitchen)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestBot_IgnoresGroupChats(t *testing.T) {
	env := setupBot(t)
	msg := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: annaID},
		Chat:     &tgbotapi.Chat{ID: -5, Type: "group"},
		Text:     "/help",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Length: 5}},
	}
	env.bot.handleUpdate(context.Background(), tgbotapi.Update{Message: msg})
	assert.Empty(t, env.api.sent)
}
