package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"chore-planner/internal/service"
)

const (
	cbDonePrefix     = "done:"
	cbReassignPrefix = "reassign:"
)

const (
	btnConfirm      = "✅ Подтвердить"
	btnCancel       = "↩️ Отмена"
	iconRecurring   = "♻️"
	iconOneTime     = "📌"
	iconDone        = "✅"
	iconDue         = "⏳"
	iconIdle        = "💤"
	iconPaused      = "⏸"
	menuLabelTasks  = "📋 Задачи"
	menuLabelPlan   = "🧮 План"
	menuLabelLoad   = "⚖️ Нагрузка"
	menuLabelHelp   = "ℹ️ Помощь"
	historyPageSize = 10
)

type confirmationAction int

const (
	actionDelete confirmationAction = iota
)

type confirmationRequest struct {
	taskID uint
	action confirmationAction
}

// sender is the part of the Telegram API the bot talks through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Services bundles what the bot calls into.
type Services struct {
	Households  *service.HouseholdService
	Tasks       *service.TaskService
	Ledger      *service.LedgerService
	Workload    *service.WorkloadService
	Assignments *service.AssignmentService
	Clock       service.Clock
}

// Bot aggregates Telegram API with services.
type Bot struct {
	client        *tgbotapi.BotAPI
	api           sender
	households    *service.HouseholdService
	tasks         *service.TaskService
	ledger        *service.LedgerService
	workload      *service.WorkloadService
	assignments   *service.AssignmentService
	clock         service.Clock
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, svc Services) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info().Str("account", client.Self.UserName).Msg("bot authorized")

	b := newBot(client, svc)
	b.client = client
	return b, nil
}

func newBot(api sender, svc Services) *Bot {
	return &Bot{
		api:           api,
		households:    svc.Households,
		tasks:         svc.Tasks,
		ledger:        svc.Ledger,
		workload:      svc.Workload,
		assignments:   svc.Assignments,
		clock:         svc.Clock,
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.client.GetUpdatesChan(updateConfig)

	log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.client.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Error().Err(err).Msg("handle callback")
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Error().Err(err).Msg("handle message")
		}
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelPlan),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelLoad),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}
