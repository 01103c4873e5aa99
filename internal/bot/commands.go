package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"chore-planner/internal/model"
	"chore-planner/internal/recurrence"
	"chore-planner/internal/service"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		log.Info().Int64("telegram_id", msg.From.ID).Str("command", msg.Command()).Msg("command received")
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Загляни в /help, там список команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "household":
		return b.handleCreateHousehold(ctx, msg)
	case "join":
		return b.handleJoin(ctx, msg)
	case "newtask":
		return b.handleNewTask(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "reopen":
		return b.handleReopen(ctx, msg)
	case "preview":
		return b.handlePreview(ctx, msg)
	case "assign":
		return b.handleAssign(ctx, msg)
	case "reassign":
		return b.handleReassign(ctx, msg)
	case "unassign":
		return b.handleUnassign(ctx, msg)
	case "pause":
		return b.handleSetActive(ctx, msg, false)
	case "resume":
		return b.handleSetActive(ctx, msg, true)
	case "load":
		return b.handleLoad(ctx, msg)
	case "history":
		return b.handleHistory(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "cancel":
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "↩️ Действие отменено.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}

	text := fmt.Sprintf("👋 Привет, %s!\n<b>Я помогаю честно делить домашние дела.</b>\n\n", escape(name))
	member, err := b.households.MemberByTelegramID(ctx, msg.From.ID)
	switch {
	case err == nil:
		text += fmt.Sprintf("Ты состоишь в доме #%d. Список команд: /help", member.HouseholdID)
	case errors.Is(err, model.ErrNotFound):
		text += "Создай дом: /household &lt;название&gt;\nИли присоединись к существующему: /join &lt;номер&gt;"
	default:
		return err
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Подсказки</b>\n" +
		"• /household &lt;название&gt; — создать дом, ты станешь владельцем\n" +
		"• /join &lt;номер&gt; — присоединиться к дому\n" +
		"• /newtask Название | правило или ГГГГ-ММ-ДД | low/medium/high | минуты — новая задача (только владелец)\n" +
		"   например: /newtask Пылесос | FREQ=WEEKLY;BYDAY=SA | medium | 30\n" +
		"• /tasks — задачи дома\n" +
		"• /done &lt;id&gt; [заметка] — отметить выполнение\n" +
		"• /history &lt;id&gt; — история выполнений\n" +
		"• /load — нагрузка участников на этой неделе\n" +
		"• /preview — показать план распределения\n" +
		"• /assign — распределить задачи (владелец)\n" +
		"• /reassign &lt;id&gt; — передать задачу другому (владелец)\n" +
		"• /unassign &lt;id&gt; — снять исполнителя (владелец)\n" +
		"• /reopen &lt;id&gt; — отменить выполнение этой недели (владелец)\n" +
		"• /pause &lt;id&gt;, /resume &lt;id&gt; — приостановить или вернуть задачу (владелец)\n" +
		"• /delete &lt;id&gt; — удалить задачу вместе с историей (владелец)\n" +
		"• /cancel — отменить подтверждение"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleCreateHousehold(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Укажи название дома: /household Квартира на Лесной")
	}
	household, _, err := b.households.Create(ctx, name, displayName(msg.From), msg.From.ID)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf(
		"🏠 Дом «%s» создан, его номер <b>%d</b>.\nСоседи присоединяются командой /join %d",
		escape(household.Name), household.ID, household.ID))
}

func (b *Bot) handleJoin(ctx context.Context, msg *tgbotapi.Message) error {
	householdID, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи номер дома: /join 3")
	}
	if _, err := b.households.Join(ctx, householdID, displayName(msg.From), msg.From.ID); err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🤝 Ты в доме #%d. Задачи: /tasks", householdID))
}

func (b *Bot) handleNewTask(ctx context.Context, msg *tgbotapi.Message) error {
	member, ok, err := b.requireMember(ctx, msg)
	if !ok {
		return err
	}
	input, err := parseNewTask(msg.CommandArguments())
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	input.HouseholdID = member.HouseholdID

	task, err := b.tasks.CreateTask(ctx, member.ID, input)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("➕ Задача <b>#%d</b> «%s» создана.\n%s",
		task.ID, escape(task.Title), scheduleLine(*task)))
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	member, ok, err := b.requireMember(ctx, msg)
	if !ok {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, member)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, member *model.Member) error {
	tasks, err := b.tasks.ListTasks(ctx, member.HouseholdID)
	if err != nil {
		return b.replyError(chatID, err)
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "В доме пока нет задач. Владелец добавляет их через /newtask.")
	}
	names, err := b.memberNames(ctx, member.HouseholdID)
	if err != nil {
		return err
	}

	now := b.clock.Now()
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("📋 <b>Задачи на неделю с %s</b>\n\n", recurrence.WeekStart(now).Format("2006-01-02")))

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		state := taskStateIdle
		switch {
		case !task.IsActive:
			state = taskStatePaused
		case recurrence.IsDue(task, now):
			state = taskStateDue
			if task.IsRecurring() {
				done, err := b.ledger.IsCompletedThisWeek(ctx, task.ID)
				if err != nil {
					return err
				}
				if done {
					state = taskStateDone
				}
			}
		}
		builder.WriteString(formatTask(task, state, names, now))
		if state == taskStateDue {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 24)), fmt.Sprintf("%s%d", cbDonePrefix, task.ID)),
			))
		}
	}

	if len(buttons) == 0 {
		return b.sendText(chatID, strings.TrimSpace(builder.String()))
	}
	builder.WriteString("Нажми на кнопку, чтобы отметить выполнение.")
	return b.sendWithReplyMarkup(chatID, builder.String(), tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	member, ok, err := b.requireMember(ctx, msg)
	if !ok {
		return err
	}
	rawID, notes, _ := strings.Cut(strings.TrimSpace(msg.CommandArguments()), " ")
	taskID, err := parseID(rawID)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Укажи ID задачи: /done 12 [заметка]")
	}
	return b.completeTask(ctx, msg.Chat.ID, member, taskID, notes)
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, member *model.Member, taskID uint, notes string) error {
	execution, err := b.tasks.CompleteTask(ctx, taskID, member.ID, notes)
	if err != nil {
		return b.replyError(chatID, err)
	}
	task, err := b.tasks.GetTask(ctx, taskID)
	if err != nil {
		return b.replyError(chatID, err)
	}
	if execution.TaskKind == model.KindRecurring {
		return b.sendText(chatID, fmt.Sprintf("%s Задача «%s» отмечена выполненной на неделе с %s.",
			iconRecurring, escape(task.Title), execution.WeekStarting.Format("2006-01-02")))
	}
	return b.sendText(chatID, fmt.Sprintf("%s Задача «%s» выполнена и закрыта.", iconDone, escape(task.Title)))
}

func (b *Bot) handleReopen(ctx context.Context, msg *tgbotapi.Message) error {
	member, taskID, ok, err := b.memberAndTaskID(ctx, msg, "/reopen 12")
	if !ok {
		return err
	}
	if err := b.ledger.InvalidateCurrentWeek(ctx, taskID, member.ID); err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔁 Выполнение задачи #%d на этой неделе отменено, она снова открыта.", taskID))
}

func (b *Bot) handlePreview(ctx context.Context, msg *tgbotapi.Message) error {
	member, ok, err := b.requireMember(ctx, msg)
	if !ok {
		return err
	}
	plan, err := b.assignments.PreviewAutoAssign(ctx, member.HouseholdID)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	names, err := b.memberNames(ctx, member.HouseholdID)
	if err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, formatPlan(plan, names))
}

func (b *Bot) handleAssign(ctx context.Context, msg *tgbotapi.Message) error {
	member, ok, err := b.requireMember(ctx, msg)
	if !ok {
		return err
	}
	plan, err := b.assignments.CommitAutoAssignAs(ctx, member.HouseholdID, member.ID)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	names, err := b.memberNames(ctx, member.HouseholdID)
	if err != nil {
		return err
	}
	if err := b.sendText(msg.Chat.ID, formatPlan(plan, names)); err != nil {
		return err
	}
	b.NotifyPlan(ctx, plan)
	return nil
}

func (b *Bot) handleReassign(ctx context.Context, msg *tgbotapi.Message) error {
	member, taskID, ok, err := b.memberAndTaskID(ctx, msg, "/reassign 12")
	if !ok {
		return err
	}
	return b.reassignTask(ctx, msg.Chat.ID, member, taskID)
}

func (b *Bot) reassignTask(ctx context.Context, chatID int64, member *model.Member, taskID uint) error {
	next, err := b.assignments.Reassign(ctx, taskID, member.ID)
	if err != nil {
		return b.replyError(chatID, err)
	}
	task, err := b.tasks.GetTask(ctx, taskID)
	if err != nil {
		return b.replyError(chatID, err)
	}
	members, err := b.households.Members(ctx, member.HouseholdID)
	if err != nil {
		return err
	}
	names := namesOf(members)
	if err := b.sendText(chatID, fmt.Sprintf("🔀 Задача «%s» передана: %s.", escape(task.Title), escape(names.of(next)))); err != nil {
		return err
	}
	for _, m := range members {
		if m.ID == next && m.TelegramID != nil && m.ID != member.ID {
			b.notify(*m.TelegramID, fmt.Sprintf("📬 Тебе передали задачу <b>#%d</b> «%s».", task.ID, escape(task.Title)))
		}
	}
	return nil
}

func (b *Bot) handleUnassign(ctx context.Context, msg *tgbotapi.Message) error {
	member, taskID, ok, err := b.memberAndTaskID(ctx, msg, "/unassign 12")
	if !ok {
		return err
	}
	if err := b.tasks.Unassign(ctx, taskID, member.ID); err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("Задача #%d без исполнителя, её заберёт следующее распределение.", taskID))
}

func (b *Bot) handleSetActive(ctx context.Context, msg *tgbotapi.Message, active bool) error {
	usage := "/pause 12"
	if active {
		usage = "/resume 12"
	}
	member, taskID, ok, err := b.memberAndTaskID(ctx, msg, usage)
	if !ok {
		return err
	}
	if err := b.tasks.SetActive(ctx, taskID, member.ID, active); err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	if active {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("▶️ Задача #%d снова в работе.", taskID))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("%s Задача #%d на паузе.", iconPaused, taskID))
}

func (b *Bot) handleLoad(ctx context.Context, msg *tgbotapi.Message) error {
	member, ok, err := b.requireMember(ctx, msg)
	if !ok {
		return err
	}
	members, err := b.households.Members(ctx, member.HouseholdID)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	loads, err := b.workload.ComputeLoads(ctx, member.HouseholdID, ids, b.clock.Now())
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}

	sort.SliceStable(members, func(i, j int) bool {
		if loads[members[i].ID] != loads[members[j].ID] {
			return loads[members[i].ID] > loads[members[j].ID]
		}
		return members[i].ID < members[j].ID
	})

	var builder strings.Builder
	builder.WriteString("⚖️ <b>Нагрузка на этой неделе</b>\n")
	for _, m := range members {
		builder.WriteString(fmt.Sprintf("• %s — %d\n", escape(m.Name), loads[m.ID]))
	}
	builder.WriteString("\nНагрузка = вес приоритета × минуты: назначенные задачи и выполненные на этой неделе.")
	return b.sendText(msg.Chat.ID, builder.String())
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) error {
	member, taskID, ok, err := b.memberAndTaskID(ctx, msg, "/history 12")
	if !ok {
		return err
	}
	task, err := b.householdTask(ctx, member, taskID)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	executions, err := b.ledger.History(ctx, taskID)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	if len(executions) == 0 {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Задачу «%s» ещё ни разу не выполняли.", escape(task.Title)))
	}
	names, err := b.memberNames(ctx, member.HouseholdID)
	if err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, formatHistory(*task, executions, names, historyPageSize))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	member, taskID, ok, err := b.memberAndTaskID(ctx, msg, "/delete 12")
	if !ok {
		return err
	}
	task, err := b.householdTask(ctx, member, taskID)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	if !member.IsOwner() {
		return b.replyError(msg.Chat.ID, model.ErrForbidden)
	}

	b.setConfirmation(msg.From.ID, confirmationRequest{taskID: task.ID, action: actionDelete})
	text := fmt.Sprintf("Удалить задачу «%s» (#%d) вместе с историей выполнений?", escape(task.Title), task.ID)
	return b.sendWithReplyMarkup(msg.Chat.ID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	b.clearConfirmation(msg.From.ID)
	if strings.TrimSpace(msg.Text) != btnConfirm {
		return b.sendText(msg.Chat.ID, "↩️ Действие отменено.")
	}

	member, ok, err := b.requireMember(ctx, msg)
	if !ok {
		return err
	}
	switch req.action {
	case actionDelete:
		task, err := b.tasks.DeleteTask(ctx, req.taskID, member.ID)
		if err != nil {
			return b.replyError(msg.Chat.ID, err)
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Задача «%s» удалена.", escape(task.Title)))
	default:
		return nil
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Warn().Err(err).Msg("callback ack")
	}

	chatID := cb.Message.Chat.ID
	member, err := b.households.MemberByTelegramID(ctx, cb.From.ID)
	if err != nil {
		return b.replyError(chatID, err)
	}

	switch {
	case strings.HasPrefix(cb.Data, cbDonePrefix):
		taskID, err := parseTaskID(cb.Data, cbDonePrefix)
		if err != nil {
			return b.sendText(chatID, "Не удалось распознать задачу.")
		}
		if err := b.completeTask(ctx, chatID, member, taskID, ""); err != nil {
			return err
		}
		return b.sendTaskList(ctx, chatID, member)
	case strings.HasPrefix(cb.Data, cbReassignPrefix):
		taskID, err := parseTaskID(cb.Data, cbReassignPrefix)
		if err != nil {
			return b.sendText(chatID, "Не удалось распознать задачу.")
		}
		return b.reassignTask(ctx, chatID, member, taskID)
	default:
		return nil
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelPlan):
		return true, b.handlePreview(ctx, msg)
	case strings.ToLower(menuLabelLoad):
		return true, b.handleLoad(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

// NotifyPlan sends every assignee with a Telegram account the tasks a
// committed plan gave them.
func (b *Bot) NotifyPlan(ctx context.Context, plan *service.Plan) {
	if plan == nil || !plan.Committed || len(plan.Assignments) == 0 {
		return
	}
	members, err := b.households.Members(ctx, plan.HouseholdID)
	if err != nil {
		log.Error().Err(err).Uint("household_id", plan.HouseholdID).Msg("notify plan")
		return
	}

	perMember := make(map[uint][]service.Assignment)
	for _, a := range plan.Assignments {
		if a.Err == nil {
			perMember[a.MemberID] = append(perMember[a.MemberID], a)
		}
	}
	for _, m := range members {
		assigned := perMember[m.ID]
		if len(assigned) == 0 || m.TelegramID == nil {
			continue
		}
		text, markup := formatNotification(plan.WeekStarting, assigned)
		if err := b.sendWithReplyMarkup(*m.TelegramID, text, markup); err != nil {
			log.Warn().Err(err).Uint("member_id", m.ID).Msg("send assignment notification")
		}
	}
}

func (b *Bot) notify(chatID int64, text string) {
	if err := b.sendText(chatID, text); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("send notification")
	}
}

// requireMember resolves the sender's membership. When it returns ok=false the
// user has already been answered and err is what the handler should return.
func (b *Bot) requireMember(ctx context.Context, msg *tgbotapi.Message) (*model.Member, bool, error) {
	member, err := b.households.MemberByTelegramID(ctx, msg.From.ID)
	switch {
	case err == nil:
		return member, true, nil
	case errors.Is(err, model.ErrNotFound):
		return nil, false, b.sendText(msg.Chat.ID, "Сначала создай дом (/household) или присоединись к нему (/join).")
	default:
		return nil, false, err
	}
}

func (b *Bot) memberAndTaskID(ctx context.Context, msg *tgbotapi.Message, usage string) (*model.Member, uint, bool, error) {
	member, ok, err := b.requireMember(ctx, msg)
	if !ok {
		return nil, 0, false, err
	}
	taskID, err := parseID(msg.CommandArguments())
	if err != nil {
		return nil, 0, false, b.sendText(msg.Chat.ID, "Укажи ID задачи: "+usage)
	}
	return member, taskID, true, nil
}

// householdTask loads a task only if it belongs to the member's household.
func (b *Bot) householdTask(ctx context.Context, member *model.Member, taskID uint) (*model.Task, error) {
	task, err := b.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.HouseholdID != member.HouseholdID {
		return nil, fmt.Errorf("task %d: %w", taskID, model.ErrNotFound)
	}
	return task, nil
}

func (b *Bot) memberNames(ctx context.Context, householdID uint) (memberNames, error) {
	members, err := b.households.Members(ctx, householdID)
	if err != nil {
		return nil, err
	}
	return namesOf(members), nil
}

// replyError answers with the user-facing text for err. Unexpected errors are
// logged as well.
func (b *Bot) replyError(chatID int64, err error) error {
	text, known := userError(err)
	if !known {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("request failed")
	}
	return b.sendText(chatID, text)
}

func displayName(user *tgbotapi.User) string {
	name := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	if name == "" {
		name = user.UserName
	}
	if name == "" {
		name = fmt.Sprintf("user%d", user.ID)
	}
	return name
}
