package bot

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chore-planner/internal/model"
	"chore-planner/internal/recurrence"
	"chore-planner/internal/service"
)

type taskState int

const (
	taskStateIdle taskState = iota
	taskStateDue
	taskStateDone
	taskStatePaused
)

// memberNames maps member ids to display names.
type memberNames map[uint]string

func namesOf(members []model.Member) memberNames {
	names := make(memberNames, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}
	return names
}

func (n memberNames) of(id uint) string {
	if name, ok := n[id]; ok && strings.TrimSpace(name) != "" {
		return name
	}
	return fmt.Sprintf("участник #%d", id)
}

var errNewTaskFormat = model.NewValidationError("task",
	"expected: Title | RULE or YYYY-MM-DD | low/medium/high | minutes [| description]")

// parseNewTask reads "Title | RULE or YYYY-MM-DD[ HH:MM] | priority | minutes [| description]".
// A second field that parses as a date makes a one-time task, anything else is
// taken as a recurrence rule.
func parseNewTask(args string) (service.TaskInput, error) {
	parts := strings.Split(args, "|")
	if len(parts) < 4 || len(parts) > 5 {
		return service.TaskInput{}, errNewTaskFormat
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	in := service.TaskInput{Title: parts[0]}
	if due, ok := parseDueDate(parts[1]); ok {
		in.Kind = model.KindOneTime
		in.DueDate = &due
	} else {
		in.Kind = model.KindRecurring
		in.RecurrenceRule = parts[1]
	}

	priority, ok := parsePriority(parts[2])
	if !ok {
		return service.TaskInput{}, model.NewValidationError("priority", "must be low, medium or high, got %q", parts[2])
	}
	in.Priority = priority

	minutes, err := strconv.Atoi(parts[3])
	if err != nil {
		return service.TaskInput{}, model.NewValidationError("estimatedEffortMinutes", "must be a number of minutes, got %q", parts[3])
	}
	in.EstimatedEffortMinutes = minutes

	if len(parts) == 5 {
		in.Description = parts[4]
	}
	return in, nil
}

var dueDateLayouts = []string{"2006-01-02 15:04", "2006-01-02"}

func parseDueDate(raw string) (time.Time, bool) {
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parsePriority(raw string) (model.Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low", "l", "1", "низкий":
		return model.PriorityLow, true
	case "medium", "m", "2", "средний":
		return model.PriorityMedium, true
	case "high", "h", "3", "высокий":
		return model.PriorityHigh, true
	default:
		return 0, false
	}
}

func parseID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return uint(value), nil
}

func parseTaskID(data, prefix string) (uint, error) {
	return parseID(strings.TrimPrefix(data, prefix))
}

// userError turns a service error into a reply. known is false for errors the
// user cannot act on.
func userError(err error) (text string, known bool) {
	var vErr *model.ValidationError
	switch {
	case errors.As(err, &vErr):
		return fmt.Sprintf("⚠️ Неверные данные: %s", escape(vErr.Error())), true
	case errors.Is(err, model.ErrForbidden):
		return "⛔ Это может сделать только владелец дома.", true
	case errors.Is(err, model.ErrDuplicateCompletion):
		return "Задача уже отмечена выполненной на этой неделе.", true
	case errors.Is(err, service.ErrAlreadyMember):
		return "Ты уже состоишь в доме.", true
	case errors.Is(err, model.ErrNotFound):
		return "Не найдено. Проверь номер.", true
	default:
		return "Что-то пошло не так, попробуй позже.", false
	}
}

func priorityLabel(p model.Priority) string {
	switch p {
	case model.PriorityLow:
		return "низкий"
	case model.PriorityMedium:
		return "средний"
	case model.PriorityHigh:
		return "высокий"
	default:
		return p.String()
	}
}

func scheduleLine(task model.Task) string {
	if task.IsRecurring() {
		line := fmt.Sprintf("   🔄 %s", escape(task.RecurrenceRule))
		if task.RecurrenceEndDate != nil {
			line += fmt.Sprintf(" до %s", task.RecurrenceEndDate.UTC().Format("2006-01-02"))
		}
		return line
	}
	if task.DueDate == nil {
		return ""
	}
	return fmt.Sprintf("   ⏰ Срок: %s", task.DueDate.UTC().Format("2006-01-02 15:04"))
}

func formatTask(task model.Task, state taskState, names memberNames, now time.Time) string {
	var b strings.Builder
	icon := iconOneTime
	if task.IsRecurring() {
		icon = iconRecurring
	}
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", icon, task.ID, escape(normalizeTitle(task.Title))))
	if line := scheduleLine(task); line != "" {
		b.WriteString(line + "\n")
	}
	if next, ok := recurrence.NextOccurrence(task, now); ok {
		b.WriteString(fmt.Sprintf("   📅 Ближайший раз: %s\n", next.Format("2006-01-02")))
	}
	b.WriteString(fmt.Sprintf("   ⚡ %s · %d мин.\n", priorityLabel(task.Priority), task.EstimatedEffortMinutes))
	if task.IsAssigned() {
		b.WriteString(fmt.Sprintf("   👤 %s\n", escape(names.of(*task.AssignedMemberID))))
	} else {
		b.WriteString("   👤 не назначена\n")
	}
	switch state {
	case taskStateDue:
		b.WriteString(fmt.Sprintf("   %s к выполнению\n", iconDue))
	case taskStateDone:
		b.WriteString(fmt.Sprintf("   %s выполнена на этой неделе\n", iconDone))
	case taskStatePaused:
		b.WriteString(fmt.Sprintf("   %s на паузе\n", iconPaused))
	default:
		b.WriteString(fmt.Sprintf("   %s не на этой неделе\n", iconIdle))
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	b.WriteByte('\n')
	return b.String()
}

func skipReasonText(reason string) string {
	switch reason {
	case service.SkipNotDue:
		return "не на этой неделе"
	case service.SkipCompletedThisWeek:
		return "уже выполнена на этой неделе"
	case service.SkipNoMembers:
		return "нет участников"
	default:
		return reason
	}
}

func formatPlan(plan *service.Plan, names memberNames) string {
	var b strings.Builder
	week := plan.WeekStarting.Format("2006-01-02")
	if plan.Committed {
		b.WriteString(fmt.Sprintf("✅ <b>Задачи распределены</b> (неделя с %s)\n", week))
	} else {
		b.WriteString(fmt.Sprintf("🧮 <b>План распределения</b> (неделя с %s)\n", week))
	}

	if len(plan.Assignments) == 0 {
		b.WriteString("Нечего распределять.\n")
	}
	for _, a := range plan.Assignments {
		line := fmt.Sprintf("• #%d %s → %s (нагрузка %d → %d)",
			a.TaskID, escape(a.TaskTitle), escape(names.of(a.MemberID)), a.LoadBefore, a.LoadAfter)
		if a.Err != nil {
			line += " ⚠️ не сохранено"
		}
		b.WriteString(line + "\n")
	}

	if len(plan.Skipped) > 0 {
		b.WriteString("\n<b>Пропущено:</b>\n")
		for _, s := range plan.Skipped {
			b.WriteString(fmt.Sprintf("• #%d %s: %s\n", s.TaskID, escape(s.TaskTitle), escape(skipReasonText(s.Reason))))
		}
	}
	if !plan.Committed && len(plan.Assignments) > 0 {
		b.WriteString("\nЧтобы сохранить план, владелец отправляет /assign")
	}
	return strings.TrimSpace(b.String())
}

func formatNotification(weekStarting time.Time, assigned []service.Assignment) (string, tgbotapi.InlineKeyboardMarkup) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📬 <b>Твои задачи на неделю с %s</b>\n", weekStarting.Format("2006-01-02")))
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, a := range assigned {
		b.WriteString(fmt.Sprintf("• #%d %s\n", a.TaskID, escape(a.TaskTitle)))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", a.TaskID, shortTitle(a.TaskTitle, 20)), fmt.Sprintf("%s%d", cbDonePrefix, a.TaskID)),
		))
	}
	return strings.TrimSpace(b.String()), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formatHistory(task model.Task, executions []model.Execution, names memberNames, limit int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📜 <b>История «%s»</b>\n", escape(task.Title)))
	for i, e := range executions {
		if i == limit {
			b.WriteString(fmt.Sprintf("…и ещё %d", len(executions)-limit))
			break
		}
		line := fmt.Sprintf("• %s — %s", e.CompletedAt.UTC().Format("2006-01-02 15:04"), escape(names.of(e.MemberID)))
		if !e.Counts() {
			line += " (отменено)"
		}
		if e.Notes != "" {
			line += fmt.Sprintf(" · %s", escape(e.Notes))
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimSpace(b.String())
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func escape(s string) string {
	return html.EscapeString(s)
}
