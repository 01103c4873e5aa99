package recurrence

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"chore-planner/internal/model"
)

const ruleField = "recurrenceRule"

// Frequency is the FREQ part of a rule.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

// LastDayOfMonth is the BYMONTHDAY sentinel for the final day of a month.
const LastDayOfMonth = -1

var weekdayCodes = map[string]time.Weekday{
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
	"SU": time.Sunday,
}

var untilLayouts = []string{
	"20060102T150405Z",
	"20060102",
	time.RFC3339,
}

// Rule is a parsed recurrence expression.
type Rule struct {
	Freq       Frequency
	Interval   int
	ByDay      []time.Weekday
	ByMonthDay int        // 0 when unset, LastDayOfMonth for the last day
	ByMonth    time.Month // 0 when unset
	Until      *time.Time
}

// Parse reads a FREQ=...;INTERVAL=...;BYDAY=... expression. Anything outside the
// supported keys and value ranges is rejected with a *model.ValidationError.
func Parse(expr string) (Rule, error) {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return Rule{}, model.NewValidationError(ruleField, "expression is empty")
	}
	raw = strings.TrimSuffix(raw, ";")

	values := make(map[string]string)
	var keys []string
	for _, part := range strings.Split(raw, ";") {
		key, value, ok := strings.Cut(part, "=")
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return Rule{}, model.NewValidationError(ruleField, "malformed segment %q, expected KEY=VALUE", part)
		}
		if _, dup := values[key]; dup {
			return Rule{}, model.NewValidationError(ruleField, "duplicate key %s", key)
		}
		values[key] = value
		keys = append(keys, key)
	}

	rule := Rule{Interval: 1}
	for _, key := range keys {
		value := values[key]
		var err error
		switch key {
		case "FREQ":
			rule.Freq, err = parseFreq(value)
		case "INTERVAL":
			rule.Interval, err = parseInterval(value)
		case "BYDAY":
			rule.ByDay, err = parseByDay(value)
		case "BYMONTHDAY":
			rule.ByMonthDay, err = parseByMonthDay(value)
		case "BYMONTH":
			rule.ByMonth, err = parseByMonth(value)
		case "UNTIL":
			rule.Until, err = parseUntil(value)
		default:
			err = model.NewValidationError(ruleField, "unsupported key %s", key)
		}
		if err != nil {
			return Rule{}, err
		}
	}

	if err := rule.check(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

// check enforces the cross-key constraints once every key parsed on its own.
func (r Rule) check() error {
	switch r.Freq {
	case "":
		return model.NewValidationError(ruleField, "FREQ is required")
	case Weekly:
		if len(r.ByDay) == 0 {
			return model.NewValidationError(ruleField, "BYDAY is required when FREQ=WEEKLY")
		}
	default:
		if len(r.ByDay) > 0 {
			return model.NewValidationError(ruleField, "BYDAY is only allowed when FREQ=WEEKLY")
		}
	}
	if r.ByMonthDay != 0 && r.Freq != Monthly && r.Freq != Yearly {
		return model.NewValidationError(ruleField, "BYMONTHDAY is only allowed when FREQ=MONTHLY or FREQ=YEARLY")
	}
	if r.ByMonth != 0 && r.Freq != Yearly {
		return model.NewValidationError(ruleField, "BYMONTH is only allowed when FREQ=YEARLY")
	}
	return nil
}

func parseFreq(value string) (Frequency, error) {
	freq := Frequency(strings.ToUpper(value))
	switch freq {
	case Daily, Weekly, Monthly, Yearly:
		return freq, nil
	default:
		return "", model.NewValidationError(ruleField, "unsupported FREQ %q", value)
	}
}

func parseInterval(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, model.NewValidationError(ruleField, "INTERVAL must be a positive integer, got %q", value)
	}
	return n, nil
}

func parseByDay(value string) ([]time.Weekday, error) {
	seen := make(map[time.Weekday]bool)
	var days []time.Weekday
	for _, code := range strings.Split(value, ",") {
		day, ok := weekdayCodes[strings.ToUpper(strings.TrimSpace(code))]
		if !ok {
			return nil, model.NewValidationError(ruleField, "unknown BYDAY code %q", code)
		}
		if seen[day] {
			continue
		}
		seen[day] = true
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return isoWeekday(days[i]) < isoWeekday(days[j]) })
	return days, nil
}

func parseByMonthDay(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || (n != LastDayOfMonth && (n < 1 || n > 31)) {
		return 0, model.NewValidationError(ruleField, "BYMONTHDAY must be 1..31 or -1, got %q", value)
	}
	return n, nil
}

func parseByMonth(value string) (time.Month, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > 12 {
		return 0, model.NewValidationError(ruleField, "BYMONTH must be 1..12, got %q", value)
	}
	return time.Month(n), nil
}

func parseUntil(value string) (*time.Time, error) {
	for _, layout := range untilLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, model.NewValidationError(ruleField, "UNTIL %q is not a date (YYYYMMDD, YYYYMMDDTHHMMSSZ or RFC 3339)", value)
}

// String renders the rule in canonical key order.
func (r Rule) String() string {
	parts := []string{"FREQ=" + string(r.Freq)}
	if r.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
	}
	if len(r.ByDay) > 0 {
		codes := make([]string, 0, len(r.ByDay))
		for _, day := range r.ByDay {
			codes = append(codes, weekdayCode(day))
		}
		parts = append(parts, "BYDAY="+strings.Join(codes, ","))
	}
	if r.ByMonthDay != 0 {
		parts = append(parts, fmt.Sprintf("BYMONTHDAY=%d", r.ByMonthDay))
	}
	if r.ByMonth != 0 {
		parts = append(parts, fmt.Sprintf("BYMONTH=%d", int(r.ByMonth)))
	}
	if r.Until != nil {
		parts = append(parts, "UNTIL="+r.Until.Format("20060102T150405Z"))
	}
	return strings.Join(parts, ";")
}

func weekdayCode(day time.Weekday) string {
	for code, d := range weekdayCodes {
		if d == day {
			return code
		}
	}
	return ""
}

// isoWeekday numbers Monday as 1 and Sunday as 7.
func isoWeekday(day time.Weekday) int {
	if day == time.Sunday {
		return 7
	}
	return int(day)
}
