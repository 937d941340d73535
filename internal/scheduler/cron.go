package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule yields the next run after a given time.
type Schedule interface {
	Next(after time.Time) time.Time
}

type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

type named func(time.Time) time.Time

func (n named) Next(t time.Time) time.Time { return n(t) }

var namedSchedules = map[string]named{
	"@yearly":   nextYear,
	"@annually": nextYear,
	"@monthly":  nextMonth,
	"@weekly":   nextWeek,
	"@daily":    nextDay,
	"@midnight": nextDay,
	"@hourly":   nextHour,
}

// Parse accepts "@every <duration>" (Go durations plus whole days, "2d") and
// the named schedules @yearly, @monthly, @weekly, @daily and @hourly.
func Parse(expr string) (Schedule, error) {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "@") {
		return nil, fmt.Errorf("unsupported schedule %q, use @every or @daily/@hourly/@weekly/@monthly", expr)
	}
	if s, ok := namedSchedules[expr]; ok {
		return s, nil
	}
	if strings.HasPrefix(expr, "@every ") {
		d, err := parseEveryDuration(strings.TrimSpace(strings.TrimPrefix(expr, "@every ")))
		if err != nil {
			return nil, err
		}
		return every(d), nil
	}
	return nil, fmt.Errorf("unsupported schedule: %s", expr)
}

func parseEveryDuration(duration string) (time.Duration, error) {
	// time.ParseDuration has no day unit
	if days, ok := strings.CutSuffix(duration, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid duration: %s", duration)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(duration)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration: %s", duration)
	}
	return d, nil
}

func nextYear(t time.Time) time.Time {
	return time.Date(t.Year()+1, 1, 1, 0, 0, 0, 0, t.Location())
}

func nextMonth(t time.Time) time.Time {
	// time.Date normalises month 13
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
}

func nextWeek(t time.Time) time.Time {
	// next Sunday at midnight
	days := (7 - int(t.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	return time.Date(t.Year(), t.Month(), t.Day()+days, 0, 0, 0, 0, t.Location())
}

func nextDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

func nextHour(t time.Time) time.Time {
	return t.Add(time.Hour).Truncate(time.Hour)
}
