package utils

import (
	"errors"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

var dateLayouts = []string{
	"02/01/2006",
	DateLayout,
	"02-01-2006",
	"02.01.2006",
	"02/01/06",
	"2006/01/02",
	time.RFC3339,
}

// ParseDate tries layout first (when given) and then the common statement formats.
func ParseDate(raw, layout string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOnly(t), nil
		}
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return DateOnly(t), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonthsClamped adds n months keeping the day of month, clamped to the
// last day of the target month (31/01 + 1 = 28/02 or 29/02).
func AddMonthsClamped(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	day := t.Day()
	if last := DaysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	d := int(DateOnly(a).Sub(DateOnly(b)).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

// ParseMonth parses "2024-03".
func ParseMonth(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// Location is the business timezone used for "today" and schedules.
var Location = time.UTC

// SetLocation loads the named zone, keeping UTC when it is unknown.
func SetLocation(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	Location = loc
	return nil
}

// Today is the current calendar date in the business timezone.
func Today() time.Time {
	return DateOnly(time.Now().In(Location))
}
