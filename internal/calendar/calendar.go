// Package calendar holds the pure date helpers behind the month grid. All
// values are calendar dates formatted as YYYY-MM-DD; no timezone math is
// involved beyond picking "today".
package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the only date format used for records, CSV and JSON.
const DateLayout = "2006-01-02"

// Layout describes one month of the calendar grid.
type Layout struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	// FirstWeekdayIndex is the weekday of the 1st, Sunday = 0.
	FirstWeekdayIndex int `json:"firstWeekdayIndex"`
	// Days holds every date of the month in order.
	Days []string `json:"days"`
}

// MonthBounds returns the layout for the given month. Out-of-range months are
// normalized by date arithmetic, so (2024, 13) is January 2025.
func MonthBounds(year int, month time.Month) Layout {
	// Noon UTC keeps formatting stable regardless of the host zone.
	first := time.Date(year, month, 1, 12, 0, 0, 0, time.UTC)
	n := first.AddDate(0, 1, -1).Day()

	days := make([]string, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, first.AddDate(0, 0, i).Format(DateLayout))
	}

	return Layout{
		Year:              first.Year(),
		Month:             first.Month(),
		FirstWeekdayIndex: int(first.Weekday()),
		Days:              days,
	}
}

// LeadingBlanks is the number of empty cells before the 1st in a grid whose
// first column is weekStart.
func (l Layout) LeadingBlanks(weekStart time.Weekday) int {
	return (l.FirstWeekdayIndex - int(weekStart) + 7) % 7
}

// Month identifies a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t (in t's location).
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) first() time.Time {
	return time.Date(m.Year, m.Month, 1, 12, 0, 0, 0, time.UTC)
}

// Next returns the following month, wrapping the year.
func (m Month) Next() Month {
	return MonthOf(m.first().AddDate(0, 1, 0))
}

// Prev returns the preceding month, wrapping the year.
func (m Month) Prev() Month {
	return MonthOf(m.first().AddDate(0, -1, 0))
}

// Layout is shorthand for MonthBounds(m.Year, m.Month).
func (m Month) Layout() Layout {
	return MonthBounds(m.Year, m.Month)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// ParseDate parses a YYYY-MM-DD calendar date at noon UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.Add(12 * time.Hour), nil
}

// FormatDate formats t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// IsDate reports whether s is a valid YYYY-MM-DD date.
func IsDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
