package projection

import (
	"testing"
	"time"

	"guardboard/internal/calendar"
	"guardboard/internal/model"
)

var (
	guards = []model.Guard{
		{ID: 1, Date: "2024-05-03", Name: "Alice"},
		{ID: 2, Date: "2024-05-10", Name: "Bob"},
		{ID: 3, Date: "2024-05-10", Name: "Carol"},
	}
	holidays = []model.Holiday{
		{ID: 1, StartDate: "2024-05-09", EndDate: "2024-05-12", Name: "Long weekend"},
		{ID: 2, StartDate: "2024-05-11", EndDate: "2024-05-20", Name: "Overlapping"},
	}
)

func TestProject(t *testing.T) {
	tests := []struct {
		date        string
		wantKind    Kind
		wantGuard   string
		wantHoliday string
	}{
		{"2024-05-01", KindNone, "", ""},
		{"2024-05-03", KindGuard, "Alice", ""},
		{"2024-05-09", KindHoliday, "", "Long weekend"},
		// Guard and holiday on the same day: holiday wins, both exposed.
		{"2024-05-10", KindHoliday, "Bob", "Long weekend"},
		// Overlapping holidays: first in insertion order.
		{"2024-05-12", KindHoliday, "", "Long weekend"},
		{"2024-05-20", KindHoliday, "", "Overlapping"},
		{"2024-05-21", KindNone, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			c := Project(tt.date, guards, holidays)
			if c.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", c.Kind, tt.wantKind)
			}
			if got := guardName(c); got != tt.wantGuard {
				t.Errorf("guard = %q, want %q", got, tt.wantGuard)
			}
			if got := holidayName(c); got != tt.wantHoliday {
				t.Errorf("holiday = %q, want %q", got, tt.wantHoliday)
			}
		})
	}
}

func TestProjectNeverGuardOnlyWhenHolidayCovers(t *testing.T) {
	layout := calendar.MonthBounds(2024, time.May)
	snap := model.Snapshot{Guards: guards, Holidays: holidays}

	for _, c := range Month(layout, snap) {
		covered := false
		for _, h := range holidays {
			if h.Covers(c.Date) {
				covered = true
			}
		}
		if covered && c.Kind != KindHoliday {
			t.Errorf("%s is covered by a holiday but classified %q", c.Date, c.Kind)
		}
	}
}

func TestMonthProjectsEveryDay(t *testing.T) {
	layout := calendar.MonthBounds(2024, time.February)
	cells := Month(layout, model.Snapshot{})

	if len(cells) != 29 {
		t.Fatalf("expected 29 cells, got %d", len(cells))
	}
	for i, c := range cells {
		if c.Date != layout.Days[i] || c.Kind != KindNone {
			t.Errorf("cell %d = %+v", i, c)
		}
	}
}

func guardName(c Cell) string {
	if c.Guard == nil {
		return ""
	}
	return c.Guard.Name
}

func holidayName(c Cell) string {
	if c.Holiday == nil {
		return ""
	}
	return c.Holiday.Name
}
