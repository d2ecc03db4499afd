// Package projection maps guard and holiday records onto calendar days.
package projection

import (
	"guardboard/internal/calendar"
	"guardboard/internal/model"
)

// Kind is the primary classification of a calendar cell.
type Kind string

const (
	KindNone    Kind = ""
	KindGuard   Kind = "shift"
	KindHoliday Kind = "holiday"
)

// Cell is the projection result for one day. Both annotations are kept even
// when the holiday wins the classification.
type Cell struct {
	Date    string         `json:"date"`
	Kind    Kind           `json:"kind"`
	Guard   *model.Guard   `json:"guard,omitempty"`
	Holiday *model.Holiday `json:"holiday,omitempty"`
}

// Project resolves the records that apply to date. The first matching guard
// and the first covering holiday (insertion order) are used; a holiday
// always takes precedence over a guard for the classification.
func Project(date string, guards []model.Guard, holidays []model.Holiday) Cell {
	cell := Cell{Date: date}

	for i := range guards {
		if guards[i].Date == date {
			g := guards[i]
			cell.Guard = &g
			break
		}
	}
	for i := range holidays {
		if holidays[i].Covers(date) {
			h := holidays[i]
			cell.Holiday = &h
			break
		}
	}

	switch {
	case cell.Holiday != nil:
		cell.Kind = KindHoliday
	case cell.Guard != nil:
		cell.Kind = KindGuard
	}
	return cell
}

// Month projects every day of layout against one snapshot.
func Month(layout calendar.Layout, snap model.Snapshot) []Cell {
	cells := make([]Cell, 0, len(layout.Days))
	for _, d := range layout.Days {
		cells = append(cells, Project(d, snap.Guards, snap.Holidays))
	}
	return cells
}
