package model

// Guard is a single-day named assignment.
type Guard struct {
	ID   int64  `json:"id"`
	Date string `json:"date"` // YYYY-MM-DD
	Name string `json:"name"`
}

// Holiday is a named, inclusive date range. StartDate <= EndDate holds for
// holidays created through the store; imported rows are taken as-is.
type Holiday struct {
	ID        int64  `json:"id"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Name      string `json:"name"`
}

// Covers reports whether the holiday range includes date. Dates are
// fixed-width ISO strings, so lexical order is chronological order.
func (h Holiday) Covers(date string) bool {
	return h.StartDate <= date && date <= h.EndDate
}

// Snapshot is a point-in-time copy of both collections in insertion order.
type Snapshot struct {
	Guards   []Guard
	Holidays []Holiday
}
