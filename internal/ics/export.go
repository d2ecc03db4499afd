package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"guardboard/internal/calendar"
	appLog "guardboard/internal/log"
	"guardboard/internal/model"
)

const (
	ProductID   = "-//guardboard//Guarding and Holidays Board//EN"
	ContentType = "text/calendar; charset=utf-8"
	FileName    = "schedule.ics"

	uidDomain = "guardboard"
)

// ExportOptions tunes the generated feed.
type ExportOptions struct {
	// CalendarName is published as X-WR-CALNAME.
	CalendarName string
	// Now stamps DTSTAMP; zero means time.Now.
	Now time.Time
}

// WriteCalendar renders both layers as all-day events. Guards become one-day
// events, holidays span StartDate..EndDate (DTEND is exclusive).
func WriteCalendar(w io.Writer, snap model.Snapshot, opts ExportOptions) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	name := opts.CalendarName
	if name == "" {
		name = "Guarding & Holidays"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetXWRCalName(name)

	for _, g := range snap.Guards {
		day, err := calendar.ParseDate(g.Date)
		if err != nil {
			appLog.Warn("ics export: skipping guard with bad date", "id", g.ID, "date", g.Date)
			continue
		}
		ev := cal.AddEvent(EventUID("shift", g.ID))
		ev.SetDtStampTime(now.UTC())
		ev.SetAllDayStartAt(day)
		ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
		ev.SetSummary(g.Name)
		ev.SetDescription(fmt.Sprintf("Guard: %s", g.Name))
		ev.SetProperty(ical.ComponentPropertyCategories, "GUARD")
	}

	for _, h := range snap.Holidays {
		start, err := calendar.ParseDate(h.StartDate)
		if err != nil {
			appLog.Warn("ics export: skipping holiday with bad start", "id", h.ID, "start", h.StartDate)
			continue
		}
		end, err := calendar.ParseDate(h.EndDate)
		if err != nil || end.Before(start) {
			appLog.Warn("ics export: skipping holiday with bad end", "id", h.ID, "end", h.EndDate)
			continue
		}
		ev := cal.AddEvent(EventUID("holiday", h.ID))
		ev.SetDtStampTime(now.UTC())
		ev.SetAllDayStartAt(start)
		ev.SetAllDayEndAt(end.AddDate(0, 0, 1))
		ev.SetSummary(h.Name)
		ev.SetDescription(fmt.Sprintf("Holiday: %s (%s to %s)", h.Name, h.StartDate, h.EndDate))
		ev.SetProperty(ical.ComponentPropertyCategories, "HOLIDAY")
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

// EventUID derives a stable UID from the record kind and id, so calendar
// clients update events in place across refreshes.
func EventUID(kind string, id int64) string {
	u := uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s/%s/%d", uidDomain, kind, id))
	return u.String() + "@" + uidDomain
}
