package ics

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"guardboard/internal/calendar"
	appLog "guardboard/internal/log"
	"guardboard/internal/model"
)

var (
	errMissingUID   = errors.New("missing UID")
	errNotAllDay    = errors.New("not an all-day event")
	errRecurring    = errors.New("recurring events are not imported")
	errMissingStart = errors.New("missing DTSTART")
)

// ParseHolidays turns the all-day, non-recurring VEVENTs of a feed into
// holiday records. Ids are derived from the feed id and the event UID, so
// re-importing the same feed is absorbed by the store's duplicate check.
func ParseHolidays(feed Feed, body []byte) ([]model.Holiday, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "feed", feed.ID, "url", redactURL(feed.URL))
		return nil, err
	}

	holidays := make([]model.Holiday, 0)
	skipped := 0
	for _, ve := range cal.Events() {
		h, perr := holidayFromEvent(feed, ve)
		if perr != nil {
			appLog.Debug("ics vevent skipped", "feed", feed.ID, "reason", perr)
			skipped++
			continue
		}
		holidays = append(holidays, h)
	}

	appLog.Info("ics parse completed", "feed", feed.ID, "holidays", len(holidays), "skipped", skipped)
	return holidays, nil
}

func holidayFromEvent(feed Feed, ve *ical.VEvent) (model.Holiday, error) {
	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return model.Holiday{}, errMissingUID
	}
	if ve.GetProperty(ical.ComponentPropertyRrule) != nil {
		return model.Holiday{}, errRecurring
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return model.Holiday{}, errMissingStart
	}
	start, err := parseAllDay(startProp)
	if err != nil {
		return model.Holiday{}, err
	}

	// DTEND is exclusive for all-day events; absent means a single day.
	end := start
	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		exclusive, err := parseAllDay(endProp)
		if err != nil {
			return model.Holiday{}, err
		}
		if last := exclusive.AddDate(0, 0, -1); last.After(start) {
			end = last
		}
	}

	name := ""
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		name = strings.TrimSpace(p.Value)
	}
	if name == "" {
		name = feed.Name
	}

	return model.Holiday{
		ID:        FeedHolidayID(feed.ID, uidProp.Value),
		StartDate: calendar.FormatDate(start),
		EndDate:   calendar.FormatDate(end),
		Name:      name,
	}, nil
}

// parseAllDay accepts DATE values (VALUE=DATE or a bare YYYYMMDD).
func parseAllDay(p *ical.IANAProperty) (time.Time, error) {
	v := strings.TrimSpace(p.Value)
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && !strings.EqualFold(vs[0], "DATE") {
		return time.Time{}, errNotAllDay
	}
	if strings.Contains(v, "T") {
		return time.Time{}, errNotAllDay
	}
	t, err := time.Parse("20060102", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", v, err)
	}
	return t.Add(12 * time.Hour), nil
}

// FeedHolidayID hashes feed id + UID into a positive id that fits a JSON
// number without loss (53 bits).
func FeedHolidayID(feedID, uid string) int64 {
	h := fnv.New64a()
	h.Write([]byte(feedID))
	h.Write([]byte{0})
	h.Write([]byte(uid))
	return int64(h.Sum64() & (1<<53 - 1))
}
