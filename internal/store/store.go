// Package store owns the guard and holiday collections. Every mutating
// method runs under one lock and ends with an explicit save, so callers never
// observe a half-applied change and every change is written through.
package store

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"guardboard/internal/calendar"
	appLog "guardboard/internal/log"
	"guardboard/internal/model"
)

// Saver persists a full snapshot of both collections.
type Saver interface {
	Save(model.Snapshot) error
}

// Store is the authoritative in-memory record store.
type Store struct {
	mu       sync.Mutex
	guards   []model.Guard
	holidays []model.Holiday
	saver    Saver
	ids      *IDSource
}

// Option configures a Store.
type Option func(*Store)

// WithIDSource replaces the default timestamp-seeded id source.
func WithIDSource(ids *IDSource) Option {
	return func(s *Store) { s.ids = ids }
}

// New builds a store seeded from initial (typically loaded from the blob
// store). saver may be nil for a purely in-memory store.
func New(initial model.Snapshot, saver Saver, opts ...Option) *Store {
	s := &Store{
		guards:   slices.Clone(initial.Guards),
		holidays: slices.Clone(initial.Holidays),
		saver:    saver,
		ids:      NewIDSource(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MergeResult summarizes an additive merge.
type MergeResult struct {
	GuardsAdded   int
	HolidaysAdded int
	// Dropped lists candidates rejected with ErrDuplicateID.
	Dropped []DroppedRecord
}

// DroppedRecord identifies a merge candidate that was not added.
type DroppedRecord struct {
	Kind string // "shift" or "holiday"
	ID   int64
	Err  error
}

// Guards returns a copy of the guard collection in insertion order.
func (s *Store) Guards() []model.Guard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.guards)
}

// Holidays returns a copy of the holiday collection in insertion order.
func (s *Store) Holidays() []model.Holiday {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.holidays)
}

// Snapshot returns a consistent copy of both collections.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() model.Snapshot {
	return model.Snapshot{
		Guards:   slices.Clone(s.guards),
		Holidays: slices.Clone(s.holidays),
	}
}

// AddGuard validates and appends a guard with a fresh id.
func (s *Store) AddGuard(name, date string) (model.Guard, error) {
	if strings.TrimSpace(name) == "" {
		return model.Guard{}, &ValidationError{Field: FieldName, Message: MsgFillAllFields}
	}
	if date == "" {
		return model.Guard{}, &ValidationError{Field: FieldDate, Message: MsgFillAllFields}
	}
	if !calendar.IsDate(date) {
		return model.Guard{}, &ValidationError{Field: FieldDate, Message: MsgInvalidDate}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g := model.Guard{
		ID:   s.ids.Next(s.guardTakenLocked),
		Date: date,
		Name: name,
	}
	s.guards = append(s.guards, g)
	appLog.Debug("guard added", "id", g.ID, "date", g.Date)
	return g, s.saveLocked()
}

// AddHoliday validates and appends a holiday with a fresh id. Date order is
// checked before missing fields, but only once both dates parse.
func (s *Store) AddHoliday(name, startDate, endDate string) (model.Holiday, error) {
	if calendar.IsDate(startDate) && calendar.IsDate(endDate) && startDate > endDate {
		return model.Holiday{}, &ValidationError{Field: FieldDateRangeOrder, Message: MsgStartAfterEnd}
	}
	switch {
	case strings.TrimSpace(name) == "":
		return model.Holiday{}, &ValidationError{Field: FieldName, Message: MsgFillAllFields}
	case startDate == "":
		return model.Holiday{}, &ValidationError{Field: FieldStartDate, Message: MsgFillAllFields}
	case endDate == "":
		return model.Holiday{}, &ValidationError{Field: FieldEndDate, Message: MsgFillAllFields}
	}
	if !calendar.IsDate(startDate) {
		return model.Holiday{}, &ValidationError{Field: FieldStartDate, Message: MsgInvalidDate}
	}
	if !calendar.IsDate(endDate) {
		return model.Holiday{}, &ValidationError{Field: FieldEndDate, Message: MsgInvalidDate}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := model.Holiday{
		ID:        s.ids.Next(s.holidayTakenLocked),
		StartDate: startDate,
		EndDate:   endDate,
		Name:      name,
	}
	s.holidays = append(s.holidays, h)
	appLog.Debug("holiday added", "id", h.ID, "start", h.StartDate, "end", h.EndDate)
	return h, s.saveLocked()
}

// DeleteGuard removes the guard with id. Unknown ids are a no-op.
func (s *Store) DeleteGuard(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.popGuardLocked(id)
	if !ok {
		return false, nil
	}
	return true, s.saveLocked()
}

// DeleteHoliday removes the holiday with id. Unknown ids are a no-op.
func (s *Store) DeleteHoliday(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.popHolidayLocked(id)
	if !ok {
		return false, nil
	}
	return true, s.saveLocked()
}

// BeginEditGuard pops the guard out of the store and returns it. The record
// only comes back if the caller adds it again, under a new id.
func (s *Store) BeginEditGuard(id int64) (model.Guard, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.popGuardLocked(id)
	if !ok {
		return model.Guard{}, false, nil
	}
	return g, true, s.saveLocked()
}

// BeginEditHoliday is BeginEditGuard for holidays.
func (s *Store) BeginEditHoliday(id int64) (model.Holiday, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.popHolidayLocked(id)
	if !ok {
		return model.Holiday{}, false, nil
	}
	return h, true, s.saveLocked()
}

// Merge appends every candidate whose id is not yet present in its
// collection. Existing records are never touched. Ids repeated inside the
// batch keep their first occurrence.
func (s *Store) Merge(guards []model.Guard, holidays []model.Holiday) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res MergeResult
	for _, g := range guards {
		if s.guardTakenLocked(g.ID) {
			res.Dropped = append(res.Dropped, DroppedRecord{Kind: "shift", ID: g.ID, Err: ErrDuplicateID})
			continue
		}
		s.guards = append(s.guards, g)
		res.GuardsAdded++
	}
	for _, h := range holidays {
		if s.holidayTakenLocked(h.ID) {
			res.Dropped = append(res.Dropped, DroppedRecord{Kind: "holiday", ID: h.ID, Err: ErrDuplicateID})
			continue
		}
		s.holidays = append(s.holidays, h)
		res.HolidaysAdded++
	}

	if res.GuardsAdded == 0 && res.HolidaysAdded == 0 {
		return res, nil
	}
	return res, s.saveLocked()
}

func (s *Store) guardTakenLocked(id int64) bool {
	return slices.ContainsFunc(s.guards, func(g model.Guard) bool { return g.ID == id })
}

func (s *Store) holidayTakenLocked(id int64) bool {
	return slices.ContainsFunc(s.holidays, func(h model.Holiday) bool { return h.ID == id })
}

func (s *Store) popGuardLocked(id int64) (model.Guard, bool) {
	i := slices.IndexFunc(s.guards, func(g model.Guard) bool { return g.ID == id })
	if i < 0 {
		return model.Guard{}, false
	}
	g := s.guards[i]
	s.guards = slices.Delete(s.guards, i, i+1)
	return g, true
}

func (s *Store) popHolidayLocked(id int64) (model.Holiday, bool) {
	i := slices.IndexFunc(s.holidays, func(h model.Holiday) bool { return h.ID == id })
	if i < 0 {
		return model.Holiday{}, false
	}
	h := s.holidays[i]
	s.holidays = slices.Delete(s.holidays, i, i+1)
	return h, true
}

// saveLocked writes both collections through the saver (caller must hold mu).
func (s *Store) saveLocked() error {
	if s.saver == nil {
		return nil
	}
	if err := s.saver.Save(s.snapshotLocked()); err != nil {
		appLog.Error("store save failed", err, "guards", len(s.guards), "holidays", len(s.holidays))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
