// Package session holds the in-progress form buffers and funnels every
// user-triggered mutation and import into the record store.
package session

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/semaphore"

	"guardboard/internal/csvcodec"
	appLog "guardboard/internal/log"
	"guardboard/internal/model"
	"guardboard/internal/store"
)

// ErrImportInProgress is returned when an import is attempted while another
// one is still merging.
var ErrImportInProgress = errors.New("an import is already in progress")

// GuardDraft is the guard form buffer.
type GuardDraft struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

// HolidayDraft is the holiday form buffer.
type HolidayDraft struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Drafts is a copy of both buffers.
type Drafts struct {
	Guard   GuardDraft   `json:"guard"`
	Holiday HolidayDraft `json:"holiday"`
}

// Session owns the draft buffers. It never stores records itself.
type Session struct {
	store *store.Store

	mu      sync.Mutex
	guard   GuardDraft
	holiday HolidayDraft

	imports *semaphore.Weighted
}

func New(s *store.Store) *Session {
	return &Session{
		store:   s,
		imports: semaphore.NewWeighted(1),
	}
}

// Store returns the underlying record store.
func (s *Session) Store() *store.Store { return s.store }

// Drafts returns the current buffers.
func (s *Session) Drafts() Drafts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Drafts{Guard: s.guard, Holiday: s.holiday}
}

// EditGuard pops guard id from the store into the guard buffer. It reports
// false (and leaves the buffer alone) when the id is unknown.
func (s *Session) EditGuard(id int64) (GuardDraft, bool, error) {
	g, ok, err := s.store.BeginEditGuard(id)
	if !ok {
		return GuardDraft{}, false, err
	}

	s.mu.Lock()
	s.guard = GuardDraft{Name: g.Name, Date: g.Date}
	d := s.guard
	s.mu.Unlock()
	return d, true, err
}

// EditHoliday pops holiday id from the store into the holiday buffer.
func (s *Session) EditHoliday(id int64) (HolidayDraft, bool, error) {
	h, ok, err := s.store.BeginEditHoliday(id)
	if !ok {
		return HolidayDraft{}, false, err
	}

	s.mu.Lock()
	s.holiday = HolidayDraft{Name: h.Name, StartDate: h.StartDate, EndDate: h.EndDate}
	d := s.holiday
	s.mu.Unlock()
	return d, true, err
}

// SubmitGuard replaces the guard buffer with d and saves it as a new guard.
// The buffer is cleared on success and kept on validation failure.
func (s *Session) SubmitGuard(d GuardDraft) (model.Guard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.guard = d
	g, err := s.store.AddGuard(d.Name, d.Date)
	if err != nil && store.IsValidation(err) {
		return g, err
	}
	s.guard = GuardDraft{}
	return g, err
}

// SubmitHoliday is SubmitGuard for holidays.
func (s *Session) SubmitHoliday(d HolidayDraft) (model.Holiday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.holiday = d
	h, err := s.store.AddHoliday(d.Name, d.StartDate, d.EndDate)
	if err != nil && store.IsValidation(err) {
		return h, err
	}
	s.holiday = HolidayDraft{}
	return h, err
}

// ImportCSV merges CSV text into the store. At most one import runs at a
// time; a concurrent call fails fast with ErrImportInProgress.
func (s *Session) ImportCSV(ctx context.Context, r io.Reader) (csvcodec.Result, error) {
	if err := ctx.Err(); err != nil {
		return csvcodec.Result{}, err
	}
	if !s.imports.TryAcquire(1) {
		appLog.Warn("csv import rejected, another import is running")
		return csvcodec.Result{}, ErrImportInProgress
	}
	defer s.imports.Release(1)

	return csvcodec.Import(s.store, r)
}

// ImportHolidays merges externally sourced holidays through the same
// single-flight gate as CSV imports.
func (s *Session) ImportHolidays(ctx context.Context, holidays []model.Holiday) (store.MergeResult, error) {
	if err := ctx.Err(); err != nil {
		return store.MergeResult{}, err
	}
	if !s.imports.TryAcquire(1) {
		return store.MergeResult{}, ErrImportInProgress
	}
	defer s.imports.Release(1)

	return s.store.Merge(nil, holidays)
}
