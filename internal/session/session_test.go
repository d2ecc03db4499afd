package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"guardboard/internal/model"
	"guardboard/internal/store"
)

func TestSubmitGuardClearsBufferOnSuccess(t *testing.T) {
	sess := New(store.New(model.Snapshot{}, nil))

	g, err := sess.SubmitGuard(GuardDraft{Name: "Alice", Date: "2024-05-01"})
	if err != nil {
		t.Fatalf("SubmitGuard() error: %v", err)
	}
	if g.ID == 0 {
		t.Error("expected an assigned id")
	}
	if d := sess.Drafts().Guard; d != (GuardDraft{}) {
		t.Errorf("buffer should be cleared, got %+v", d)
	}
}

func TestSubmitHolidayKeepsBufferOnValidationError(t *testing.T) {
	sess := New(store.New(model.Snapshot{}, nil))
	draft := HolidayDraft{Name: "X", StartDate: "2024-05-10", EndDate: "2024-05-01"}

	_, err := sess.SubmitHoliday(draft)
	if !store.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := sess.Drafts().Holiday; got != draft {
		t.Errorf("buffer = %+v, want %+v", got, draft)
	}
	if len(sess.Store().Holidays()) != 0 {
		t.Error("holiday collection must be unchanged")
	}
}

func TestEditGuardThenResubmit(t *testing.T) {
	st := store.New(model.Snapshot{}, nil)
	sess := New(st)
	orig, err := st.AddGuard("Alice", "2024-05-01")
	if err != nil {
		t.Fatal(err)
	}

	d, ok, err := sess.EditGuard(orig.ID)
	if err != nil || !ok {
		t.Fatalf("EditGuard() = %v, %v", ok, err)
	}
	if d != (GuardDraft{Name: "Alice", Date: "2024-05-01"}) {
		t.Errorf("draft = %+v", d)
	}
	if len(st.Guards()) != 0 {
		t.Fatal("guard should be removed while editing")
	}

	d.Date = "2024-05-08"
	g, err := sess.SubmitGuard(d)
	if err != nil {
		t.Fatal(err)
	}
	if g.ID == orig.ID {
		t.Error("edited guard must get a fresh id")
	}
	if got := st.Guards(); len(got) != 1 || got[0].Date != "2024-05-08" {
		t.Errorf("guards = %+v", got)
	}
}

func TestEditUnknownIDLeavesBuffer(t *testing.T) {
	sess := New(store.New(model.Snapshot{}, nil))
	_, _ = sess.SubmitHoliday(HolidayDraft{Name: "pending"})

	if _, ok, err := sess.EditHoliday(42); ok || err != nil {
		t.Fatalf("EditHoliday(42) = %v, %v", ok, err)
	}
	if got := sess.Drafts().Holiday.Name; got != "pending" {
		t.Errorf("buffer changed to %q", got)
	}
}

func TestEditHoliday(t *testing.T) {
	h := model.Holiday{ID: 9, StartDate: "2024-07-01", EndDate: "2024-07-14", Name: "Summer"}
	sess := New(store.New(model.Snapshot{Holidays: []model.Holiday{h}}, nil))

	d, ok, err := sess.EditHoliday(9)
	if err != nil || !ok {
		t.Fatalf("EditHoliday() = %v, %v", ok, err)
	}
	want := HolidayDraft{Name: "Summer", StartDate: "2024-07-01", EndDate: "2024-07-14"}
	if d != want || sess.Drafts().Holiday != want {
		t.Errorf("draft = %+v", d)
	}
}

// blockingReader parks the first Read until release is closed.
type blockingReader struct {
	started chan struct{}
	release chan struct{}
	body    *strings.Reader
	once    bool
}

func (b *blockingReader) Read(p []byte) (int, error) {
	if !b.once {
		b.once = true
		close(b.started)
		<-b.release
	}
	return b.body.Read(p)
}

func TestImportCSVIsSingleFlight(t *testing.T) {
	sess := New(store.New(model.Snapshot{}, nil))
	text := "type,id,name,date,startDate,endDate\nshift,1,Alice,2024-05-01,,\n"

	br := &blockingReader{
		started: make(chan struct{}),
		release: make(chan struct{}),
		body:    strings.NewReader(text),
	}

	done := make(chan error, 1)
	go func() {
		_, err := sess.ImportCSV(context.Background(), br)
		done <- err
	}()
	<-br.started

	if _, err := sess.ImportCSV(context.Background(), strings.NewReader(text)); !errors.Is(err, ErrImportInProgress) {
		t.Errorf("expected ErrImportInProgress, got %v", err)
	}
	if _, err := sess.ImportHolidays(context.Background(), nil); !errors.Is(err, ErrImportInProgress) {
		t.Errorf("holiday import should share the gate, got %v", err)
	}

	close(br.release)
	if err := <-done; err != nil {
		t.Fatalf("first import failed: %v", err)
	}

	res, err := sess.ImportCSV(context.Background(), strings.NewReader(text))
	if err != nil {
		t.Fatalf("import after release: %v", err)
	}
	if res.Duplicates != 1 {
		t.Errorf("expected the row to be a duplicate now, got %+v", res)
	}
}

func TestImportCSVHonoursCanceledContext(t *testing.T) {
	sess := New(store.New(model.Snapshot{}, nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := sess.ImportCSV(ctx, strings.NewReader("")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
