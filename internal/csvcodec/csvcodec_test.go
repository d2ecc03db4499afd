package csvcodec

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"guardboard/internal/model"
	"guardboard/internal/store"
)

var sample = model.Snapshot{
	Guards: []model.Guard{
		{ID: 1714550400000, Date: "2024-05-01", Name: "Alice"},
		{ID: 1714550400001, Date: "2024-05-02", Name: "Bob"},
	},
	Holidays: []model.Holiday{
		{ID: 1714550400000, StartDate: "2024-07-01", EndDate: "2024-07-14", Name: "Summer"},
	},
}

func TestExportFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, sample); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	want := "type,id,name,date,startDate,endDate\n" +
		"shift,1714550400000,Alice,2024-05-01,,\n" +
		"shift,1714550400001,Bob,2024-05-02,,\n" +
		"holiday,1714550400000,Summer,,2024-07-01,2024-07-14\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected export:\n%s\nwant:\n%s", got, want)
	}
}

func TestExportEmptyStoreWritesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, model.Snapshot{}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "type,id,name,date,startDate,endDate\n" {
		t.Errorf("got %q", got)
	}
}

func TestRoundTripIntoEmptyStore(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, sample); err != nil {
		t.Fatal(err)
	}

	s := store.New(model.Snapshot{}, nil)
	res, err := Import(s, &buf)
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if res.GuardsAdded != 2 || res.HolidaysAdded != 1 || res.Skipped != 0 || res.Duplicates != 0 {
		t.Errorf("unexpected result %+v", res)
	}

	got := s.Snapshot()
	if !slices.Equal(got.Guards, sample.Guards) || !slices.Equal(got.Holidays, sample.Holidays) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, sample)
	}
}

func TestRoundTripNamesWithDelimiters(t *testing.T) {
	snap := model.Snapshot{
		Guards: []model.Guard{
			{ID: 1, Date: "2024-05-01", Name: "Smith, John"},
			{ID: 2, Date: "2024-05-02", Name: `The "Night" Watch`},
			{ID: 3, Date: "2024-05-03", Name: " padded"},
		},
		Holidays: []model.Holiday{
			{ID: 1, StartDate: "2024-12-24", EndDate: "2024-12-26", Name: "Christmas\nand Boxing Day"},
		},
	}

	var buf bytes.Buffer
	if err := Export(&buf, snap); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `shift,1,"Smith, John",2024-05-01,,`) {
		t.Errorf("comma name should be quoted:\n%s", buf.String())
	}

	batch, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Skipped) != 0 {
		t.Fatalf("unexpected skipped rows: %v", batch.Skipped)
	}
	if !slices.Equal(batch.Guards, snap.Guards) || !slices.Equal(batch.Holidays, snap.Holidays) {
		t.Errorf("lossy round trip:\n got %+v %+v", batch.Guards, batch.Holidays)
	}
}

func TestImportIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, sample); err != nil {
		t.Fatal(err)
	}
	text := buf.String()

	s := store.New(model.Snapshot{}, nil)
	if _, err := Import(s, strings.NewReader(text)); err != nil {
		t.Fatal(err)
	}
	after := s.Snapshot()

	res, err := Import(s, strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if res.GuardsAdded != 0 || res.HolidaysAdded != 0 || res.Duplicates != 3 {
		t.Errorf("second import should only produce duplicates, got %+v", res)
	}
	again := s.Snapshot()
	if !slices.Equal(again.Guards, after.Guards) || !slices.Equal(again.Holidays, after.Holidays) {
		t.Error("second import changed the store")
	}
}

func TestImportKeepsExistingRecords(t *testing.T) {
	existing := model.Guard{ID: 5, Date: "2024-01-01", Name: "Original"}
	s := store.New(model.Snapshot{Guards: []model.Guard{existing}}, nil)

	text := "type,id,name,date,startDate,endDate\nshift,5,Replacement,2024-09-09,,\n"
	res, err := Import(s, strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if res.Duplicates != 1 || !errors.Is(res.Dropped[0].Err, store.ErrDuplicateID) {
		t.Errorf("expected one duplicate, got %+v", res)
	}
	if got := s.Guards(); len(got) != 1 || got[0] != existing {
		t.Errorf("existing record modified: %+v", got)
	}
}

func TestDecodeSkipsMalformedRows(t *testing.T) {
	text := strings.Join([]string{
		"type,id,name,date,startDate,endDate",
		"foo,1,Mystery,2024-05-01,,",
		"shift,2,Short",
		"",
		"   ",
		"shift,abc,Bad id,2024-05-01,,",
		",,,,,",
		"holiday,3,Too,many,fields,here,extra",
		"shift,4,Valid,2024-05-04,,",
		"holiday,5,Valid holiday,,2024-06-01,2024-06-02",
	}, "\n")

	batch, err := Decode(strings.NewReader(text))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	if len(batch.Guards) != 1 || batch.Guards[0].ID != 4 {
		t.Errorf("guards = %+v", batch.Guards)
	}
	if len(batch.Holidays) != 1 || batch.Holidays[0].ID != 5 {
		t.Errorf("holidays = %+v", batch.Holidays)
	}

	var unknown, malformed int
	for _, re := range batch.Skipped {
		switch {
		case errors.Is(re, ErrUnknownType):
			unknown++
		case errors.Is(re, ErrMalformedRow):
			malformed++
		default:
			t.Errorf("unexpected row error %v", re)
		}
	}
	if unknown != 2 || malformed != 3 {
		t.Errorf("unknown=%d malformed=%d, skipped=%v", unknown, malformed, batch.Skipped)
	}
	if batch.Skipped[0].Line != 2 {
		t.Errorf("first skipped row should be line 2, got %d", batch.Skipped[0].Line)
	}
}

func TestDecodeHeaderOnlyAndEmpty(t *testing.T) {
	for _, text := range []string{"", "type,id,name,date,startDate,endDate\n"} {
		batch, err := Decode(strings.NewReader(text))
		if err != nil {
			t.Fatalf("Decode(%q) error: %v", text, err)
		}
		if len(batch.Guards)+len(batch.Holidays)+len(batch.Skipped) != 0 {
			t.Errorf("Decode(%q) = %+v", text, batch)
		}
	}
}

func TestDecodeHandlesCRLF(t *testing.T) {
	text := "type,id,name,date,startDate,endDate\r\nholiday,9,Break,,2024-02-01,2024-02-03\r\n"
	batch, err := Decode(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Holidays) != 1 || batch.Holidays[0].EndDate != "2024-02-03" {
		t.Errorf("holidays = %+v", batch.Holidays)
	}
}

func TestImportDoesNotValidateHolidayOrder(t *testing.T) {
	s := store.New(model.Snapshot{}, nil)
	text := "type,id,name,date,startDate,endDate\nholiday,1,Backwards,,2024-05-10,2024-05-01\n"

	res, err := Import(s, strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if res.HolidaysAdded != 1 {
		t.Errorf("merge should accept rows as-is, got %+v", res)
	}
}

func TestDecodeUnescapedLegacyQuoteKeepsLaterRows(t *testing.T) {
	text := "type,id,name,date,startDate,endDate\n" +
		"shift,1,\"Bob,2024-05-01,,\n" +
		"shift,2,Alice,2024-05-02,,\n" +
		"shift,3,Carol,2024-05-03,,\n" +
		"holiday,4,Summer,,2024-07-01,2024-07-14\n"

	batch, err := Decode(strings.NewReader(text))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	wantGuards := []model.Guard{
		{ID: 1, Date: "2024-05-01", Name: `"Bob`},
		{ID: 2, Date: "2024-05-02", Name: "Alice"},
		{ID: 3, Date: "2024-05-03", Name: "Carol"},
	}
	if !slices.Equal(batch.Guards, wantGuards) {
		t.Errorf("guards = %+v", batch.Guards)
	}
	if len(batch.Holidays) != 1 || batch.Holidays[0].ID != 4 {
		t.Errorf("holidays = %+v", batch.Holidays)
	}
	if len(batch.Skipped) != 0 {
		t.Errorf("skipped = %v", batch.Skipped)
	}
}

func TestDecodeBadQuotedLineSkipsOnlyThatLine(t *testing.T) {
	text := "type,id,name,date,startDate,endDate\n" +
		"shift,x,\"Broken,2024-05-01\n" +
		"shift,2,Alice,2024-05-02,,\n" +
		"shift,3,\"Multi\nline\",2024-05-03,,\n" +
		"shift,4,Dave,2024-05-04,,\n"

	batch, err := Decode(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	var ids []int64
	for _, g := range batch.Guards {
		ids = append(ids, g.ID)
	}
	if !slices.Equal(ids, []int64{2, 3, 4}) {
		t.Errorf("guard ids = %v", ids)
	}
	if batch.Guards[1].Name != "Multi\nline" {
		t.Errorf("multi-line name = %q", batch.Guards[1].Name)
	}
	if len(batch.Skipped) != 1 || batch.Skipped[0].Line != 2 {
		t.Errorf("skipped = %v", batch.Skipped)
	}
}

func TestDecodeAlwaysDropsFirstPhysicalLine(t *testing.T) {
	text := "\nshift,1,Alice,2024-05-01,,\n\nshift,abc,Bad,2024-05-03,,\nshift,2,Bob,2024-05-02,,\n"

	batch, err := Decode(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(batch.Guards) != 2 || batch.Guards[0].Name != "Alice" || batch.Guards[1].Name != "Bob" {
		t.Errorf("guards = %+v", batch.Guards)
	}
	if len(batch.Skipped) != 1 || batch.Skipped[0].Line != 4 {
		t.Errorf("skipped = %v", batch.Skipped)
	}
}
