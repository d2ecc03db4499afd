// Package csvcodec reads and writes the flat schedule CSV:
//
//	type,id,name,date,startDate,endDate
//	shift,1714550400000,Alice,2024-05-01,,
//	holiday,1714550400001,Summer,,2024-07-01,2024-07-14
//
// Fields are quoted only when they contain a delimiter, a quote, a line
// break or leading space, so plain rows match the historical unquoted export
// byte for byte.
package csvcodec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	appLog "guardboard/internal/log"
	"guardboard/internal/model"
	"guardboard/internal/store"
)

const (
	// FileName is the suggested download name.
	FileName = "schedule.csv"
	// ContentType is the download MIME type.
	ContentType = "text/csv;charset=utf-8;"

	TypeShift   = "shift"
	TypeHoliday = "holiday"

	fieldCount = 6
)

// Header is the first line of every export.
var Header = []string{"type", "id", "name", "date", "startDate", "endDate"}

var (
	// ErrMalformedRow marks a row with the wrong field count or a bad id.
	ErrMalformedRow = errors.New("malformed row")
	// ErrUnknownType marks a row whose type is neither shift nor holiday.
	ErrUnknownType = errors.New("unknown row type")
)

// RowError describes one skipped input row.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Batch is the decoded content of a CSV file.
type Batch struct {
	Guards   []model.Guard
	Holidays []model.Holiday
	Skipped  []RowError
}

// Export writes snap as CSV: guards first, then holidays.
func Export(w io.Writer, snap model.Snapshot) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, g := range snap.Guards {
		if err := cw.Write([]string{TypeShift, formatID(g.ID), g.Name, g.Date, "", ""}); err != nil {
			return err
		}
	}
	for _, h := range snap.Holidays {
		if err := cw.Write([]string{TypeHoliday, formatID(h.ID), h.Name, "", h.StartDate, h.EndDate}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Decode parses CSV text. The first physical line is the header and is
// dropped whatever it holds. Each remaining non-blank line is decoded on its
// own: lines with quotes go through the CSV reader so quoted fields may span
// lines, and a line the reader rejects falls back to a plain comma split, the
// shape older unescaped exports have. Bad rows are collected in
// Batch.Skipped with their physical line number; only read failures are
// returned.
func Decode(r io.Reader) (Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Batch{}, fmt.Errorf("read csv: %w", err)
	}

	var batch Batch
	_, text, found := strings.Cut(string(data), "\n")
	if !found {
		return batch, nil
	}

	line := 2
	for text != "" {
		physical, rest, _ := strings.Cut(text, "\n")
		physical = strings.TrimSuffix(physical, "\r")
		if strings.TrimSpace(physical) == "" {
			text, line = rest, line+1
			continue
		}

		if strings.Contains(physical, `"`) {
			if rec, n, ok := readQuoted(text); ok && decodeRow(&batch, rec) == nil {
				line += strings.Count(text[:n], "\n")
				text = text[n:]
				continue
			}
		}
		if rowErr := decodeRow(&batch, strings.Split(physical, ",")); rowErr != nil {
			batch.Skipped = append(batch.Skipped, RowError{Line: line, Err: rowErr})
		}
		text, line = rest, line+1
	}

	return batch, nil
}

// readQuoted reads one strict RFC 4180 record from the start of text and
// reports how many bytes it consumed.
func readQuoted(text string) ([]string, int, bool) {
	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	rec, err := cr.Read()
	if err != nil {
		return nil, 0, false
	}
	return rec, int(cr.InputOffset()), true
}

func decodeRow(batch *Batch, rec []string) error {
	if len(rec) != fieldCount {
		return ErrMalformedRow
	}
	typ, rawID, name, date, start, end := rec[0], rec[1], rec[2], rec[3], rec[4], rec[5]

	if typ != TypeShift && typ != TypeHoliday {
		return ErrUnknownType
	}
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		return ErrMalformedRow
	}

	if typ == TypeShift {
		batch.Guards = append(batch.Guards, model.Guard{ID: id, Date: date, Name: name})
	} else {
		batch.Holidays = append(batch.Holidays, model.Holiday{ID: id, StartDate: start, EndDate: end, Name: name})
	}
	return nil
}

// Merger receives decoded records; *store.Store implements it.
type Merger interface {
	Merge(guards []model.Guard, holidays []model.Holiday) (store.MergeResult, error)
}

// Result summarizes an import.
type Result struct {
	GuardsAdded   int                   `json:"guardsAdded"`
	HolidaysAdded int                   `json:"holidaysAdded"`
	Duplicates    int                   `json:"duplicates"`
	Skipped       int                   `json:"skipped"`
	Rows          []RowError            `json:"-"`
	Dropped       []store.DroppedRecord `json:"-"`
}

// Import decodes r and merges the records into m. Rows that cannot be used
// and ids that already exist are dropped without failing the import.
func Import(m Merger, r io.Reader) (Result, error) {
	batch, err := Decode(r)
	if err != nil {
		return Result{}, err
	}

	mr, err := m.Merge(batch.Guards, batch.Holidays)
	res := Result{
		GuardsAdded:   mr.GuardsAdded,
		HolidaysAdded: mr.HolidaysAdded,
		Duplicates:    len(mr.Dropped),
		Skipped:       len(batch.Skipped),
		Rows:          batch.Skipped,
		Dropped:       mr.Dropped,
	}
	for _, rowErr := range batch.Skipped {
		appLog.Debug("csv row skipped", "line", rowErr.Line, "reason", rowErr.Err)
	}
	appLog.Info("csv import merged",
		"guards_added", res.GuardsAdded,
		"holidays_added", res.HolidaysAdded,
		"duplicates", res.Duplicates,
		"skipped", res.Skipped,
	)
	return res, err
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
