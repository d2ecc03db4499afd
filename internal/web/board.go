package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"guardboard/internal/calendar"
	appLog "guardboard/internal/log"
	"guardboard/internal/model"
	"guardboard/internal/projection"
)

//go:embed templates/board.html
var templateFS embed.FS

var boardTmpl = template.Must(template.ParseFS(templateFS, "templates/board.html"))

// boardCell is one <td> of the grid. Blank cells pad the first and last week.
type boardCell struct {
	Blank   bool
	Date    string
	Day     int
	Class   string
	Guard   string
	Holiday string
}

type boardPage struct {
	Title    string
	Month    string
	Prev     string
	Next     string
	Weekdays []string
	Weeks    [][]boardCell
	Guards   []model.Guard
	Holidays []model.Holiday
}

// buildBoard lays the projected cells out in weeks starting at weekStart.
func buildBoard(m calendar.Month, weekStart time.Weekday, snap model.Snapshot) boardPage {
	layout := m.Layout()
	cells := projection.Month(layout, snap)

	weekdays := make([]string, 7)
	for i := range weekdays {
		weekdays[i] = time.Weekday((int(weekStart) + i) % 7).String()[:3]
	}

	row := make([]boardCell, 0, 7)
	for i := 0; i < layout.LeadingBlanks(weekStart); i++ {
		row = append(row, boardCell{Blank: true})
	}

	var weeks [][]boardCell
	for i, c := range cells {
		bc := boardCell{Date: c.Date, Day: i + 1, Class: string(c.Kind)}
		if c.Guard != nil {
			bc.Guard = c.Guard.Name
		}
		if c.Holiday != nil {
			bc.Holiday = c.Holiday.Name
		}
		row = append(row, bc)
		if len(row) == 7 {
			weeks = append(weeks, row)
			row = make([]boardCell, 0, 7)
		}
	}
	if len(row) > 0 {
		for len(row) < 7 {
			row = append(row, boardCell{Blank: true})
		}
		weeks = append(weeks, row)
	}

	return boardPage{
		Title:    fmt.Sprintf("%s %d", layout.Month, layout.Year),
		Month:    m.String(),
		Prev:     m.Prev().String(),
		Next:     m.Next().String(),
		Weekdays: weekdays,
		Weeks:    weeks,
		Guards:   snap.Guards,
		Holidays: snap.Holidays,
	}
}

// handleBoard renders the month grid server-side. The root element carries
// data-ready="true" so headless captures can wait on it.
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	m, err := s.resolveMonth(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	page := buildBoard(m, s.cfg.Weekday(), s.sess.Store().Snapshot())

	var buf bytes.Buffer
	if err := boardTmpl.Execute(&buf, page); err != nil {
		appLog.Error("board render failed", err, "month", m.String())
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
