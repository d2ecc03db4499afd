package web

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"guardboard/internal/calendar"
	"guardboard/internal/csvcodec"
	"guardboard/internal/ics"
	appLog "guardboard/internal/log"
	"guardboard/internal/model"
	"guardboard/internal/projection"
	"guardboard/internal/session"
)

// monthResponse is the JSON shape for /api/month.
type monthResponse struct {
	Month         string            `json:"month"`
	Prev          string            `json:"prev"`
	Next          string            `json:"next"`
	Layout        calendar.Layout   `json:"layout"`
	WeekStart     string            `json:"weekStart"`
	LeadingBlanks int               `json:"leadingBlanks"`
	Cells         []projection.Cell `json:"cells"`
}

// resolveMonth reads ?month=YYYY-MM, defaulting to the current month.
func (s *Server) resolveMonth(r *http.Request) (calendar.Month, error) {
	if v := r.URL.Query().Get("month"); v != "" {
		return calendar.ParseMonth(v)
	}
	return s.cfg.CurrentMonth(s.now()), nil
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	m, err := s.resolveMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	layout := m.Layout()
	writeJSON(w, http.StatusOK, monthResponse{
		Month:         m.String(),
		Prev:          m.Prev().String(),
		Next:          m.Next().String(),
		Layout:        layout,
		WeekStart:     s.cfg.WeekStart,
		LeadingBlanks: layout.LeadingBlanks(s.cfg.Weekday()),
		Cells:         projection.Month(layout, s.sess.Store().Snapshot()),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Drafts())
}

func (s *Server) handleListGuards(w http.ResponseWriter, _ *http.Request) {
	guards := s.sess.Store().Guards()
	if guards == nil {
		guards = []model.Guard{}
	}
	writeJSON(w, http.StatusOK, guards)
}

func (s *Server) handleListHolidays(w http.ResponseWriter, _ *http.Request) {
	holidays := s.sess.Store().Holidays()
	if holidays == nil {
		holidays = []model.Holiday{}
	}
	writeJSON(w, http.StatusOK, holidays)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) handleAddGuard(w http.ResponseWriter, r *http.Request) {
	var d session.GuardDraft
	if err := decodeJSON(w, r, &d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	g, err := s.sess.SubmitGuard(d)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.metrics.Mutation(string(projection.KindGuard), "add")
	s.refreshGauges()
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleAddHoliday(w http.ResponseWriter, r *http.Request) {
	var d session.HolidayDraft
	if err := decodeJSON(w, r, &d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h, err := s.sess.SubmitHoliday(d)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.metrics.Mutation(string(projection.KindHoliday), "add")
	s.refreshGauges()
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleDeleteGuard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	deleted, err := s.sess.Store().DeleteGuard(id)
	s.finishDelete(w, projection.KindGuard, deleted, err)
}

func (s *Server) handleDeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	deleted, err := s.sess.Store().DeleteHoliday(id)
	s.finishDelete(w, projection.KindHoliday, deleted, err)
}

func (s *Server) finishDelete(w http.ResponseWriter, kind projection.Kind, deleted bool, err error) {
	if deleted {
		s.metrics.Mutation(string(kind), "delete")
		s.refreshGauges()
	}
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEditGuard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	d, found, err := s.sess.EditGuard(id)
	s.finishEdit(w, projection.KindGuard, d, found, err)
}

func (s *Server) handleEditHoliday(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	d, found, err := s.sess.EditHoliday(id)
	s.finishEdit(w, projection.KindHoliday, d, found, err)
}

// finishEdit answers with the draft now sitting in the form buffer.
func (s *Server) finishEdit(w http.ResponseWriter, kind projection.Kind, draft any, found bool, err error) {
	if found {
		s.metrics.Mutation(string(kind), "edit")
		s.refreshGauges()
	}
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", csvcodec.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": csvcodec.FileName}))
	if err := csvcodec.Export(w, s.sess.Store().Snapshot()); err != nil {
		appLog.Error("csv export failed", err)
	}
}

// handleImport accepts either a raw CSV body or a multipart form with a
// "file" field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var tooBig *http.MaxBytesError
	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing multipart field \"file\"")
			return
		}
		defer f.Close()
		src = f
	}

	res, err := s.sess.ImportCSV(r.Context(), src)
	if err != nil {
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		// A failed save still leaves the merged records in memory.
		s.refreshGauges()
		s.writeStoreError(w, err)
		return
	}

	s.metrics.ImportRows("csv", "added", res.GuardsAdded+res.HolidaysAdded)
	s.metrics.ImportRows("csv", "duplicate", res.Duplicates)
	s.metrics.ImportRows("csv", "skipped", res.Skipped)
	s.refreshGauges()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", ics.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": ics.FileName}))
	err := ics.WriteCalendar(w, s.sess.Store().Snapshot(), ics.ExportOptions{Now: s.now().UTC().Truncate(time.Second)})
	if err != nil {
		appLog.Error("ics export failed", err)
	}
}
