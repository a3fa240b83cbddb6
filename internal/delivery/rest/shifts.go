package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"shift-scheduler/internal/domain"
	"shift-scheduler/internal/model"
	"shift-scheduler/pkg/optimistic"
)

func setVersionHeaders(w http.ResponseWriter, vi domain.VersionInfo) {
	tag := vi.ETag
	if tag == "" {
		tag = optimistic.VersionTag(vi.Version)
	}
	w.Header().Set(optimistic.HeaderETag, tag)
	w.Header().Set(optimistic.HeaderEntityVersion, strconv.Itoa(vi.Version))
}

func (s *Server) listShifts(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r, "from", "to")
	if err != nil {
		s.writeError(w, err)
		return
	}
	shifts, err := s.Shifts.ListShifts(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]optimistic.Entity[model.Shift], 0, len(shifts))
	for _, sh := range shifts {
		out = append(out, model.ShiftEntity(sh))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getShift(w http.ResponseWriter, r *http.Request) {
	sh, err := s.Shifts.GetShift(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	setVersionHeaders(w, sh.VersionInfo)
	writeJSON(w, http.StatusOK, model.ShiftEntity(sh))
}

func (s *Server) createShift(w http.ResponseWriter, r *http.Request) {
	var body model.Shift
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	sh, err := s.ShiftSvc.AddShift(r.Context(), body.Domain())
	if err != nil {
		s.writeError(w, err)
		return
	}
	setVersionHeaders(w, sh.VersionInfo)
	writeJSON(w, http.StatusCreated, model.ShiftEntity(sh))
}

// requestVersion reads the version a PUT was based on: X-Entity-Version,
// then If-Match, then the body envelope.
func requestVersion(r *http.Request, body int) (int, bool) {
	if v := r.Header.Get(optimistic.HeaderEntityVersion); v != "" {
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	if tag := r.Header.Get(optimistic.HeaderIfMatch); tag != "" {
		return optimistic.ParseVersionTag(tag)
	}
	return body, body > 0
}

func (s *Server) putShift(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body optimistic.Entity[model.Shift]
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	version, ok := requestVersion(r, body.Version)
	if !ok {
		writeJSON(w, http.StatusPreconditionRequired, errorBody{Error: "If-Match or X-Entity-Version is required"})
		return
	}

	sh := body.Data.Domain()
	sh.ID = id
	sh.Version = version
	saved, current, err := s.Shifts.SaveShift(r.Context(), sh)
	if errors.Is(err, domain.ErrVersionConflict) {
		setVersionHeaders(w, current.VersionInfo)
		writeJSON(w, http.StatusConflict, model.ShiftEntity(current))
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	setVersionHeaders(w, saved.VersionInfo)
	writeJSON(w, http.StatusOK, model.ShiftEntity(saved))
}

func (s *Server) deleteShift(w http.ResponseWriter, r *http.Request) {
	if err := s.Shifts.DeleteShift(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	StaffID string `json:"staff_id"`
	Date    string `json:"date"`
}

func (s *Server) moveShift(w http.ResponseWriter, r *http.Request) {
	var body moveRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	day, err := time.Parse(model.DateLayout, body.Date)
	if err != nil {
		s.writeError(w, &domain.ValidationError{Field: "date", Reason: err.Error()})
		return
	}
	sh, err := s.ShiftSvc.MoveShift(r.Context(), r.PathValue("id"), body.StaffID, day)
	if err != nil {
		s.writeError(w, err)
		return
	}
	setVersionHeaders(w, sh.VersionInfo)
	writeJSON(w, http.StatusOK, model.ShiftEntity(sh))
}

func (s *Server) listAvailability(w http.ResponseWriter, r *http.Request) {
	recs, err := s.Availability.ListAvailability(r.Context(), r.URL.Query()["staff_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]optimistic.Entity[model.Availability], 0, len(recs))
	for _, a := range recs {
		out = append(out, model.AvailabilityEntity(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// saveAvailability creates a record on POST. PUT replaces one and, like
// putShift, needs the version it was based on.
func (s *Server) saveAvailability(w http.ResponseWriter, r *http.Request) {
	var body optimistic.Entity[model.Availability]
	if r.Method == http.MethodPost {
		if err := decodeBody(r, &body.Data); err != nil {
			s.writeError(w, err)
			return
		}
	} else if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	a, err := body.Data.Domain()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if id := r.PathValue("id"); id != "" {
		version, ok := requestVersion(r, body.Version)
		if !ok {
			writeJSON(w, http.StatusPreconditionRequired, errorBody{Error: "If-Match or X-Entity-Version is required"})
			return
		}
		a.ID = id
		a.Version = version
	}
	saved, err := s.Staff.SetAvailability(r.Context(), a)
	if errors.Is(err, domain.ErrVersionConflict) {
		setVersionHeaders(w, saved.VersionInfo)
		writeJSON(w, http.StatusConflict, model.AvailabilityEntity(saved))
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	setVersionHeaders(w, saved.VersionInfo)
	writeJSON(w, status, model.AvailabilityEntity(saved))
}
