package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"shift-scheduler/internal/app/resolution"
	"shift-scheduler/internal/domain"
	"shift-scheduler/internal/model"
)

// parsePeriod accepts RFC 3339 timestamps or plain dates. A plain date as
// the upper bound is inclusive.
func parsePeriod(r *http.Request, fromKey, toKey string) (domain.Period, error) {
	q := r.URL.Query()
	from, _, err := parseBound(q.Get(fromKey))
	if err != nil {
		return domain.Period{}, &domain.ValidationError{Field: fromKey, Reason: err.Error()}
	}
	to, dateOnly, err := parseBound(q.Get(toKey))
	if err != nil {
		return domain.Period{}, &domain.ValidationError{Field: toKey, Reason: err.Error()}
	}
	if dateOnly {
		to = to.AddDate(0, 0, 1)
	}
	p := domain.Period{From: from, To: to}
	return p, p.Validate()
}

func parseBound(v string) (time.Time, bool, error) {
	if v == "" {
		return time.Time{}, false, errors.New("is required")
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(model.DateLayout, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("want RFC 3339 or YYYY-MM-DD, got %q", v)
	}
	return t, true, nil
}

func (s *Server) listConflicts(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r, "from", "to")
	if err != nil {
		s.writeError(w, err)
		return
	}
	conflicts, err := s.Scheduling.DetectConflicts(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]model.Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, model.FromConflict(c))
	}
	writeJSON(w, http.StatusOK, out)
}

type resolveRequest struct {
	Option        string `json:"resolution_type"`
	TargetStaffID string `json:"target_staff_id,omitempty"`
	Actor         string `json:"actor,omitempty"`
}

type resolveResponse struct {
	Shifts    []model.Shift    `json:"shifts"`
	Deferred  bool             `json:"deferred"`
	Conflicts []model.Conflict `json:"conflicts"`
}

func (s *Server) resolveConflict(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r, "from", "to")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var body resolveRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	conflicts, err := s.Scheduling.DetectConflicts(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	id := r.PathValue("id")
	var target *domain.Conflict
	for i := range conflicts {
		if conflicts[i].ID == id {
			target = &conflicts[i]
			break
		}
	}
	if target == nil {
		s.writeError(w, fmt.Errorf("conflict %s: %w", id, domain.ErrNotFound))
		return
	}

	applied, err := s.Scheduling.ApplyResolution(r.Context(), p, *target, domain.ResolutionOption(body.Option), resolution.Params{
		TargetStaffID: body.TargetStaffID,
		Actor:         body.Actor,
		Elevated:      s.elevated(r),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	remaining, err := s.Scheduling.DetectFor(r.Context(), p, applied.StaffIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := resolveResponse{Deferred: applied.Deferred}
	for _, sh := range applied.Shifts() {
		resp.Shifts = append(resp.Shifts, model.FromShift(sh))
	}
	for _, c := range remaining {
		resp.Conflicts = append(resp.Conflicts, model.FromConflict(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) recordResolution(w http.ResponseWriter, r *http.Request) {
	var body model.ResolutionRequest
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	rec := body.Domain()
	if rec.ConflictID == "" || !domain.Offers(rec.ConflictType, rec.Option) {
		s.writeError(w, fmt.Errorf("%s for %s: %w", rec.Option, rec.ConflictType, domain.ErrInvalidOption))
		return
	}
	if rec.ResolvedAt.IsZero() {
		rec.ResolvedAt = time.Now().UTC()
	}
	if err := s.Resolutions.SubmitResolution(r.Context(), rec); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.FromResolution(rec))
}

type publishResponse struct {
	Published int              `json:"published"`
	Conflicts []model.Conflict `json:"conflicts,omitempty"`
}

// publish answers 428 with the outstanding conflicts until the caller
// repeats the request with ack=true.
func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r, "from", "to")
	if err != nil {
		s.writeError(w, err)
		return
	}
	ack, _ := strconv.ParseBool(r.URL.Query().Get("ack"))
	n, err := s.ShiftSvc.PublishSchedule(r.Context(), p, ack)
	var warn *domain.UnresolvedConflictWarning
	if errors.As(err, &warn) {
		resp := publishResponse{}
		for _, c := range warn.Conflicts {
			resp.Conflicts = append(resp.Conflicts, model.FromConflict(c))
		}
		writeJSON(w, http.StatusPreconditionRequired, resp)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publishResponse{Published: n})
}

func (s *Server) payrollItems(r *http.Request) ([]model.PayrollLineItem, error) {
	p, err := parsePeriod(r, "start_date", "end_date")
	if err != nil {
		return nil, err
	}
	items, err := s.Payroll.ComputePayroll(r.Context(), p)
	if err != nil {
		return nil, err
	}
	only := map[string]bool{}
	for _, id := range r.URL.Query()["staff_ids"] {
		only[id] = true
	}
	out := make([]model.PayrollLineItem, 0, len(items))
	for _, it := range items {
		if len(only) > 0 && !only[it.StaffID] {
			continue
		}
		out = append(out, model.FromPayroll(it))
	}
	return out, nil
}

func (s *Server) payroll(w http.ResponseWriter, r *http.Request) {
	items, err := s.payrollItems(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// exportPayroll only knows the JSON rendering; other formats are produced
// by downstream reporting.
func (s *Server) exportPayroll(w http.ResponseWriter, r *http.Request) {
	if f := r.URL.Query().Get("format"); f != "" && f != "json" {
		writeJSON(w, http.StatusNotAcceptable, errorBody{Error: "unsupported export format " + f})
		return
	}
	items, err := s.payrollItems(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="payroll.json"`)
	writeJSON(w, http.StatusOK, items)
}
