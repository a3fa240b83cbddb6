// Package rest serves the shared scheduling store over HTTP: versioned
// shift and availability resources plus conflict, resolution and payroll
// endpoints.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"shift-scheduler/internal/app/service"
	"shift-scheduler/internal/domain"
	"shift-scheduler/pkg/optimistic"
)

// ShiftRepo is the storage the shift endpoints need. SaveShift must fail
// with domain.ErrVersionConflict and return the stored shift when
// s.Version is stale.
type ShiftRepo interface {
	ListShifts(ctx context.Context, p domain.Period) ([]domain.Shift, error)
	GetShift(ctx context.Context, id string) (domain.Shift, error)
	SaveShift(ctx context.Context, s domain.Shift) (domain.Shift, domain.Shift, error)
	DeleteShift(ctx context.Context, id string) error
}

type Server struct {
	Shifts       ShiftRepo
	ShiftSvc     *service.ShiftService
	Staff        *service.StaffService
	Availability domain.AvailabilityRepo
	Resolutions  domain.ResolutionSink
	Scheduling   *service.SchedulingService
	Payroll      *service.PayrollService
	// ManagerToken, when presented as a bearer token, allows elevated
	// resolutions such as approving overtime.
	ManagerToken string
	Logger       *log.Logger
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /shifts", s.listShifts)
	mux.HandleFunc("POST /shifts", s.createShift)
	mux.HandleFunc("GET /shifts/{id}", s.getShift)
	mux.HandleFunc("PUT /shifts/{id}", s.putShift)
	mux.HandleFunc("DELETE /shifts/{id}", s.deleteShift)
	mux.HandleFunc("POST /shifts/{id}/move", s.moveShift)

	mux.HandleFunc("GET /availability", s.listAvailability)
	mux.HandleFunc("POST /availability", s.saveAvailability)
	mux.HandleFunc("PUT /availability/{id}", s.saveAvailability)

	mux.HandleFunc("GET /conflicts", s.listConflicts)
	mux.HandleFunc("POST /conflicts/{id}/resolve", s.resolveConflict)
	mux.HandleFunc("POST /resolutions", s.recordResolution)
	mux.HandleFunc("POST /publish", s.publish)

	mux.HandleFunc("GET /payroll", s.payroll)
	mux.HandleFunc("GET /payroll/export", s.exportPayroll)
	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger().Printf("[http] %s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) elevated(r *http.Request) bool {
	if s.ManagerToken == "" {
		return false
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") == s.ManagerToken
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Error: err.Error()}

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
		body.Field = verr.Field
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, optimistic.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidOption), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNoCandidate):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrVersionConflict), optimistic.IsConcurrency(err):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger().Printf("[http] internal error: %v", err)
	}
	writeJSON(w, status, body)
}

var errBadRequest = errors.New("bad request")

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
