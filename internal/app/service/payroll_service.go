package service

import (
	"context"
	"log"

	"shift-scheduler/internal/app/payroll"
	"shift-scheduler/internal/domain"
)

type PayrollService struct {
	Shifts   domain.ShiftStore
	Staff    *StaffService
	Calc     *payroll.Calculator
	Detector ConflictDetector
	Logger   *log.Logger
}

func NewPayrollService(shifts domain.ShiftStore, staff *StaffService, calc *payroll.Calculator, detector ConflictDetector, logger *log.Logger) *PayrollService {
	if logger == nil {
		logger = log.Default()
	}
	return &PayrollService{Shifts: shifts, Staff: staff, Calc: calc, Detector: detector, Logger: logger}
}

// ComputePayroll returns one line item per staff member for p. Outstanding
// conflicts are logged for the audit trail but do not block the run.
func (s *PayrollService) ComputePayroll(ctx context.Context, p domain.Period) ([]domain.PayrollLineItem, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	shifts, err := s.Shifts.ListShifts(ctx, p)
	if err != nil {
		return nil, err
	}
	staff, err := s.Staff.ListStaff(ctx)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, p)
	return s.Calc.ComputeAll(shifts, staff, p)
}

func (s *PayrollService) ComputeFor(ctx context.Context, staffID string, p domain.Period) (domain.PayrollLineItem, error) {
	if err := p.Validate(); err != nil {
		return domain.PayrollLineItem{}, err
	}
	member, err := s.Staff.GetStaff(ctx, staffID)
	if err != nil {
		return domain.PayrollLineItem{}, err
	}
	shifts, err := s.Shifts.ListShifts(ctx, p)
	if err != nil {
		return domain.PayrollLineItem{}, err
	}
	return s.Calc.Compute(member, shifts, p)
}

func (s *PayrollService) audit(ctx context.Context, p domain.Period) {
	if s.Detector == nil {
		return
	}
	conflicts, err := s.Detector.DetectConflicts(ctx, p)
	if err != nil {
		s.Logger.Printf("[payroll] audit detection failed: %v", err)
		return
	}
	if len(conflicts) > 0 {
		s.Logger.Printf("[payroll] %s: %d unresolved conflict(s) in paid period", p.From.Format("2006-01-02"), len(conflicts))
	}
}
