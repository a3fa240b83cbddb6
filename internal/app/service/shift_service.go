package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"shift-scheduler/internal/domain"
)

// ConflictDetector reports the outstanding conflicts of a period.
type ConflictDetector interface {
	DetectConflicts(ctx context.Context, p domain.Period) ([]domain.Conflict, error)
}

type ShiftService struct {
	Store    domain.ShiftStore
	Staff    *StaffService
	Detector ConflictDetector
	Logger   *log.Logger
}

func NewShiftService(store domain.ShiftStore, staff *StaffService, detector ConflictDetector, logger *log.Logger) *ShiftService {
	if logger == nil {
		logger = log.Default()
	}
	return &ShiftService{Store: store, Staff: staff, Detector: detector, Logger: logger}
}

func (s *ShiftService) AddShift(ctx context.Context, sh domain.Shift) (domain.Shift, error) {
	if sh.Type == "" {
		sh.Type = domain.ShiftRegular
	}
	if sh.Status == "" {
		sh.Status = domain.StatusDraft
	}
	if err := sh.Validate(); err != nil {
		return domain.Shift{}, err
	}
	if _, err := s.Staff.GetStaff(ctx, sh.StaffID); err != nil {
		return domain.Shift{}, fmt.Errorf("staff %s: %w", sh.StaffID, err)
	}
	return s.Store.CreateShift(ctx, sh)
}

func (s *ShiftService) GetShift(ctx context.Context, id string) (domain.Shift, error) {
	return s.Store.GetShift(ctx, id)
}

func (s *ShiftService) ListShifts(ctx context.Context, p domain.Period) ([]domain.Shift, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	shifts, err := s.Store.ListShifts(ctx, p)
	if err != nil {
		return nil, err
	}
	domain.SortByStart(shifts)
	return shifts, nil
}

// ShiftsOf returns one staff member's shifts in p.
func (s *ShiftService) ShiftsOf(ctx context.Context, staffID string, p domain.Period) ([]domain.Shift, error) {
	all, err := s.ListShifts(ctx, p)
	if err != nil {
		return nil, err
	}
	return domain.GroupByStaff(all)[staffID], nil
}

// MoveShift reassigns a shift to staffID on day, keeping its clock times.
func (s *ShiftService) MoveShift(ctx context.Context, id, staffID string, day time.Time) (domain.Shift, error) {
	if _, err := s.Staff.GetStaff(ctx, staffID); err != nil {
		return domain.Shift{}, fmt.Errorf("staff %s: %w", staffID, err)
	}
	return s.Store.UpdateShift(ctx, id, func(cur domain.Shift) (domain.Shift, error) {
		moved := cur.MoveTo(staffID, day)
		return moved, moved.Validate()
	})
}

func (s *ShiftService) RescheduleShift(ctx context.Context, id string, start, end time.Time) (domain.Shift, error) {
	return s.Store.UpdateShift(ctx, id, func(cur domain.Shift) (domain.Shift, error) {
		cur.Start, cur.End = start, end
		return cur, cur.Validate()
	})
}

func (s *ShiftService) CancelShift(ctx context.Context, id string) (domain.Shift, error) {
	return s.Store.UpdateShift(ctx, id, func(cur domain.Shift) (domain.Shift, error) {
		cur.Status = domain.StatusCancelled
		return cur, nil
	})
}

func (s *ShiftService) DeleteShift(ctx context.Context, id string) error {
	return s.Store.DeleteShift(ctx, id)
}

// PublishSchedule publishes every draft shift of p. Outstanding conflicts
// block it with an UnresolvedConflictWarning unless ack is set.
func (s *ShiftService) PublishSchedule(ctx context.Context, p domain.Period, ack bool) (int, error) {
	if s.Detector != nil {
		conflicts, err := s.Detector.DetectConflicts(ctx, p)
		if err != nil {
			return 0, err
		}
		if len(conflicts) > 0 {
			if !ack {
				return 0, &domain.UnresolvedConflictWarning{Conflicts: conflicts}
			}
			s.Logger.Printf("[publish] %s: publishing with %d acknowledged conflict(s)", p.From.Format("2006-01-02"), len(conflicts))
		}
	}

	shifts, err := s.ListShifts(ctx, p)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, sh := range shifts {
		if sh.Status != domain.StatusDraft {
			continue
		}
		_, err := s.Store.UpdateShift(ctx, sh.ID, func(cur domain.Shift) (domain.Shift, error) {
			if cur.Status == domain.StatusDraft {
				cur.Status = domain.StatusPublished
			}
			return cur, nil
		})
		if err != nil {
			return published, fmt.Errorf("publish shift %s: %w", sh.ID, err)
		}
		published++
	}
	s.Logger.Printf("[publish] %d shift(s) published for %s - %s", published, p.From.Format("2006-01-02"), p.To.Format("2006-01-02"))
	return published, nil
}
