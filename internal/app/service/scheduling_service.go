package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"shift-scheduler/internal/app/detection"
	"shift-scheduler/internal/app/resolution"
	"shift-scheduler/internal/app/workflow"
	"shift-scheduler/internal/domain"
)

// Notifier delivers messages to staff members.
type Notifier interface {
	Notify(ctx context.Context, member domain.StaffMember, text string) error
}

type SchedulingService struct {
	Shifts   domain.ShiftStore
	Staff    *StaffService
	Engine   *detection.Engine
	Rules    domain.Rules
	Sink     domain.ResolutionSink
	Notifier Notifier
	Logger   *log.Logger

	now func() time.Time
}

func NewSchedulingService(shifts domain.ShiftStore, staff *StaffService, rules domain.Rules, sink domain.ResolutionSink, logger *log.Logger) *SchedulingService {
	if logger == nil {
		logger = log.Default()
	}
	return &SchedulingService{
		Shifts: shifts,
		Staff:  staff,
		Engine: detection.NewEngine(rules, logger),
		Rules:  rules,
		Sink:   sink,
		Logger: logger,
		now:    time.Now,
	}
}

// Input loads everything detection and resolution need for a period.
func (s *SchedulingService) Input(ctx context.Context, p domain.Period) (detection.Input, error) {
	if err := p.Validate(); err != nil {
		return detection.Input{}, err
	}
	shifts, err := s.Shifts.ListShifts(ctx, p)
	if err != nil {
		return detection.Input{}, fmt.Errorf("list shifts: %w", err)
	}
	roster, err := s.Staff.Roster(ctx)
	if err != nil {
		return detection.Input{}, fmt.Errorf("load roster: %w", err)
	}
	ids := make([]string, 0, len(roster.Staff))
	for id := range roster.Staff {
		ids = append(ids, id)
	}
	avail, err := s.Staff.AvailabilityFor(ctx, ids)
	if err != nil {
		return detection.Input{}, fmt.Errorf("load availability: %w", err)
	}
	return detection.Input{Shifts: shifts, Availability: avail, Roster: roster}, nil
}

func (s *SchedulingService) DetectConflicts(ctx context.Context, p domain.Period) ([]domain.Conflict, error) {
	return s.DetectFor(ctx, p, nil)
}

// DetectFor limits detection to the given staff; nil means everyone.
func (s *SchedulingService) DetectFor(ctx context.Context, p domain.Period, staffIDs []string) ([]domain.Conflict, error) {
	in, err := s.Input(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.Engine.DetectFor(in, staffIDs)
}

// Applied is a resolution that has been written to the store.
type Applied struct {
	resolution.Outcome
	// StaffIDs lists everyone whose schedule changed.
	StaffIDs []string
}

// ApplyResolution plans opt for c against the current shifts of p and
// writes the result. Updates go through the store's version check, so a
// concurrent edit of an unrelated field survives.
func (s *SchedulingService) ApplyResolution(ctx context.Context, p domain.Period, c domain.Conflict, opt domain.ResolutionOption, params resolution.Params) (Applied, error) {
	in, err := s.Input(ctx, p)
	if err != nil {
		return Applied{}, err
	}
	arena := domain.Index(in.Shifts)
	out, err := resolution.Apply(resolution.State{
		Shifts:       arena,
		Roster:       in.Roster,
		Availability: in.Availability,
		Rules:        s.Rules,
		NewID:        uuid.NewString,
	}, c, opt, params)
	if err != nil {
		return Applied{}, err
	}

	// New shifts go in first: a truncated original must never be stored
	// without the remainder it hands off.
	for i, planned := range out.Created {
		saved, err := s.Shifts.CreateShift(ctx, planned)
		if err != nil {
			s.rollback(ctx, out.Created[:i], nil, arena)
			return Applied{}, fmt.Errorf("create shift: %w", err)
		}
		out.Created[i] = saved
	}
	for i, planned := range out.Changed {
		saved, err := s.Shifts.UpdateShift(ctx, planned.ID, func(cur domain.Shift) (domain.Shift, error) {
			return overlay(cur, arena[planned.ID], planned), nil
		})
		if err != nil {
			s.rollback(ctx, out.Created, out.Changed[:i], arena)
			return Applied{}, fmt.Errorf("update shift %s: %w", planned.ID, err)
		}
		out.Changed[i] = saved
	}
	for _, n := range out.Notices {
		s.notify(ctx, in.Roster, n)
	}

	rec := domain.ResolutionRecord{
		ConflictID:   c.ID,
		ConflictType: c.Type,
		Option:       opt,
		StaffID:      c.StaffID,
		ShiftIDs:     c.ShiftIDs,
		Actor:        params.Actor,
		ResolvedAt:   s.now().UTC(),
	}
	if s.Sink != nil {
		if err := s.Sink.SubmitResolution(ctx, rec); err != nil {
			s.Logger.Printf("[resolve] record %s not submitted: %v", c.ID, err)
		}
	}
	s.Logger.Printf("[resolve] %s %s via %s by %q", c.Type, c.ID, opt, params.Actor)
	return Applied{Outcome: out, StaffIDs: out.StaffIDs(arena)}, nil
}

// rollback undoes the writes of a resolution that failed half way: created
// shifts are deleted and updated ones get their planned edits reverted.
func (s *SchedulingService) rollback(ctx context.Context, created, changed []domain.Shift, before map[string]domain.Shift) {
	for _, c := range created {
		if err := s.Shifts.DeleteShift(ctx, c.ID); err != nil {
			s.Logger.Printf("[resolve] rollback: delete %s: %v", c.ID, err)
		}
	}
	for _, ch := range changed {
		orig := before[ch.ID]
		_, err := s.Shifts.UpdateShift(ctx, ch.ID, func(cur domain.Shift) (domain.Shift, error) {
			return overlay(cur, ch, orig), nil
		})
		if err != nil {
			s.Logger.Printf("[resolve] rollback: restore %s: %v", ch.ID, err)
		}
	}
}

// overlay carries the planner's edits onto the freshest stored copy.
func overlay(cur, before, planned domain.Shift) domain.Shift {
	if !planned.Start.Equal(before.Start) {
		cur.Start = planned.Start
	}
	if !planned.End.Equal(before.End) {
		cur.End = planned.End
	}
	if planned.StaffID != before.StaffID {
		cur.StaffID = planned.StaffID
	}
	if planned.Type != before.Type {
		cur.Type = planned.Type
	}
	if planned.Status != before.Status {
		cur.Status = planned.Status
	}
	if planned.Notes != before.Notes {
		cur.Notes = planned.Notes
	}
	return cur
}

func (s *SchedulingService) notify(ctx context.Context, roster domain.Roster, n resolution.Notice) {
	if s.Notifier == nil {
		s.Logger.Printf("[resolve] no notifier, dropping notice for %s", n.StaffID)
		return
	}
	member, ok := roster.Staff[n.StaffID]
	if !ok {
		return
	}
	if err := s.Notifier.Notify(ctx, member, n.Message); err != nil {
		s.Logger.Printf("[resolve] notify %s: %v", n.StaffID, err)
	}
}

// StartSession detects the conflicts of p and opens a resolution session
// whose effects run through schedule.
func (s *SchedulingService) StartSession(ctx context.Context, p domain.Period, schedule func(func())) (*workflow.Runner, error) {
	in, err := s.Input(ctx, p)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.Engine.Detect(in)
	if err != nil {
		return nil, err
	}
	r := workflow.NewRunner(ctx, workflow.New(conflicts, in.Roster), sessionExecutor{svc: s, period: p}, s.Logger)
	if schedule != nil {
		r.Go = schedule
	}
	return r, nil
}

type sessionExecutor struct {
	svc    *SchedulingService
	period domain.Period
}

func (e sessionExecutor) Submit(ctx context.Context, c domain.Conflict, opt domain.ResolutionOption, p resolution.Params) (workflow.Outcome, error) {
	applied, err := e.svc.ApplyResolution(ctx, e.period, c, opt, p)
	if err != nil {
		return workflow.Outcome{}, err
	}
	return workflow.Outcome{Deferred: applied.Deferred, StaffIDs: applied.StaffIDs}, nil
}

func (e sessionExecutor) Redetect(ctx context.Context, staffIDs []string) ([]domain.Conflict, error) {
	return e.svc.DetectFor(ctx, e.period, staffIDs)
}
