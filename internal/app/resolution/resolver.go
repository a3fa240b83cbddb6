// Package resolution plans the shift changes behind each conflict
// resolution option. Planning is pure: it reads an arena of shifts and
// returns the shifts to update or create, leaving persistence to the caller.
package resolution

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"shift-scheduler/internal/domain"
)

// Params carries the caller's choices for options that need them. Zero
// values ask the planner to pick sensible defaults.
type Params struct {
	TargetStaffID string
	NewStart      time.Time
	NewEnd        time.Time
	BreakStart    time.Time
	// Elevated must be set by the caller after checking the actor may
	// approve overtime.
	Elevated bool
	Actor    string
}

// State is everything a plan may look at.
type State struct {
	Shifts       map[string]domain.Shift
	Roster       domain.Roster
	Availability domain.AvailabilitySet
	Rules        domain.Rules
	NewID        func() string
}

// Notice is a message for a staff member that a resolution asks to send.
type Notice struct {
	StaffID string
	Message string
}

type Outcome struct {
	Changed []domain.Shift
	Created []domain.Shift
	// Deferred is set when the offending shift is left as is and the
	// conflict should stay off the active list until something changes.
	Deferred bool
	Notices  []Notice
}

// Shifts lists every shift the outcome touches.
func (o Outcome) Shifts() []domain.Shift {
	out := make([]domain.Shift, 0, len(o.Changed)+len(o.Created))
	out = append(out, o.Changed...)
	return append(out, o.Created...)
}

// StaffIDs lists staff whose schedules the outcome touches, including the
// original owners of reassigned shifts.
func (o Outcome) StaffIDs(before map[string]domain.Shift) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, s := range o.Shifts() {
		add(s.StaffID)
		if prev, ok := before[s.ID]; ok {
			add(prev.StaffID)
		}
	}
	return out
}

// Apply plans option opt for conflict c.
func Apply(st State, c domain.Conflict, opt domain.ResolutionOption, p Params) (Outcome, error) {
	if !domain.Offers(c.Type, opt) {
		return Outcome{}, fmt.Errorf("%s for %s: %w", opt, c.Type, domain.ErrInvalidOption)
	}
	if st.NewID == nil {
		st.NewID = uuid.NewString
	}
	shifts, err := st.lookup(c.ShiftIDs)
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	switch c.Type {
	case domain.ConflictDoubleBooking:
		out, err = st.doubleBooking(shifts, opt, p)
	case domain.ConflictOvertimeViolation:
		out, err = st.overtime(c, shifts[0], opt, p)
	case domain.ConflictUnavailableStaff:
		out, err = st.unavailable(shifts[0], opt, p)
	case domain.ConflictMissingBreak:
		out, err = st.missingBreak(shifts[0], opt, p)
	case domain.ConflictInsufficientRest:
		out, err = st.insufficientRest(shifts, opt, p)
	case domain.ConflictSkillMismatch:
		out, err = st.skillMismatch(shifts[0], opt, p)
	}
	if err != nil {
		return Outcome{}, err
	}
	for _, s := range out.Shifts() {
		if err := s.Validate(); err != nil {
			return Outcome{}, err
		}
	}
	return out, nil
}

func (st State) lookup(ids []string) ([]domain.Shift, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("conflict names no shifts: %w", domain.ErrNotFound)
	}
	out := make([]domain.Shift, 0, len(ids))
	for _, id := range ids {
		s, ok := st.Shifts[id]
		if !ok {
			return nil, fmt.Errorf("shift %s: %w", id, domain.ErrNotFound)
		}
		out = append(out, s)
	}
	return out, nil
}

func (st State) doubleBooking(shifts []domain.Shift, opt domain.ResolutionOption, p Params) (Outcome, error) {
	if len(shifts) != 2 {
		return Outcome{}, fmt.Errorf("double booking needs two shifts, got %d", len(shifts))
	}
	first, second := shifts[0], shifts[1]
	switch opt {
	case domain.ResolveCancelFirst:
		return Outcome{Changed: []domain.Shift{cancel(first)}}, nil
	case domain.ResolveCancelSecond:
		return Outcome{Changed: []domain.Shift{cancel(second)}}, nil
	case domain.ResolveReassignFirst:
		return st.reassign(first, "", false, p)
	case domain.ResolveReassignSecond:
		return st.reassign(second, "", false, p)
	case domain.ResolveAdjustTimes:
		if !p.NewStart.IsZero() {
			second.Start = p.NewStart
			if !p.NewEnd.IsZero() {
				second.End = p.NewEnd
			}
			if second.Overlaps(first) {
				return Outcome{}, &domain.ValidationError{ShiftID: second.ID, Field: "start", Reason: "still overlaps the other shift"}
			}
			return Outcome{Changed: []domain.Shift{second}}, nil
		}
		switch {
		case second.End.After(first.End):
			second.Start = first.End
			return Outcome{Changed: []domain.Shift{second}}, nil
		case second.Start.After(first.Start) && second.End.Equal(first.End):
			first.End = second.Start
			return Outcome{Changed: []domain.Shift{first}}, nil
		}
		return Outcome{}, &domain.ValidationError{ShiftID: second.ID, Field: "start", Reason: "shift lies inside the other one; cancel or reassign instead"}
	}
	return Outcome{}, domain.ErrInvalidOption
}

func (st State) overtime(c domain.Conflict, s domain.Shift, opt domain.ResolutionOption, p Params) (Outcome, error) {
	excess := c.Excess
	if excess <= 0 || excess > s.Duration() {
		excess = s.Duration()
	}
	cut := s.End.Add(-excess)

	switch opt {
	case domain.ResolveReduceHours:
		if !cut.After(s.Start) {
			return Outcome{}, &domain.ValidationError{ShiftID: s.ID, Field: "end", Reason: "reduction removes the whole shift; cancel or reassign instead"}
		}
		s.End = cut
		return Outcome{Changed: []domain.Shift{s}}, nil
	case domain.ResolveReassign:
		return st.reassign(s, "", false, p)
	case domain.ResolveApproveOvertime:
		if !p.Elevated {
			return Outcome{}, domain.ErrUnauthorized
		}
		note := "overtime approved"
		if p.Actor != "" {
			note += " by " + p.Actor
		}
		if !cut.After(s.Start) {
			s.Type = domain.ShiftOvertime
			s.Notes = appendNote(s.Notes, note)
			return Outcome{Changed: []domain.Shift{s}}, nil
		}
		extra := s
		extra.ID = st.NewID()
		extra.VersionInfo = domain.VersionInfo{}
		extra.Start = cut
		extra.Type = domain.ShiftOvertime
		extra.Notes = appendNote(s.Notes, note)
		s.End = cut
		return Outcome{Changed: []domain.Shift{s}, Created: []domain.Shift{extra}}, nil
	case domain.ResolveSplitAcrossStaff:
		if !cut.After(s.Start) {
			return st.reassign(s, "", false, p)
		}
		rest := s
		rest.ID = st.NewID()
		rest.VersionInfo = domain.VersionInfo{}
		rest.Start = cut
		target, err := st.candidate(rest, s.StaffID, "", false, p)
		if err != nil {
			return Outcome{}, err
		}
		rest.StaffID = target
		s.End = cut
		return Outcome{Changed: []domain.Shift{s}, Created: []domain.Shift{rest}}, nil
	}
	return Outcome{}, domain.ErrInvalidOption
}

func (st State) unavailable(s domain.Shift, opt domain.ResolutionOption, p Params) (Outcome, error) {
	switch opt {
	case domain.ResolveReassignAvailable:
		return st.reassign(s, "", false, p)
	case domain.ResolveCancelShift:
		return Outcome{Changed: []domain.Shift{cancel(s)}}, nil
	case domain.ResolveRequestOverride:
		msg := fmt.Sprintf("Please confirm you can work %s-%s although it is outside your availability",
			s.Start.Format("Mon 02 Jan 15:04"), s.End.Format("15:04"))
		s.Notes = appendNote(s.Notes, "availability override requested")
		return Outcome{
			Changed:  []domain.Shift{s},
			Deferred: true,
			Notices:  []Notice{{StaffID: s.StaffID, Message: msg}},
		}, nil
	}
	return Outcome{}, domain.ErrInvalidOption
}

func (st State) missingBreak(s domain.Shift, opt domain.ResolutionOption, p Params) (Outcome, error) {
	breakStart := p.BreakStart
	if breakStart.IsZero() {
		breakStart = s.Start.Add((s.Duration() / 2).Truncate(15 * time.Minute))
	}
	breakEnd := breakStart.Add(st.Rules.BreakLength)

	switch opt {
	case domain.ResolveInsertBreak:
		if breakStart.Before(s.Start) || breakEnd.After(s.End) {
			return Outcome{}, &domain.ValidationError{ShiftID: s.ID, Field: "break", Reason: "break must lie inside the shift"}
		}
		brk := domain.Shift{
			ID:      st.NewID(),
			StaffID: s.StaffID,
			Start:   breakStart,
			End:     breakEnd,
			Type:    domain.ShiftBreak,
			Status:  s.Status,
			Notes:   "break for " + s.ID,
		}
		return Outcome{Created: []domain.Shift{brk}}, nil
	case domain.ResolveShortenShift:
		s.End = s.Start.Add(st.Rules.BreakThreshold)
		return Outcome{Changed: []domain.Shift{s}}, nil
	case domain.ResolveSplitWithBreak:
		if !breakStart.After(s.Start) || !s.End.After(breakEnd) {
			return Outcome{}, &domain.ValidationError{ShiftID: s.ID, Field: "break", Reason: "no room to split around the break"}
		}
		second := s
		second.ID = st.NewID()
		second.VersionInfo = domain.VersionInfo{}
		second.Start = breakEnd
		s.End = breakStart
		brk := domain.Shift{
			ID:      st.NewID(),
			StaffID: s.StaffID,
			Start:   breakStart,
			End:     breakEnd,
			Type:    domain.ShiftBreak,
			Status:  s.Status,
			Notes:   "break between " + s.ID + " and " + second.ID,
		}
		return Outcome{Changed: []domain.Shift{s}, Created: []domain.Shift{second, brk}}, nil
	}
	return Outcome{}, domain.ErrInvalidOption
}

func (st State) insufficientRest(shifts []domain.Shift, opt domain.ResolutionOption, p Params) (Outcome, error) {
	if len(shifts) != 2 {
		return Outcome{}, fmt.Errorf("rest conflict needs two shifts, got %d", len(shifts))
	}
	prev, next := shifts[0], shifts[1]
	switch opt {
	case domain.ResolveAdjustStart:
		start := p.NewStart
		if start.IsZero() {
			start = prev.End.Add(st.Rules.MinRest)
		}
		next.Start = start
		if !next.End.After(next.Start) {
			return Outcome{}, &domain.ValidationError{ShiftID: next.ID, Field: "start", Reason: "moving the start past the minimum rest leaves no shift"}
		}
		return Outcome{Changed: []domain.Shift{next}}, nil
	case domain.ResolveAdjustPreviousEnd:
		end := p.NewEnd
		if end.IsZero() {
			end = next.Start.Add(-st.Rules.MinRest)
		}
		prev.End = end
		if !prev.End.After(prev.Start) {
			return Outcome{}, &domain.ValidationError{ShiftID: prev.ID, Field: "end", Reason: "ending earlier for the minimum rest leaves no shift"}
		}
		return Outcome{Changed: []domain.Shift{prev}}, nil
	case domain.ResolveReassignRested:
		return st.reassign(next, "", false, p)
	}
	return Outcome{}, domain.ErrInvalidOption
}

func (st State) skillMismatch(s domain.Shift, opt domain.ResolutionOption, p Params) (Outcome, error) {
	skill := st.Roster.RequiredSkill(s.RoleID)
	switch opt {
	case domain.ResolveReassignQualified:
		return st.reassign(s, skill, false, p)
	case domain.ResolveScheduleTraining:
		training := domain.Shift{
			ID:      st.NewID(),
			StaffID: s.StaffID,
			RoleID:  s.RoleID,
			Start:   s.Start.Add(-st.Rules.TrainingLength),
			End:     s.Start,
			Type:    domain.ShiftTraining,
			Status:  s.Status,
			Notes:   "training: " + skill,
		}
		return Outcome{Created: []domain.Shift{training}, Deferred: true}, nil
	case domain.ResolvePairWithSenior:
		pair := s
		pair.ID = st.NewID()
		pair.VersionInfo = domain.VersionInfo{}
		target, err := st.candidate(pair, s.StaffID, skill, true, p)
		if err != nil {
			return Outcome{}, err
		}
		pair.StaffID = target
		pair.Notes = appendNote(s.Notes, "paired with "+st.Roster.StaffName(s.StaffID))
		return Outcome{Created: []domain.Shift{pair}, Deferred: true}, nil
	}
	return Outcome{}, domain.ErrInvalidOption
}

func (st State) reassign(s domain.Shift, skill string, senior bool, p Params) (Outcome, error) {
	target, err := st.candidate(s, s.StaffID, skill, senior, p)
	if err != nil {
		return Outcome{}, err
	}
	s.StaffID = target
	return Outcome{Changed: []domain.Shift{s}}, nil
}

// candidate returns p.TargetStaffID when set, otherwise the first active
// staff member by name who is qualified, available and free for s.
func (st State) candidate(s domain.Shift, exclude, skill string, senior bool, p Params) (string, error) {
	if p.TargetStaffID != "" {
		m, ok := st.Roster.Staff[p.TargetStaffID]
		if !ok || !m.Active || m.ID == exclude {
			return "", fmt.Errorf("staff %s: %w", p.TargetStaffID, domain.ErrNoCandidate)
		}
		return m.ID, nil
	}
	roleSkill := st.Roster.RequiredSkill(s.RoleID)
	for _, m := range st.Roster.Members() {
		if !m.Active || m.ID == exclude || (senior && !m.Senior) {
			continue
		}
		if !m.HasSkill(roleSkill) || !m.HasSkill(skill) {
			continue
		}
		moved := s
		moved.StaffID = m.ID
		if !st.Availability.Covers(moved) || st.busy(moved) {
			continue
		}
		return m.ID, nil
	}
	return "", fmt.Errorf("shift %s: %w", s.ID, domain.ErrNoCandidate)
}

func (st State) busy(moved domain.Shift) bool {
	for _, o := range st.Shifts {
		if o.ID == moved.ID || o.StaffID != moved.StaffID || o.IsCancelled() || o.Type == domain.ShiftBreak {
			continue
		}
		if o.Overlaps(moved) {
			return true
		}
	}
	return false
}

func cancel(s domain.Shift) domain.Shift {
	s.Status = domain.StatusCancelled
	return s
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "; " + note
}
