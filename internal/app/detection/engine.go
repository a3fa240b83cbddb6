// Package detection scans a period's shift set for scheduling conflicts.
//
// Every rule runs per staff member over that member's shifts in start order.
// Detection is a pure function of its input: the same shifts, roster and
// availability always produce the same conflicts with the same ids.
package detection

import (
	"fmt"
	"log"
	"sort"
	"time"

	"shift-scheduler/internal/domain"
)

const clockLayout = "Mon 02 Jan 15:04"

type Engine struct {
	Rules  domain.Rules
	Logger *log.Logger
}

func NewEngine(rules domain.Rules, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{Rules: rules, Logger: logger}
}

// Input is one scheduling period's worth of state.
type Input struct {
	Shifts       []domain.Shift
	Availability domain.AvailabilitySet
	Roster       domain.Roster
}

// Detect runs every rule for every staff member with shifts in the input.
func (e *Engine) Detect(in Input) ([]domain.Conflict, error) {
	return e.DetectFor(in, nil)
}

// DetectFor limits the pass to the given staff members; nil means everyone.
func (e *Engine) DetectFor(in Input, staffIDs []string) ([]domain.Conflict, error) {
	if err := domain.ValidateAll(in.Shifts); err != nil {
		return nil, err
	}
	var only map[string]struct{}
	if staffIDs != nil {
		only = make(map[string]struct{}, len(staffIDs))
		for _, id := range staffIDs {
			only[id] = struct{}{}
		}
	}

	live := make([]domain.Shift, 0, len(in.Shifts))
	for _, s := range in.Shifts {
		if s.IsCancelled() {
			continue
		}
		if only != nil {
			if _, ok := only[s.StaffID]; !ok {
				continue
			}
		}
		live = append(live, s)
	}

	groups := domain.GroupByStaff(live)
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []domain.Conflict
	for _, id := range ids {
		out = append(out, e.detectStaff(id, groups[id], in)...)
	}
	domain.SortConflicts(out, in.Roster)
	e.Logger.Printf("[detect] staff=%d shifts=%d conflicts=%d", len(ids), len(live), len(out))
	return out, nil
}

func (e *Engine) detectStaff(staffID string, shifts []domain.Shift, in Input) []domain.Conflict {
	var work, breaks []domain.Shift
	for _, s := range shifts {
		if s.Type == domain.ShiftBreak {
			breaks = append(breaks, s)
			continue
		}
		work = append(work, s)
	}
	name := in.Roster.StaffName(staffID)

	var out []domain.Conflict
	out = append(out, e.doubleBookings(name, work)...)
	out = append(out, e.overtime(name, work)...)
	out = append(out, e.unavailable(name, work, in.Availability)...)
	out = append(out, e.missingBreaks(name, work, breaks)...)
	out = append(out, e.insufficientRest(name, work, breaks)...)
	out = append(out, e.skillMismatches(name, work, in.Roster)...)
	return out
}

func (e *Engine) doubleBookings(name string, work []domain.Shift) []domain.Conflict {
	var out []domain.Conflict
	for i := range work {
		for j := i + 1; j < len(work) && work[j].Start.Before(work[i].End); j++ {
			a, b := work[i], work[j]
			if !a.Overlaps(b) {
				continue
			}
			msg := fmt.Sprintf("%s is double-booked: %s overlaps %s", name, span(a), span(b))
			out = append(out, newConflict(domain.ConflictDoubleBooking, domain.SeverityHigh, msg, 0, a, b))
		}
	}
	return out
}

// overtime sums REGULAR time per Monday-based week and flags every shift
// that takes the week past the threshold.
func (e *Engine) overtime(name string, work []domain.Shift) []domain.Conflict {
	var out []domain.Conflict
	limit := e.Rules.OvertimeThreshold
	var week time.Time
	var running time.Duration
	for _, s := range work {
		if s.Type != domain.ShiftRegular {
			continue
		}
		if from := domain.WeekOf(s.Start).From; !from.Equal(week) {
			week, running = from, 0
		}
		d := s.Duration()
		if running+d > limit {
			excess := running + d - limit
			if excess > d {
				excess = d
			}
			msg := fmt.Sprintf("%s exceeds %.1fh of regular time by %.2fh with %s",
				name, limit.Hours(), excess.Hours(), span(s))
			out = append(out, newConflict(domain.ConflictOvertimeViolation, domain.SeverityMedium, msg, excess, s))
		}
		running += d
	}
	return out
}

func (e *Engine) unavailable(name string, work []domain.Shift, avail domain.AvailabilitySet) []domain.Conflict {
	var out []domain.Conflict
	for _, s := range work {
		if avail.Covers(s) {
			continue
		}
		msg := fmt.Sprintf("%s is not available for %s", name, span(s))
		out = append(out, newConflict(domain.ConflictUnavailableStaff, domain.SeverityHigh, msg, 0, s))
	}
	return out
}

func (e *Engine) missingBreaks(name string, work, breaks []domain.Shift) []domain.Conflict {
	var out []domain.Conflict
	for _, s := range work {
		if s.Type != domain.ShiftRegular && s.Type != domain.ShiftOvertime {
			continue
		}
		if s.Duration() <= e.Rules.BreakThreshold {
			continue
		}
		if hasBreakInside(s, breaks) {
			continue
		}
		msg := fmt.Sprintf("%s works %.2fh without a break on %s", name, s.Hours(), span(s))
		out = append(out, newConflict(domain.ConflictMissingBreak, domain.SeverityMedium, msg, 0, s))
	}
	return out
}

func hasBreakInside(s domain.Shift, breaks []domain.Shift) bool {
	for _, b := range breaks {
		if s.Contains(b) {
			return true
		}
	}
	return false
}

// insufficientRest flags consecutive shifts whose gap is shorter than the
// minimum rest. Back-to-back shifts, gaps filled by a BREAK shift and gaps
// within SplitShiftGap count as one continuous stretch of work.
func (e *Engine) insufficientRest(name string, work, breaks []domain.Shift) []domain.Conflict {
	if e.Rules.MinRest <= 0 {
		return nil
	}
	var out []domain.Conflict
	for i := 1; i < len(work); i++ {
		prev, next := work[i-1], work[i]
		if next.Start.Before(prev.End) {
			continue
		}
		gap := next.Start.Sub(prev.End)
		if gap <= e.Rules.SplitShiftGap || gap >= e.Rules.MinRest || bridged(prev, next, breaks) {
			continue
		}
		msg := fmt.Sprintf("%s rests only %.2fh between %s and %s (minimum %.1fh)",
			name, gap.Hours(), span(prev), span(next), e.Rules.MinRest.Hours())
		out = append(out, newConflict(domain.ConflictInsufficientRest, domain.SeverityMedium, msg, e.Rules.MinRest-gap, prev, next))
	}
	return out
}

// bridged reports whether a break covers the whole gap between prev and next.
func bridged(prev, next domain.Shift, breaks []domain.Shift) bool {
	for _, b := range breaks {
		if !b.Start.After(prev.End) && !b.End.Before(next.Start) {
			return true
		}
	}
	return false
}

func (e *Engine) skillMismatches(name string, work []domain.Shift, roster domain.Roster) []domain.Conflict {
	var out []domain.Conflict
	member := roster.Staff[work0StaffID(work)]
	for _, s := range work {
		skill := roster.RequiredSkill(s.RoleID)
		if skill == "" || member.HasSkill(skill) {
			continue
		}
		msg := fmt.Sprintf("%s lacks %q required by role %s on %s", name, skill, roster.Roles[s.RoleID].Name, span(s))
		out = append(out, newConflict(domain.ConflictSkillMismatch, domain.SeverityLow, msg, 0, s))
	}
	return out
}

func work0StaffID(work []domain.Shift) string {
	if len(work) == 0 {
		return ""
	}
	return work[0].StaffID
}

func newConflict(t domain.ConflictType, sev domain.Severity, msg string, excess time.Duration, shifts ...domain.Shift) domain.Conflict {
	ids := make([]string, len(shifts))
	start := shifts[0].Start
	for i, s := range shifts {
		ids[i] = s.ID
		if s.Start.Before(start) {
			start = s.Start
		}
	}
	return domain.Conflict{
		ID:       domain.ConflictID(t, ids...),
		Type:     t,
		Severity: sev,
		StaffID:  shifts[0].StaffID,
		ShiftIDs: ids,
		Message:  msg,
		Start:    start,
		Excess:   excess,
	}
}

func span(s domain.Shift) string {
	return s.Start.Format(clockLayout) + "-" + s.End.Format("15:04")
}
