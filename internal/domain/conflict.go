package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ConflictType string

const (
	ConflictDoubleBooking     ConflictType = "DOUBLE_BOOKING"
	ConflictOvertimeViolation ConflictType = "OVERTIME_VIOLATION"
	ConflictUnavailableStaff  ConflictType = "UNAVAILABLE_STAFF"
	ConflictMissingBreak      ConflictType = "MISSING_BREAK"
	ConflictInsufficientRest  ConflictType = "INSUFFICIENT_REST"
	ConflictSkillMismatch     ConflictType = "SKILL_MISMATCH"
)

type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// Rank orders severities HIGH first.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

// Conflict is a derived record; it is regenerated on every detection pass
// and relates to shifts only through ids.
type Conflict struct {
	ID       string
	Type     ConflictType
	Severity Severity
	StaffID  string
	ShiftIDs []string
	Message  string

	// Start is the earliest start among the affected shifts.
	Start time.Time
	// Excess is the amount over a limit (overtime) or short of it (rest).
	Excess time.Duration
}

var conflictNamespace = uuid.MustParse("6f1c2a52-2b8e-4c57-9a43-35d0e1f7d9b4")

// ConflictID derives a stable id from the rule and the shifts it names, so
// the same violation keeps its id across detection passes.
func ConflictID(t ConflictType, shiftIDs ...string) string {
	return uuid.NewSHA1(conflictNamespace, []byte(string(t)+":"+strings.Join(shiftIDs, ","))).String()
}

// SortConflicts orders by severity, staff name, earliest shift start, then
// type and id.
func SortConflicts(conflicts []Conflict, roster Roster) {
	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		an, bn := roster.StaffName(a.StaffID), roster.StaffName(b.StaffID)
		if an != bn {
			return an < bn
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.ID < b.ID
	})
}

// AffectedStaff lists distinct staff ids named by the conflicts.
func AffectedStaff(conflicts []Conflict) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range conflicts {
		if _, ok := seen[c.StaffID]; ok {
			continue
		}
		seen[c.StaffID] = struct{}{}
		out = append(out, c.StaffID)
	}
	sort.Strings(out)
	return out
}
