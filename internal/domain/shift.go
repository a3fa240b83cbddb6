package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type ShiftType string

const (
	ShiftRegular  ShiftType = "REGULAR"
	ShiftOvertime ShiftType = "OVERTIME"
	ShiftHoliday  ShiftType = "HOLIDAY"
	ShiftTraining ShiftType = "TRAINING"
	ShiftBreak    ShiftType = "BREAK"
)

func (t ShiftType) Valid() bool {
	switch t {
	case ShiftRegular, ShiftOvertime, ShiftHoliday, ShiftTraining, ShiftBreak:
		return true
	}
	return false
}

type ShiftStatus string

const (
	StatusDraft     ShiftStatus = "draft"
	StatusPublished ShiftStatus = "published"
	StatusCancelled ShiftStatus = "cancelled"
)

func (s ShiftStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusCancelled:
		return true
	}
	return false
}

// VersionInfo is carried by every entity exchanged with a shared store.
type VersionInfo struct {
	Version   int
	UpdatedAt time.Time
	ETag      string
}

type Shift struct {
	ID         string
	StaffID    string
	RoleID     string
	Start      time.Time
	End        time.Time
	Type       ShiftType
	Status     ShiftStatus
	HourlyRate *decimal.Decimal
	Notes      string
	TemplateID string

	VersionInfo
}

func (s Shift) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Hours returns the fractional length of the shift in hours.
func (s Shift) Hours() float64 {
	return s.Duration().Hours()
}

// Overlaps reports whether the half-open intervals of s and o intersect.
func (s Shift) Overlaps(o Shift) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Contains reports whether o lies fully inside s.
func (s Shift) Contains(o Shift) bool {
	return !o.Start.Before(s.Start) && !o.End.After(s.End)
}

func (s Shift) IsCancelled() bool {
	return s.Status == StatusCancelled
}

// Validate rejects structurally broken shifts. These are data errors, not
// scheduling conflicts.
func (s Shift) Validate() error {
	if s.StaffID == "" {
		return &ValidationError{ShiftID: s.ID, Field: "staff_id", Reason: "is required"}
	}
	if s.Start.IsZero() || s.End.IsZero() {
		return &ValidationError{ShiftID: s.ID, Field: "start", Reason: "start and end are required"}
	}
	if !s.End.After(s.Start) {
		return &ValidationError{ShiftID: s.ID, Field: "end", Reason: "must be after start"}
	}
	if !s.Type.Valid() {
		return &ValidationError{ShiftID: s.ID, Field: "type", Reason: "unknown shift type " + string(s.Type)}
	}
	if !s.Status.Valid() {
		return &ValidationError{ShiftID: s.ID, Field: "status", Reason: "unknown status " + string(s.Status)}
	}
	if s.HourlyRate != nil && s.HourlyRate.IsNegative() {
		return &ValidationError{ShiftID: s.ID, Field: "hourly_rate", Reason: "must not be negative"}
	}
	return nil
}

// ValidateAll fails on the first malformed shift.
func ValidateAll(shifts []Shift) error {
	for _, s := range shifts {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SortByStart orders shifts by start time, then end time, then id so that
// equal inputs always produce the same order.
func SortByStart(shifts []Shift) {
	sort.SliceStable(shifts, func(i, j int) bool {
		a, b := shifts[i], shifts[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.ID < b.ID
	})
}

// GroupByStaff buckets shifts per staff member, each bucket sorted by start.
func GroupByStaff(shifts []Shift) map[string][]Shift {
	out := make(map[string][]Shift)
	for _, s := range shifts {
		out[s.StaffID] = append(out[s.StaffID], s)
	}
	for id := range out {
		SortByStart(out[id])
	}
	return out
}

// Period is the half-open range [From, To).
type Period struct {
	From time.Time
	To   time.Time
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.From) && t.Before(p.To)
}

func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() || !p.To.After(p.From) {
		return &ValidationError{Field: "period", Reason: "to must be after from"}
	}
	return nil
}

// WeekOf returns the Monday-based week containing t in t's location.
func WeekOf(t time.Time) Period {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	from := day.AddDate(0, 0, -offset)
	return Period{From: from, To: from.AddDate(0, 0, 7)}
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Period {
	y, m, _ := t.Date()
	from := time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	return Period{From: from, To: from.AddDate(0, 1, 0)}
}

// InPeriod keeps the shifts starting inside p.
func InPeriod(shifts []Shift, p Period) []Shift {
	out := make([]Shift, 0, len(shifts))
	for _, s := range shifts {
		if p.Contains(s.Start) {
			out = append(out, s)
		}
	}
	return out
}

// Index builds an id-keyed arena over a shift slice.
func Index(shifts []Shift) map[string]Shift {
	out := make(map[string]Shift, len(shifts))
	for _, s := range shifts {
		out[s.ID] = s
	}
	return out
}

// MoveTo re-targets a shift to another staff member and calendar day,
// keeping its clock time, duration and everything else.
func (s Shift) MoveTo(staffID string, day time.Time) Shift {
	y, m, d := day.Date()
	loc := s.Start.Location()
	start := time.Date(y, m, d, s.Start.Hour(), s.Start.Minute(), s.Start.Second(), s.Start.Nanosecond(), loc)
	out := s
	out.StaffID = staffID
	out.End = start.Add(s.Duration())
	out.Start = start
	return out
}
