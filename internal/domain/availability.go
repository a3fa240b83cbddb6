package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// Availability is one declared window for a staff member, either recurring
// on a weekday (0 = Sunday) or pinned to a specific date. A window whose end
// is not after its start runs past midnight.
type Availability struct {
	ID          string
	StaffID     string
	DayOfWeek   *int
	Date        *time.Time
	StartMinute int
	EndMinute   int
	IsAvailable bool

	VersionInfo
}

func (a Availability) Validate() error {
	if a.StaffID == "" {
		return &ValidationError{Field: "staff_id", Reason: "is required"}
	}
	if (a.DayOfWeek == nil) == (a.Date == nil) {
		return &ValidationError{Field: "day_of_week", Reason: "exactly one of day_of_week and date must be set"}
	}
	if a.DayOfWeek != nil && (*a.DayOfWeek < 0 || *a.DayOfWeek > 6) {
		return &ValidationError{Field: "day_of_week", Reason: "must be within 0-6"}
	}
	if a.StartMinute < 0 || a.StartMinute >= minutesPerDay || a.EndMinute < 0 || a.EndMinute > minutesPerDay {
		return &ValidationError{Field: "window", Reason: "minutes out of range"}
	}
	return nil
}

func (a Availability) matchesDate(day time.Time) bool {
	if a.Date == nil {
		return false
	}
	y1, m1, d1 := a.Date.Date()
	y2, m2, d2 := day.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Window materialises the record on the given calendar day.
func (a Availability) Window(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	base := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	start := base.Add(time.Duration(a.StartMinute) * time.Minute)
	end := base.Add(time.Duration(a.EndMinute) * time.Minute)
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return start, end
}

// AvailabilitySet groups availability records by staff member.
type AvailabilitySet map[string][]Availability

func NewAvailabilitySet(records []Availability) AvailabilitySet {
	set := make(AvailabilitySet)
	for _, a := range records {
		set[a.StaffID] = append(set[a.StaffID], a)
	}
	return set
}

// On returns the records in force for a staff member on day. Date-specific
// records replace the weekday pattern for that date.
func (set AvailabilitySet) On(staffID string, day time.Time) []Availability {
	var dated, weekly []Availability
	for _, a := range set[staffID] {
		switch {
		case a.matchesDate(day):
			dated = append(dated, a)
		case a.DayOfWeek != nil && *a.DayOfWeek == int(day.Weekday()):
			weekly = append(weekly, a)
		}
	}
	if len(dated) > 0 {
		return dated
	}
	return weekly
}

// Covers reports whether the shift lies inside a declared available window
// and touches no declared unavailable one. Windows of the shift's start day
// and overnight windows of the previous day are considered.
func (set AvailabilitySet) Covers(s Shift) bool {
	day := s.Start
	covered := false
	for _, d := range []time.Time{day.AddDate(0, 0, -1), day} {
		for _, a := range set.On(s.StaffID, d) {
			start, end := a.Window(d)
			if !a.IsAvailable {
				if s.Start.Before(end) && start.Before(s.End) {
					return false
				}
				continue
			}
			if !s.Start.Before(start) && !s.End.After(end) {
				covered = true
			}
		}
	}
	return covered
}

// ParseClock parses "HH:MM" into minutes after midnight. "24:00" is allowed.
func ParseClock(v string) (int, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q (want HH:MM)", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", v, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", v, err)
	}
	total := h*60 + m
	if h < 0 || m < 0 || m > 59 || total > minutesPerDay {
		return 0, fmt.Errorf("invalid clock %q", v)
	}
	return total, nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
