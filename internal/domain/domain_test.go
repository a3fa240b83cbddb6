package domain

import (
	"testing"
	"time"
)

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func at(day, hour int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
}

func regular(id string, from, to time.Time) Shift {
	return Shift{ID: id, StaffID: "alice", Start: from, End: to, Type: ShiftRegular, Status: StatusDraft}
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	a := regular("a", at(0, 9), at(0, 13))
	cases := []struct {
		name string
		b    Shift
		want bool
	}{
		{"touching", regular("b", at(0, 13), at(0, 15)), false},
		{"overlap", regular("b", at(0, 12), at(0, 15)), true},
		{"inside", regular("b", at(0, 10), at(0, 11)), true},
		{"before", regular("b", at(0, 6), at(0, 9)), false},
	}
	for _, tc := range cases {
		if got := a.Overlaps(tc.b); got != tc.want {
			t.Errorf("%s: Overlaps = %v, want %v", tc.name, got, tc.want)
		}
		if got := tc.b.Overlaps(a); got != tc.want {
			t.Errorf("%s: Overlaps is not symmetric", tc.name)
		}
	}
}

func TestShiftValidate(t *testing.T) {
	ok := regular("a", at(0, 9), at(0, 13))
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid shift rejected: %v", err)
	}
	bad := []Shift{
		regular("a", at(0, 13), at(0, 9)),
		regular("a", at(0, 9), at(0, 9)),
		{ID: "a", Start: at(0, 9), End: at(0, 13), Type: ShiftRegular, Status: StatusDraft},
		{ID: "a", StaffID: "alice", Start: at(0, 9), End: at(0, 13), Type: "NAP", Status: StatusDraft},
		{ID: "a", StaffID: "alice", Start: at(0, 9), End: at(0, 13), Type: ShiftRegular, Status: "lost"},
	}
	for i, s := range bad {
		if err := s.Validate(); !IsValidation(err) {
			t.Errorf("case %d: want validation error, got %v", i, err)
		}
	}
}

func TestMoveToKeepsClockAndDuration(t *testing.T) {
	s := regular("a", at(0, 22), at(1, 4))
	moved := s.MoveTo("bob", at(3, 0))
	if moved.StaffID != "bob" || !moved.Start.Equal(at(3, 22)) || !moved.End.Equal(at(4, 4)) {
		t.Fatalf("unexpected move %+v", moved)
	}
	if s.StaffID != "alice" {
		t.Fatal("MoveTo must not modify the receiver")
	}
}

func TestWeekOfStartsMonday(t *testing.T) {
	p := WeekOf(time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC))
	if !p.From.Equal(monday) || !p.To.Equal(monday.AddDate(0, 0, 7)) {
		t.Fatalf("unexpected week %v-%v", p.From, p.To)
	}
	if !p.Contains(monday) || p.Contains(p.To) {
		t.Fatal("week must be half-open")
	}
}

func TestCoversOvernightWindowFromPreviousDay(t *testing.T) {
	sun := int(time.Sunday)
	set := NewAvailabilitySet([]Availability{
		{StaffID: "alice", DayOfWeek: &sun, StartMinute: 22 * 60, EndMinute: 6 * 60, IsAvailable: true},
	})
	// Monday 01:00-05:00 lies in Sunday night's window.
	if !set.Covers(regular("a", at(0, 1), at(0, 5))) {
		t.Fatal("overnight window from the previous day should cover the shift")
	}
	if set.Covers(regular("b", at(0, 5), at(0, 7))) {
		t.Fatal("shift past the window end must not be covered")
	}
}

func TestCoversDatedOverrideAndUnavailable(t *testing.T) {
	mon := int(time.Monday)
	day := monday
	set := NewAvailabilitySet([]Availability{
		{StaffID: "alice", DayOfWeek: &mon, StartMinute: 8 * 60, EndMinute: 20 * 60, IsAvailable: true},
		{StaffID: "alice", Date: &day, StartMinute: 8 * 60, EndMinute: 12 * 60, IsAvailable: true},
	})
	if set.Covers(regular("a", at(0, 13), at(0, 17))) {
		t.Fatal("dated record should replace the weekday window on that date")
	}
	if !set.Covers(regular("a", at(7, 13), at(7, 17))) {
		t.Fatal("weekday window should apply on other Mondays")
	}

	set["alice"] = append(set["alice"], Availability{StaffID: "alice", DayOfWeek: &mon, StartMinute: 15 * 60, EndMinute: 16 * 60})
	if set.Covers(regular("a", at(7, 13), at(7, 17))) {
		t.Fatal("an unavailable window inside the shift must win")
	}
	if set.Covers(Shift{StaffID: "bob", Start: at(0, 9), End: at(0, 10)}) {
		t.Fatal("staff without records is never covered")
	}
}

func TestAvailabilityValidate(t *testing.T) {
	d := 3
	day := monday
	if err := (Availability{StaffID: "a", DayOfWeek: &d, EndMinute: 60}).Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
	for i, a := range []Availability{
		{StaffID: "a", EndMinute: 60},
		{StaffID: "a", DayOfWeek: &d, Date: &day},
		{StaffID: "a", DayOfWeek: &d, StartMinute: 24 * 60},
		{DayOfWeek: &d},
	} {
		if err := a.Validate(); !IsValidation(err) {
			t.Errorf("case %d: want validation error, got %v", i, err)
		}
	}
}

func TestParseClock(t *testing.T) {
	for in, want := range map[string]int{"00:00": 0, "09:30": 570, "24:00": 1440} {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Errorf("ParseClock(%q) = %d, %v", in, got, err)
		}
		if FormatClock(want) != in {
			t.Errorf("FormatClock(%d) = %q", want, FormatClock(want))
		}
	}
	for _, bad := range []string{"9", "12:60", "24:01", "ab:cd"} {
		if _, err := ParseClock(bad); err == nil {
			t.Errorf("ParseClock(%q) should fail", bad)
		}
	}
}

func TestSortConflicts(t *testing.T) {
	roster := NewRoster([]StaffMember{{ID: "a", Name: "Alice"}, {ID: "b", Name: "Bob"}}, nil)
	conflicts := []Conflict{
		{ID: "1", Type: ConflictSkillMismatch, Severity: SeverityLow, StaffID: "a", Start: at(0, 9)},
		{ID: "2", Type: ConflictMissingBreak, Severity: SeverityMedium, StaffID: "b", Start: at(0, 9)},
		{ID: "3", Type: ConflictOvertimeViolation, Severity: SeverityMedium, StaffID: "a", Start: at(2, 9)},
		{ID: "4", Type: ConflictMissingBreak, Severity: SeverityMedium, StaffID: "a", Start: at(1, 9)},
		{ID: "5", Type: ConflictDoubleBooking, Severity: SeverityHigh, StaffID: "b", Start: at(3, 9)},
	}
	SortConflicts(conflicts, roster)
	var got string
	for _, c := range conflicts {
		got += c.ID
	}
	if got != "54321" {
		t.Fatalf("order %s, want 54321", got)
	}
}

func TestConflictIDIsStable(t *testing.T) {
	a := ConflictID(ConflictDoubleBooking, "s1", "s2")
	if a != ConflictID(ConflictDoubleBooking, "s1", "s2") {
		t.Fatal("same input must give the same id")
	}
	if a == ConflictID(ConflictInsufficientRest, "s1", "s2") || a == ConflictID(ConflictDoubleBooking, "s2", "s1") {
		t.Fatal("different rule or shift order must give a different id")
	}
}

func TestResolutionMenus(t *testing.T) {
	sizes := map[ConflictType]int{
		ConflictDoubleBooking:     5,
		ConflictOvertimeViolation: 4,
		ConflictUnavailableStaff:  3,
		ConflictMissingBreak:      3,
		ConflictInsufficientRest:  3,
		ConflictSkillMismatch:     3,
	}
	for ct, n := range sizes {
		if got := len(ResolutionOptions(ct)); got != n {
			t.Errorf("%s: %d options, want %d", ct, got, n)
		}
	}
	if Offers(ConflictMissingBreak, ResolveCancelFirst) {
		t.Fatal("cancel_first belongs to double booking only")
	}
	opts := ResolutionOptions(ConflictDoubleBooking)
	opts[0] = "mutated"
	if ResolutionOptions(ConflictDoubleBooking)[0] != ResolveCancelFirst {
		t.Fatal("menus must be copied out")
	}
}

func TestDefaultRulesValidate(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	r := DefaultRules()
	r.SplitShiftGap = r.MinRest
	if err := r.Validate(); err == nil {
		t.Fatal("split gap equal to min rest must be rejected")
	}
}
