package resolution

import (
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"shift-scheduler/internal/app/detection"
	"shift-scheduler/internal/domain"
)

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func at(day, hour int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
}

func shift(id, staff string, from, to time.Time) domain.Shift {
	return domain.Shift{ID: id, StaffID: staff, Start: from, End: to, Type: domain.ShiftRegular, Status: domain.StatusPublished}
}

func allWeek(ids ...string) domain.AvailabilitySet {
	var recs []domain.Availability
	for _, id := range ids {
		for d := 0; d < 7; d++ {
			d := d
			recs = append(recs, domain.Availability{StaffID: id, DayOfWeek: &d, StartMinute: 0, EndMinute: 24 * 60, IsAvailable: true})
		}
	}
	return domain.NewAvailabilitySet(recs)
}

func testRoster() domain.Roster {
	return domain.NewRoster([]domain.StaffMember{
		{ID: "alice", Name: "Alice", Skills: []string{"bar"}, Active: true},
		{ID: "bob", Name: "Bob", Skills: []string{"bar", "grill"}, Senior: true, Active: true},
		{ID: "carol", Name: "Carol", Skills: []string{"grill"}, Active: false},
	}, []domain.Role{{ID: "grill", Name: "Grill", RequiredSkill: "grill"}})
}

func newState(shifts ...domain.Shift) State {
	n := 0
	return State{
		Shifts:       domain.Index(shifts),
		Roster:       testRoster(),
		Availability: allWeek("alice", "bob", "carol"),
		Rules:        domain.DefaultRules(),
		NewID: func() string {
			n++
			return fmt.Sprintf("new-%d", n)
		},
	}
}

func detect(t *testing.T, st State) []domain.Conflict {
	t.Helper()
	shifts := make([]domain.Shift, 0, len(st.Shifts))
	for _, s := range st.Shifts {
		shifts = append(shifts, s)
	}
	eng := detection.NewEngine(st.Rules, log.New(io.Discard, "", 0))
	conflicts, err := eng.Detect(detection.Input{Shifts: shifts, Availability: st.Availability, Roster: st.Roster})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	return conflicts
}

func only(t *testing.T, conflicts []domain.Conflict, ct domain.ConflictType) domain.Conflict {
	t.Helper()
	var found []domain.Conflict
	for _, c := range conflicts {
		if c.Type == ct {
			found = append(found, c)
		}
	}
	if len(found) != 1 {
		t.Fatalf("want one %s conflict, got %d in %+v", ct, len(found), conflicts)
	}
	return found[0]
}

func count(conflicts []domain.Conflict, ct domain.ConflictType) int {
	n := 0
	for _, c := range conflicts {
		if c.Type == ct {
			n++
		}
	}
	return n
}

// merged returns a copy of st with the outcome applied.
func merged(st State, out Outcome) State {
	next := st
	next.Shifts = make(map[string]domain.Shift, len(st.Shifts))
	for id, s := range st.Shifts {
		next.Shifts[id] = s
	}
	for _, s := range out.Shifts() {
		next.Shifts[s.ID] = s
	}
	return next
}

func TestDoubleBookingOptionsRemoveOverlap(t *testing.T) {
	st := newState(
		shift("s1", "alice", at(0, 9), at(0, 13)),
		shift("s2", "alice", at(0, 11), at(0, 15)),
	)
	c := only(t, detect(t, st), domain.ConflictDoubleBooking)

	for _, opt := range domain.ResolutionOptions(domain.ConflictDoubleBooking) {
		out, err := Apply(st, c, opt, Params{})
		if err != nil {
			t.Fatalf("%s: %v", opt, err)
		}
		after := detect(t, merged(st, out))
		if n := count(after, domain.ConflictDoubleBooking); n != 0 {
			t.Fatalf("%s left %d double bookings: %+v", opt, n, after)
		}
	}
}

func TestDoubleBookingReassignPicksFirstFreeStaffByName(t *testing.T) {
	st := newState(
		shift("s1", "alice", at(0, 9), at(0, 13)),
		shift("s2", "alice", at(0, 11), at(0, 15)),
	)
	c := only(t, detect(t, st), domain.ConflictDoubleBooking)

	out, err := Apply(st, c, domain.ResolveReassignSecond, Params{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(out.Changed) != 1 || out.Changed[0].ID != "s2" || out.Changed[0].StaffID != "bob" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if ids := out.StaffIDs(st.Shifts); len(ids) != 2 {
		t.Fatalf("want both old and new owner affected, got %v", ids)
	}
}

func TestAdjustTimesMovesSecondShiftToFirstEnd(t *testing.T) {
	st := newState(
		shift("s1", "alice", at(0, 9), at(0, 13)),
		shift("s2", "alice", at(0, 11), at(0, 15)),
	)
	c := only(t, detect(t, st), domain.ConflictDoubleBooking)
	out, err := Apply(st, c, domain.ResolveAdjustTimes, Params{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := out.Changed[0]; got.ID != "s2" || !got.Start.Equal(at(0, 13)) || !got.End.Equal(at(0, 15)) {
		t.Fatalf("unexpected adjustment %+v", got)
	}
}

func TestAdjustTimesRejectsIdenticalShifts(t *testing.T) {
	st := newState(
		shift("s1", "alice", at(0, 9), at(0, 12)),
		shift("s2", "alice", at(0, 9), at(0, 12)),
	)
	c := only(t, detect(t, st), domain.ConflictDoubleBooking)
	_, err := Apply(st, c, domain.ResolveAdjustTimes, Params{})
	if !domain.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestAdjustTimesNeverDropsWork(t *testing.T) {
	nested := newState(
		shift("s1", "alice", at(0, 9), at(0, 17)),
		shift("s2", "alice", at(0, 12), at(0, 14)),
	)
	c := only(t, detect(t, nested), domain.ConflictDoubleBooking)
	if _, err := Apply(nested, c, domain.ResolveAdjustTimes, Params{}); !domain.IsValidation(err) {
		t.Fatalf("a shift strictly inside the other must be rejected, got %v", err)
	}

	tail := newState(
		shift("s1", "alice", at(0, 9), at(0, 17)),
		shift("s2", "alice", at(0, 12), at(0, 17)),
	)
	c = only(t, detect(t, tail), domain.ConflictDoubleBooking)
	out, err := Apply(tail, c, domain.ResolveAdjustTimes, Params{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := out.Changed[0]; got.ID != "s1" || !got.End.Equal(at(0, 12)) {
		t.Fatalf("first shift should end where the second starts, got %+v", got)
	}
}

func overtimeState() State {
	var shifts []domain.Shift
	for d := 0; d < 4; d++ {
		shifts = append(shifts, shift(fmt.Sprintf("d%d", d), "alice", at(d, 8), at(d, 16)))
	}
	fri := shift("fri", "alice", at(4, 8), at(4, 18))
	shifts = append(shifts, fri,
		domain.Shift{ID: "brk", StaffID: "alice", Start: at(4, 12), End: at(4, 12).Add(30 * time.Minute), Type: domain.ShiftBreak, Status: domain.StatusPublished})
	for d := 0; d < 4; d++ {
		shifts = append(shifts, domain.Shift{ID: fmt.Sprintf("b%d", d), StaffID: "alice", Start: at(d, 12), End: at(d, 12).Add(30 * time.Minute), Type: domain.ShiftBreak, Status: domain.StatusPublished})
	}
	return newState(shifts...)
}

func TestOvertimeReduceHours(t *testing.T) {
	st := overtimeState()
	c := only(t, detect(t, st), domain.ConflictOvertimeViolation)
	if c.Excess != 2*time.Hour {
		t.Fatalf("want 2h excess, got %s", c.Excess)
	}
	out, err := Apply(st, c, domain.ResolveReduceHours, Params{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := out.Changed[0]; got.ID != "fri" || !got.End.Equal(at(4, 16)) {
		t.Fatalf("unexpected reduction %+v", got)
	}
	if n := count(detect(t, merged(st, out)), domain.ConflictOvertimeViolation); n != 0 {
		t.Fatalf("overtime still flagged")
	}
}

func TestApproveOvertimeNeedsElevation(t *testing.T) {
	st := overtimeState()
	c := only(t, detect(t, st), domain.ConflictOvertimeViolation)

	if _, err := Apply(st, c, domain.ResolveApproveOvertime, Params{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}

	out, err := Apply(st, c, domain.ResolveApproveOvertime, Params{Elevated: true, Actor: "manager"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(out.Created) != 1 || out.Created[0].Type != domain.ShiftOvertime || !out.Created[0].Start.Equal(at(4, 16)) {
		t.Fatalf("want an overtime remainder from 16:00, got %+v", out.Created)
	}
	if out.Created[0].Version != 0 {
		t.Fatalf("created shift must not inherit version info")
	}
	if n := count(detect(t, merged(st, out)), domain.ConflictOvertimeViolation); n != 0 {
		t.Fatalf("approved overtime still flagged")
	}
}

func TestSplitAcrossStaffHandsRemainderToCandidate(t *testing.T) {
	st := overtimeState()
	c := only(t, detect(t, st), domain.ConflictOvertimeViolation)
	out, err := Apply(st, c, domain.ResolveSplitAcrossStaff, Params{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(out.Created) != 1 || out.Created[0].StaffID != "bob" || !out.Created[0].Start.Equal(at(4, 16)) {
		t.Fatalf("unexpected split %+v", out)
	}
	if !out.Changed[0].End.Equal(at(4, 16)) {
		t.Fatalf("original shift should end at the cut")
	}
}

func TestRequestOverrideDefersAndNotifies(t *testing.T) {
	st := newState(shift("s1", "alice", at(0, 9), at(0, 13)))
	st.Availability = allWeek("bob")
	c := only(t, detect(t, st), domain.ConflictUnavailableStaff)

	out, err := Apply(st, c, domain.ResolveRequestOverride, Params{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !out.Deferred || len(out.Notices) != 1 || out.Notices[0].StaffID != "alice" {
		t.Fatalf("unexpected outcome %+v", out)
	}

	out, err = Apply(st, c, domain.ResolveReassignAvailable, Params{})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if out.Changed[0].StaffID != "bob" {
		t.Fatalf("want bob, got %s", out.Changed[0].StaffID)
	}
}

func TestMissingBreakOptions(t *testing.T) {
	st := newState(shift("s1", "alice", at(0, 9), at(0, 17)))
	c := only(t, detect(t, st), domain.ConflictMissingBreak)

	out, err := Apply(st, c, domain.ResolveInsertBreak, Params{})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	brk := out.Created[0]
	if brk.Type != domain.ShiftBreak || !brk.Start.Equal(at(0, 13)) || brk.Duration() != 30*time.Minute {
		t.Fatalf("unexpected break %+v", brk)
	}
	if n := count(detect(t, merged(st, out)), domain.ConflictMissingBreak); n != 0 {
		t.Fatalf("break not recognised")
	}

	out, err = Apply(st, c, domain.ResolveShortenShift, Params{})
	if err != nil {
		t.Fatalf("shorten: %v", err)
	}
	if !out.Changed[0].End.Equal(at(0, 15)) {
		t.Fatalf("want end 15:00, got %s", out.Changed[0].End)
	}

	out, err = Apply(st, c, domain.ResolveSplitWithBreak, Params{})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !out.Changed[0].End.Equal(at(0, 13)) || !out.Created[0].Start.Equal(at(0, 13).Add(30*time.Minute)) {
		t.Fatalf("unexpected split %+v", out)
	}
	if len(out.Created) != 2 || out.Created[1].Type != domain.ShiftBreak || !out.Created[1].Start.Equal(at(0, 13)) {
		t.Fatalf("split should record the break between the halves, got %+v", out.Created)
	}
	if n := len(detect(t, merged(st, out))); n != 0 {
		t.Fatalf("split left %d conflicts", n)
	}
}

func TestInsufficientRestOptions(t *testing.T) {
	st := newState(
		shift("late", "alice", at(0, 14), at(0, 22)),
		shift("early", "alice", at(1, 4), at(1, 10)),
	)
	c := only(t, detect(t, st), domain.ConflictInsufficientRest)

	out, err := Apply(st, c, domain.ResolveAdjustStart, Params{})
	if err != nil {
		t.Fatalf("adjust start: %v", err)
	}
	if !out.Changed[0].Start.Equal(at(1, 6)) {
		t.Fatalf("want start 06:00, got %s", out.Changed[0].Start)
	}

	out, err = Apply(st, c, domain.ResolveAdjustPreviousEnd, Params{})
	if err != nil {
		t.Fatalf("adjust end: %v", err)
	}
	if !out.Changed[0].End.Equal(at(0, 20)) {
		t.Fatalf("want end 20:00, got %s", out.Changed[0].End)
	}

	out, err = Apply(st, c, domain.ResolveReassignRested, Params{})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if out.Changed[0].ID != "early" || out.Changed[0].StaffID != "bob" {
		t.Fatalf("unexpected reassignment %+v", out.Changed[0])
	}
}

func TestAdjustStartRejectsVanishingShift(t *testing.T) {
	st := newState(
		shift("late", "alice", at(0, 14), at(0, 22)),
		shift("early", "alice", at(1, 4), at(1, 5)),
	)
	c := only(t, detect(t, st), domain.ConflictInsufficientRest)
	if _, err := Apply(st, c, domain.ResolveAdjustStart, Params{}); !domain.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestSkillMismatchOptions(t *testing.T) {
	s := shift("s1", "alice", at(0, 9), at(0, 13))
	s.RoleID = "grill"
	st := newState(s)
	c := only(t, detect(t, st), domain.ConflictSkillMismatch)

	out, err := Apply(st, c, domain.ResolveReassignQualified, Params{})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if out.Changed[0].StaffID != "bob" {
		t.Fatalf("want bob (carol is inactive), got %s", out.Changed[0].StaffID)
	}

	out, err = Apply(st, c, domain.ResolvePairWithSenior, Params{})
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if !out.Deferred || out.Created[0].StaffID != "bob" || len(out.Changed) != 0 {
		t.Fatalf("unexpected pairing %+v", out)
	}

	out, err = Apply(st, c, domain.ResolveScheduleTraining, Params{})
	if err != nil {
		t.Fatalf("training: %v", err)
	}
	tr := out.Created[0]
	if !out.Deferred || tr.Type != domain.ShiftTraining || !tr.End.Equal(s.Start) || tr.Duration() != 2*time.Hour {
		t.Fatalf("unexpected training %+v", tr)
	}
}

func TestApplyRejectsForeignOptionAndMissingShift(t *testing.T) {
	st := newState(shift("s1", "alice", at(0, 9), at(0, 17)))
	c := only(t, detect(t, st), domain.ConflictMissingBreak)

	if _, err := Apply(st, c, domain.ResolveCancelFirst, Params{}); !errors.Is(err, domain.ErrInvalidOption) {
		t.Fatalf("want ErrInvalidOption, got %v", err)
	}
	c.ShiftIDs = []string{"gone"}
	if _, err := Apply(st, c, domain.ResolveShortenShift, Params{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestReassignWithoutCandidate(t *testing.T) {
	st := newState(
		shift("s1", "alice", at(0, 9), at(0, 13)),
		shift("s2", "alice", at(0, 11), at(0, 15)),
		shift("b1", "bob", at(0, 8), at(0, 16)),
	)
	c := only(t, detect(t, st), domain.ConflictDoubleBooking)
	if _, err := Apply(st, c, domain.ResolveReassignFirst, Params{}); !errors.Is(err, domain.ErrNoCandidate) {
		t.Fatalf("want ErrNoCandidate, got %v", err)
	}
	out, err := Apply(st, c, domain.ResolveReassignFirst, Params{TargetStaffID: "bob"})
	if err != nil || out.Changed[0].StaffID != "bob" {
		t.Fatalf("explicit target should be honoured: %+v %v", out, err)
	}
}
