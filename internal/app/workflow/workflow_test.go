package workflow

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"shift-scheduler/internal/app/resolution"
	"shift-scheduler/internal/domain"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

var roster = domain.NewRoster([]domain.StaffMember{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"}}, nil)

func conflict(id, staff string, ct domain.ConflictType, sev domain.Severity) domain.Conflict {
	return domain.Conflict{ID: id, Type: ct, Severity: sev, StaffID: staff, ShiftIDs: []string{id + "-s"}, Start: t0}
}

func twoConflicts() []domain.Conflict {
	return []domain.Conflict{
		conflict("c1", "alice", domain.ConflictDoubleBooking, domain.SeverityHigh),
		conflict("c2", "bob", domain.ConflictMissingBreak, domain.SeverityMedium),
	}
}

func mustTransition(t *testing.T, s Session, ev Event) (Session, []Effect) {
	t.Helper()
	next, effects, err := Transition(s, ev)
	if err != nil {
		t.Fatalf("%T in %s: %v", ev, s.State, err)
	}
	return next, effects
}

func TestHappyPathEndsAllResolved(t *testing.T) {
	s := New(twoConflicts()[:1], roster)
	s, _ = mustTransition(t, s, SelectConflict{ConflictID: "c1"})
	if s.State != ConflictSelected {
		t.Fatalf("want conflict_selected, got %s", s.State)
	}
	s, effects := mustTransition(t, s, ChooseResolution{Option: domain.ResolveCancelFirst})
	if s.State != Resolving || len(effects) != 1 {
		t.Fatalf("want resolving with one submit, got %s %v", s.State, effects)
	}
	sub := effects[0].(Submit)
	if sub.Gen != s.Gen || sub.Conflict.ID != "c1" {
		t.Fatalf("unexpected submit %+v", sub)
	}

	s, effects = mustTransition(t, s, ResolutionSucceeded{Gen: sub.Gen})
	if s.State != Resolved || len(s.Conflicts) != 0 || s.Resolved != 1 {
		t.Fatalf("unexpected session %+v", s)
	}
	re, ok := effects[0].(Redetect)
	if !ok || len(re.StaffIDs) != 1 || re.StaffIDs[0] != "alice" {
		t.Fatalf("want redetect for alice, got %v", effects)
	}

	s, _ = mustTransition(t, s, ConflictsRefreshed{StaffIDs: re.StaffIDs})
	if s.State != AllResolved {
		t.Fatalf("want all_resolved, got %s", s.State)
	}
	if _, _, err := Transition(s, SelectConflict{ConflictID: "c1"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("terminal state should reject selection, got %v", err)
	}
}

func TestRefreshWithRemainingConflictsReturnsToNoSelection(t *testing.T) {
	s := New(twoConflicts(), roster)
	s, _ = mustTransition(t, s, SelectConflict{ConflictID: "c1"})
	s, effects := mustTransition(t, s, ChooseResolution{Option: domain.ResolveCancelSecond})
	s, _ = mustTransition(t, s, ResolutionSucceeded{Gen: effects[0].(Submit).Gen, StaffIDs: []string{"alice"}})

	fresh := conflict("c3", "alice", domain.ConflictInsufficientRest, domain.SeverityMedium)
	s, _ = mustTransition(t, s, ConflictsRefreshed{StaffIDs: []string{"alice"}, Conflicts: []domain.Conflict{fresh}})
	if s.State != NoSelection || len(s.Conflicts) != 2 {
		t.Fatalf("unexpected session %+v", s)
	}
	if s.Selected != "" || s.Option != "" {
		t.Fatalf("selection should be cleared")
	}
}

func TestFailureAllowsRetryAndDifferentOption(t *testing.T) {
	s := New(twoConflicts(), roster)
	s, _ = mustTransition(t, s, SelectConflict{ConflictID: "c2"})
	s, effects := mustTransition(t, s, ChooseResolution{Option: domain.ResolveInsertBreak})
	boom := errors.New("network down")
	s, _ = mustTransition(t, s, ResolutionFailed{Gen: effects[0].(Submit).Gen, Err: boom})
	if s.State != Failed || !errors.Is(s.LastError, boom) || s.Selected != "c2" {
		t.Fatalf("unexpected session %+v", s)
	}
	s, effects = mustTransition(t, s, ChooseResolution{Option: domain.ResolveShortenShift})
	if s.State != Resolving || s.LastError != nil || effects[0].(Submit).Option != domain.ResolveShortenShift {
		t.Fatalf("retry not accepted: %+v", s)
	}
}

func TestStaleResultIsDiscarded(t *testing.T) {
	s := New(twoConflicts(), roster)
	s, _ = mustTransition(t, s, SelectConflict{ConflictID: "c1"})
	s, effects := mustTransition(t, s, ChooseResolution{Option: domain.ResolveCancelFirst})
	staleGen := effects[0].(Submit).Gen

	s, _ = mustTransition(t, s, SelectConflict{ConflictID: "c2"})
	after, effects := mustTransition(t, s, ResolutionSucceeded{Gen: staleGen})
	if len(effects) != 0 || after.State != ConflictSelected || len(after.Conflicts) != 2 {
		t.Fatalf("stale result mutated session: %+v", after)
	}
}

func TestLateSuccessStillRedetectsItsStaff(t *testing.T) {
	s := New(twoConflicts(), roster)
	s, _ = mustTransition(t, s, SelectConflict{ConflictID: "c1"})
	s, effects := mustTransition(t, s, ChooseResolution{Option: domain.ResolveCancelFirst})
	staleGen := effects[0].(Submit).Gen

	s, _ = mustTransition(t, s, SelectConflict{ConflictID: "c2"})
	after, effects := mustTransition(t, s, ResolutionSucceeded{Gen: staleGen, ConflictID: "c1", StaffIDs: []string{"alice"}})
	if after.State != ConflictSelected || after.Selected != "c2" || after.Resolved != 0 {
		t.Fatalf("late success changed the selection: %+v", after)
	}
	re, ok := effects[0].(Redetect)
	if len(effects) != 1 || !ok || len(re.StaffIDs) != 1 || re.StaffIDs[0] != "alice" {
		t.Fatalf("want a redetect for alice, got %v", effects)
	}

	after, _ = mustTransition(t, after, ConflictsRefreshed{StaffIDs: re.StaffIDs})
	if len(after.Conflicts) != 1 || after.Conflicts[0].ID != "c2" || after.State != ConflictSelected {
		t.Fatalf("resolved conflict should drop off after the refresh: %+v", after)
	}
}

func TestRefreshOrdersBySeverityThenStaffName(t *testing.T) {
	names := domain.NewRoster([]domain.StaffMember{{ID: "z", Name: "Zed"}, {ID: "y", Name: "Alice"}}, nil)
	zed := conflict("c1", "z", domain.ConflictMissingBreak, domain.SeverityMedium)
	alice := conflict("c2", "y", domain.ConflictMissingBreak, domain.SeverityMedium)
	high := conflict("c3", "z", domain.ConflictDoubleBooking, domain.SeverityHigh)

	s := New([]domain.Conflict{zed}, names)
	s, _ = mustTransition(t, s, ConflictsRefreshed{Conflicts: []domain.Conflict{zed, alice, high}})
	var got string
	for _, c := range s.Conflicts {
		got += c.ID + " "
	}
	if got != "c3 c2 c1 " {
		t.Fatalf("order %q, want c3 c2 c1", got)
	}
}

func TestChooseRejectsOptionFromAnotherMenu(t *testing.T) {
	s := New(twoConflicts(), roster)
	s, _ = mustTransition(t, s, SelectConflict{ConflictID: "c1"})
	if s.Option != "" {
		t.Fatalf("selection must clear the chosen option")
	}
	if _, _, err := Transition(s, ChooseResolution{Option: domain.ResolveInsertBreak}); !errors.Is(err, domain.ErrInvalidOption) {
		t.Fatalf("want ErrInvalidOption, got %v", err)
	}
	if _, _, err := Transition(New(twoConflicts(), roster), ChooseResolution{Option: domain.ResolveCancelFirst}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("choosing without a selection should fail, got %v", err)
	}
}

func TestSkipAndIgnoreAll(t *testing.T) {
	s := New(twoConflicts(), roster)
	s, _ = mustTransition(t, s, SelectConflict{ConflictID: "c1"})
	s, effects := mustTransition(t, s, Skip{})
	if s.State != NoSelection || len(effects) != 0 || len(s.Conflicts) != 2 {
		t.Fatalf("skip must not change the conflict list: %+v", s)
	}

	s, _ = mustTransition(t, s, IgnoreAll{})
	if s.State != Dismissed || len(s.Conflicts) != 2 {
		t.Fatalf("ignore all should keep remaining conflicts: %+v", s)
	}
}

func TestDeferredConflictStaysOffTheList(t *testing.T) {
	s := New(twoConflicts(), roster)
	s, _ = mustTransition(t, s, SelectConflict{ConflictID: "c2"})
	s, effects := mustTransition(t, s, ChooseResolution{Option: domain.ResolveInsertBreak})
	s, _ = mustTransition(t, s, ResolutionSucceeded{Gen: effects[0].(Submit).Gen, Deferred: true})
	again := conflict("c2", "bob", domain.ConflictMissingBreak, domain.SeverityMedium)
	s, _ = mustTransition(t, s, ConflictsRefreshed{StaffIDs: []string{"bob"}, Conflicts: []domain.Conflict{again}})
	if len(s.Conflicts) != 1 || s.Conflicts[0].ID != "c1" {
		t.Fatalf("deferred conflict came back: %+v", s.Conflicts)
	}
}

type fakeExecutor struct {
	mu        sync.Mutex
	submitErr error
	submits   []domain.ResolutionOption
	fresh     []domain.Conflict
}

func (f *fakeExecutor) Submit(_ context.Context, c domain.Conflict, opt domain.ResolutionOption, _ resolution.Params) (Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, opt)
	if f.submitErr != nil {
		return Outcome{}, f.submitErr
	}
	return Outcome{StaffIDs: []string{c.StaffID}}, nil
}

func (f *fakeExecutor) Redetect(context.Context, []string) ([]domain.Conflict, error) {
	return f.fresh, nil
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestRunnerExecutesEffectsSynchronously(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewRunner(context.Background(), New(twoConflicts()[:1], roster), exec, quietLogger())
	r.Go = func(fn func()) { fn() }
	var seen []State
	r.OnChange = func(s Session) { seen = append(seen, s.State) }

	if _, err := r.Dispatch(SelectConflict{ConflictID: "c1"}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := r.Dispatch(ChooseResolution{Option: domain.ResolveReassignFirst}); err != nil {
		t.Fatalf("choose: %v", err)
	}
	if got := r.Session().State; got != AllResolved {
		t.Fatalf("want all_resolved, got %s (seen %v)", got, seen)
	}
	if len(exec.submits) != 1 || exec.submits[0] != domain.ResolveReassignFirst {
		t.Fatalf("unexpected submits %v", exec.submits)
	}
}

func TestRunnerDiscardsResultOfAbandonedSubmission(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewRunner(context.Background(), New(twoConflicts(), roster), exec, quietLogger())
	var queued []func()
	r.Go = func(fn func()) { queued = append(queued, fn) }

	r.Dispatch(SelectConflict{ConflictID: "c1"})
	r.Dispatch(ChooseResolution{Option: domain.ResolveCancelFirst})
	r.Dispatch(SelectConflict{ConflictID: "c2"})
	for _, fn := range queued {
		fn()
	}
	s := r.Session()
	if s.State != ConflictSelected || s.Selected != "c2" || len(s.Conflicts) != 2 {
		t.Fatalf("abandoned submission leaked into session: %+v", s)
	}
	if len(exec.submits) != 0 {
		t.Fatalf("abandoned submission still reached the store: %v", exec.submits)
	}
}

func TestRunnerReportsFailure(t *testing.T) {
	exec := &fakeExecutor{submitErr: domain.ErrNoCandidate}
	r := NewRunner(context.Background(), New(twoConflicts(), roster), exec, quietLogger())
	r.Go = func(fn func()) { fn() }
	r.Dispatch(SelectConflict{ConflictID: "c1"})
	r.Dispatch(ChooseResolution{Option: domain.ResolveReassignFirst})
	s := r.Session()
	if s.State != Failed || !errors.Is(s.LastError, domain.ErrNoCandidate) {
		t.Fatalf("want failed with ErrNoCandidate, got %+v", s)
	}
}
