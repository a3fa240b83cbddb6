// Package workflow drives a conflict resolution session. Transition is a
// pure function over Session values; Runner executes the effects it emits
// and feeds the results back as events.
package workflow

import (
	"errors"
	"fmt"

	"shift-scheduler/internal/app/resolution"
	"shift-scheduler/internal/domain"
)

type State string

const (
	NoSelection      State = "no_selection"
	ConflictSelected State = "conflict_selected"
	Resolving        State = "resolving"
	Resolved         State = "resolved"
	// Failed accepts the same events as ConflictSelected, so the caller can
	// retry or pick another option.
	Failed      State = "failed"
	AllResolved State = "all_resolved"
	Dismissed   State = "dismissed"
)

func (s State) Terminal() bool {
	return s == AllResolved || s == Dismissed
}

var (
	ErrInvalidTransition = errors.New("workflow: event not allowed in current state")
	ErrUnknownConflict   = errors.New("workflow: conflict is not on the active list")
)

// Session is one manager's pass over a conflict list.
type Session struct {
	State     State
	Conflicts []domain.Conflict
	Selected  string
	Option    domain.ResolutionOption
	Params    resolution.Params
	// Deferred holds ids of conflicts parked by a non-mutating option; they
	// are kept off the active list when detection reports them again.
	Deferred  map[string]bool
	Gen       int
	LastError error
	Resolved  int
	// Roster names staff for ordering refreshed conflicts.
	Roster    domain.Roster
}

// New opens a session over the given conflicts.
func New(conflicts []domain.Conflict, roster domain.Roster) Session {
	s := Session{State: NoSelection, Conflicts: conflicts, Roster: roster}
	if len(conflicts) == 0 {
		s.State = AllResolved
	}
	return s
}

// Current returns the selected conflict.
func (s Session) Current() (domain.Conflict, bool) {
	return s.find(s.Selected)
}

func (s Session) find(id string) (domain.Conflict, bool) {
	if id == "" {
		return domain.Conflict{}, false
	}
	for _, c := range s.Conflicts {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Conflict{}, false
}

type Event interface{ event() }

type SelectConflict struct{ ConflictID string }

type ChooseResolution struct {
	Option domain.ResolutionOption
	Params resolution.Params
}

type ResolutionSucceeded struct {
	Gen        int
	ConflictID string
	Deferred   bool
	StaffIDs   []string
}

type ResolutionFailed struct {
	Gen int
	Err error
}

// ConflictsRefreshed replaces the conflicts of StaffIDs (all staff when nil)
// with a fresh detection result.
type ConflictsRefreshed struct {
	StaffIDs  []string
	Conflicts []domain.Conflict
}

type Skip struct{}

type IgnoreAll struct{}

func (SelectConflict) event()      {}
func (ChooseResolution) event()    {}
func (ResolutionSucceeded) event() {}
func (ResolutionFailed) event()    {}
func (ConflictsRefreshed) event()  {}
func (Skip) event()                {}
func (IgnoreAll) event()           {}

type Effect interface{ effect() }

// Submit asks the executor to apply Option to Conflict. Its result must be
// reported with the same Gen.
type Submit struct {
	Gen      int
	Conflict domain.Conflict
	Option   domain.ResolutionOption
	Params   resolution.Params
}

type Redetect struct{ StaffIDs []string }

func (Submit) effect()   {}
func (Redetect) effect() {}

// Transition computes the next session. A failure of an abandoned
// submission is ignored. A success of one leaves the state alone but still
// asks for a redetect of the staff it touched, since the store has changed.
func Transition(s Session, ev Event) (Session, []Effect, error) {
	if s.State.Terminal() {
		if _, ok := ev.(ConflictsRefreshed); ok {
			return s, nil, nil
		}
		if isResult(ev) {
			return s, nil, nil
		}
		return s, nil, fmt.Errorf("%w: %T in %s", ErrInvalidTransition, ev, s.State)
	}

	switch ev := ev.(type) {
	case SelectConflict:
		if _, ok := s.find(ev.ConflictID); !ok {
			return s, nil, fmt.Errorf("%w: %s", ErrUnknownConflict, ev.ConflictID)
		}
		s.Selected = ev.ConflictID
		s.Option = ""
		s.Params = resolution.Params{}
		s.LastError = nil
		s.Gen++
		s.State = ConflictSelected
		return s, nil, nil

	case ChooseResolution:
		if s.State != ConflictSelected && s.State != Failed {
			return s, nil, fmt.Errorf("%w: choose in %s", ErrInvalidTransition, s.State)
		}
		c, ok := s.Current()
		if !ok {
			return s, nil, fmt.Errorf("%w: %s", ErrUnknownConflict, s.Selected)
		}
		if !domain.Offers(c.Type, ev.Option) {
			return s, nil, fmt.Errorf("%s for %s: %w", ev.Option, c.Type, domain.ErrInvalidOption)
		}
		s.Option = ev.Option
		s.Params = ev.Params
		s.LastError = nil
		s.Gen++
		s.State = Resolving
		return s, []Effect{Submit{Gen: s.Gen, Conflict: c, Option: ev.Option, Params: ev.Params}}, nil

	case ResolutionSucceeded:
		if s.State != Resolving || ev.Gen != s.Gen {
			return s.abandonedSuccess(ev)
		}
		c, ok := s.Current()
		if !ok {
			c, _ = s.find(ev.ConflictID)
		}
		s.Conflicts = without(s.Conflicts, c.ID)
		if ev.Deferred {
			s.Deferred = withDeferred(s.Deferred, c.ID)
		}
		s.Resolved++
		s.State = Resolved
		staff := ev.StaffIDs
		if len(staff) == 0 && c.StaffID != "" {
			staff = []string{c.StaffID}
		}
		if len(staff) == 0 {
			return s, nil, nil
		}
		return s, []Effect{Redetect{StaffIDs: staff}}, nil

	case ResolutionFailed:
		if s.State != Resolving || ev.Gen != s.Gen {
			return s, nil, nil
		}
		s.LastError = ev.Err
		s.State = Failed
		return s, nil, nil

	case ConflictsRefreshed:
		s.Conflicts = s.merge(ev.StaffIDs, ev.Conflicts)
		switch s.State {
		case Resolved:
			s.Selected = ""
			s.Option = ""
			s.State = NoSelection
		case ConflictSelected, Failed:
			if _, ok := s.Current(); !ok {
				s.Selected = ""
				s.State = NoSelection
			}
		}
		if s.State == NoSelection && len(s.Conflicts) == 0 {
			s.State = AllResolved
		}
		return s, nil, nil

	case Skip:
		if s.State != ConflictSelected && s.State != Failed {
			return s, nil, fmt.Errorf("%w: skip in %s", ErrInvalidTransition, s.State)
		}
		s.Selected = ""
		s.Option = ""
		s.LastError = nil
		s.State = NoSelection
		return s, nil, nil

	case IgnoreAll:
		s.Gen++
		s.State = Dismissed
		return s, nil, nil
	}
	return s, nil, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
}

// abandonedSuccess records a late success without touching the selection.
func (s Session) abandonedSuccess(ev ResolutionSucceeded) (Session, []Effect, error) {
	staff := ev.StaffIDs
	if c, ok := s.find(ev.ConflictID); ok {
		if ev.Deferred {
			s.Deferred = withDeferred(s.Deferred, c.ID)
			if s.Selected != c.ID {
				s.Conflicts = without(s.Conflicts, c.ID)
			}
		}
		if len(staff) == 0 {
			staff = []string{c.StaffID}
		}
	}
	if len(staff) == 0 {
		return s, nil, nil
	}
	return s, []Effect{Redetect{StaffIDs: staff}}, nil
}

func isResult(ev Event) bool {
	switch ev.(type) {
	case ResolutionSucceeded, ResolutionFailed:
		return true
	}
	return false
}

func (s Session) merge(staffIDs []string, fresh []domain.Conflict) []domain.Conflict {
	var keep []domain.Conflict
	if staffIDs != nil {
		replaced := make(map[string]bool, len(staffIDs))
		for _, id := range staffIDs {
			replaced[id] = true
		}
		for _, c := range s.Conflicts {
			if !replaced[c.StaffID] {
				keep = append(keep, c)
			}
		}
	}
	for _, c := range fresh {
		if !s.Deferred[c.ID] {
			keep = append(keep, c)
		}
	}
	domain.SortConflicts(keep, s.Roster)
	return keep
}

func without(conflicts []domain.Conflict, id string) []domain.Conflict {
	out := make([]domain.Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func withDeferred(set map[string]bool, id string) map[string]bool {
	out := make(map[string]bool, len(set)+1)
	for k, v := range set {
		out[k] = v
	}
	out[id] = true
	return out
}
