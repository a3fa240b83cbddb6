package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrUnauthorized    = errors.New("elevated authorization required")
	ErrInvalidOption   = errors.New("resolution option does not apply to conflict")
	ErrNoCandidate     = errors.New("no eligible staff member found")
)

// ValidationError reports a malformed entity. It is raised at creation or
// edit time and never reaches conflict detection.
type ValidationError struct {
	ShiftID string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.ShiftID != "" {
		return fmt.Sprintf("invalid shift %s: %s %s", e.ShiftID, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnresolvedConflictWarning is returned when a schedule is published with
// outstanding conflicts and the caller has not acknowledged them.
type UnresolvedConflictWarning struct {
	Conflicts []Conflict
}

func (w *UnresolvedConflictWarning) Error() string {
	return fmt.Sprintf("%d unresolved conflict(s); acknowledge to publish anyway", len(w.Conflicts))
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
