package domain

import "context"

// ShiftStore is the canonical shift storage. UpdateShift re-reads the
// shift and re-applies fn whenever the stored version moved underneath it.
type ShiftStore interface {
	ListShifts(ctx context.Context, p Period) ([]Shift, error)
	GetShift(ctx context.Context, id string) (Shift, error)
	CreateShift(ctx context.Context, s Shift) (Shift, error)
	UpdateShift(ctx context.Context, id string, fn func(Shift) (Shift, error)) (Shift, error)
	DeleteShift(ctx context.Context, id string) error
}

type StaffRepo interface {
	ListStaff(ctx context.Context) ([]StaffMember, error)
	GetStaff(ctx context.Context, id string) (StaffMember, error)
	GetStaffByChatID(ctx context.Context, chatID int64) (StaffMember, error)
	SaveStaff(ctx context.Context, m StaffMember) error
}

type RoleRepo interface {
	ListRoles(ctx context.Context) ([]Role, error)
	SaveRole(ctx context.Context, r Role) error
}

type AvailabilityRepo interface {
	ListAvailability(ctx context.Context, staffIDs []string) ([]Availability, error)
	SaveAvailability(ctx context.Context, a Availability) (Availability, error)
}

type ResolutionSink interface {
	SubmitResolution(ctx context.Context, rec ResolutionRecord) error
}
