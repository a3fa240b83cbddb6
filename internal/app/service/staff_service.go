package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"shift-scheduler/internal/domain"
)

type StaffService struct {
	Repo         domain.StaffRepo
	Roles        domain.RoleRepo
	Availability domain.AvailabilityRepo
}

func NewStaffService(repo domain.StaffRepo, roles domain.RoleRepo, avail domain.AvailabilityRepo) *StaffService {
	return &StaffService{Repo: repo, Roles: roles, Availability: avail}
}

func (s *StaffService) SaveStaff(ctx context.Context, m domain.StaffMember) (domain.StaffMember, error) {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return m, &domain.ValidationError{Field: "name", Reason: "is required"}
	}
	if m.HourlyRate.IsNegative() {
		return m, &domain.ValidationError{Field: "hourly_rate", Reason: "must not be negative"}
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return m, s.Repo.SaveStaff(ctx, m)
}

func (s *StaffService) ListStaff(ctx context.Context) ([]domain.StaffMember, error) {
	return s.Repo.ListStaff(ctx)
}

func (s *StaffService) GetStaff(ctx context.Context, id string) (domain.StaffMember, error) {
	return s.Repo.GetStaff(ctx, id)
}

func (s *StaffService) GetStaffByChatID(ctx context.Context, chatID int64) (domain.StaffMember, error) {
	return s.Repo.GetStaffByChatID(ctx, chatID)
}

func (s *StaffService) SaveRole(ctx context.Context, r domain.Role) (domain.Role, error) {
	if strings.TrimSpace(r.Name) == "" {
		return r, &domain.ValidationError{Field: "role", Reason: "name is required"}
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return r, s.Roles.SaveRole(ctx, r)
}

// SetAvailability stores a. A stale a.Version yields
// domain.ErrVersionConflict along with the stored record.
func (s *StaffService) SetAvailability(ctx context.Context, a domain.Availability) (domain.Availability, error) {
	if err := a.Validate(); err != nil {
		return a, err
	}
	if _, err := s.Repo.GetStaff(ctx, a.StaffID); err != nil {
		return a, err
	}
	return s.Availability.SaveAvailability(ctx, a)
}

// Roster loads every staff member and role.
func (s *StaffService) Roster(ctx context.Context) (domain.Roster, error) {
	staff, err := s.Repo.ListStaff(ctx)
	if err != nil {
		return domain.Roster{}, err
	}
	roles, err := s.Roles.ListRoles(ctx)
	if err != nil {
		return domain.Roster{}, err
	}
	return domain.NewRoster(staff, roles), nil
}

func (s *StaffService) AvailabilityFor(ctx context.Context, staffIDs []string) (domain.AvailabilitySet, error) {
	recs, err := s.Availability.ListAvailability(ctx, staffIDs)
	if err != nil {
		return nil, err
	}
	return domain.NewAvailabilitySet(recs), nil
}
