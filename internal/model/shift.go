// Package model holds the JSON shapes exchanged with the REST store and
// served by the HTTP API.
package model

import (
	"time"

	"github.com/shopspring/decimal"

	"shift-scheduler/internal/domain"
	"shift-scheduler/pkg/optimistic"
)

// Shift travels inside an optimistic.Entity, which carries its version.
type Shift struct {
	ID         string           `json:"id"`
	StaffID    string           `json:"staff_id"`
	RoleID     string           `json:"role_id,omitempty"`
	Start      time.Time        `json:"start_time"`
	End        time.Time        `json:"end_time"`
	Type       string           `json:"shift_type"`
	Status     string           `json:"status"`
	HourlyRate *decimal.Decimal `json:"hourly_rate,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	TemplateID string           `json:"template_id,omitempty"`
}

func FromShift(s domain.Shift) Shift {
	return Shift{
		ID:         s.ID,
		StaffID:    s.StaffID,
		RoleID:     s.RoleID,
		Start:      s.Start,
		End:        s.End,
		Type:       string(s.Type),
		Status:     string(s.Status),
		HourlyRate: s.HourlyRate,
		Notes:      s.Notes,
		TemplateID: s.TemplateID,
	}
}

func (m Shift) Domain() domain.Shift {
	return domain.Shift{
		ID:         m.ID,
		StaffID:    m.StaffID,
		RoleID:     m.RoleID,
		Start:      m.Start,
		End:        m.End,
		Type:       domain.ShiftType(m.Type),
		Status:     domain.ShiftStatus(m.Status),
		HourlyRate: m.HourlyRate,
		Notes:      m.Notes,
		TemplateID: m.TemplateID,
	}
}

func ShiftEntity(s domain.Shift) optimistic.Entity[Shift] {
	return optimistic.Entity[Shift]{
		ID:        s.ID,
		Version:   s.Version,
		UpdatedAt: s.UpdatedAt,
		ETag:      s.ETag,
		Data:      FromShift(s),
	}
}

// ShiftFromEntity trusts the envelope for id and version.
func ShiftFromEntity(e optimistic.Entity[Shift]) domain.Shift {
	s := e.Data.Domain()
	if e.ID != "" {
		s.ID = e.ID
	}
	s.VersionInfo = domain.VersionInfo{Version: e.Version, UpdatedAt: e.UpdatedAt, ETag: e.ETag}
	return s
}
