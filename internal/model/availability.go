package model

import (
	"time"

	"shift-scheduler/internal/domain"
	"shift-scheduler/pkg/optimistic"
)

const DateLayout = "2006-01-02"

type Availability struct {
	ID          string `json:"id"`
	StaffID     string `json:"staff_id"`
	DayOfWeek   *int   `json:"day_of_week,omitempty"`
	Date        string `json:"date,omitempty"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable bool   `json:"is_available"`
}

func FromAvailability(a domain.Availability) Availability {
	out := Availability{
		ID:          a.ID,
		StaffID:     a.StaffID,
		DayOfWeek:   a.DayOfWeek,
		StartTime:   domain.FormatClock(a.StartMinute),
		EndTime:     domain.FormatClock(a.EndMinute),
		IsAvailable: a.IsAvailable,
	}
	if a.Date != nil {
		out.Date = a.Date.Format(DateLayout)
	}
	return out
}

func (m Availability) Domain() (domain.Availability, error) {
	a := domain.Availability{ID: m.ID, StaffID: m.StaffID, DayOfWeek: m.DayOfWeek, IsAvailable: m.IsAvailable}
	var err error
	if a.StartMinute, err = domain.ParseClock(m.StartTime); err != nil {
		return a, &domain.ValidationError{Field: "start_time", Reason: err.Error()}
	}
	if a.EndMinute, err = domain.ParseClock(m.EndTime); err != nil {
		return a, &domain.ValidationError{Field: "end_time", Reason: err.Error()}
	}
	if m.Date != "" {
		d, err := time.Parse(DateLayout, m.Date)
		if err != nil {
			return a, &domain.ValidationError{Field: "date", Reason: err.Error()}
		}
		a.Date = &d
	}
	return a, a.Validate()
}

func AvailabilityEntity(a domain.Availability) optimistic.Entity[Availability] {
	return optimistic.Entity[Availability]{
		ID:        a.ID,
		Version:   a.Version,
		UpdatedAt: a.UpdatedAt,
		ETag:      a.ETag,
		Data:      FromAvailability(a),
	}
}

func AvailabilityFromEntity(e optimistic.Entity[Availability]) (domain.Availability, error) {
	a, err := e.Data.Domain()
	if err != nil {
		return a, err
	}
	if e.ID != "" {
		a.ID = e.ID
	}
	a.VersionInfo = domain.VersionInfo{Version: e.Version, UpdatedAt: e.UpdatedAt, ETag: e.ETag}
	return a, nil
}
