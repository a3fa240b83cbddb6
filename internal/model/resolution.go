package model

import (
	"time"

	"shift-scheduler/internal/domain"
)

// ResolutionRequest is the body of POST /resolutions.
type ResolutionRequest struct {
	ConflictID     string    `json:"conflict_id"`
	ResolutionType string    `json:"resolution_type"`
	ConflictType   string    `json:"conflict_type"`
	StaffID        string    `json:"staff_id,omitempty"`
	ShiftIDs       []string  `json:"shift_ids,omitempty"`
	Actor          string    `json:"actor,omitempty"`
	ResolvedAt     time.Time `json:"resolved_at"`
}

func FromResolution(rec domain.ResolutionRecord) ResolutionRequest {
	return ResolutionRequest{
		ConflictID:     rec.ConflictID,
		ResolutionType: string(rec.Option),
		ConflictType:   string(rec.ConflictType),
		StaffID:        rec.StaffID,
		ShiftIDs:       rec.ShiftIDs,
		Actor:          rec.Actor,
		ResolvedAt:     rec.ResolvedAt,
	}
}

func (m ResolutionRequest) Domain() domain.ResolutionRecord {
	return domain.ResolutionRecord{
		ConflictID:   m.ConflictID,
		ConflictType: domain.ConflictType(m.ConflictType),
		Option:       domain.ResolutionOption(m.ResolutionType),
		StaffID:      m.StaffID,
		ShiftIDs:     m.ShiftIDs,
		Actor:        m.Actor,
		ResolvedAt:   m.ResolvedAt,
	}
}

type Conflict struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Severity string   `json:"severity"`
	StaffID  string   `json:"staff_id"`
	ShiftIDs []string `json:"shift_ids"`
	Message  string   `json:"message"`
	Options  []string `json:"options"`
}

func FromConflict(c domain.Conflict) Conflict {
	opts := domain.ResolutionOptions(c.Type)
	names := make([]string, len(opts))
	for i, o := range opts {
		names[i] = string(o)
	}
	return Conflict{
		ID:       c.ID,
		Type:     string(c.Type),
		Severity: string(c.Severity),
		StaffID:  c.StaffID,
		ShiftIDs: c.ShiftIDs,
		Message:  c.Message,
		Options:  names,
	}
}
