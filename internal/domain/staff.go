package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

type StaffMember struct {
	ID         string
	Name       string
	ChatID     int64
	Skills     []string
	HourlyRate decimal.Decimal
	Senior     bool
	Active     bool
}

func (m StaffMember) HasSkill(skill string) bool {
	if skill == "" {
		return true
	}
	for _, s := range m.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

type Role struct {
	ID            string
	Name          string
	RequiredSkill string
}

// Roster indexes staff and roles by id.
type Roster struct {
	Staff map[string]StaffMember
	Roles map[string]Role
}

func NewRoster(staff []StaffMember, roles []Role) Roster {
	r := Roster{
		Staff: make(map[string]StaffMember, len(staff)),
		Roles: make(map[string]Role, len(roles)),
	}
	for _, m := range staff {
		r.Staff[m.ID] = m
	}
	for _, role := range roles {
		r.Roles[role.ID] = role
	}
	return r
}

// StaffName falls back to the id for unknown staff.
func (r Roster) StaffName(id string) string {
	if m, ok := r.Staff[id]; ok && m.Name != "" {
		return m.Name
	}
	return id
}

// RequiredSkill returns the qualification a role demands, if any.
func (r Roster) RequiredSkill(roleID string) string {
	if roleID == "" {
		return ""
	}
	return r.Roles[roleID].RequiredSkill
}

// Members returns the roster sorted by name then id.
func (r Roster) Members() []StaffMember {
	out := make([]StaffMember, 0, len(r.Staff))
	for _, m := range r.Staff {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
