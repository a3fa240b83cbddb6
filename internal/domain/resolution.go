package domain

import "time"

type ResolutionOption string

const (
	ResolveCancelFirst    ResolutionOption = "cancel_first"
	ResolveCancelSecond   ResolutionOption = "cancel_second"
	ResolveReassignFirst  ResolutionOption = "reassign_first"
	ResolveReassignSecond ResolutionOption = "reassign_second"
	ResolveAdjustTimes    ResolutionOption = "adjust_times"

	ResolveReduceHours      ResolutionOption = "reduce_hours"
	ResolveReassign         ResolutionOption = "reassign"
	ResolveApproveOvertime  ResolutionOption = "approve_overtime"
	ResolveSplitAcrossStaff ResolutionOption = "split_across_staff"

	ResolveReassignAvailable ResolutionOption = "reassign_available"
	ResolveCancelShift       ResolutionOption = "cancel_shift"
	ResolveRequestOverride   ResolutionOption = "request_override"

	ResolveInsertBreak    ResolutionOption = "insert_break"
	ResolveShortenShift   ResolutionOption = "shorten_shift"
	ResolveSplitWithBreak ResolutionOption = "split_with_break"

	ResolveAdjustStart       ResolutionOption = "adjust_start"
	ResolveAdjustPreviousEnd ResolutionOption = "adjust_previous_end"
	ResolveReassignRested    ResolutionOption = "reassign_rested"

	ResolveReassignQualified ResolutionOption = "reassign_qualified"
	ResolveScheduleTraining  ResolutionOption = "schedule_training"
	ResolvePairWithSenior    ResolutionOption = "pair_with_senior"
)

var resolutionMenu = map[ConflictType][]ResolutionOption{
	ConflictDoubleBooking: {
		ResolveCancelFirst, ResolveCancelSecond, ResolveReassignFirst, ResolveReassignSecond, ResolveAdjustTimes,
	},
	ConflictOvertimeViolation: {
		ResolveReduceHours, ResolveReassign, ResolveApproveOvertime, ResolveSplitAcrossStaff,
	},
	ConflictUnavailableStaff: {
		ResolveReassignAvailable, ResolveCancelShift, ResolveRequestOverride,
	},
	ConflictMissingBreak: {
		ResolveInsertBreak, ResolveShortenShift, ResolveSplitWithBreak,
	},
	ConflictInsufficientRest: {
		ResolveAdjustStart, ResolveAdjustPreviousEnd, ResolveReassignRested,
	},
	ConflictSkillMismatch: {
		ResolveReassignQualified, ResolveScheduleTraining, ResolvePairWithSenior,
	},
}

// ResolutionOptions returns the fixed menu for a conflict type.
func ResolutionOptions(t ConflictType) []ResolutionOption {
	opts := resolutionMenu[t]
	out := make([]ResolutionOption, len(opts))
	copy(out, opts)
	return out
}

// Offers reports whether opt is on the menu for t.
func Offers(t ConflictType, opt ResolutionOption) bool {
	for _, o := range resolutionMenu[t] {
		if o == opt {
			return true
		}
	}
	return false
}

var optionLabels = map[ResolutionOption]string{
	ResolveCancelFirst:       "Cancel first shift",
	ResolveCancelSecond:      "Cancel second shift",
	ResolveReassignFirst:     "Reassign first shift",
	ResolveReassignSecond:    "Reassign second shift",
	ResolveAdjustTimes:       "Adjust shift times",
	ResolveReduceHours:       "Reduce shift hours",
	ResolveReassign:          "Reassign to another staff member",
	ResolveApproveOvertime:   "Approve overtime",
	ResolveSplitAcrossStaff:  "Split shift across staff",
	ResolveReassignAvailable: "Reassign to available staff",
	ResolveCancelShift:       "Cancel shift",
	ResolveRequestOverride:   "Request availability override",
	ResolveInsertBreak:       "Insert required break",
	ResolveShortenShift:      "Shorten shift",
	ResolveSplitWithBreak:    "Split with a break",
	ResolveAdjustStart:       "Adjust start time",
	ResolveAdjustPreviousEnd: "Adjust previous shift end",
	ResolveReassignRested:    "Reassign to another staff member",
	ResolveReassignQualified: "Reassign to qualified staff",
	ResolveScheduleTraining:  "Schedule training",
	ResolvePairWithSenior:    "Pair with senior staff",
}

func (o ResolutionOption) Label() string {
	if l, ok := optionLabels[o]; ok {
		return l
	}
	return string(o)
}

// ResolutionRecord is what gets reported to the resolution endpoint.
type ResolutionRecord struct {
	ConflictID   string
	ConflictType ConflictType
	Option       ResolutionOption
	StaffID      string
	ShiftIDs     []string
	Actor        string
	ResolvedAt   time.Time
}
