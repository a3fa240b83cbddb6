package keyboards

import (
	"fmt"

	"gopkg.in/telebot.v3"

	"shift-scheduler/internal/domain"
)

var optionLabels = map[domain.ResolutionOption]string{
	domain.ResolveCancelFirst:       "Отменить первую смену",
	domain.ResolveCancelSecond:      "Отменить вторую смену",
	domain.ResolveReassignFirst:     "Передать первую смену",
	domain.ResolveReassignSecond:    "Передать вторую смену",
	domain.ResolveAdjustTimes:       "Сдвинуть время",
	domain.ResolveReduceHours:       "Сократить часы",
	domain.ResolveReassign:          "Передать другому",
	domain.ResolveApproveOvertime:   "Одобрить переработку",
	domain.ResolveSplitAcrossStaff:  "Разделить между сотрудниками",
	domain.ResolveReassignAvailable: "Передать свободному",
	domain.ResolveCancelShift:       "Отменить смену",
	domain.ResolveRequestOverride:   "Запросить исключение",
	domain.ResolveInsertBreak:       "Вставить перерыв",
	domain.ResolveShortenShift:      "Укоротить смену",
	domain.ResolveSplitWithBreak:    "Разбить перерывом",
	domain.ResolveAdjustStart:       "Сдвинуть начало",
	domain.ResolveAdjustPreviousEnd: "Сдвинуть конец предыдущей",
	domain.ResolveReassignRested:    "Передать отдохнувшему",
	domain.ResolveReassignQualified: "Передать квалифицированному",
	domain.ResolveScheduleTraining:  "Назначить обучение",
	domain.ResolvePairWithSenior:    "Поставить со старшим",
}

var typeLabels = map[domain.ConflictType]string{
	domain.ConflictDoubleBooking:     "Двойная смена",
	domain.ConflictOvertimeViolation: "Переработка",
	domain.ConflictUnavailableStaff:  "Вне доступности",
	domain.ConflictMissingBreak:      "Нет перерыва",
	domain.ConflictInsufficientRest:  "Мало отдыха",
	domain.ConflictSkillMismatch:     "Нет квалификации",
}

var severityMarks = map[domain.Severity]string{
	domain.SeverityHigh:   "🔴",
	domain.SeverityMedium: "🟠",
	domain.SeverityLow:    "🟡",
}

func OptionLabel(o domain.ResolutionOption) string {
	if l, ok := optionLabels[o]; ok {
		return l
	}
	return o.Label()
}

func TypeLabel(t domain.ConflictType) string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}

// ConflictLine is the one-line summary used for list buttons.
func ConflictLine(c domain.Conflict, roster domain.Roster) string {
	return fmt.Sprintf("%s %s: %s %s", severityMarks[c.Severity], TypeLabel(c.Type),
		roster.StaffName(c.StaffID), c.Start.Format("02.01 15:04"))
}

// BuildConflictList shows one button per conflict plus the bulk actions.
func BuildConflictList(conflicts []domain.Conflict, roster domain.Roster) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	rows := make([]telebot.Row, 0, len(conflicts)+1)
	for _, c := range conflicts {
		rows = append(rows, markup.Row(markup.Data(ConflictLine(c, roster), "cf_sel", c.ID)))
	}
	rows = append(rows, markup.Row(markup.Data("Игнорировать все", "cf_ignore")))
	markup.Inline(rows...)
	return markup
}

// BuildOptions shows the resolution menu for the selected conflict.
func BuildOptions(c domain.Conflict) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	for _, o := range domain.ResolutionOptions(c.Type) {
		rows = append(rows, markup.Row(markup.Data(OptionLabel(o), "cf_opt", string(o))))
	}
	rows = append(rows, markup.Row(
		markup.Data("← К списку", "cf_skip"),
		markup.Data("Игнорировать все", "cf_ignore"),
	))
	markup.Inline(rows...)
	return markup
}
