// Package payroll turns published shifts into per-staff pay line items.
package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"shift-scheduler/internal/domain"
)

const moneyPlaces = 2

var hourNanos = decimal.NewFromInt(int64(time.Hour))

type Calculator struct {
	Rules domain.Rules
}

func NewCalculator(rules domain.Rules) *Calculator {
	return &Calculator{Rules: rules}
}

// Hours converts a duration into fractional hours without rounding.
func Hours(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(d.Nanoseconds()).Div(hourNanos)
}

// Payable keeps one member's published, non-break shifts that start inside
// the period, in chronological order.
func Payable(staffID string, shifts []domain.Shift, period domain.Period) []domain.Shift {
	out := make([]domain.Shift, 0, len(shifts))
	for _, s := range shifts {
		if s.StaffID != staffID || s.Status != domain.StatusPublished || s.Type == domain.ShiftBreak {
			continue
		}
		if !period.Contains(s.Start) {
			continue
		}
		out = append(out, s)
	}
	domain.SortByStart(out)
	return out
}

// Compute builds the line item for one staff member. Draft and cancelled
// shifts are ignored; malformed shifts fail the whole computation. Regular
// hours over the threshold within one Monday-based week are paid as
// overtime; a week cut by the period start only counts its in-period shifts.
func (c *Calculator) Compute(member domain.StaffMember, shifts []domain.Shift, period domain.Period) (domain.PayrollLineItem, error) {
	if err := period.Validate(); err != nil {
		return domain.PayrollLineItem{}, err
	}
	if err := domain.ValidateAll(shifts); err != nil {
		return domain.PayrollLineItem{}, err
	}
	if member.HourlyRate.IsNegative() {
		return domain.PayrollLineItem{}, fmt.Errorf("payroll: negative hourly rate for %s", member.ID)
	}

	threshold := Hours(c.Rules.OvertimeThreshold)
	var regular, overtime, holiday, gross decimal.Decimal
	// The overtime threshold is weekly; weekRegular restarts every Monday.
	var week time.Time
	var weekRegular decimal.Decimal

	for _, s := range Payable(member.ID, shifts, period) {
		if from := domain.WeekOf(s.Start).From; !from.Equal(week) {
			week, weekRegular = from, decimal.Zero
		}
		hours := Hours(s.Duration())
		rate := member.HourlyRate
		if s.HourlyRate != nil {
			rate = *s.HourlyRate
		}

		switch s.Type {
		case domain.ShiftHoliday:
			holiday = holiday.Add(hours)
			gross = gross.Add(hours.Mul(rate).Mul(c.Rules.HolidayMultiplier))
		case domain.ShiftOvertime:
			overtime = overtime.Add(hours)
			gross = gross.Add(hours.Mul(rate).Mul(c.Rules.OvertimeMultiplier))
		default:
			room := decimal.Max(threshold.Sub(weekRegular), decimal.Zero)
			reg := decimal.Min(hours, room)
			extra := hours.Sub(reg)
			weekRegular = weekRegular.Add(reg)
			regular = regular.Add(reg)
			overtime = overtime.Add(extra)
			gross = gross.Add(reg.Mul(rate)).Add(extra.Mul(rate).Mul(c.Rules.OvertimeMultiplier))
		}
	}

	federal := gross.Mul(c.Rules.FederalTaxRate)
	state := gross.Mul(c.Rules.StateTaxRate)
	social := gross.Mul(c.Rules.SocialSecurityRate)
	medicare := gross.Mul(c.Rules.MedicareRate)
	deductions := federal.Add(state).Add(social).Add(medicare)

	benefits := decimal.Zero
	if regular.GreaterThanOrEqual(c.Rules.BenefitsMinRegularHours) {
		benefits = c.Rules.BenefitsContribution
	}

	return domain.PayrollLineItem{
		StaffID:   member.ID,
		StaffName: member.Name,
		Period:    period,

		RegularHours:  regular,
		OvertimeHours: overtime,
		HolidayHours:  holiday,
		TotalHours:    regular.Add(overtime).Add(holiday),

		HourlyRate: member.HourlyRate.Round(moneyPlaces),
		GrossPay:   gross.Round(moneyPlaces),

		FederalTax:      federal.Round(moneyPlaces),
		StateTax:        state.Round(moneyPlaces),
		SocialSecurity:  social.Round(moneyPlaces),
		Medicare:        medicare.Round(moneyPlaces),
		TotalDeductions: deductions.Round(moneyPlaces),

		BenefitsContribution: benefits.Round(moneyPlaces),
		NetPay:               gross.Sub(deductions).Round(moneyPlaces),
	}, nil
}

// ComputeAll produces one line item per staff member, in roster order.
func (c *Calculator) ComputeAll(shifts []domain.Shift, staff []domain.StaffMember, period domain.Period) ([]domain.PayrollLineItem, error) {
	roster := domain.NewRoster(staff, nil)
	items := make([]domain.PayrollLineItem, 0, len(staff))
	for _, m := range roster.Members() {
		item, err := c.Compute(m, shifts, period)
		if err != nil {
			return nil, fmt.Errorf("payroll for %s: %w", m.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}
