package model

import (
	"github.com/shopspring/decimal"

	"shift-scheduler/internal/domain"
)

type PayrollLineItem struct {
	StaffID     string `json:"staff_id"`
	StaffName   string `json:"staff_name"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`

	RegularHours  decimal.Decimal `json:"regular_hours"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
	HolidayHours  decimal.Decimal `json:"holiday_hours"`
	TotalHours    decimal.Decimal `json:"total_hours"`

	HourlyRate decimal.Decimal `json:"hourly_rate"`
	GrossPay   decimal.Decimal `json:"gross_pay"`

	FederalTax      decimal.Decimal `json:"federal_tax"`
	StateTax        decimal.Decimal `json:"state_tax"`
	SocialSecurity  decimal.Decimal `json:"social_security"`
	Medicare        decimal.Decimal `json:"medicare"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`

	BenefitsContribution decimal.Decimal `json:"benefits_contribution"`
	NetPay               decimal.Decimal `json:"net_pay"`
}

// FromPayroll renders the period as inclusive dates.
func FromPayroll(item domain.PayrollLineItem) PayrollLineItem {
	return PayrollLineItem{
		StaffID:              item.StaffID,
		StaffName:            item.StaffName,
		PeriodStart:          item.Period.From.Format(DateLayout),
		PeriodEnd:            item.Period.To.AddDate(0, 0, -1).Format(DateLayout),
		RegularHours:         item.RegularHours,
		OvertimeHours:        item.OvertimeHours,
		HolidayHours:         item.HolidayHours,
		TotalHours:           item.TotalHours,
		HourlyRate:           item.HourlyRate,
		GrossPay:             item.GrossPay,
		FederalTax:           item.FederalTax,
		StateTax:             item.StateTax,
		SocialSecurity:       item.SocialSecurity,
		Medicare:             item.Medicare,
		TotalDeductions:      item.TotalDeductions,
		BenefitsContribution: item.BenefitsContribution,
		NetPay:               item.NetPay,
	}
}

func (m PayrollLineItem) Domain(p domain.Period) domain.PayrollLineItem {
	return domain.PayrollLineItem{
		StaffID:              m.StaffID,
		StaffName:            m.StaffName,
		Period:               p,
		RegularHours:         m.RegularHours,
		OvertimeHours:        m.OvertimeHours,
		HolidayHours:         m.HolidayHours,
		TotalHours:           m.TotalHours,
		HourlyRate:           m.HourlyRate,
		GrossPay:             m.GrossPay,
		FederalTax:           m.FederalTax,
		StateTax:             m.StateTax,
		SocialSecurity:       m.SocialSecurity,
		Medicare:             m.Medicare,
		TotalDeductions:      m.TotalDeductions,
		BenefitsContribution: m.BenefitsContribution,
		NetPay:               m.NetPay,
	}
}
