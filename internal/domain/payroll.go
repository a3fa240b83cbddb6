package domain

import "github.com/shopspring/decimal"

// PayrollLineItem is one staff member's pay for a period. Hours keep full
// precision; money fields are rounded to cents when the item is built.
type PayrollLineItem struct {
	StaffID   string
	StaffName string
	Period    Period

	RegularHours  decimal.Decimal
	OvertimeHours decimal.Decimal
	HolidayHours  decimal.Decimal
	TotalHours    decimal.Decimal

	HourlyRate decimal.Decimal
	GrossPay   decimal.Decimal

	FederalTax      decimal.Decimal
	StateTax        decimal.Decimal
	SocialSecurity  decimal.Decimal
	Medicare        decimal.Decimal
	TotalDeductions decimal.Decimal

	// BenefitsContribution is reported alongside net pay and does not
	// change it.
	BenefitsContribution decimal.Decimal
	NetPay               decimal.Decimal
}
