package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Rules holds the jurisdiction-dependent thresholds used by detection,
// resolution and payroll.
type Rules struct {
	OvertimeThreshold time.Duration
	BreakThreshold    time.Duration
	MinRest           time.Duration
	SplitShiftGap     time.Duration
	BreakLength       time.Duration
	TrainingLength    time.Duration

	OvertimeMultiplier decimal.Decimal
	HolidayMultiplier  decimal.Decimal

	FederalTaxRate     decimal.Decimal
	StateTaxRate       decimal.Decimal
	SocialSecurityRate decimal.Decimal
	MedicareRate       decimal.Decimal

	BenefitsContribution    decimal.Decimal
	BenefitsMinRegularHours decimal.Decimal

	MaxRetries int
}

func DefaultRules() Rules {
	return Rules{
		OvertimeThreshold: 40 * time.Hour,
		BreakThreshold:    6 * time.Hour,
		MinRest:           8 * time.Hour,
		SplitShiftGap:     0,
		BreakLength:       30 * time.Minute,
		TrainingLength:    2 * time.Hour,

		OvertimeMultiplier: decimal.RequireFromString("1.5"),
		HolidayMultiplier:  decimal.RequireFromString("2.0"),

		FederalTaxRate:     decimal.RequireFromString("0.15"),
		StateTaxRate:       decimal.RequireFromString("0.05"),
		SocialSecurityRate: decimal.RequireFromString("0.062"),
		MedicareRate:       decimal.RequireFromString("0.0145"),

		BenefitsContribution:    decimal.NewFromInt(200),
		BenefitsMinRegularHours: decimal.NewFromInt(30),

		MaxRetries: 3,
	}
}

func (r Rules) Validate() error {
	for name, d := range map[string]time.Duration{
		"overtime threshold": r.OvertimeThreshold,
		"break threshold":    r.BreakThreshold,
		"break length":       r.BreakLength,
		"training length":    r.TrainingLength,
	} {
		if d <= 0 {
			return fmt.Errorf("rules: %s must be positive", name)
		}
	}
	if r.MinRest < 0 || r.SplitShiftGap < 0 {
		return fmt.Errorf("rules: rest durations must not be negative")
	}
	if r.SplitShiftGap >= r.MinRest && r.MinRest > 0 {
		return fmt.Errorf("rules: split shift gap %s must be below minimum rest %s", r.SplitShiftGap, r.MinRest)
	}
	if r.MaxRetries < 0 {
		return fmt.Errorf("rules: max retries must not be negative")
	}
	for _, d := range []decimal.Decimal{r.OvertimeMultiplier, r.HolidayMultiplier, r.FederalTaxRate,
		r.StateTaxRate, r.SocialSecurityRate, r.MedicareRate, r.BenefitsContribution, r.BenefitsMinRegularHours} {
		if d.IsNegative() {
			return fmt.Errorf("rules: rates and amounts must not be negative")
		}
	}
	return nil
}
