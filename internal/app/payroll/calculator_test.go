package payroll

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"shift-scheduler/internal/domain"
)

var (
	month = domain.MonthOf(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	// first Monday of the month
	monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func shift(id string, day int, hours float64, typ domain.ShiftType) domain.Shift {
	start := monday.AddDate(0, 0, day).Add(8 * time.Hour)
	return domain.Shift{
		ID:      id,
		StaffID: "alice",
		Start:   start,
		End:     start.Add(time.Duration(hours * float64(time.Hour))),
		Type:    typ,
		Status:  domain.StatusPublished,
	}
}

func member(rate string) domain.StaffMember {
	return domain.StaffMember{ID: "alice", Name: "Alice", HourlyRate: d(rate), Active: true}
}

func TestComputeDeductions(t *testing.T) {
	calc := NewCalculator(domain.DefaultRules())
	var shifts []domain.Shift
	for i := 0; i < 5; i++ {
		shifts = append(shifts, shift(string(rune('a'+i)), i, 8, domain.ShiftRegular))
	}
	item, err := calc.Compute(member("25"), shifts, month)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"gross", item.GrossPay, "1000"},
		{"federal", item.FederalTax, "150"},
		{"state", item.StateTax, "50"},
		{"social security", item.SocialSecurity, "62"},
		{"medicare", item.Medicare, "14.50"},
		{"deductions", item.TotalDeductions, "276.50"},
		{"net", item.NetPay, "723.50"},
		{"benefits", item.BenefitsContribution, "200"},
		{"regular hours", item.RegularHours, "40"},
	}
	for _, c := range checks {
		if !c.got.Equal(d(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
}

func TestShiftCrossingThresholdIsSplit(t *testing.T) {
	calc := NewCalculator(domain.DefaultRules())
	base := []domain.Shift{
		shift("a", 0, 8, domain.ShiftRegular),
		shift("b", 1, 10, domain.ShiftRegular),
		shift("c", 2, 10, domain.ShiftRegular),
		shift("d", 3, 10, domain.ShiftRegular),
	}
	before, err := calc.Compute(member("20"), base, month)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	after, err := calc.Compute(member("20"), append(base, shift("e", 4, 4, domain.ShiftRegular)), month)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !before.RegularHours.Equal(d("38")) {
		t.Fatalf("regular before = %s", before.RegularHours)
	}
	if diff := after.GrossPay.Sub(before.GrossPay); !diff.Equal(d("100")) {
		t.Fatalf("4h shift across the threshold added %s, want 100 (2h at 20 + 2h at 30)", diff)
	}
	if !after.RegularHours.Equal(d("40")) || !after.OvertimeHours.Equal(d("2")) {
		t.Fatalf("split wrong: regular %s overtime %s", after.RegularHours, after.OvertimeHours)
	}
}

func TestBenefitsThreshold(t *testing.T) {
	calc := NewCalculator(domain.DefaultRules())
	cases := []struct {
		hours float64
		want  string
	}{
		{29.9, "0"},
		{30, "200"},
	}
	for _, tc := range cases {
		s := shift("a", 0, tc.hours, domain.ShiftRegular)
		item, err := calc.Compute(member("10"), []domain.Shift{s}, month)
		if err != nil {
			t.Fatalf("Compute: %v", err)
		}
		if !item.BenefitsContribution.Equal(d(tc.want)) {
			t.Errorf("%.1fh: benefits %s, want %s", tc.hours, item.BenefitsContribution, tc.want)
		}
		if !item.NetPay.Equal(item.GrossPay.Sub(item.TotalDeductions)) {
			t.Errorf("%.1fh: net pay must not include benefits", tc.hours)
		}
	}
}

func TestHoursAreConserved(t *testing.T) {
	calc := NewCalculator(domain.DefaultRules())
	shifts := []domain.Shift{
		shift("a", 0, 12, domain.ShiftRegular),
		shift("b", 1, 12, domain.ShiftRegular),
		shift("c", 2, 12, domain.ShiftRegular),
		shift("d", 3, 7.25, domain.ShiftRegular),
		shift("e", 4, 3, domain.ShiftOvertime),
		shift("f", 5, 6, domain.ShiftHoliday),
		shift("g", 6, 2, domain.ShiftTraining),
		shift("h", 7, 0.5, domain.ShiftBreak),
	}
	draft := shift("i", 8, 5, domain.ShiftRegular)
	draft.Status = domain.StatusDraft
	outside := shift("j", 40, 5, domain.ShiftRegular)
	shifts = append(shifts, draft, outside)

	item, err := calc.Compute(member("18.75"), shifts, month)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// Paid: 12+12+12+7.25+3+6+2 = 54.25; the break, the draft and the
	// shift outside the month are not.
	if !item.TotalHours.Equal(d("54.25")) {
		t.Fatalf("total hours %s, want 54.25", item.TotalHours)
	}
	if sum := item.RegularHours.Add(item.OvertimeHours).Add(item.HolidayHours); !sum.Equal(item.TotalHours) {
		t.Fatalf("regular+overtime+holiday = %s, total %s", sum, item.TotalHours)
	}
	if !item.RegularHours.Equal(d("40")) || !item.OvertimeHours.Equal(d("8.25")) || !item.HolidayHours.Equal(d("6")) {
		t.Fatalf("split %s/%s/%s", item.RegularHours, item.OvertimeHours, item.HolidayHours)
	}
}

func TestShiftRateOverridesMember(t *testing.T) {
	calc := NewCalculator(domain.DefaultRules())
	rate := d("30")
	s := shift("a", 0, 2, domain.ShiftHoliday)
	s.HourlyRate = &rate
	item, err := calc.Compute(member("10"), []domain.Shift{s}, month)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !item.GrossPay.Equal(d("120")) {
		t.Fatalf("gross %s, want 2h x 30 x 2.0", item.GrossPay)
	}
}

func TestComputeRejectsMalformedShift(t *testing.T) {
	calc := NewCalculator(domain.DefaultRules())
	bad := shift("a", 0, 8, domain.ShiftRegular)
	bad.End = bad.Start
	if _, err := calc.Compute(member("10"), []domain.Shift{bad}, month); !domain.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestComputeAllFollowsRosterOrder(t *testing.T) {
	calc := NewCalculator(domain.DefaultRules())
	staff := []domain.StaffMember{
		{ID: "z", Name: "Zoe", HourlyRate: d("10")},
		{ID: "alice", Name: "Alice", HourlyRate: d("10")},
	}
	items, err := calc.ComputeAll([]domain.Shift{shift("a", 0, 4, domain.ShiftRegular)}, staff, month)
	if err != nil {
		t.Fatalf("ComputeAll: %v", err)
	}
	if len(items) != 2 || items[0].StaffID != "alice" || !items[1].GrossPay.IsZero() {
		t.Fatalf("unexpected items %+v", items)
	}
}

func TestOvertimeThresholdIsWeekly(t *testing.T) {
	calc := NewCalculator(domain.DefaultRules())
	var shifts []domain.Shift
	for w := 0; w < 4; w++ {
		for d := 0; d < 5; d++ {
			shifts = append(shifts, shift(fmt.Sprintf("w%dd%d", w, d), w*7+d, 7, domain.ShiftRegular))
		}
	}
	item, err := calc.Compute(member("20"), shifts, month)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !item.RegularHours.Equal(d("140")) || !item.OvertimeHours.IsZero() || !item.GrossPay.Equal(d("2800")) {
		t.Fatalf("35h weeks: regular %s overtime %s gross %s, want 140/0/2800",
			item.RegularHours, item.OvertimeHours, item.GrossPay)
	}

	// 45h in the second week only: 5h over, the other weeks stay regular.
	shifts = append(shifts, shift("extra", 12, 10, domain.ShiftRegular))
	item, err = calc.Compute(member("20"), shifts, month)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !item.RegularHours.Equal(d("145")) || !item.OvertimeHours.Equal(d("5")) {
		t.Fatalf("regular %s overtime %s, want 145/5", item.RegularHours, item.OvertimeHours)
	}
}
