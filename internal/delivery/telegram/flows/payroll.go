package flows

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/telebot.v3"

	"shift-scheduler/internal/app/service"
	"shift-scheduler/internal/delivery/telegram/keyboards"
	"shift-scheduler/internal/delivery/telegram/middleware"
	"shift-scheduler/internal/delivery/telegram/router"
	"shift-scheduler/internal/domain"
)

// RegisterPayroll wires the month picker to the payroll report. Managers get
// the whole roster, everyone else only their own line.
func RegisterPayroll(r *router.CallbackRouter, payroll *service.PayrollService, staff *service.StaffService,
	async *service.AsyncService, managers map[int64]bool, loc *time.Location) {
	showYear := func(c telebot.Context, y int) error {
		title, markup := keyboards.BuildMonthKeyboard(y)
		return middleware.EditOrSend(c, title, markup)
	}

	r.Register("payroll_month", func(c telebot.Context, _ string) error {
		return showYear(c, time.Now().In(loc).Year())
	})
	r.Register("month_prev", func(c telebot.Context, payload string) error {
		y, _ := strconv.Atoi(payload)
		return showYear(c, y-1)
	})
	r.Register("month_next", func(c telebot.Context, payload string) error {
		y, _ := strconv.Atoi(payload)
		return showYear(c, y+1)
	})

	r.Register("pick_month", func(c telebot.Context, payload string) error {
		var y, m int
		if _, err := fmt.Sscanf(payload, "%d-%d", &y, &m); err != nil || m < 1 || m > 12 {
			return nil
		}
		period := domain.MonthOf(time.Date(y, time.Month(m), 1, 0, 0, 0, 0, loc))
		ctx := context.Background()

		items, err := service.Await(ctx, async, func() ([]domain.PayrollLineItem, error) {
			if managers[c.Chat().ID] {
				return payroll.ComputePayroll(ctx, period)
			}
			me, err := staff.GetStaffByChatID(ctx, c.Chat().ID)
			if err != nil {
				return nil, err
			}
			item, err := payroll.ComputeFor(ctx, me.ID, period)
			return []domain.PayrollLineItem{item}, err
		})
		if err != nil {
			return middleware.EditOrSend(c, "Ошибка при расчёте зарплаты: "+DescribeError(err), nil)
		}
		return middleware.EditOrSend(c, RenderPayroll(period, items), nil)
	})
}

// RenderPayroll formats line items for a chat message.
func RenderPayroll(p domain.Period, items []domain.PayrollLineItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Зарплата за %s\n", p.From.Format("01.2006"))
	if len(items) == 0 {
		b.WriteString("\nОпубликованных смен нет.")
		return b.String()
	}
	for _, it := range items {
		name := it.StaffName
		if name == "" {
			name = it.StaffID
		}
		fmt.Fprintf(&b, "\n%s\n", name)
		fmt.Fprintf(&b, "  часы: %s (обычные %s, сверхурочные %s, праздничные %s)\n",
			it.TotalHours.StringFixed(2), it.RegularHours.StringFixed(2), it.OvertimeHours.StringFixed(2), it.HolidayHours.StringFixed(2))
		fmt.Fprintf(&b, "  начислено: %s, удержано: %s\n", it.GrossPay.StringFixed(2), it.TotalDeductions.StringFixed(2))
		fmt.Fprintf(&b, "  к выплате: %s", it.NetPay.StringFixed(2))
		if it.BenefitsContribution.IsPositive() {
			fmt.Fprintf(&b, " (+ взнос на льготы %s)", it.BenefitsContribution.StringFixed(2))
		}
		b.WriteString("\n")
	}
	return b.String()
}
