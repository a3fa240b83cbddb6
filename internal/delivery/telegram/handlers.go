package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gopkg.in/telebot.v3"

	"shift-scheduler/internal/app/service"
	"shift-scheduler/internal/delivery/telegram/flows"
	"shift-scheduler/internal/delivery/telegram/keyboards"
	"shift-scheduler/internal/delivery/telegram/middleware"
	"shift-scheduler/internal/delivery/telegram/router"
	"shift-scheduler/internal/domain"
	"shift-scheduler/pkg/calendar"
)

type Handler struct {
	Bot        *telebot.Bot
	Staff      *service.StaffService
	Shifts     *service.ShiftService
	Scheduling *service.SchedulingService
	Payroll    *service.PayrollService
	Async      *service.AsyncService
	Calendar   *calendar.CalendarController
	// Managers may edit the schedule and approve overtime. When empty every
	// chat gets the manager menu but nobody holds elevated rights.
	Managers map[int64]bool
	Location *time.Location

	input     *flows.Input
	conflicts *flows.ConflictFlow
	shifts    *flows.ShiftFlow
}

var (
	btnAddShift  = telebot.Btn{Text: "📅 Добавить смену"}
	btnWeek      = telebot.Btn{Text: "🗓 Расписание недели"}
	btnConflicts = telebot.Btn{Text: "⚠️ Конфликты"}
	btnPublish   = telebot.Btn{Text: "📣 Опубликовать неделю"}
	btnPayroll   = telebot.Btn{Text: "💰 Зарплата"}
	btnMyShifts  = telebot.Btn{Text: "🕒 Мои смены"}
)

func (h *Handler) Register() {
	if h.Location == nil {
		h.Location = time.Local
	}
	r := router.New()
	r.RegisterPrefix("cal_", h.Calendar.Handle)

	h.input = flows.NewInput()
	h.conflicts = &flows.ConflictFlow{
		Bot:        h.Bot,
		Scheduling: h.Scheduling,
		Staff:      h.Staff,
		Async:      h.Async,
		Managers:   h.Managers,
	}
	h.shifts = &flows.ShiftFlow{
		Shifts:     h.Shifts,
		Staff:      h.Staff,
		Scheduling: h.Scheduling,
		Async:      h.Async,
		Calendar:   h.Calendar,
		Input:      h.input,
		Conflicts:  h.conflicts,
		Location:   h.Location,
	}
	flows.RegisterConflicts(r, h.conflicts)
	flows.RegisterShifts(r, h.shifts)
	flows.RegisterPayroll(r, h.Payroll, h.Staff, h.Async, h.Managers, h.Location)

	h.Bot.Use(middleware.Logger())
	r.Attach(h.Bot)

	h.Bot.Handle("/start", h.handleStart)
	h.Bot.Handle("/payroll", h.handlePayroll)
	h.Bot.Handle("/myshifts", h.handleMyShifts)

	mgr := h.Bot.Group()
	mgr.Use(middleware.ManagersOnly(h.Managers))
	mgr.Handle("/staff", h.handleStaff)
	mgr.Handle("/addshift", h.shifts.StartAdd)
	mgr.Handle("/week", h.handleWeek)
	mgr.Handle("/conflicts", h.handleConflicts)
	mgr.Handle("/publish", h.handlePublish)

	// Единый обработчик текстовых сообщений
	h.Bot.Handle(telebot.OnText, func(c telebot.Context) error {
		if handled, err := h.input.Handle(c); handled {
			return err
		}
		switch c.Text() {
		case btnPayroll.Text:
			return h.handlePayroll(c)
		case btnMyShifts.Text:
			return h.handleMyShifts(c)
		}
		if !h.isManager(c.Chat().ID) {
			return nil
		}
		switch c.Text() {
		case btnAddShift.Text:
			return h.shifts.StartAdd(c)
		case btnWeek.Text:
			return h.handleWeek(c)
		case btnConflicts.Text:
			return h.handleConflicts(c)
		case btnPublish.Text:
			return h.handlePublish(c)
		}
		return nil
	})
}

func (h *Handler) isManager(chatID int64) bool {
	return len(h.Managers) == 0 || h.Managers[chatID]
}

func (h *Handler) now() time.Time {
	return time.Now().In(h.Location)
}

func (h *Handler) handleStart(c telebot.Context) error {
	ctx := context.Background()
	chatID := c.Chat().ID
	if _, err := h.Staff.GetStaffByChatID(ctx, chatID); errors.Is(err, domain.ErrNotFound) {
		// Новый чат: регистрируем сотрудника
		member, err := h.Staff.SaveStaff(ctx, staffFromContext(c))
		if err != nil {
			log.Printf("[start] register chat=%d: %v", chatID, err)
		} else {
			log.Printf("[start] registered %s for chat=%d", member.ID, chatID)
		}
	}

	markup := &telebot.ReplyMarkup{ResizeKeyboard: true}
	if h.isManager(chatID) {
		markup.Reply(
			markup.Row(markup.Text(btnAddShift.Text), markup.Text(btnWeek.Text)),
			markup.Row(markup.Text(btnConflicts.Text), markup.Text(btnPublish.Text)),
			markup.Row(markup.Text(btnPayroll.Text)),
		)
	} else {
		markup.Reply(markup.Row(markup.Text(btnMyShifts.Text), markup.Text(btnPayroll.Text)))
	}
	return c.Send("Добро пожаловать!", markup)
}

// staffFromContext создает StaffMember из данных Telegram
func staffFromContext(c telebot.Context) domain.StaffMember {
	name := c.Chat().FirstName
	if u := c.Sender(); u != nil {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	if name == "" {
		name = fmt.Sprintf("chat %d", c.Chat().ID)
	}
	return domain.StaffMember{Name: name, ChatID: c.Chat().ID, Active: true}
}

func (h *Handler) handleStaff(c telebot.Context) error {
	staff, err := h.Staff.ListStaff(context.Background())
	if err != nil {
		return c.Send("Ошибка при получении сотрудников: " + flows.DescribeError(err))
	}
	if len(staff) == 0 {
		return c.Send("Сотрудники не найдены.")
	}
	var b strings.Builder
	b.WriteString("Список сотрудников:\n")
	for _, m := range staff {
		fmt.Fprintf(&b, "%s, ставка %s", m.Name, m.HourlyRate.StringFixed(2))
		if len(m.Skills) > 0 {
			fmt.Fprintf(&b, ", навыки: %s", strings.Join(m.Skills, ", "))
		}
		if m.Senior {
			b.WriteString(", старший")
		}
		if !m.Active {
			b.WriteString(" (неактивен)")
		}
		b.WriteString("\n")
	}
	return c.Send(b.String())
}

func (h *Handler) handleWeek(c telebot.Context) error {
	return h.shifts.ShowWeek(c, h.now())
}

func (h *Handler) handleConflicts(c telebot.Context) error {
	week := domain.WeekOf(h.now())
	if err := h.conflicts.Open(context.Background(), c.Chat(), actorOf(c), week); err != nil {
		return c.Send("Ошибка при поиске конфликтов: " + flows.DescribeError(err))
	}
	return nil
}

func (h *Handler) handlePublish(c telebot.Context) error {
	return h.shifts.Publish(c, h.now())
}

func (h *Handler) handlePayroll(c telebot.Context) error {
	title, markup := keyboards.BuildMonthKeyboard(h.now().Year())
	return c.Send(title, markup)
}

func (h *Handler) handleMyShifts(c telebot.Context) error {
	ctx := context.Background()
	me, err := h.Staff.GetStaffByChatID(ctx, c.Chat().ID)
	if err != nil {
		return c.Send("Вы не зарегистрированы. Нажмите /start.")
	}
	week := domain.WeekOf(h.now())
	shifts, err := service.Await(ctx, h.Async, func() ([]domain.Shift, error) {
		return h.Shifts.ShiftsOf(ctx, me.ID, week)
	})
	if err != nil {
		return c.Send("Ошибка при получении смен: " + flows.DescribeError(err))
	}
	roster := domain.NewRoster([]domain.StaffMember{me}, nil)
	var b strings.Builder
	b.WriteString("Ваши смены на неделю:\n")
	n := 0
	for _, s := range shifts {
		if s.Status != domain.StatusPublished {
			continue
		}
		n++
		b.WriteString(flows.ShiftLine(s, roster) + "\n")
	}
	if n == 0 {
		return c.Send("На этой неделе опубликованных смен нет.")
	}
	return c.Send(b.String())
}

func actorOf(c telebot.Context) string {
	if u := c.Sender(); u != nil && u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("chat:%d", c.Chat().ID)
}
