package flows

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gopkg.in/telebot.v3"

	"shift-scheduler/internal/app/service"
	"shift-scheduler/internal/delivery/telegram/middleware"
	"shift-scheduler/internal/delivery/telegram/router"
	"shift-scheduler/internal/domain"
	"shift-scheduler/pkg/calendar"
)

const dayLayout = "2006-01-02"

// ShiftFlow covers editing the schedule from the chat: adding a shift,
// the week view, moving and cancelling shifts and publishing a week.
type ShiftFlow struct {
	Shifts     *service.ShiftService
	Staff      *service.StaffService
	Scheduling *service.SchedulingService
	Async      *service.AsyncService
	Calendar   *calendar.CalendarController
	Input      *Input
	Conflicts  *ConflictFlow
	Location   *time.Location

	mu     sync.Mutex
	moving map[int64]string
}

func RegisterShifts(r *router.CallbackRouter, f *ShiftFlow) {
	r.Register("as_staff", f.pickDate)
	r.Register("week", func(c telebot.Context, payload string) error {
		day, err := time.ParseInLocation(dayLayout, payload, f.Location)
		if err != nil {
			return nil
		}
		return f.ShowWeek(c, day)
	})
	r.Register("sh", f.shiftMenu)
	r.Register("sh_cancel", f.cancel)
	r.Register("sh_move", f.startMove)
	r.Register("sh_to", f.finishMove)
	r.Register("pub_ack", func(c telebot.Context, payload string) error {
		day, err := time.ParseInLocation(dayLayout, payload, f.Location)
		if err != nil {
			return nil
		}
		return f.publish(c, day, true)
	})
	r.Register("cf_open", func(c telebot.Context, payload string) error {
		day, err := time.ParseInLocation(dayLayout, payload, f.Location)
		if err != nil {
			day = time.Now().In(f.Location)
		}
		return f.Conflicts.Open(context.Background(), c.Chat(), actorOf(c), domain.WeekOf(day))
	})
}

// StartAdd asks which staff member the new shift is for.
func (f *ShiftFlow) StartAdd(c telebot.Context) error {
	markup, err := f.staffKeyboard(context.Background(), "as_staff")
	if err != nil {
		return c.Send("Ошибка при получении сотрудников: " + DescribeError(err))
	}
	return middleware.EditOrSend(c, "Для кого смена?", markup)
}

func (f *ShiftFlow) pickDate(c telebot.Context, staffID string) error {
	return f.Calendar.Ask(c, "Дата смены", func(date time.Time, c telebot.Context) error {
		f.Input.Wait(c.Chat().ID, f.timeInput(staffID, date))
		return middleware.EditOrSend(c, "Введите время смены на "+date.Format("02.01.2006")+", например 09:00-17:00", nil)
	})
}

func (f *ShiftFlow) timeInput(staffID string, date time.Time) TextHandler {
	var handle TextHandler
	handle = func(c telebot.Context, text string) error {
		start, end, err := ParseTimeRange(text, date)
		if err != nil {
			f.Input.Wait(c.Chat().ID, handle)
			return c.Send("Некорректное время. Формат: 09:00-17:00")
		}
		ctx := context.Background()
		saved, err := service.Await(ctx, f.Async, func() (domain.Shift, error) {
			return f.Shifts.AddShift(ctx, domain.Shift{StaffID: staffID, Start: start, End: end})
		})
		if err != nil {
			return c.Send("Ошибка при добавлении смены: " + DescribeError(err))
		}
		return f.reportConflicts(c, "Смена добавлена!", saved)
	}
	return handle
}

// reportConflicts tells the manager whether the edit left the staff member
// with conflicts in that week.
func (f *ShiftFlow) reportConflicts(c telebot.Context, done string, s domain.Shift) error {
	ctx := context.Background()
	week := domain.WeekOf(s.Start)
	conflicts, err := service.Await(ctx, f.Async, func() ([]domain.Conflict, error) {
		return f.Scheduling.DetectFor(ctx, week, []string{s.StaffID})
	})
	if err != nil {
		log.Printf("[detect] after edit of %s: %v", s.ID, err)
		return middleware.EditOrSend(c, done, nil)
	}
	if len(conflicts) == 0 {
		return middleware.EditOrSend(c, done, nil)
	}
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(markup.Data("Разобрать", "cf_open", week.From.Format(dayLayout))))
	return middleware.EditOrSend(c, fmt.Sprintf("%s\n⚠️ Конфликтов на этой неделе: %d", done, len(conflicts)), markup)
}

// ShowWeek lists the week containing day, one button per shift.
func (f *ShiftFlow) ShowWeek(c telebot.Context, day time.Time) error {
	ctx := context.Background()
	week := domain.WeekOf(day.In(f.Location))
	type view struct {
		shifts []domain.Shift
		roster domain.Roster
	}
	v, err := service.Await(ctx, f.Async, func() (view, error) {
		shifts, err := f.Shifts.ListShifts(ctx, week)
		if err != nil {
			return view{}, err
		}
		roster, err := f.Staff.Roster(ctx)
		return view{shifts: shifts, roster: roster}, err
	})
	if err != nil {
		return c.Send("Ошибка при получении расписания: " + DescribeError(err))
	}
	text, markup := RenderWeek(week, v.shifts, v.roster)
	return middleware.EditOrSend(c, text, markup)
}

// RenderWeek builds the week view. Cancelled shifts are left out.
func RenderWeek(week domain.Period, shifts []domain.Shift, roster domain.Roster) (string, *telebot.ReplyMarkup) {
	markup := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	count := 0
	for _, s := range shifts {
		if s.IsCancelled() {
			continue
		}
		count++
		rows = append(rows, markup.Row(markup.Data(ShiftLine(s, roster), "sh", s.ID)))
	}
	last := week.To.AddDate(0, 0, -1)
	rows = append(rows, markup.Row(
		markup.Data("← Неделя", "week", week.From.AddDate(0, 0, -7).Format(dayLayout)),
		markup.Data("Неделя →", "week", week.To.Format(dayLayout)),
	))
	markup.Inline(rows...)
	text := fmt.Sprintf("Смены %s–%s: %d", week.From.Format("02.01"), last.Format("02.01"), count)
	return text, markup
}

var ruWeekdays = [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

func ShiftLine(s domain.Shift, roster domain.Roster) string {
	line := fmt.Sprintf("%s %s %s–%s %s", ruWeekdays[s.Start.Weekday()], s.Start.Format("02.01"),
		s.Start.Format("15:04"), s.End.Format("15:04"), roster.StaffName(s.StaffID))
	if s.Type != domain.ShiftRegular {
		line += " [" + string(s.Type) + "]"
	}
	if s.Status == domain.StatusDraft {
		line += " (черновик)"
	}
	return line
}

func (f *ShiftFlow) shiftMenu(c telebot.Context, id string) error {
	ctx := context.Background()
	s, err := service.Await(ctx, f.Async, func() (domain.Shift, error) {
		return f.Shifts.GetShift(ctx, id)
	})
	if err != nil {
		return c.Send(DescribeError(err))
	}
	markup := &telebot.ReplyMarkup{}
	markup.Inline(
		markup.Row(markup.Data("Перенести", "sh_move", id), markup.Data("Отменить", "sh_cancel", id)),
		markup.Row(markup.Data("← Назад", "week", s.Start.In(f.Location).Format(dayLayout))),
	)
	text := ShiftLine(s, domain.Roster{})
	if s.Notes != "" {
		text += "\n" + s.Notes
	}
	return middleware.EditOrSend(c, text, markup)
}

func (f *ShiftFlow) cancel(c telebot.Context, id string) error {
	ctx := context.Background()
	_, err := service.Await(ctx, f.Async, func() (domain.Shift, error) {
		return f.Shifts.CancelShift(ctx, id)
	})
	if err != nil {
		return c.Send("Ошибка при отмене смены: " + DescribeError(err))
	}
	return middleware.EditOrSend(c, "Смена отменена.", nil)
}

func (f *ShiftFlow) startMove(c telebot.Context, id string) error {
	f.mu.Lock()
	if f.moving == nil {
		f.moving = make(map[int64]string)
	}
	f.moving[c.Chat().ID] = id
	f.mu.Unlock()

	markup, err := f.staffKeyboard(context.Background(), "sh_to")
	if err != nil {
		return c.Send("Ошибка при получении сотрудников: " + DescribeError(err))
	}
	return middleware.EditOrSend(c, "Кому передать смену?", markup)
}

func (f *ShiftFlow) finishMove(c telebot.Context, staffID string) error {
	f.mu.Lock()
	id, ok := f.moving[c.Chat().ID]
	f.mu.Unlock()
	if !ok {
		return c.Send("Выберите смену заново.")
	}
	return f.Calendar.Ask(c, "Новая дата", func(date time.Time, c telebot.Context) error {
		f.mu.Lock()
		delete(f.moving, c.Chat().ID)
		f.mu.Unlock()

		ctx := context.Background()
		moved, err := service.Await(ctx, f.Async, func() (domain.Shift, error) {
			return f.Shifts.MoveShift(ctx, id, staffID, date)
		})
		if err != nil {
			return c.Send("Ошибка при переносе смены: " + DescribeError(err))
		}
		return f.reportConflicts(c, "Смена перенесена на "+moved.Start.Format("02.01.2006 15:04"), moved)
	})
}

// Publish publishes the week containing day, asking for confirmation when
// conflicts are outstanding.
func (f *ShiftFlow) Publish(c telebot.Context, day time.Time) error {
	return f.publish(c, day, false)
}

func (f *ShiftFlow) publish(c telebot.Context, day time.Time, ack bool) error {
	ctx := context.Background()
	week := domain.WeekOf(day.In(f.Location))
	n, err := service.Await(ctx, f.Async, func() (int, error) {
		return f.Shifts.PublishSchedule(ctx, week, ack)
	})
	var warn *domain.UnresolvedConflictWarning
	if errors.As(err, &warn) {
		from := week.From.Format(dayLayout)
		markup := &telebot.ReplyMarkup{}
		markup.Inline(
			markup.Row(markup.Data("Опубликовать всё равно", "pub_ack", from)),
			markup.Row(markup.Data("Разобрать конфликты", "cf_open", from)),
		)
		return middleware.EditOrSend(c, DescribeError(warn), markup)
	}
	if err != nil {
		return c.Send("Ошибка при публикации: " + DescribeError(err))
	}
	return middleware.EditOrSend(c, fmt.Sprintf("Опубликовано смен: %d", n), nil)
}

func (f *ShiftFlow) staffKeyboard(ctx context.Context, unique string) (*telebot.ReplyMarkup, error) {
	staff, err := service.Await(ctx, f.Async, func() ([]domain.StaffMember, error) {
		return f.Staff.ListStaff(ctx)
	})
	if err != nil {
		return nil, err
	}
	markup := &telebot.ReplyMarkup{}
	var rows []telebot.Row
	for _, m := range staff {
		if !m.Active {
			continue
		}
		rows = append(rows, markup.Row(markup.Data(m.Name, unique, m.ID)))
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("roster is empty: %w", domain.ErrNotFound)
	}
	markup.Inline(rows...)
	return markup, nil
}

// ParseTimeRange reads "HH:MM-HH:MM" on date. An end at or before the start
// rolls over to the next day.
func ParseTimeRange(text string, date time.Time) (time.Time, time.Time, error) {
	text = strings.NewReplacer("–", "-", "—", "-", " ", "").Replace(text)
	from, to, ok := strings.Cut(text, "-")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("time range %q: missing '-'", text)
	}
	a, err := domain.ParseClock(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	b, err := domain.ParseClock(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, date.Location())
	start := day.Add(time.Duration(a) * time.Minute)
	end := day.Add(time.Duration(b) * time.Minute)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

func actorOf(c telebot.Context) string {
	if u := c.Sender(); u != nil {
		if u.Username != "" {
			return "@" + u.Username
		}
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return "telegram"
}
