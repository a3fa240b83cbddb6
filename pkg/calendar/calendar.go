package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/telebot.v3"
)

// DateHandler receives the day picked by a chat.
type DateHandler func(date time.Time, c telebot.Context) error

// CalendarController реализует обработку inline-календаря. Каждый чат
// ждёт свою дату, поэтому обработчики хранятся по chat id.
type CalendarController struct {
	Location *time.Location
	Now      func() time.Time

	mu      sync.Mutex
	pending map[int64]DateHandler
}

func NewController(loc *time.Location) *CalendarController {
	if loc == nil {
		loc = time.Local
	}
	return &CalendarController{Location: loc, Now: time.Now, pending: make(map[int64]DateHandler)}
}

// Ask shows the current month to the chat and remembers what to do with
// the picked date.
func (cc *CalendarController) Ask(c telebot.Context, title string, onDate DateHandler) error {
	cc.mu.Lock()
	if cc.pending == nil {
		cc.pending = make(map[int64]DateHandler)
	}
	cc.pending[c.Chat().ID] = onDate
	cc.mu.Unlock()

	now := cc.Now().In(cc.Location)
	text, markup := Build(title, now.Year(), now.Month())
	if c.Callback() != nil {
		if err := c.Edit(text, markup); err == nil {
			return nil
		}
	}
	return c.Send(text, markup)
}

// Handle processes cal_* callbacks. Unknown keys are ignored.
func (cc *CalendarController) Handle(c telebot.Context, key, payload string) error {
	switch key {
	case "cal_day":
		date, err := ParseDay(payload, cc.Location)
		if err != nil {
			return c.Send("Ошибка даты")
		}
		cc.mu.Lock()
		onDate := cc.pending[c.Chat().ID]
		delete(cc.pending, c.Chat().ID)
		cc.mu.Unlock()
		if onDate == nil {
			return c.Send("Календарь устарел, начните заново")
		}
		return onDate(date, c)
	case "cal_prev", "cal_next":
		title, year, month, err := ParseMonth(payload)
		if err != nil {
			return c.Send("Ошибка месяца")
		}
		if key == "cal_prev" {
			year, month = shift(year, month, -1)
		} else {
			year, month = shift(year, month, 1)
		}
		text, markup := Build(title, year, month)
		if err := c.Edit(text, markup); err != nil {
			return c.Send(text, markup)
		}
	}
	return nil
}

var ruMonths = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// Build строит календарь за указанный месяц. Weeks start on Monday and
// leading days are padded with blank buttons.
func Build(title string, year int, month time.Month) (string, *telebot.ReplyMarkup) {
	markup := &telebot.ReplyMarkup{}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := daysInMonth(year, month)

	var rows []telebot.Row
	week := telebot.Row{}
	for i := 0; i < (int(first.Weekday())+6)%7; i++ {
		week = append(week, markup.Data(" ", "cal_noop"))
	}
	for d := 1; d <= days; d++ {
		payload := fmt.Sprintf("%d-%d-%d", d, int(month), year)
		week = append(week, markup.Data(strconv.Itoa(d), "cal_day", payload))
		if len(week) == 7 {
			rows = append(rows, week)
			week = telebot.Row{}
		}
	}
	if len(week) > 0 {
		rows = append(rows, week)
	}
	nav := fmt.Sprintf("%d-%d", int(month), year)
	rows = append(rows, telebot.Row{
		markup.Data("<", "cal_prev", nav, title),
		markup.Data(">", "cal_next", nav, title),
	})
	markup.Inline(rows...)
	return title + ": " + ruMonths[month-1] + " " + strconv.Itoa(year), markup
}

// ParseDay decodes a cal_day payload "d-m-yyyy".
func ParseDay(payload string, loc *time.Location) (time.Time, error) {
	parts := SplitDateData(payload)
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("calendar: bad day %q", payload)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("calendar: bad day %q", payload)
		}
		n[i] = v
	}
	if n[1] < 1 || n[1] > 12 || n[0] < 1 || n[0] > daysInMonth(n[2], time.Month(n[1])) {
		return time.Time{}, fmt.Errorf("calendar: day out of range %q", payload)
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(n[2], time.Month(n[1]), n[0], 0, 0, 0, 0, loc), nil
}

// ParseMonth decodes a navigation payload "m-yyyy|title".
func ParseMonth(payload string) (title string, year int, month time.Month, err error) {
	date, title, _ := strings.Cut(payload, "|")
	parts := SplitDateData(date)
	if len(parts) != 2 {
		return "", 0, 0, fmt.Errorf("calendar: bad month %q", payload)
	}
	m, err1 := strconv.Atoi(parts[0])
	y, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || m < 1 || m > 12 {
		return "", 0, 0, fmt.Errorf("calendar: bad month %q", payload)
	}
	return title, y, time.Month(m), nil
}

// SplitDateData разбивает строку даты на части
func SplitDateData(data string) []string {
	return strings.Split(data, "-")
}

func shift(year int, month time.Month, delta int) (int, time.Month) {
	t := time.Date(year, month+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

func daysInMonth(year int, month time.Month) int {
	t := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	return t.Day()
}
