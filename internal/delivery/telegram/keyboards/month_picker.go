package keyboards

import (
	"fmt"
	"strconv"

	"gopkg.in/telebot.v3"
)

var monthNames = []string{"Янв", "Фев", "Мар", "Апр", "Май", "Июн", "Июл", "Авг", "Сен", "Окт", "Ноя", "Дек"}

// BuildMonthKeyboard lays out a year as a 4x3 grid. Month buttons carry
// "yyyy-mm" under pick_month, the arrows carry the shown year.
func BuildMonthKeyboard(year int) (string, *telebot.ReplyMarkup) {
	markup := &telebot.ReplyMarkup{}
	rows := []telebot.Row{}
	for i := 0; i < 12; i += 3 {
		row := telebot.Row{}
		for j := i; j < i+3; j++ {
			row = append(row, markup.Data(monthNames[j], "pick_month", fmt.Sprintf("%04d-%02d", year, j+1)))
		}
		rows = append(rows, row)
	}

	prev := markup.Data("← "+strconv.Itoa(year-1), "month_prev", strconv.Itoa(year))
	next := markup.Data(strconv.Itoa(year+1)+" →", "month_next", strconv.Itoa(year))
	rows = append(rows, markup.Row(prev, next))

	markup.Inline(rows...)
	title := fmt.Sprintf("Выберите месяц для расчёта: %d", year)
	return title, markup
}
