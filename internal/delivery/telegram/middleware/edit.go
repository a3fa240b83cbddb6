package middleware

import (
	"errors"
	"log"

	"gopkg.in/telebot.v3"
)

// EditOrSend edits the message behind a callback, falling back to a new
// message for plain commands or when the edit is rejected.
func EditOrSend(c telebot.Context, text string, markup *telebot.ReplyMarkup) error {
	var opts []interface{}
	if markup != nil {
		opts = append(opts, markup)
	}
	if c.Callback() != nil {
		err := c.Edit(text, opts...)
		if err == nil || errors.Is(err, telebot.ErrSameMessageContent) {
			return nil
		}
	}
	return c.Send(text, opts...)
}

// Logger logs every update that reaches a handler along with its error.
func Logger() telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			err := next(c)
			if err != nil {
				var chat int64
				if c.Chat() != nil {
					chat = c.Chat().ID
				}
				log.Printf("[handler] chat=%d text=%q: %v", chat, c.Text(), err)
			}
			return err
		}
	}
}

// ManagersOnly drops updates from chats outside allowed. An empty set lets
// everyone through.
func ManagersOnly(allowed map[int64]bool) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if len(allowed) == 0 || (c.Chat() != nil && allowed[c.Chat().ID]) {
				return next(c)
			}
			if c.Callback() != nil {
				return c.Respond(&telebot.CallbackResponse{Text: "Нет доступа"})
			}
			return c.Send("Эта команда доступна только менеджерам.")
		}
	}
}
