package router

import (
	"log"
	"strings"
	"sync"

	"gopkg.in/telebot.v3"
)

type HandlerFunc func(c telebot.Context, payload string) error

// PrefixFunc handles every key sharing a prefix, e.g. the calendar's cal_*.
type PrefixFunc func(c telebot.Context, key, payload string) error

type CallbackRouter struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	prefixes map[string]PrefixFunc
}

func New() *CallbackRouter {
	return &CallbackRouter{
		handlers: make(map[string]HandlerFunc),
		prefixes: make(map[string]PrefixFunc),
	}
}

func (r *CallbackRouter) Register(key string, h HandlerFunc) {
	r.mu.Lock()
	r.handlers[key] = h
	r.mu.Unlock()
}

func (r *CallbackRouter) RegisterPrefix(prefix string, h PrefixFunc) {
	r.mu.Lock()
	r.prefixes[prefix] = h
	r.mu.Unlock()
}

// Parse нормализует callback-данные: удаляет префикс "\f" и отделяет
// payload после первого '|'.
func Parse(data string) (key, payload string) {
	raw := strings.TrimPrefix(data, "\f")
	key, payload, _ = strings.Cut(raw, "|")
	return key, payload
}

func (r *CallbackRouter) Attach(bot *telebot.Bot) {
	bot.Handle(telebot.OnCallback, func(c telebot.Context) error {
		_, err := r.Dispatch(c)
		return err
	})
}

// Dispatch routes a callback and reports whether anything handled it.
func (r *CallbackRouter) Dispatch(c telebot.Context) (bool, error) {
	key, payload := Parse(c.Data())
	log.Printf("[callback] key=%q payload=%q", key, payload)
	_ = c.Respond()

	h, p := r.lookup(key)
	switch {
	case h != nil:
		return true, h(c, payload)
	case p != nil:
		return true, p(c, key, payload)
	}
	return false, nil
}

func (r *CallbackRouter) lookup(key string) (HandlerFunc, PrefixFunc) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[key]; ok {
		return h, nil
	}
	for prefix, p := range r.prefixes {
		if strings.HasPrefix(key, prefix) {
			return nil, p
		}
	}
	return nil, nil
}
