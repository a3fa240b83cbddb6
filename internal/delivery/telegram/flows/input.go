package flows

import (
	"sync"

	"gopkg.in/telebot.v3"
)

// TextHandler consumes the next text message of a chat.
type TextHandler func(c telebot.Context, text string) error

// Input remembers which chats are expected to type something next.
type Input struct {
	mu      sync.Mutex
	waiting map[int64]TextHandler
}

func NewInput() *Input {
	return &Input{waiting: make(map[int64]TextHandler)}
}

func (in *Input) Wait(chatID int64, h TextHandler) {
	in.mu.Lock()
	in.waiting[chatID] = h
	in.mu.Unlock()
}

func (in *Input) Cancel(chatID int64) {
	in.mu.Lock()
	delete(in.waiting, chatID)
	in.mu.Unlock()
}

// Handle passes the message to the waiting handler, if any. The handler is
// removed first; handlers that want another attempt call Wait again.
func (in *Input) Handle(c telebot.Context) (bool, error) {
	id := c.Chat().ID
	in.mu.Lock()
	h, ok := in.waiting[id]
	delete(in.waiting, id)
	in.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, h(c, c.Text())
}
