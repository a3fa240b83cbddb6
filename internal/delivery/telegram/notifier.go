package telegram

import (
	"context"
	"fmt"
	"log"

	"gopkg.in/telebot.v3"

	"shift-scheduler/internal/domain"
)

// Notifier delivers resolution notices to staff members who registered
// with the bot.
type Notifier struct {
	Bot interface {
		Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	}
}

func (n *Notifier) Notify(ctx context.Context, member domain.StaffMember, text string) error {
	if member.ChatID == 0 {
		return fmt.Errorf("staff %s has no chat: %w", member.ID, domain.ErrNotFound)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.Bot.Send(telebot.ChatID(member.ChatID), "🔔 "+text); err != nil {
		return fmt.Errorf("notify %s: %w", member.ID, err)
	}
	log.Printf("[notify] sent to %s", member.ID)
	return nil
}
