package bot

import (
	"context"
	"fmt"

	"github.com/example/linguaflow/internal/notify"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Name implements notify.Channel
func (b *Bot) Name() string { return notify.MethodTelegram }

// Permission is unsupported without a configured chat and granted while
// the bot is connected
func (b *Bot) Permission() notify.Permission {
	if b.config.ChatID == 0 {
		return notify.PermissionUnsupported
	}
	if !b.running.Load() {
		return notify.PermissionDefault
	}
	return notify.PermissionGranted
}

// Deliver sends the notification to the configured chat
func (b *Bot) Deliver(ctx context.Context, n notify.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	api := b.client()
	if api == nil || b.config.ChatID == 0 {
		return fmt.Errorf("telegram channel is not connected")
	}
	msg := tgbotapi.NewMessage(b.config.ChatID, formatNotification(n))
	msg.ReplyMarkup = createKeyboard(b.MainMenuButtons())
	if _, err := api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}
