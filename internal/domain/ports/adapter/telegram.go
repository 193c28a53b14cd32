// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// TelegramMessenger is the slice of the Bot API the notification sink needs.
type TelegramMessenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}
