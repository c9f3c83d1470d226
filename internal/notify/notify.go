// Package notify доставляет уведомления хранилища во внешние каналы.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

// Notifier канал доставки уведомлений
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Multi рассылает уведомление во все каналы. Отказ одного не мешает остальным.
type Multi []Notifier

// Notify реализует Notifier
func (m Multi) Notify(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, target := range m {
		if target == nil {
			continue
		}
		if err := target.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChatResolver находит личный чат Telegram пользователя
type ChatResolver interface {
	ChatID(ctx context.Context, userID uuid.UUID) (int64, bool, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram отправляет уведомления сообщением от бота
type Telegram struct {
	bot   sender
	chats ChatResolver
}

// NewTelegram авторизует бота по токену
func NewTelegram(token string, chats ChatResolver) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("авторизация бота: %w", err)
	}
	log.Printf("✅ Бот авторизован как @%s", bot.Self.UserName)
	return &Telegram{bot: bot, chats: chats}, nil
}

// Notify отправляет уведомление, если у пользователя есть чат с ботом
func (t *Telegram) Notify(ctx context.Context, n models.Notification) error {
	chatID, ok, err := t.chats.ChatID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("поиск чата пользователя %s: %w", n.UserID, err)
	}
	if !ok {
		return nil
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, Format(n))); err != nil {
		return fmt.Errorf("отправка уведомления в Telegram: %w", err)
	}
	return nil
}

var icons = map[models.NotificationKind]string{
	models.NotifySwapRequested: "🔄",
	models.NotifySwapAccepted:  "🤝",
	models.NotifySwapRejected:  "🚫",
	models.NotifySwapCancelled: "↩️",
	models.NotifyNewMessage:    "💬",
	models.NotifyBadgeEarned:   "🌱",
	models.NotifyNewReview:     "⭐",
	models.NotifyItemModerated: "🛡️",
}

// Format текст уведомления для мессенджера
func Format(n models.Notification) string {
	icon, ok := icons[n.Kind]
	if !ok {
		icon = "🔔"
	}
	if n.Body == "" {
		return icon + " " + n.Title
	}
	return icon + " " + n.Title + "\n\n" + n.Body
}
