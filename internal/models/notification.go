package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind тип уведомления
type NotificationKind string

const (
	NotifySwapRequested NotificationKind = "swap_requested"
	NotifySwapAccepted  NotificationKind = "swap_accepted"
	NotifySwapRejected  NotificationKind = "swap_rejected"
	NotifySwapCancelled NotificationKind = "swap_cancelled"
	NotifyNewMessage    NotificationKind = "new_message"
	NotifyBadgeEarned   NotificationKind = "badge_earned"
	NotifyNewReview     NotificationKind = "new_review"
	NotifyItemModerated NotificationKind = "item_moderated"
)

// Notification уведомление пользователя
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	EntityID  uuid.UUID        `json:"entity_id"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// SessionSnapshot сохраняемая часть сессии. Права доступа сюда не входят.
type SessionSnapshot struct {
	User         User        `json:"user"`
	Token        string      `json:"token"`
	SavedItemIDs []uuid.UUID `json:"saved_item_ids"`
	SavedAt      time.Time   `json:"saved_at"`
}
