package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus статус доставки сообщения
type MessageStatus string

const (
	MessageSending   MessageStatus = "sending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
	MessageFailed    MessageStatus = "failed"
)

// ChatMessage представляет сообщение в переписке по обмену.
// Переписка всегда привязана к одной заявке (RequestID).
type ChatMessage struct {
	ID        uuid.UUID     `json:"id"`
	TempID    uuid.UUID     `json:"temp_id,omitempty"`
	RequestID uuid.UUID     `json:"request_id"`
	SenderID  uuid.UUID     `json:"sender_id"`
	Text      string        `json:"text"`
	System    bool          `json:"system,omitempty"`
	Status    MessageStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ConversationMetadata денормализованные флаги переписки, ключ: ID заявки
type ConversationMetadata struct {
	RequestID       uuid.UUID  `json:"request_id"`
	Archived        bool       `json:"archived"`
	Pinned          bool       `json:"pinned"`
	UnreadCount     int        `json:"unread_count"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	LastMessageText string     `json:"last_message_text,omitempty"`
}

// Conversation переписка по заявке вместе с метаданными
type Conversation struct {
	Request  SwapRequest          `json:"request"`
	Meta     ConversationMetadata `json:"meta"`
	Messages []ChatMessage        `json:"messages"`
}
