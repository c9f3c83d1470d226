package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

const lastMessagePreviewLen = 80

// MarkConversationRead отмечает прочитанными все входящие сообщения и
// обнуляет счётчик непрочитанных. Повторный вызов ничего не меняет и
// возвращает false.
func MarkConversationRead(msgs []models.ChatMessage, meta *models.ConversationMetadata, readerID uuid.UUID, now time.Time) bool {
	changed := false
	for i := range msgs {
		m := &msgs[i]
		if !Inbound(*m, readerID) || m.Status == models.MessageRead {
			continue
		}
		if m.Status != models.MessageSent && m.Status != models.MessageDelivered {
			continue
		}
		m.Status = models.MessageRead
		m.UpdatedAt = now
		changed = true
	}
	if meta.UnreadCount != 0 {
		meta.UnreadCount = 0
		changed = true
	}
	return changed
}

// TouchConversation обновляет время и текст последнего сообщения.
// Входящее сообщение увеличивает счётчик непрочитанных и возвращает
// переписку из архива.
func TouchConversation(meta *models.ConversationMetadata, msg models.ChatMessage, inbound bool) {
	at := msg.CreatedAt
	if meta.LastMessageAt == nil || !at.Before(*meta.LastMessageAt) {
		meta.LastMessageAt = &at
		meta.LastMessageText = preview(msg.Text)
	}
	if inbound {
		meta.UnreadCount++
		meta.Archived = false
	}
}

// RecomputeLastMessage пересчитывает последнее сообщение по списку,
// пропуская failed. Используется после удаления сообщения.
func RecomputeLastMessage(meta *models.ConversationMetadata, msgs []models.ChatMessage) {
	meta.LastMessageAt = nil
	meta.LastMessageText = ""
	for _, m := range msgs {
		if m.Status == models.MessageFailed {
			continue
		}
		TouchConversation(meta, m, false)
	}
}

// SetArchived архивирует или разархивирует переписку. Возвращает true при изменении.
func SetArchived(meta *models.ConversationMetadata, archived bool) bool {
	if meta.Archived == archived {
		return false
	}
	meta.Archived = archived
	return true
}

// SetPinned закрепляет или открепляет переписку. Возвращает true при изменении.
func SetPinned(meta *models.ConversationMetadata, pinned bool) bool {
	if meta.Pinned == pinned {
		return false
	}
	meta.Pinned = pinned
	return true
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= lastMessagePreviewLen {
		return text
	}
	return string(r[:lastMessagePreviewLen]) + "…"
}
