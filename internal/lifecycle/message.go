package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

// DeliveryDelay задержка, после которой отправленное сообщение считается доставленным
const DeliveryDelay = 1500 * time.Millisecond

var messageRank = map[models.MessageStatus]int{
	models.MessageSending:   0,
	models.MessageSent:      1,
	models.MessageDelivered: 2,
	models.MessageRead:      3,
}

// CanTransitionMessage проверяет переход статуса сообщения.
// Статус движется только вперёд по sending → sent → delivered → read,
// из sending можно перейти только в sent или failed, failed конечен.
func CanTransitionMessage(from, to models.MessageStatus) bool {
	if from == models.MessageFailed {
		return false
	}
	if to == models.MessageFailed {
		return from == models.MessageSending
	}
	if from == models.MessageSending {
		return to == models.MessageSent
	}
	fromRank, okFrom := messageRank[from]
	toRank, okTo := messageRank[to]
	return okFrom && okTo && toRank > fromRank
}

// TransitionMessage переводит сообщение в новый статус
func TransitionMessage(msg *models.ChatMessage, to models.MessageStatus, now time.Time) error {
	if !CanTransitionMessage(msg.Status, to) {
		return apperr.Conflict(fmt.Sprintf("Недопустимый переход сообщения: %s → %s", msg.Status, to))
	}
	msg.Status = to
	msg.UpdatedAt = now
	return nil
}

// NewOptimisticMessage создаёт локальное сообщение с временным ID в статусе sending
func NewOptimisticMessage(tempID, requestID, senderID uuid.UUID, text string, now time.Time) models.ChatMessage {
	return models.ChatMessage{
		ID:        tempID,
		TempID:    tempID,
		RequestID: requestID,
		SenderID:  senderID,
		Text:      text,
		Status:    models.MessageSending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewSystemMessage создаёт системное сообщение в переписке
func NewSystemMessage(id, requestID uuid.UUID, text string, now time.Time) models.ChatMessage {
	return models.ChatMessage{
		ID:        id,
		RequestID: requestID,
		Text:      text,
		System:    true,
		Status:    models.MessageDelivered,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IndexByID ищет сообщение по ID или временному ID
func IndexByID(msgs []models.ChatMessage, id uuid.UUID) int {
	for i, m := range msgs {
		if m.ID == id || (m.TempID != uuid.Nil && m.TempID == id) {
			return i
		}
	}
	return -1
}

// ConfirmMessage заменяет временное сообщение подтверждённым: ID от сервера,
// статус sent. Сообщение, помеченное failed из-за отказа соседней отправки,
// тоже становится sent: сервер его принял. Возвращает false, если сообщение
// не найдено или уже подтверждено.
func ConfirmMessage(msgs []models.ChatMessage, tempID uuid.UUID, confirmed models.ChatMessage, now time.Time) bool {
	i := IndexByID(msgs, tempID)
	if i < 0 || (msgs[i].Status != models.MessageSending && msgs[i].Status != models.MessageFailed) {
		return false
	}
	m := msgs[i]
	if confirmed.ID != uuid.Nil {
		m.ID = confirmed.ID
	}
	if !confirmed.CreatedAt.IsZero() {
		m.CreatedAt = confirmed.CreatedAt
	}
	m.TempID = tempID
	m.Status = models.MessageSent
	m.UpdatedAt = now
	msgs[i] = m
	return true
}

// FailInFlight переводит все сообщения в статусе sending в failed.
// Возвращает количество изменённых сообщений.
func FailInFlight(msgs []models.ChatMessage, now time.Time) int {
	n := 0
	for i := range msgs {
		if msgs[i].Status == models.MessageSending {
			msgs[i].Status = models.MessageFailed
			msgs[i].UpdatedAt = now
			n++
		}
	}
	return n
}

// PromoteDelivered переводит сообщение из sent в delivered.
// Для сообщений в другом статусе ничего не делает.
func PromoteDelivered(msgs []models.ChatMessage, id uuid.UUID, now time.Time) bool {
	i := IndexByID(msgs, id)
	if i < 0 || msgs[i].Status != models.MessageSent {
		return false
	}
	return TransitionMessage(&msgs[i], models.MessageDelivered, now) == nil
}

// Inbound сообщает, является ли сообщение входящим для пользователя
func Inbound(msg models.ChatMessage, userID uuid.UUID) bool {
	return msg.SenderID != userID
}
