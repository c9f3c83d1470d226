package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

// MessageRepo хранит сообщения переписок
type MessageRepo struct {
	db  *DB
	now func() time.Time
}

// NewMessageRepo создаёт репозиторий сообщений
func NewMessageRepo(db *DB) *MessageRepo {
	return &MessageRepo{db: db, now: time.Now}
}

// SendMessage сохраняет сообщение, выдаёт ему постоянный ID и статус sent.
// Временный ID клиента сохраняется в TempID.
func (r *MessageRepo) SendMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	if msg.TempID == uuid.Nil {
		msg.TempID = msg.ID
	}
	msg.ID = uuid.New()
	msg.Status = models.MessageSent
	msg.UpdatedAt = r.now()

	doc, err := marshalDoc(msg)
	if err != nil {
		return models.ChatMessage{}, err
	}
	err = r.db.execInsert(ctx, "Сообщение уже отправлено", `
		INSERT INTO chat_messages (id, request_id, sender_id, doc, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.RequestID, msg.SenderID, doc, msg.CreatedAt)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("ошибка при отправке сообщения: %w", err)
	}
	return msg, nil
}

// MarkRead отмечает прочитанными сообщения собеседника в переписке
func (r *MessageRepo) MarkRead(ctx context.Context, requestID, readerID uuid.UUID) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.Pool.Exec(ctx, `
		UPDATE chat_messages
		SET doc = jsonb_set(jsonb_set(doc, '{status}', '"read"'), '{updated_at}', to_jsonb($3::timestamptz))
		WHERE request_id = $1 AND sender_id <> $2 AND doc->>'status' <> 'read'
	`, requestID, readerID, r.now())
	if err != nil {
		return fmt.Errorf("ошибка при отметке сообщений прочитанными: %w", err)
	}
	return nil
}

// FetchMessages возвращает сообщения переписки по времени отправки
func (r *MessageRepo) FetchMessages(ctx context.Context, requestID uuid.UUID) ([]models.ChatMessage, error) {
	return queryDocs[models.ChatMessage](ctx, r.db, `
		SELECT doc FROM chat_messages WHERE request_id = $1 ORDER BY created_at
	`, requestID)
}
