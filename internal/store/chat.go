package store

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/lifecycle"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/permissions"
)

const maxMessageLen = 2000

// conversationLocked проверяет, что текущий пользователь участвует в обмене
func conversationLocked(sn *snapshot, requestID uuid.UUID) (models.User, models.SwapRequest, error) {
	me, err := requireUser(sn)
	if err != nil {
		return me, models.SwapRequest{}, err
	}
	req, err := findRequest(sn, requestID)
	if err != nil {
		return me, req, err
	}
	if !req.Involves(me.ID) {
		return me, req, apperr.Unauthorized("Переписка доступна только участникам обмена")
	}
	return me, req, nil
}

// openConversationLocked дополнительно проверяет право писать и что заявка не закрыта отказом
func openConversationLocked(sn *snapshot, requestID uuid.UUID) (models.User, error) {
	me, req, err := conversationLocked(sn, requestID)
	if err != nil {
		return me, err
	}
	if !sn.perms.Has(permissions.ChatSend) {
		return me, apperr.Unauthorized(msgForbidden)
	}
	if req.Status == models.SwapRejected || req.Status == models.SwapCancelled {
		return me, apperr.Conflict("Переписка по закрытой заявке недоступна")
	}
	return me, nil
}

func checkMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperr.Validation("Сообщение не может быть пустым")
	}
	if utf8.RuneCountInString(text) > maxMessageLen {
		return apperr.Validation("Сообщение слишком длинное")
	}
	return nil
}

// SendMessage отправляет сообщение в переписку по заявке.
//
// Сообщение сразу появляется в переписке со статусом sending и временным ID.
// После подтверждения оно получает ID сервера и статус sent, а через
// DeliveryDelay становится delivered. При отказе все сообщения переписки в
// статусе sending помечаются failed.
func (s *Store) SendMessage(ctx context.Context, requestID uuid.UUID, text string) (models.ChatMessage, error) {
	if err := checkMessageText(text); err != nil {
		s.recordError(err)
		return models.ChatMessage{}, err
	}

	var (
		msg       models.ChatMessage
		confirmed models.ChatMessage
		final     models.ChatMessage
		lost      bool
	)
	err := s.run(ctx, command{
		name:    "SendMessage",
		failure: "Не удалось отправить сообщение",
		apply: func(sn *snapshot, j *journal) error {
			me, err := openConversationLocked(sn, requestID)
			if err != nil {
				return err
			}
			msg = lifecycle.NewOptimisticMessage(s.newID(), requestID, me.ID, text, s.now())
			j.meta(sn, requestID)
			sn.appendMessage(msg)
			j.addMessage(requestID, msg.TempID)
			meta := sn.meta(requestID)
			lifecycle.TouchConversation(&meta, msg, false)
			sn.conversations[requestID] = meta
			return nil
		},
		call: func(ctx context.Context) error {
			var err error
			confirmed, err = s.api.Messages.SendMessage(ctx, msg)
			return err
		},
		confirm: func(sn *snapshot, j *journal) {
			msgs := sn.messages[requestID]
			if !lifecycle.ConfirmMessage(msgs, msg.TempID, confirmed, s.now()) {
				log.Printf("⚠️ Сообщение %s подтверждено, но уже убрано из переписки", msg.TempID)
				lost = true
				return
			}
			final = msgs[lifecycle.IndexByID(msgs, msg.TempID)]
			id := final.ID
			j.after = append(j.after, func() {
				s.after(s.cfg.DeliveryDelay, func() { s.promoteDelivered(requestID, id) })
			})
			if req, ok := sn.requests.get(requestID); ok {
				s.notifyLocked(sn, j, req.Counterpart(final.SenderID), models.NotifyNewMessage,
					"Новое сообщение", final.Text, requestID)
			}
		},
		strategy: customOnFailure,
		onFailure: func(sn *snapshot, _ *journal, err error) {
			n := lifecycle.FailInFlight(sn.messages[requestID], s.now())
			log.Printf("❌ Сообщений помечено failed в переписке %s: %d", requestID, n)
		},
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	if lost {
		return models.ChatMessage{}, apperr.Conflict("Сообщение уже отправлено повторно")
	}
	return final, nil
}

// promoteDelivered переводит сообщение в delivered после задержки доставки
func (s *Store) promoteDelivered(requestID, id uuid.UUID) {
	_ = s.run(context.Background(), command{
		name: "PromoteDelivered",
		apply: func(sn *snapshot, _ *journal) error {
			lifecycle.PromoteDelivered(sn.messages[requestID], id, s.now())
			return nil
		},
		strategy: keepOnFailure,
	})
}

// RetryMessage повторно отправляет сообщение в статусе failed.
// Неудачное сообщение удаляется из переписки, вместо него отправляется новое.
func (s *Store) RetryMessage(ctx context.Context, requestID, messageID uuid.UUID) (models.ChatMessage, error) {
	var text string
	err := s.run(ctx, command{
		name: "RetryMessage",
		apply: func(sn *snapshot, j *journal) error {
			me, err := openConversationLocked(sn, requestID)
			if err != nil {
				return err
			}
			msgs := sn.messages[requestID]
			i := lifecycle.IndexByID(msgs, messageID)
			if i < 0 {
				return apperr.NotFound(msgMessageNotFound)
			}
			failed := msgs[i]
			if failed.Status != models.MessageFailed || failed.SenderID != me.ID {
				return apperr.Conflict("Повторить можно только своё неотправленное сообщение")
			}
			text = failed.Text
			j.messages(sn, requestID)
			j.meta(sn, requestID)
			sn.removeMessage(requestID, messageID)
			meta := sn.meta(requestID)
			lifecycle.RecomputeLastMessage(&meta, sn.messages[requestID])
			sn.conversations[requestID] = meta
			return nil
		},
		strategy: keepOnFailure,
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	return s.SendMessage(ctx, requestID, text)
}

// ReceiveMessage добавляет сообщение, пришедшее от сервера. Повторная
// доставка того же сообщения ничего не меняет.
func (s *Store) ReceiveMessage(ctx context.Context, msg models.ChatMessage) error {
	return s.run(ctx, command{
		name: "ReceiveMessage",
		apply: func(sn *snapshot, j *journal) error {
			me, _, err := conversationLocked(sn, msg.RequestID)
			if err != nil {
				return err
			}
			if msg.ID == uuid.Nil {
				return apperr.Validation("Сообщение без ID")
			}
			msgs := sn.messages[msg.RequestID]
			if lifecycle.IndexByID(msgs, msg.ID) >= 0 {
				return nil
			}
			if msg.TempID != uuid.Nil && lifecycle.IndexByID(msgs, msg.TempID) >= 0 {
				return nil
			}
			inbound := !msg.System && lifecycle.Inbound(msg, me.ID)
			if msg.Status == "" || msg.Status == models.MessageSending {
				msg.Status = models.MessageSent
			}
			if inbound && msg.Status == models.MessageSent {
				msg.Status = models.MessageDelivered
			}
			if msg.CreatedAt.IsZero() {
				msg.CreatedAt = s.now()
			}
			msg.UpdatedAt = s.now()
			j.meta(sn, msg.RequestID)
			sn.appendMessage(msg)
			j.addMessage(msg.RequestID, msg.ID)
			meta := sn.meta(msg.RequestID)
			lifecycle.TouchConversation(&meta, msg, inbound)
			sn.conversations[msg.RequestID] = meta
			return nil
		},
		strategy: keepOnFailure,
	})
}

// MarkConversationRead отмечает прочитанными входящие сообщения переписки.
// Повторный вызов ничего не меняет и не обращается к сервису.
func (s *Store) MarkConversationRead(ctx context.Context, requestID uuid.UUID) (bool, error) {
	var (
		changed bool
		reader  uuid.UUID
	)
	err := s.run(ctx, command{
		name:    "MarkConversationRead",
		failure: "Не удалось отметить переписку прочитанной",
		apply: func(sn *snapshot, j *journal) error {
			me, _, err := conversationLocked(sn, requestID)
			if err != nil {
				return err
			}
			reader = me.ID
			j.messages(sn, requestID)
			j.meta(sn, requestID)
			meta := sn.meta(requestID)
			changed = lifecycle.MarkConversationRead(sn.messages[requestID], &meta, me.ID, s.now())
			sn.conversations[requestID] = meta
			return nil
		},
		call: func(ctx context.Context) error {
			if !changed {
				return nil
			}
			return s.api.Messages.MarkRead(ctx, requestID, reader)
		},
		strategy: keepOnFailure,
	})
	return changed, err
}

// ArchiveConversation архивирует или возвращает переписку из архива
func (s *Store) ArchiveConversation(ctx context.Context, requestID uuid.UUID, archived bool) error {
	return s.updateMeta(ctx, "ArchiveConversation", requestID, func(meta *models.ConversationMetadata) bool {
		return lifecycle.SetArchived(meta, archived)
	})
}

// PinConversation закрепляет или открепляет переписку
func (s *Store) PinConversation(ctx context.Context, requestID uuid.UUID, pinned bool) error {
	return s.updateMeta(ctx, "PinConversation", requestID, func(meta *models.ConversationMetadata) bool {
		return lifecycle.SetPinned(meta, pinned)
	})
}

func (s *Store) updateMeta(ctx context.Context, name string, requestID uuid.UUID, mutate func(*models.ConversationMetadata) bool) error {
	return s.run(ctx, command{
		name: name,
		apply: func(sn *snapshot, j *journal) error {
			if _, _, err := conversationLocked(sn, requestID); err != nil {
				return err
			}
			meta := sn.meta(requestID)
			if mutate(&meta) {
				j.meta(sn, requestID)
				sn.conversations[requestID] = meta
			}
			return nil
		},
		strategy: keepOnFailure,
	})
}
