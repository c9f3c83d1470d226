package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/analytics"
	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

// notifyLocked создаёт уведомление. Уведомление текущего пользователя сразу
// попадает в снимок, уведомления всех адресатов уходят в Notifier после подтверждения.
func (s *Store) notifyLocked(sn *snapshot, j *journal, userID uuid.UUID, kind models.NotificationKind, title, body string, entityID uuid.UUID) {
	if userID == uuid.Nil {
		return
	}
	n := models.Notification{
		ID:        s.newID(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		EntityID:  entityID,
		CreatedAt: s.now(),
	}
	if sn.session.Authenticated && userID == sn.session.UserID {
		sn.notifications = append(sn.notifications, n)
		j.addNotification(n.ID)
	}
	j.outbox = append(j.outbox, n)
}

// refreshDerivedLocked пересчитывает значки и рейтинг доверия пользователя.
// О каждом новом значке пользователь получает уведомление.
func (s *Store) refreshDerivedLocked(sn *snapshot, j *journal, userID uuid.UUID) {
	u, ok := sn.users.get(userID)
	if !ok {
		return
	}
	now := s.now()
	j.user(sn, userID)
	carbon := analytics.UserCarbonSaved(userID, sn.items.values())
	for _, b := range analytics.AwardBadges(&u, carbon, now) {
		s.notifyLocked(sn, j, userID, models.NotifyBadgeEarned, "Новый значок", b.Name, userID)
	}
	u.TrustScore = analytics.TrustScore(u, now)
	sn.users.put(userID, u)
}

// MarkNotificationRead отмечает уведомление прочитанным. Повторный вызов ничего не меняет.
func (s *Store) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	return s.run(ctx, command{
		name: "MarkNotificationRead",
		apply: func(sn *snapshot, _ *journal) error {
			if _, err := requireUser(sn); err != nil {
				return err
			}
			for i := range sn.notifications {
				if sn.notifications[i].ID == id {
					sn.notifications[i].Read = true
					return nil
				}
			}
			return apperr.NotFound(msgNotificationNotFound)
		},
		strategy: keepOnFailure,
	})
}

// MarkAllNotificationsRead отмечает прочитанными все уведомления и возвращает их число
func (s *Store) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	n := 0
	err := s.run(ctx, command{
		name: "MarkAllNotificationsRead",
		apply: func(sn *snapshot, _ *journal) error {
			if _, err := requireUser(sn); err != nil {
				return err
			}
			for i := range sn.notifications {
				if !sn.notifications[i].Read {
					sn.notifications[i].Read = true
					n++
				}
			}
			return nil
		},
		strategy: keepOnFailure,
	})
	return n, err
}

// ReceiveNotification добавляет уведомление, пришедшее для текущего
// пользователя из другой сессии. Повторная доставка ничего не меняет.
func (s *Store) ReceiveNotification(ctx context.Context, n models.Notification) error {
	return s.run(ctx, command{
		name: "ReceiveNotification",
		apply: func(sn *snapshot, _ *journal) error {
			me, err := requireUser(sn)
			if err != nil {
				return err
			}
			if n.ID == uuid.Nil || n.UserID != me.ID {
				return apperr.Validation("Уведомление адресовано другому пользователю")
			}
			for _, existing := range sn.notifications {
				if existing.ID == n.ID {
					return nil
				}
			}
			n.Read = false
			sn.notifications = append(sn.notifications, n)
			return nil
		},
		strategy: keepOnFailure,
	})
}
