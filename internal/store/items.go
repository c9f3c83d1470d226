package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/lifecycle"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/permissions"
)

// insertItemLocked добавляет объявление в снимок и в список вещей владельца
func (s *Store) insertItemLocked(sn *snapshot, j *journal, draft models.ItemDraft, owner models.User, moderated bool) models.Item {
	item := lifecycle.NewItem(s.newID(), owner.ID, draft, s.now(), moderated)
	j.item(sn, item.ID)
	j.user(sn, owner.ID)
	sn.items.put(item.ID, item)
	owner.ItemIDs = append(owner.ItemIDs, item.ID)
	sn.users.put(owner.ID, owner)
	return item
}

// CreateItem публикует объявление. При отказе сервиса объявление удаляется из снимка.
func (s *Store) CreateItem(ctx context.Context, draft models.ItemDraft) (models.Item, error) {
	if err := s.checkInput(draft); err != nil {
		s.recordError(err)
		return models.Item{}, err
	}

	var item models.Item
	err := s.run(ctx, command{
		name:    "CreateItem",
		failure: "Не удалось создать объявление",
		apply: func(sn *snapshot, j *journal) error {
			owner, err := requireAction(sn, permissions.ActionCreate, permissions.Resource{Kind: permissions.ResourceItem})
			if err != nil {
				return err
			}
			item = s.insertItemLocked(sn, j, draft, owner, s.cfg.RequireModeration)
			return nil
		},
		call: func(ctx context.Context) error {
			saved, err := s.api.Items.CreateItem(ctx, item)
			if err != nil {
				return err
			}
			item = mergeServerItem(item, saved)
			return nil
		},
		confirm: func(sn *snapshot, _ *journal) {
			if sn.items.has(item.ID) {
				sn.items.put(item.ID, item)
			}
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return models.Item{}, err
	}
	return item, nil
}

// mergeServerItem переносит из ответа сервиса поля, которые он назначает сам
func mergeServerItem(local, saved models.Item) models.Item {
	if saved.ID != local.ID {
		return local
	}
	if !saved.CreatedAt.IsZero() {
		local.CreatedAt = saved.CreatedAt
	}
	if len(saved.Images) > 0 {
		local.Images = saved.Images
	}
	return local
}

// mutateItem общая команда изменения одного объявления с откатом по журналу
func (s *Store) mutateItem(ctx context.Context, name, failure string, id uuid.UUID, action permissions.Action, mutate func(sn *snapshot, j *journal, item *models.Item, actor models.User) error) (models.Item, error) {
	var (
		item  models.Item
		dirty dirtySet
	)
	err := s.run(ctx, command{
		name:    name,
		failure: failure,
		apply: func(sn *snapshot, j *journal) error {
			cur, err := findItem(sn, id)
			if err != nil {
				return err
			}
			actor, err := requireAction(sn, action, permissions.Resource{Kind: permissions.ResourceItem, OwnerID: cur.OwnerID})
			if err != nil {
				return err
			}
			j.item(sn, id)
			if err := mutate(sn, j, &cur, actor); err != nil {
				return err
			}
			sn.items.put(id, cur)
			item = cur
			dirty = collectDirty(sn, j)
			return nil
		},
		call: func(ctx context.Context) error {
			return s.push(ctx, dirty)
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return models.Item{}, err
	}
	return item, nil
}

// UpdateItem меняет поля объявления. Смена категории или состояния
// сбрасывает закэшированный экологический эффект.
func (s *Store) UpdateItem(ctx context.Context, id uuid.UUID, upd models.ItemUpdate) (models.Item, error) {
	if err := s.checkInput(upd); err != nil {
		s.recordError(err)
		return models.Item{}, err
	}
	return s.mutateItem(ctx, "UpdateItem", "Не удалось обновить объявление", id, permissions.ActionUpdate,
		func(_ *snapshot, _ *journal, item *models.Item, actor models.User) error {
			return lifecycle.ApplyUpdate(item, upd, actor.ID, s.now())
		})
}

// RemoveItem снимает объявление с публикации. Открытые заявки с его участием отклоняются.
func (s *Store) RemoveItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	return s.mutateItem(ctx, "RemoveItem", "Не удалось снять объявление", id, permissions.ActionDelete,
		func(sn *snapshot, j *journal, item *models.Item, actor models.User) error {
			if err := lifecycle.TransitionItem(item, models.ItemRemoved, actor.ID, s.now(), "removed by owner"); err != nil {
				return err
			}
			s.closeRequestsForItemLocked(sn, j, item.ID, uuid.Nil, actor.ID)
			return nil
		})
}

// ModerateItem одобряет или отклоняет объявление на модерации
func (s *Store) ModerateItem(ctx context.Context, id uuid.UUID, approve bool, note string) (models.Item, error) {
	return s.mutateItem(ctx, "ModerateItem", "Не удалось сохранить решение модерации", id, permissions.ActionModerate,
		func(sn *snapshot, j *journal, item *models.Item, actor models.User) error {
			to := models.ItemRejected
			title := "Объявление отклонено"
			if approve {
				to = models.ItemAvailable
				title = "Объявление опубликовано"
			}
			if item.Status != models.ItemPending {
				return apperr.Conflict("Объявление не ожидает модерации")
			}
			if err := lifecycle.TransitionItem(item, to, actor.ID, s.now(), note); err != nil {
				return err
			}
			s.notifyLocked(sn, j, item.OwnerID, models.NotifyItemModerated, title, item.Title, item.ID)
			return nil
		})
}

// BoostItem продвигает объявление на семь дней
func (s *Store) BoostItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	return s.mutateItem(ctx, "BoostItem", "Не удалось продвинуть объявление", id, permissions.ActionBoost,
		func(_ *snapshot, _ *journal, item *models.Item, actor models.User) error {
			return lifecycle.Boost(item, actor.ID, s.now())
		})
}

// UnboostItem снимает продвижение
func (s *Store) UnboostItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	return s.mutateItem(ctx, "UnboostItem", "Не удалось снять продвижение", id, permissions.ActionBoost,
		func(_ *snapshot, _ *journal, item *models.Item, actor models.User) error {
			lifecycle.Unboost(item, actor.ID, s.now())
			return nil
		})
}

// RenewItem продлевает публикацию на тридцать дней. Открытые заявки по
// объявлению отклоняются, и оно снова становится доступным.
func (s *Store) RenewItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	return s.mutateItem(ctx, "RenewItem", "Не удалось продлить объявление", id, permissions.ActionUpdate,
		func(sn *snapshot, j *journal, item *models.Item, actor models.User) error {
			if err := lifecycle.Renew(item, actor.ID, s.now()); err != nil {
				return err
			}
			s.closeRequestsForItemLocked(sn, j, item.ID, uuid.Nil, actor.ID)
			return nil
		})
}

// ViewItem увеличивает счётчик просмотров. Просмотры владельца не считаются.
// Счётчик монотонный, поэтому при отказе сервиса не откатывается.
func (s *Store) ViewItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	var item models.Item
	err := s.run(ctx, command{
		name:    "ViewItem",
		failure: "Не удалось учесть просмотр",
		apply: func(sn *snapshot, j *journal) error {
			cur, err := findItem(sn, id)
			if err != nil {
				return err
			}
			if cur.OwnerID != sn.session.UserID {
				j.item(sn, id)
				lifecycle.RecordView(&cur)
				sn.items.put(id, cur)
			}
			item = cur
			return nil
		},
		call: func(ctx context.Context) error {
			_, err := s.api.Items.UpdateItem(ctx, item)
			return err
		},
		strategy: keepOnFailure,
	})
	if err != nil {
		return models.Item{}, err
	}
	return item, nil
}

// SaveItem добавляет объявление в избранное. Повторное сохранение ничего не меняет.
func (s *Store) SaveItem(ctx context.Context, id uuid.UUID) error {
	return s.toggleSaved(ctx, "SaveItem", id, true)
}

// UnsaveItem убирает объявление из избранного, уменьшая счётчик ровно на один
func (s *Store) UnsaveItem(ctx context.Context, id uuid.UUID) error {
	return s.toggleSaved(ctx, "UnsaveItem", id, false)
}

func (s *Store) toggleSaved(ctx context.Context, name string, id uuid.UUID, save bool) error {
	var (
		item    models.Item
		changed bool
	)
	return s.run(ctx, command{
		name:    name,
		failure: "Не удалось обновить избранное",
		apply: func(sn *snapshot, j *journal) error {
			if _, err := requireUser(sn); err != nil {
				return err
			}
			cur, err := findItem(sn, id)
			if err != nil {
				return err
			}
			if sn.isSaved(id) == save {
				return nil
			}
			j.item(sn, id)
			j.saved(sn)
			if save {
				lifecycle.RecordSave(&cur)
				sn.saved = append(sn.saved, id)
			} else {
				lifecycle.RecordUnsave(&cur)
				sn.saved = removeID(sn.saved, id)
			}
			sn.items.put(id, cur)
			item, changed = cur, true
			j.persistSession = true
			return nil
		},
		call: func(ctx context.Context) error {
			if !changed {
				return nil
			}
			_, err := s.api.Items.UpdateItem(ctx, item)
			return err
		},
		strategy: restoreOnFailure,
	})
}

// ApplyStatusUpdates применяет понижения для объявлений с истёкшим продвижением
// или сроком публикации. Затрагивает чужие объявления, поэтому доступно
// только модераторам.
func (s *Store) ApplyStatusUpdates(ctx context.Context) ([]lifecycle.StatusUpdate, error) {
	var (
		applied []lifecycle.StatusUpdate
		dirty   dirtySet
	)
	err := s.run(ctx, command{
		name:    "ApplyStatusUpdates",
		failure: "Не удалось обновить статусы объявлений",
		apply: func(sn *snapshot, j *journal) error {
			if _, err := requirePermission(sn, permissions.ItemModerate); err != nil {
				return err
			}
			now := s.now()
			for _, upd := range lifecycle.ItemsNeedingStatusUpdate(sn.items.values(), now) {
				item, ok := sn.items.get(upd.ItemID)
				if !ok {
					continue
				}
				j.item(sn, item.ID)
				if err := lifecycle.ApplyStatusUpdate(&item, upd, now); err != nil {
					return fmt.Errorf("apply %s to %s: %w", upd.Reason, item.ID, err)
				}
				sn.items.put(item.ID, item)
				applied = append(applied, upd)
			}
			dirty = collectDirty(sn, j)
			return nil
		},
		call: func(ctx context.Context) error {
			return s.push(ctx, dirty)
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
