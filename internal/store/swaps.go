package store

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/analytics"
	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/lifecycle"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/permissions"
)

// CreateSwapRequest создаёт заявку на обмен.
//
// Если в предложении описана новая вещь, сначала создаётся она, и только
// после подтверждения сервисом создаётся заявка. Если вещь создать не
// удалось, заявки не будет. Если не удалось создать заявку, новая вещь
// снимается с публикации.
func (s *Store) CreateSwapRequest(ctx context.Context, p models.SwapProposal) (models.SwapRequest, error) {
	if err := s.checkProposal(p); err != nil {
		s.recordError(err)
		return models.SwapRequest{}, err
	}

	offeredID := p.OfferedItemID
	var created uuid.UUID
	if p.NewOfferedItem != nil {
		item, err := s.createOfferedItem(ctx, p.TargetItemID, *p.NewOfferedItem)
		if err != nil {
			return models.SwapRequest{}, err
		}
		created = item.ID
		offeredID = &created
	}

	req, err := s.submitSwapRequest(ctx, p.TargetItemID, offeredID, p.Message)
	if err != nil {
		if created != uuid.Nil {
			s.withdrawOfferedItem(ctx, created)
			s.recordError(err)
		}
		return models.SwapRequest{}, err
	}
	return req, nil
}

func (s *Store) checkProposal(p models.SwapProposal) error {
	if err := s.checkInput(p); err != nil {
		return err
	}
	if p.NewOfferedItem == nil {
		return nil
	}
	if p.OfferedItemID != nil {
		return apperr.Validation("Укажите либо существующую вещь, либо новую")
	}
	return s.checkInput(*p.NewOfferedItem)
}

// checkSwapTargetLocked проверяет автора заявки и целевое объявление
func checkSwapTargetLocked(sn *snapshot, targetID uuid.UUID) (models.User, models.Item, error) {
	requester, err := requireAction(sn, permissions.ActionCreate, permissions.Resource{Kind: permissions.ResourceSwap})
	if err != nil {
		return requester, models.Item{}, err
	}
	target, err := findItem(sn, targetID)
	if err != nil {
		return requester, target, err
	}
	if target.OwnerID == requester.ID {
		return requester, target, apperr.Validation(lifecycle.MsgOwnItem)
	}
	if !lifecycle.Swappable(target) {
		return requester, target, apperr.Conflict(lifecycle.MsgItemUnavailable)
	}
	for _, r := range sn.pendingRequests() {
		if r.RequesterID == requester.ID && r.TargetItemID == targetID {
			return requester, target, apperr.Conflict("Вы уже отправили заявку на это объявление")
		}
	}
	return requester, target, nil
}

// createOfferedItem первая фаза заявки: создание предлагаемой вещи.
// Вещь для обмена публикуется без модерации.
func (s *Store) createOfferedItem(ctx context.Context, targetID uuid.UUID, draft models.ItemDraft) (models.Item, error) {
	var item models.Item
	err := s.run(ctx, command{
		name:    "CreateOfferedItem",
		failure: "Не удалось создать предлагаемую вещь",
		apply: func(sn *snapshot, j *journal) error {
			requester, _, err := checkSwapTargetLocked(sn, targetID)
			if err != nil {
				return err
			}
			if !sn.perms.Has(permissions.ItemCreate) {
				return apperr.Unauthorized(msgForbidden)
			}
			item = s.insertItemLocked(sn, j, draft, requester, false)
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
	return item, err
}

// submitSwapRequest вторая фаза заявки: создание самой заявки
func (s *Store) submitSwapRequest(ctx context.Context, targetID uuid.UUID, offeredID *uuid.UUID, message string) (models.SwapRequest, error) {
	var (
		req   models.SwapRequest
		dirty dirtySet
	)
	err := s.run(ctx, command{
		name:    "CreateSwapRequest",
		failure: "Не удалось отправить заявку на обмен",
		apply: func(sn *snapshot, j *journal) error {
			requester, target, err := checkSwapTargetLocked(sn, targetID)
			if err != nil {
				return err
			}
			var offered *models.Item
			if offeredID != nil {
				o, err := findItem(sn, *offeredID)
				if err != nil {
					return err
				}
				offered = &o
			}
			now := s.now()
			req, err = lifecycle.NewSwapRequest(s.newID(), requester.ID, target, offered, message, now)
			if err != nil {
				return err
			}
			j.request(sn, req.ID)
			sn.requests.put(req.ID, req)

			for _, id := range lifecycle.ItemIDs(req) {
				item, _ := sn.items.get(id)
				j.item(sn, id)
				if err := lifecycle.MarkRequested(&item, requester.ID, now); err != nil {
					return err
				}
				if id == target.ID {
					lifecycle.RecordRequest(&item)
				}
				sn.items.put(id, item)
			}

			s.notifyLocked(sn, j, req.RecipientID, models.NotifySwapRequested,
				"Новая заявка на обмен", target.Title, req.ID)
			dirty = collectDirty(sn, j)
			return nil
		},
		call: func(ctx context.Context) error {
			return s.push(ctx, dirty)
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return models.SwapRequest{}, err
	}
	return req, nil
}

// withdrawOfferedItem снимает с публикации вещь, созданную для неудавшейся заявки
func (s *Store) withdrawOfferedItem(ctx context.Context, id uuid.UUID) {
	var item models.Item
	err := s.run(ctx, command{
		name:    "WithdrawOfferedItem",
		failure: "Не удалось снять предлагаемую вещь",
		apply: func(sn *snapshot, j *journal) error {
			cur, err := findItem(sn, id)
			if err != nil {
				return err
			}
			if cur.Status.Terminal() {
				item = cur
				return nil
			}
			j.item(sn, id)
			if err := lifecycle.TransitionItem(&cur, models.ItemRemoved, cur.OwnerID, s.now(), "swap request failed"); err != nil {
				return err
			}
			sn.items.put(id, cur)
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
		log.Printf("⚠️ Предлагаемая вещь %s осталась без заявки: %v", id, err)
	}
}

// RespondToSwapRequest принимает или отклоняет заявку.
//
// При принятии обе вещи переходят в swapped, у обоих участников растёт число
// обменов, конкурирующие заявки на эти вещи отклоняются, а в переписку
// добавляется системное сообщение.
func (s *Store) RespondToSwapRequest(ctx context.Context, id uuid.UUID, decision models.SwapStatus) (models.SwapRequest, error) {
	var (
		req   models.SwapRequest
		dirty dirtySet
	)
	err := s.run(ctx, command{
		name:    "RespondToSwapRequest",
		failure: "Не удалось ответить на заявку",
		apply: func(sn *snapshot, j *journal) error {
			actor, err := requirePermission(sn, permissions.SwapRespond)
			if err != nil {
				return err
			}
			req, err = findRequest(sn, id)
			if err != nil {
				return err
			}
			now := s.now()
			j.request(sn, id)
			if err := lifecycle.Respond(&req, actor.ID, decision, now); err != nil {
				return err
			}
			sn.requests.put(id, req)

			if decision == models.SwapAccepted {
				if err := s.acceptLocked(sn, j, req, actor.ID); err != nil {
					return err
				}
			} else {
				s.releaseRequestLocked(sn, j, req, actor.ID)
				s.notifyLocked(sn, j, req.RequesterID, models.NotifySwapRejected,
					"Заявка отклонена", s.itemTitleLocked(sn, req.TargetItemID), req.ID)
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
		return models.SwapRequest{}, err
	}
	return req, nil
}

func (s *Store) acceptLocked(sn *snapshot, j *journal, req models.SwapRequest, actorID uuid.UUID) error {
	now := s.now()
	for _, itemID := range lifecycle.ItemIDs(req) {
		item, err := findItem(sn, itemID)
		if err != nil {
			return err
		}
		j.item(sn, itemID)
		if err := lifecycle.CompleteSwap(&item, actorID, now); err != nil {
			return err
		}
		impact := analytics.ComputeImpact(item)
		item.Impact = &impact
		sn.items.put(itemID, item)
	}

	for _, userID := range []uuid.UUID{req.RequesterID, req.RecipientID} {
		u, ok := sn.users.get(userID)
		if !ok {
			continue
		}
		j.user(sn, userID)
		u.Stats.SuccessfulSwaps++
		sn.users.put(userID, u)
	}

	for _, itemID := range lifecycle.ItemIDs(req) {
		s.closeRequestsForItemLocked(sn, j, itemID, req.ID, actorID)
	}
	for _, userID := range []uuid.UUID{req.RequesterID, req.RecipientID} {
		s.refreshDerivedLocked(sn, j, userID)
	}

	msg := lifecycle.NewSystemMessage(s.newID(), req.ID, lifecycle.SwapSystemMessage, now)
	j.meta(sn, req.ID)
	sn.appendMessage(msg)
	j.addMessage(req.ID, msg.ID)
	meta := sn.meta(req.ID)
	lifecycle.TouchConversation(&meta, msg, false)
	sn.conversations[req.ID] = meta

	s.notifyLocked(sn, j, req.RequesterID, models.NotifySwapAccepted,
		"Заявка принята", s.itemTitleLocked(sn, req.TargetItemID), req.ID)
	j.invalidateAnalytics = true
	return nil
}

// CancelSwapRequest отменяет собственную заявку, пока она ожидает ответа
func (s *Store) CancelSwapRequest(ctx context.Context, id uuid.UUID) (models.SwapRequest, error) {
	var (
		req   models.SwapRequest
		dirty dirtySet
	)
	err := s.run(ctx, command{
		name:    "CancelSwapRequest",
		failure: "Не удалось отменить заявку",
		apply: func(sn *snapshot, j *journal) error {
			actor, err := requireUser(sn)
			if err != nil {
				return err
			}
			req, err = findRequest(sn, id)
			if err != nil {
				return err
			}
			j.request(sn, id)
			if err := lifecycle.Cancel(&req, actor.ID, s.now()); err != nil {
				return err
			}
			sn.requests.put(id, req)
			s.releaseRequestLocked(sn, j, req, actor.ID)
			s.notifyLocked(sn, j, req.RecipientID, models.NotifySwapCancelled,
				"Заявка отменена", s.itemTitleLocked(sn, req.TargetItemID), req.ID)
			dirty = collectDirty(sn, j)
			return nil
		},
		call: func(ctx context.Context) error {
			return s.push(ctx, dirty)
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return models.SwapRequest{}, err
	}
	return req, nil
}

// closeRequestsForItemLocked отклоняет открытые заявки с участием объявления,
// кроме except, и освобождает остальные вещи этих заявок
func (s *Store) closeRequestsForItemLocked(sn *snapshot, j *journal, itemID, except, actorID uuid.UUID) {
	now := s.now()
	for _, r := range sn.pendingRequests() {
		if r.ID == except || !lifecycle.References(r, itemID) {
			continue
		}
		j.request(sn, r.ID)
		if !lifecycle.AutoReject(&r, now) {
			continue
		}
		sn.requests.put(r.ID, r)
		for _, other := range lifecycle.ItemIDs(r) {
			if other != itemID {
				s.releaseItemLocked(sn, j, other, actorID)
			}
		}
		s.notifyLocked(sn, j, r.RequesterID, models.NotifySwapRejected,
			"Заявка отклонена", s.itemTitleLocked(sn, r.TargetItemID), r.ID)
	}
}

// releaseRequestLocked возвращает вещи закрытой заявки в available
func (s *Store) releaseRequestLocked(sn *snapshot, j *journal, req models.SwapRequest, actorID uuid.UUID) {
	for _, id := range lifecycle.ItemIDs(req) {
		s.releaseItemLocked(sn, j, id, actorID)
	}
}

func (s *Store) releaseItemLocked(sn *snapshot, j *journal, id, actorID uuid.UUID) {
	item, ok := sn.items.get(id)
	if !ok || item.Status != models.ItemRequested {
		return
	}
	j.item(sn, id)
	if lifecycle.Release(&item, sn.requests.values(), actorID, s.now()) {
		sn.items.put(id, item)
	}
}

func (s *Store) itemTitleLocked(sn *snapshot, id uuid.UUID) string {
	item, _ := sn.items.get(id)
	return item.Title
}
