// Package lifecycle содержит конечные автоматы сущностей: объявлений,
// заявок на обмен, сообщений и переписок.
//
// Функции пакета меняют только переданную сущность и не знают о хранилище.
// Недопустимый переход возвращает apperr.KindConflict и оставляет сущность
// без изменений.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

const (
	// BoostDuration срок действия продвижения
	BoostDuration = 7 * 24 * time.Hour
	// ListingDuration срок публикации объявления
	ListingDuration = 30 * 24 * time.Hour
)

// Действия журнала изменений объявления
const (
	ActionCreated   = "created"
	ActionStatus    = "status"
	ActionUpdated   = "updated"
	ActionBoosted   = "boosted"
	ActionUnboosted = "unboosted"
	ActionRenewed   = "renewed"
)

var itemEdges = map[models.ItemStatus][]models.ItemStatus{
	models.ItemPending:   {models.ItemAvailable, models.ItemRejected, models.ItemRemoved},
	models.ItemAvailable: {models.ItemRequested, models.ItemRemoved},
	models.ItemRequested: {models.ItemSwapped, models.ItemAvailable, models.ItemRemoved},
}

// CanTransitionItem проверяет, что переход статуса объявления допустим
func CanTransitionItem(from, to models.ItemStatus) bool {
	for _, next := range itemEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NewItem создаёт объявление из черновика. С модерацией объявление начинает
// в статусе pending, без неё сразу available.
func NewItem(id, ownerID uuid.UUID, draft models.ItemDraft, now time.Time, moderated bool) models.Item {
	status := models.ItemAvailable
	if moderated {
		status = models.ItemPending
	}
	item := models.Item{
		ID:          id,
		OwnerID:     ownerID,
		Title:       draft.Title,
		Description: draft.Description,
		Category:    draft.Category,
		Condition:   draft.Condition,
		Images:      normalizeImages(draft.Images),
		Status:      status,
		ExpiresAt:   now.Add(ListingDuration),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	item.History = []models.ItemChange{{At: now, ActorID: ownerID, Action: ActionCreated, To: status}}
	return item
}

// normalizeImages проставляет позиции и гарантирует ровно одно главное фото
func normalizeImages(images []models.ItemImage) []models.ItemImage {
	if len(images) == 0 {
		return nil
	}
	out := make([]models.ItemImage, len(images))
	mainSeen := false
	for i, img := range images {
		img.Position = i
		if img.IsMain && mainSeen {
			img.IsMain = false
		}
		mainSeen = mainSeen || img.IsMain
		out[i] = img
	}
	if !mainSeen {
		out[0].IsMain = true
	}
	return out
}

// TransitionItem переводит объявление в новый статус и пишет запись в журнал
func TransitionItem(item *models.Item, to models.ItemStatus, actorID uuid.UUID, now time.Time, note string) error {
	if !CanTransitionItem(item.Status, to) {
		return apperr.Conflict(fmt.Sprintf("Недопустимый переход объявления: %s → %s", item.Status, to))
	}
	from := item.Status
	item.Status = to
	if to.Terminal() {
		clearBoost(item)
	}
	item.UpdatedAt = now
	item.History = append(item.History, models.ItemChange{
		At: now, ActorID: actorID, Action: ActionStatus, From: from, To: to, Note: note,
	})
	return nil
}

// ApplyUpdate применяет изменения полей объявления. Смена категории или
// состояния сбрасывает закэшированный экологический эффект.
func ApplyUpdate(item *models.Item, upd models.ItemUpdate, actorID uuid.UUID, now time.Time) error {
	if item.Status.Terminal() {
		return apperr.Conflict("Объявление уже нельзя изменить")
	}
	if upd.Title != nil {
		item.Title = *upd.Title
	}
	if upd.Description != nil {
		item.Description = *upd.Description
	}
	if upd.Category != nil && *upd.Category != item.Category {
		item.Category = *upd.Category
		item.Impact = nil
	}
	if upd.Condition != nil && *upd.Condition != item.Condition {
		item.Condition = *upd.Condition
		item.Impact = nil
	}
	item.UpdatedAt = now
	item.History = append(item.History, models.ItemChange{At: now, ActorID: actorID, Action: ActionUpdated})
	return nil
}

// Boost продвигает объявление на BoostDuration. Статус не меняется.
func Boost(item *models.Item, actorID uuid.UUID, now time.Time) error {
	if item.Status.Terminal() {
		return apperr.Conflict("Нельзя продвинуть закрытое объявление")
	}
	expires := now.Add(BoostDuration)
	item.IsBoosted = true
	item.BoostExpiresAt = &expires
	item.UpdatedAt = now
	item.History = append(item.History, models.ItemChange{At: now, ActorID: actorID, Action: ActionBoosted})
	return nil
}

// Unboost снимает продвижение. Повторный вызов ничего не меняет.
func Unboost(item *models.Item, actorID uuid.UUID, now time.Time) bool {
	if !item.IsBoosted && item.BoostExpiresAt == nil {
		return false
	}
	clearBoost(item)
	item.UpdatedAt = now
	item.History = append(item.History, models.ItemChange{At: now, ActorID: actorID, Action: ActionUnboosted})
	return true
}

func clearBoost(item *models.Item) {
	item.IsBoosted = false
	item.BoostExpiresAt = nil
}

// Renew продлевает публикацию на ListingDuration и возвращает объявление
// в статус available. Объявление на модерации остаётся pending, закрытые
// объявления продлить нельзя.
func Renew(item *models.Item, actorID uuid.UUID, now time.Time) error {
	switch item.Status {
	case models.ItemAvailable, models.ItemPending:
	case models.ItemRequested:
		if err := TransitionItem(item, models.ItemAvailable, actorID, now, "renewed"); err != nil {
			return err
		}
	default:
		return apperr.Conflict("Закрытое объявление нельзя продлить")
	}
	item.ExpiresAt = now.Add(ListingDuration)
	item.UpdatedAt = now
	item.History = append(item.History, models.ItemChange{At: now, ActorID: actorID, Action: ActionRenewed})
	return nil
}

// RecordView увеличивает счётчик просмотров
func RecordView(item *models.Item) {
	item.Views++
}

// RecordRequest увеличивает счётчик заявок
func RecordRequest(item *models.Item) {
	item.Requests++
}

// RecordSave увеличивает счётчик сохранений
func RecordSave(item *models.Item) {
	item.Saves++
}

// RecordUnsave уменьшает счётчик сохранений ровно на один
func RecordUnsave(item *models.Item) {
	if item.Saves > 0 {
		item.Saves--
	}
}

// UpdateReason причина, по которой объявление требует обновления статуса
type UpdateReason string

const (
	ReasonBoostExpired   UpdateReason = "boost_expired"
	ReasonListingExpired UpdateReason = "listing_expired"
)

// StatusUpdate объявление, которое нужно понизить
type StatusUpdate struct {
	ItemID uuid.UUID    `json:"item_id"`
	Reason UpdateReason `json:"reason"`
}

// ItemsNeedingStatusUpdate находит объявления с истёкшим продвижением или
// сроком публикации. Объявления с активной заявкой по сроку не снимаются.
func ItemsNeedingStatusUpdate(items []models.Item, now time.Time) []StatusUpdate {
	var out []StatusUpdate
	for _, item := range items {
		if item.Status.Terminal() {
			continue
		}
		if item.IsBoosted && item.BoostExpiresAt != nil && !now.Before(*item.BoostExpiresAt) {
			out = append(out, StatusUpdate{ItemID: item.ID, Reason: ReasonBoostExpired})
		}
		if item.Status != models.ItemRequested && !item.ExpiresAt.IsZero() && !now.Before(item.ExpiresAt) {
			out = append(out, StatusUpdate{ItemID: item.ID, Reason: ReasonListingExpired})
		}
	}
	return out
}

// ApplyStatusUpdate применяет понижение к объявлению
func ApplyStatusUpdate(item *models.Item, upd StatusUpdate, now time.Time) error {
	switch upd.Reason {
	case ReasonBoostExpired:
		Unboost(item, uuid.Nil, now)
		return nil
	case ReasonListingExpired:
		return TransitionItem(item, models.ItemRemoved, uuid.Nil, now, "listing expired")
	default:
		return apperr.Validation(fmt.Sprintf("Неизвестная причина обновления: %s", upd.Reason))
	}
}
