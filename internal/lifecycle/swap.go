package lifecycle

import (
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

// Тексты ошибок заявок
const (
	MsgRequestResolved  = "Заявка уже обработана"
	MsgOwnItem          = "Нельзя предложить обмен на собственное объявление"
	MsgItemUnavailable  = "Объявление недоступно для обмена"
	MsgOfferedNotOwned  = "Предлагаемая вещь принадлежит другому пользователю"
	MsgOfferedSameAsTgt = "Нельзя предложить объявление в обмен на него же"
)

// SwapSystemMessage текст системного сообщения при принятии обмена
const SwapSystemMessage = "Обмен был принят. Вы можете обсудить детали здесь."

// Swappable сообщает, можно ли предложить обмен на объявление
func Swappable(item models.Item) bool {
	return item.Status == models.ItemAvailable || item.Status == models.ItemRequested
}

// NewSwapRequest создаёт заявку после проверки участников и вещей.
// offered может быть nil, если пользователь ничего не предлагает взамен.
func NewSwapRequest(id, requesterID uuid.UUID, target models.Item, offered *models.Item, message string, now time.Time) (models.SwapRequest, error) {
	if target.OwnerID == requesterID {
		return models.SwapRequest{}, apperr.Validation(MsgOwnItem)
	}
	if !Swappable(target) {
		return models.SwapRequest{}, apperr.Conflict(MsgItemUnavailable)
	}

	req := models.SwapRequest{
		ID:           id,
		RequesterID:  requesterID,
		RecipientID:  target.OwnerID,
		TargetItemID: target.ID,
		Message:      message,
		Status:       models.SwapPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if offered != nil {
		if offered.ID == target.ID {
			return models.SwapRequest{}, apperr.Validation(MsgOfferedSameAsTgt)
		}
		if offered.OwnerID != requesterID {
			return models.SwapRequest{}, apperr.Unauthorized(MsgOfferedNotOwned)
		}
		if !Swappable(*offered) {
			return models.SwapRequest{}, apperr.Conflict("Предлагаемая вещь недоступна для обмена")
		}
		offeredID := offered.ID
		req.OfferedItemID = &offeredID
	}
	return req, nil
}

// Respond принимает или отклоняет заявку. Отвечать может только получатель,
// повторный ответ возвращает конфликт и не меняет статус.
func Respond(req *models.SwapRequest, actorID uuid.UUID, decision models.SwapStatus, now time.Time) error {
	if decision != models.SwapAccepted && decision != models.SwapRejected {
		return apperr.Validation("Ответ должен быть accepted или rejected")
	}
	if req.RecipientID != actorID {
		return apperr.Unauthorized("Отвечать на заявку может только владелец объявления")
	}
	if req.Status.Terminal() {
		return apperr.Conflict(MsgRequestResolved)
	}
	resolve(req, decision, now)
	return nil
}

// Cancel отменяет заявку. Отменить может только автор и только пока она pending.
func Cancel(req *models.SwapRequest, actorID uuid.UUID, now time.Time) error {
	if req.RequesterID != actorID {
		return apperr.Unauthorized("Отменить заявку может только её автор")
	}
	if req.Status.Terminal() {
		return apperr.Conflict(MsgRequestResolved)
	}
	resolve(req, models.SwapCancelled, now)
	return nil
}

// AutoReject закрывает конкурирующую заявку после принятия другой.
// Уже обработанные заявки не трогает.
func AutoReject(req *models.SwapRequest, now time.Time) bool {
	if req.Status.Terminal() {
		return false
	}
	resolve(req, models.SwapRejected, now)
	return true
}

func resolve(req *models.SwapRequest, status models.SwapStatus, now time.Time) {
	req.Status = status
	t := now
	req.RespondedAt = &t
	req.UpdatedAt = now
}

// ItemIDs возвращает объявления, участвующие в заявке
func ItemIDs(req models.SwapRequest) []uuid.UUID {
	ids := []uuid.UUID{req.TargetItemID}
	if req.OfferedItemID != nil {
		ids = append(ids, *req.OfferedItemID)
	}
	return ids
}

// References сообщает, участвует ли объявление в заявке
func References(req models.SwapRequest, itemID uuid.UUID) bool {
	for _, id := range ItemIDs(req) {
		if id == itemID {
			return true
		}
	}
	return false
}

// HasPendingFor сообщает, есть ли среди заявок открытые с участием объявления
func HasPendingFor(requests []models.SwapRequest, itemID uuid.UUID) bool {
	for _, r := range requests {
		if r.Status == models.SwapPending && References(r, itemID) {
			return true
		}
	}
	return false
}

// MarkRequested переводит объявление в requested, если оно было доступно
func MarkRequested(item *models.Item, actorID uuid.UUID, now time.Time) error {
	if item.Status == models.ItemRequested {
		return nil
	}
	return TransitionItem(item, models.ItemRequested, actorID, now, "swap requested")
}

// CompleteSwap переводит объявление в swapped. Доступное объявление
// проходит через requested, чтобы не нарушать таблицу переходов.
func CompleteSwap(item *models.Item, actorID uuid.UUID, now time.Time) error {
	if item.Status == models.ItemAvailable {
		if err := TransitionItem(item, models.ItemRequested, actorID, now, "swap accepted"); err != nil {
			return err
		}
	}
	return TransitionItem(item, models.ItemSwapped, actorID, now, "swap accepted")
}

// Release возвращает объявление в available, если по нему не осталось
// открытых заявок. Возвращает true, если статус изменился.
func Release(item *models.Item, requests []models.SwapRequest, actorID uuid.UUID, now time.Time) bool {
	if item.Status != models.ItemRequested || HasPendingFor(requests, item.ID) {
		return false
	}
	return TransitionItem(item, models.ItemAvailable, actorID, now, "swap closed") == nil
}
