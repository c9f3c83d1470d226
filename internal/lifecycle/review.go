package lifecycle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

var reviewEdges = map[models.ReviewStatus][]models.ReviewStatus{
	models.ReviewPending:  {models.ReviewApproved, models.ReviewRejected},
	models.ReviewApproved: {models.ReviewHidden, models.ReviewRejected},
	models.ReviewHidden:   {models.ReviewApproved, models.ReviewRejected},
}

// CanTransitionReview проверяет переход статуса отзыва
func CanTransitionReview(from, to models.ReviewStatus) bool {
	for _, next := range reviewEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionReview переводит отзыв в новый статус
func TransitionReview(r *models.Review, to models.ReviewStatus, now time.Time) error {
	if !CanTransitionReview(r.Status, to) {
		return apperr.Conflict(fmt.Sprintf("Недопустимый переход отзыва: %s → %s", r.Status, to))
	}
	r.Status = to
	r.UpdatedAt = now
	return nil
}

// NewReview создаёт отзыв по принятой заявке. Оставить отзыв может только
// участник обмена, оценка достаётся второму участнику.
func NewReview(id, reviewerID uuid.UUID, req models.SwapRequest, draft models.ReviewDraft, now time.Time, moderated bool) (models.Review, error) {
	if req.Status != models.SwapAccepted {
		return models.Review{}, apperr.Conflict("Оставить отзыв можно только после завершённого обмена")
	}
	if !req.Involves(reviewerID) {
		return models.Review{}, apperr.Unauthorized("Оставить отзыв может только участник обмена")
	}
	status := models.ReviewApproved
	if moderated {
		status = models.ReviewPending
	}
	return models.Review{
		ID:         id,
		RequestID:  req.ID,
		ReviewerID: reviewerID,
		RevieweeID: req.Counterpart(reviewerID),
		Rating:     draft.Rating,
		Comment:    draft.Comment,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// RespondReview добавляет ответ владельца отзыва. Ответить можно один раз.
func RespondReview(r *models.Review, response string, now time.Time) error {
	if r.Response != "" {
		return apperr.Conflict("На отзыв уже дан ответ")
	}
	r.Response = response
	r.UpdatedAt = now
	return nil
}

// FlagReview добавляет жалобу. Когда число жалоб достигает limit,
// одобренный отзыв скрывается. Возвращает true, если отзыв скрыт этим вызовом.
func FlagReview(r *models.Review, userID uuid.UUID, reason string, limit int, now time.Time) (bool, error) {
	if r.ReviewerID == userID {
		return false, apperr.Validation("Нельзя пожаловаться на собственный отзыв")
	}
	for _, id := range r.FlaggedBy {
		if id == userID {
			return false, apperr.Conflict("Вы уже пожаловались на этот отзыв")
		}
	}
	r.FlaggedBy = append(r.FlaggedBy, userID)
	r.Flags = append(r.Flags, reason)
	r.UpdatedAt = now
	if r.Status == models.ReviewApproved && len(r.FlaggedBy) >= limit {
		return true, TransitionReview(r, models.ReviewHidden, now)
	}
	return false, nil
}

// RatingStats считает среднюю оценку и число одобренных отзывов о пользователе
func RatingStats(reviews []models.Review, userID uuid.UUID) (float64, int) {
	sum, n := 0, 0
	for _, r := range reviews {
		if r.RevieweeID != userID || r.Status != models.ReviewApproved {
			continue
		}
		sum += r.Rating
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return float64(sum) / float64(n), n
}

// Reviewed сообщает, оставил ли пользователь отзыв по заявке
func Reviewed(reviews []models.Review, requestID, reviewerID uuid.UUID) bool {
	for _, r := range reviews {
		if r.RequestID == requestID && r.ReviewerID == reviewerID {
			return true
		}
	}
	return false
}
