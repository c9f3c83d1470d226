package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/lifecycle"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/permissions"
)

func findReview(sn *snapshot, id uuid.UUID) (models.Review, error) {
	r, ok := sn.reviews.get(id)
	if !ok {
		return models.Review{}, apperr.NotFound(msgReviewNotFound)
	}
	return r, nil
}

// refreshRatingLocked пересчитывает оценку пользователя по одобренным отзывам
func (s *Store) refreshRatingLocked(sn *snapshot, j *journal, userID uuid.UUID) {
	u, ok := sn.users.get(userID)
	if !ok {
		return
	}
	j.user(sn, userID)
	u.Stats.Rating, u.Stats.ReviewCount = lifecycle.RatingStats(sn.reviews.values(), userID)
	sn.users.put(userID, u)
	s.refreshDerivedLocked(sn, j, userID)
}

// CreateReview оставляет отзыв о втором участнике принятого обмена
func (s *Store) CreateReview(ctx context.Context, draft models.ReviewDraft) (models.Review, error) {
	if err := s.checkInput(draft); err != nil {
		s.recordError(err)
		return models.Review{}, err
	}

	var (
		review models.Review
		dirty  dirtySet
	)
	err := s.run(ctx, command{
		name:    "CreateReview",
		failure: "Не удалось сохранить отзыв",
		apply: func(sn *snapshot, j *journal) error {
			reviewer, err := requireAction(sn, permissions.ActionCreate, permissions.Resource{Kind: permissions.ResourceReview})
			if err != nil {
				return err
			}
			req, err := findRequest(sn, draft.RequestID)
			if err != nil {
				return err
			}
			if lifecycle.Reviewed(sn.reviews.values(), req.ID, reviewer.ID) {
				return apperr.Conflict("Вы уже оставили отзыв по этому обмену")
			}
			review, err = lifecycle.NewReview(s.newID(), reviewer.ID, req, draft, s.now(), s.cfg.RequireModeration)
			if err != nil {
				return err
			}
			j.review(sn, review.ID)
			sn.reviews.put(review.ID, review)
			if review.Status == models.ReviewApproved {
				s.refreshRatingLocked(sn, j, review.RevieweeID)
				s.notifyLocked(sn, j, review.RevieweeID, models.NotifyNewReview, "Новый отзыв", review.Comment, review.ID)
			}
			dirty = collectDirty(sn, j)
			return nil
		},
		call: func(ctx context.Context) error {
			if _, err := s.api.Reviews.CreateReview(ctx, review); err != nil {
				return err
			}
			return s.push(ctx, dirty)
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return models.Review{}, err
	}
	return review, nil
}

// mutateReview общая команда изменения отзыва с откатом по журналу
func (s *Store) mutateReview(ctx context.Context, name, failure string, id uuid.UUID, mutate func(sn *snapshot, j *journal, r *models.Review) error) (models.Review, error) {
	var (
		review models.Review
		dirty  dirtySet
	)
	err := s.run(ctx, command{
		name:    name,
		failure: failure,
		apply: func(sn *snapshot, j *journal) error {
			cur, err := findReview(sn, id)
			if err != nil {
				return err
			}
			j.review(sn, id)
			if err := mutate(sn, j, &cur); err != nil {
				return err
			}
			sn.reviews.put(id, cur)
			review = cur
			dirty = collectDirty(sn, j)
			return nil
		},
		call: func(ctx context.Context) error {
			if _, err := s.api.Reviews.UpdateReview(ctx, review); err != nil {
				return err
			}
			return s.push(ctx, dirty)
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return models.Review{}, err
	}
	return review, nil
}

// RespondToReview добавляет ответ пользователя на отзыв о нём
func (s *Store) RespondToReview(ctx context.Context, id uuid.UUID, response string) (models.Review, error) {
	response = strings.TrimSpace(response)
	if response == "" || len([]rune(response)) > 1000 {
		err := apperr.Validation("Ответ должен содержать от 1 до 1000 символов")
		s.recordError(err)
		return models.Review{}, err
	}
	return s.mutateReview(ctx, "RespondToReview", "Не удалось сохранить ответ", id,
		func(sn *snapshot, _ *journal, r *models.Review) error {
			if _, err := requireAction(sn, permissions.ActionRespond, permissions.Resource{Kind: permissions.ResourceReview, OwnerID: r.RevieweeID}); err != nil {
				return err
			}
			return lifecycle.RespondReview(r, response, s.now())
		})
}

// ModerateReview одобряет или отклоняет отзыв и пересчитывает оценку пользователя
func (s *Store) ModerateReview(ctx context.Context, id uuid.UUID, approve bool) (models.Review, error) {
	return s.mutateReview(ctx, "ModerateReview", "Не удалось сохранить решение модерации", id,
		func(sn *snapshot, j *journal, r *models.Review) error {
			if _, err := requireAction(sn, permissions.ActionModerate, permissions.Resource{Kind: permissions.ResourceReview}); err != nil {
				return err
			}
			to := models.ReviewRejected
			if approve {
				to = models.ReviewApproved
			}
			if err := lifecycle.TransitionReview(r, to, s.now()); err != nil {
				return err
			}
			sn.reviews.put(r.ID, *r)
			s.refreshRatingLocked(sn, j, r.RevieweeID)
			return nil
		})
}

// FlagReview добавляет жалобу на отзыв. Достигнув ReviewFlagLimit жалоб,
// отзыв скрывается и перестаёт учитываться в оценке.
func (s *Store) FlagReview(ctx context.Context, id uuid.UUID, reason string) (models.Review, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		err := apperr.Validation("Укажите причину жалобы")
		s.recordError(err)
		return models.Review{}, err
	}
	return s.mutateReview(ctx, "FlagReview", "Не удалось отправить жалобу", id,
		func(sn *snapshot, j *journal, r *models.Review) error {
			me, err := requireUser(sn)
			if err != nil {
				return err
			}
			hidden, err := lifecycle.FlagReview(r, me.ID, reason, s.cfg.ReviewFlagLimit, s.now())
			if err != nil {
				return err
			}
			if hidden {
				sn.reviews.put(r.ID, *r)
				s.refreshRatingLocked(sn, j, r.RevieweeID)
			}
			return nil
		})
}
