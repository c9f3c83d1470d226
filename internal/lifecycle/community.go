package lifecycle

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

// NewPost создаёт пост сообщества
func NewPost(id, authorID uuid.UUID, draft models.PostDraft, now time.Time) models.CommunityPost {
	return models.CommunityPost{
		ID:        id,
		AuthorID:  authorID,
		Title:     draft.Title,
		Body:      draft.Body,
		Voters:    map[uuid.UUID]models.Vote{},
		CreatedAt: now,
	}
}

// Vote применяет голос пользователя. Повторный голос с тем же знаком
// снимает его. Возвращает итоговый голос пользователя.
func Vote(post *models.CommunityPost, voterID uuid.UUID, vote models.Vote) (models.Vote, error) {
	if vote != models.VoteUp && vote != models.VoteDown && vote != models.VoteNone {
		return models.VoteNone, apperr.Validation("Голос должен быть 1, -1 или 0")
	}
	if post.Voters == nil {
		post.Voters = map[uuid.UUID]models.Vote{}
	}
	prev := post.Voters[voterID]
	next := vote
	if vote == prev {
		next = models.VoteNone
	}
	countVote(post, prev, -1)
	countVote(post, next, 1)
	if next == models.VoteNone {
		delete(post.Voters, voterID)
	} else {
		post.Voters[voterID] = next
	}
	return next, nil
}

func countVote(post *models.CommunityPost, v models.Vote, delta int) {
	switch v {
	case models.VoteUp:
		post.Upvotes += delta
	case models.VoteDown:
		post.Downvotes += delta
	}
}

// NewEvent создаёт событие. Дата начала должна быть в будущем.
func NewEvent(id, organizerID uuid.UUID, draft models.EventDraft, now time.Time) (models.CommunityEvent, error) {
	if !draft.StartsAt.After(now) {
		return models.CommunityEvent{}, apperr.Validation("Дата события должна быть в будущем")
	}
	return models.CommunityEvent{
		ID:          id,
		OrganizerID: organizerID,
		Title:       draft.Title,
		Description: draft.Description,
		Location:    draft.Location,
		StartsAt:    draft.StartsAt,
		Capacity:    draft.Capacity,
		CreatedAt:   now,
	}, nil
}

// JoinEvent записывает пользователя на событие с учётом вместимости
func JoinEvent(e *models.CommunityEvent, userID uuid.UUID, now time.Time) error {
	if !e.StartsAt.After(now) {
		return apperr.Conflict("Событие уже началось")
	}
	if e.HasParticipant(userID) {
		return apperr.Conflict("Вы уже записаны на событие")
	}
	if e.Capacity > 0 && len(e.Participants) >= e.Capacity {
		return apperr.Conflict("Свободных мест нет")
	}
	e.Participants = append(e.Participants, userID)
	return nil
}

// LeaveEvent отменяет запись на событие
func LeaveEvent(e *models.CommunityEvent, userID uuid.UUID, now time.Time) error {
	if !e.HasParticipant(userID) {
		return apperr.Conflict("Вы не записаны на событие")
	}
	if !e.StartsAt.After(now) {
		return apperr.Conflict("Событие уже началось")
	}
	e.Participants = slices.DeleteFunc(e.Participants, func(id uuid.UUID) bool { return id == userID })
	return nil
}
