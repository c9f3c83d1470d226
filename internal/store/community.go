package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/lifecycle"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/permissions"
)

// CreatePost публикует пост сообщества
func (s *Store) CreatePost(ctx context.Context, draft models.PostDraft) (models.CommunityPost, error) {
	if err := s.checkInput(draft); err != nil {
		s.recordError(err)
		return models.CommunityPost{}, err
	}
	var post models.CommunityPost
	err := s.run(ctx, command{
		name:    "CreatePost",
		failure: "Не удалось опубликовать пост",
		apply: func(sn *snapshot, j *journal) error {
			author, err := requireAction(sn, permissions.ActionCreate, permissions.Resource{Kind: permissions.ResourcePost})
			if err != nil {
				return err
			}
			post = lifecycle.NewPost(s.newID(), author.ID, draft, s.now())
			j.post(sn, post.ID)
			sn.posts.put(post.ID, post)
			return nil
		},
		call: func(ctx context.Context) error {
			_, err := s.api.Community.CreatePost(ctx, post)
			return err
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return models.CommunityPost{}, err
	}
	return post, nil
}

// VotePost голосует за пост. Повторный голос с тем же знаком снимает его.
func (s *Store) VotePost(ctx context.Context, id uuid.UUID, vote models.Vote) (models.CommunityPost, error) {
	var post models.CommunityPost
	err := s.run(ctx, command{
		name:    "VotePost",
		failure: "Не удалось сохранить голос",
		apply: func(sn *snapshot, j *journal) error {
			voter, err := requirePermission(sn, permissions.CommunityVote)
			if err != nil {
				return err
			}
			cur, ok := sn.posts.get(id)
			if !ok {
				return apperr.NotFound(msgPostNotFound)
			}
			j.post(sn, id)
			if _, err := lifecycle.Vote(&cur, voter.ID, vote); err != nil {
				return err
			}
			sn.posts.put(id, cur)
			post = cur
			return nil
		},
		call: func(ctx context.Context) error {
			_, err := s.api.Community.UpdatePost(ctx, post)
			return err
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return models.CommunityPost{}, err
	}
	return post, nil
}

// CreateEvent создаёт событие сообщества
func (s *Store) CreateEvent(ctx context.Context, draft models.EventDraft) (models.CommunityEvent, error) {
	if err := s.checkInput(draft); err != nil {
		s.recordError(err)
		return models.CommunityEvent{}, err
	}
	var event models.CommunityEvent
	err := s.run(ctx, command{
		name:    "CreateEvent",
		failure: "Не удалось создать событие",
		apply: func(sn *snapshot, j *journal) error {
			organizer, err := requireAction(sn, permissions.ActionCreate, permissions.Resource{Kind: permissions.ResourceEvent})
			if err != nil {
				return err
			}
			event, err = lifecycle.NewEvent(s.newID(), organizer.ID, draft, s.now())
			if err != nil {
				return err
			}
			j.event(sn, event.ID)
			sn.events.put(event.ID, event)
			return nil
		},
		call: func(ctx context.Context) error {
			_, err := s.api.Community.CreateEvent(ctx, event)
			return err
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return models.CommunityEvent{}, err
	}
	return event, nil
}

// JoinEvent записывает текущего пользователя на событие
func (s *Store) JoinEvent(ctx context.Context, id uuid.UUID) (models.CommunityEvent, error) {
	return s.attendEvent(ctx, "JoinEvent", id, true)
}

// LeaveEvent отменяет запись на событие
func (s *Store) LeaveEvent(ctx context.Context, id uuid.UUID) (models.CommunityEvent, error) {
	return s.attendEvent(ctx, "LeaveEvent", id, false)
}

// attendEvent меняет состав участников и счётчик посещённых событий пользователя
func (s *Store) attendEvent(ctx context.Context, name string, id uuid.UUID, join bool) (models.CommunityEvent, error) {
	var (
		event models.CommunityEvent
		dirty dirtySet
	)
	err := s.run(ctx, command{
		name:    name,
		failure: "Не удалось обновить запись на событие",
		apply: func(sn *snapshot, j *journal) error {
			me, err := requirePermission(sn, permissions.EventJoin)
			if err != nil {
				return err
			}
			cur, ok := sn.events.get(id)
			if !ok {
				return apperr.NotFound(msgEventNotFound)
			}
			now := s.now()
			j.event(sn, id)
			j.user(sn, me.ID)
			if join {
				err = lifecycle.JoinEvent(&cur, me.ID, now)
				me.Stats.EventsAttended++
			} else {
				err = lifecycle.LeaveEvent(&cur, me.ID, now)
				me.Stats.EventsAttended = max(0, me.Stats.EventsAttended-1)
			}
			if err != nil {
				return err
			}
			sn.events.put(id, cur)
			sn.users.put(me.ID, me)
			s.refreshDerivedLocked(sn, j, me.ID)
			event = cur
			dirty = collectDirty(sn, j)
			return nil
		},
		call: func(ctx context.Context) error {
			return s.push(ctx, dirty)
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return models.CommunityEvent{}, err
	}
	return event, nil
}
