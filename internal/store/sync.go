package store

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/lifecycle"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/permissions"
)

// fetched данные, загруженные из внешних сервисов
type fetched struct {
	users    []models.User
	items    []models.Item
	requests []models.SwapRequest
	reviews  []models.Review
	posts    []models.CommunityPost
	events   []models.CommunityEvent
	messages map[uuid.UUID][]models.ChatMessage
}

// Sync загружает все коллекции из внешних сервисов и сливает их со снимком.
// Данные сервиса побеждают, кроме сущностей, изменённых локально, пока шла загрузка.
func (s *Store) Sync(ctx context.Context) error {
	var (
		me    uuid.UUID
		since uint64
		data  fetched
	)
	return s.run(ctx, command{
		name:    "Sync",
		failure: "Не удалось загрузить данные",
		apply: func(sn *snapshot, _ *journal) error {
			u, err := requireUser(sn)
			if err != nil {
				return err
			}
			me = u.ID
			since = sn.clock
			return nil
		},
		call: func(ctx context.Context) error {
			var err error
			data, err = s.fetchAll(ctx, me)
			return err
		},
		confirm: func(sn *snapshot, _ *journal) {
			if !sn.session.Authenticated || sn.session.UserID != me {
				log.Printf("⚠️ Сессия сменилась во время загрузки, данные отброшены")
				return
			}
			n := mergeFetched(sn, data, since)
			if u, ok := sn.currentUser(); ok {
				sn.perms = permissions.Resolve(u.Role)
			}
			log.Printf("✅ Синхронизация завершена, обновлено сущностей: %d", n)
		},
		strategy: keepOnFailure,
	})
}

func (s *Store) fetchAll(ctx context.Context, userID uuid.UUID) (fetched, error) {
	var (
		data fetched
		err  error
	)
	if data.users, err = s.api.Auth.FetchUsers(ctx); err != nil {
		return data, fmt.Errorf("fetch users: %w", err)
	}
	if data.items, err = s.api.Items.FetchItems(ctx); err != nil {
		return data, fmt.Errorf("fetch items: %w", err)
	}
	if data.requests, err = s.api.Swaps.FetchSwapRequests(ctx, userID); err != nil {
		return data, fmt.Errorf("fetch swap requests: %w", err)
	}
	if data.reviews, err = s.api.Reviews.FetchReviews(ctx); err != nil {
		return data, fmt.Errorf("fetch reviews: %w", err)
	}
	if data.posts, err = s.api.Community.FetchPosts(ctx); err != nil {
		return data, fmt.Errorf("fetch posts: %w", err)
	}
	if data.events, err = s.api.Community.FetchEvents(ctx); err != nil {
		return data, fmt.Errorf("fetch events: %w", err)
	}
	data.messages = make(map[uuid.UUID][]models.ChatMessage, len(data.requests))
	for _, r := range data.requests {
		msgs, err := s.api.Messages.FetchMessages(ctx, r.ID)
		if err != nil {
			return data, fmt.Errorf("fetch messages %s: %w", r.ID, err)
		}
		data.messages[r.ID] = msgs
	}
	return data, nil
}

// mergeInto кладёт в коллекцию сущности сервиса, пропуская изменённые после since.
// Слитая сущность получает новую версию, и откат более ранней команды её не затрёт.
func mergeInto[T any](sn *snapshot, c *collection[T], kind string, values []T, id func(T) uuid.UUID, since uint64) int {
	n := 0
	for _, v := range values {
		key := revKey{kind: kind, id: id(v)}
		if sn.rev[key] > since {
			continue
		}
		c.put(key.id, v)
		sn.clock++
		sn.rev[key] = sn.clock
		n++
	}
	return n
}

func mergeFetched(sn *snapshot, data fetched, since uint64) int {
	n := mergeInto(sn, sn.users, "user", data.users, func(u models.User) uuid.UUID { return u.ID }, since)
	n += mergeInto(sn, sn.items, "item", data.items, func(i models.Item) uuid.UUID { return i.ID }, since)
	n += mergeInto(sn, sn.requests, "request", data.requests, func(r models.SwapRequest) uuid.UUID { return r.ID }, since)
	n += mergeInto(sn, sn.reviews, "review", data.reviews, func(r models.Review) uuid.UUID { return r.ID }, since)
	n += mergeInto(sn, sn.posts, "post", data.posts, func(p models.CommunityPost) uuid.UUID { return p.ID }, since)
	n += mergeInto(sn, sn.events, "event", data.events, func(e models.CommunityEvent) uuid.UUID { return e.ID }, since)

	for reqID, msgs := range data.messages {
		local := sn.messages[reqID]
		meta := sn.meta(reqID)
		for _, m := range msgs {
			if lifecycle.IndexByID(local, m.ID) >= 0 {
				continue
			}
			if m.TempID != uuid.Nil && lifecycle.IndexByID(local, m.TempID) >= 0 {
				continue
			}
			local = append(local, m)
			lifecycle.TouchConversation(&meta, m, false)
			n++
		}
		sn.messages[reqID] = local
		sn.conversations[reqID] = meta
	}
	return n
}
