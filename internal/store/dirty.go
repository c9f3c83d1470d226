package store

import (
	"context"
	"log"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

// dirtySet изменения команды: after уходит на сервер, before возвращает
// сервер к прежнему состоянию, если отправка оборвалась на середине
type dirtySet struct {
	after  models.ChangeSet
	before models.ChangeSet
}

// collectDirty собирает изменённые сущности после применения команды.
// Созданные командой заявки попадают в NewRequests, остальные новые
// сущности сохраняются своими командами отдельно.
func collectDirty(sn *snapshot, j *journal) dirtySet {
	var d dirtySet
	for _, e := range j.entries {
		switch e.key.kind {
		case "item":
			collectEntity(sn.items, e, &d.after.Items, &d.before.Items)
		case "request":
			if e.pre == nil {
				if req, ok := sn.requests.get(e.key.id); ok {
					d.after.NewRequests = append(d.after.NewRequests, req)
				}
				continue
			}
			collectEntity(sn.requests, e, &d.after.Requests, &d.before.Requests)
		case "user":
			collectEntity(sn.users, e, &d.after.Users, &d.before.Users)
		case "event":
			collectEntity(sn.events, e, &d.after.Events, &d.before.Events)
		}
	}
	return d
}

func collectEntity[T any](c *collection[T], e journalEntry, after, before *[]T) {
	pre, existed := e.pre.(T)
	cur, ok := c.get(e.key.id)
	if !existed || !ok {
		return
	}
	*after = append(*after, cur)
	*before = append(*before, pre)
}

// push отправляет изменения команды на сервер одним пакетом
func (s *Store) push(ctx context.Context, d dirtySet) error {
	if d.after.Empty() {
		return nil
	}
	if s.api.Commit != nil {
		return s.api.Commit.Commit(ctx, d.after)
	}
	return s.pushEach(ctx, d)
}

// pushEach отправляет сущности по одной, когда сервер не умеет принимать
// пакет. После первой ошибки уже записанные сущности возвращаются к
// прежним значениям. Заявки создаются последними: отменить создание нельзя.
func (s *Store) pushEach(ctx context.Context, d dirtySet) error {
	var written []func(context.Context) error
	fail := func(err error) error {
		ctx := context.WithoutCancel(ctx)
		for i := len(written) - 1; i >= 0; i-- {
			if cerr := written[i](ctx); cerr != nil {
				log.Printf("❌ Не удалось вернуть сервер к прежнему состоянию: %v", cerr)
			}
		}
		return err
	}

	steps := []func() error{
		func() error {
			return pushAll(ctx, d.after.Requests, d.before.Requests, &written, func(ctx context.Context, r models.SwapRequest) error {
				_, err := s.api.Swaps.UpdateSwapRequest(ctx, r)
				return err
			})
		},
		func() error {
			return pushAll(ctx, d.after.Items, d.before.Items, &written, func(ctx context.Context, i models.Item) error {
				_, err := s.api.Items.UpdateItem(ctx, i)
				return err
			})
		},
		func() error {
			return pushAll(ctx, d.after.Users, d.before.Users, &written, func(ctx context.Context, u models.User) error {
				_, err := s.api.Auth.UpdateUser(ctx, u)
				return err
			})
		},
		func() error {
			return pushAll(ctx, d.after.Events, d.before.Events, &written, func(ctx context.Context, ev models.CommunityEvent) error {
				_, err := s.api.Community.UpdateEvent(ctx, ev)
				return err
			})
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fail(err)
		}
	}
	for _, req := range d.after.NewRequests {
		if _, err := s.api.Swaps.CreateSwapRequest(ctx, req); err != nil {
			return fail(err)
		}
	}
	return nil
}

// pushAll записывает after[i] и запоминает, как вернуть before[i]
func pushAll[T any](ctx context.Context, after, before []T, written *[]func(context.Context) error, write func(context.Context, T) error) error {
	for i, v := range after {
		if err := write(ctx, v); err != nil {
			return err
		}
		pre := before[i]
		*written = append(*written, func(ctx context.Context) error { return write(ctx, pre) })
	}
	return nil
}
