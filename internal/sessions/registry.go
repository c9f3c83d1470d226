// Package sessions держит по одному хранилищу на каждого вошедшего пользователя.
//
// Хранилище пользователя создаётся при входе или восстанавливается из
// сохранённой сессии при первом запросе с его токеном. Уведомления одного
// пользователя доставляются в живое хранилище адресата и запускают его
// синхронизацию, чтобы адресат увидел заявку или сообщение без перезагрузки.
package sessions

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/store"
)

// syncTimeout ограничение фоновой синхронизации адресата
const syncTimeout = 10 * time.Second

// Factory создаёт хранилище. userID равен uuid.Nil для анонимного входа.
type Factory func(userID uuid.UUID) *store.Store

// Registry реестр живых хранилищ
type Registry struct {
	mu      sync.RWMutex
	stores  map[uuid.UUID]*store.Store
	factory Factory
	group   singleflight.Group
	wg      sync.WaitGroup
}

// New создаёт пустой реестр
func New(factory Factory) *Registry {
	return &Registry{stores: make(map[uuid.UUID]*store.Store), factory: factory}
}

// Anonymous создаёт хранилище для входа или регистрации
func (r *Registry) Anonymous() *store.Store {
	return r.factory(uuid.Nil)
}

// Adopt регистрирует хранилище после успешного входа и загружает данные.
// Прежнее хранилище того же пользователя заменяется.
func (r *Registry) Adopt(ctx context.Context, st *store.Store) (*store.Store, error) {
	user, ok := st.CurrentUser()
	if !ok {
		return nil, apperr.Unauthorized("Требуется авторизация")
	}
	if err := st.Sync(ctx); err != nil {
		log.Printf("⚠️ Первичная синхронизация пользователя %s не удалась: %v", user.ID, err)
	}
	r.mu.Lock()
	r.stores[user.ID] = st
	r.mu.Unlock()
	return st, nil
}

// Get возвращает хранилище пользователя, восстанавливая его при необходимости
func (r *Registry) Get(ctx context.Context, userID uuid.UUID) (*store.Store, error) {
	if st, ok := r.live(userID); ok {
		return st, nil
	}

	v, err, _ := r.group.Do(userID.String(), func() (any, error) {
		if st, ok := r.live(userID); ok {
			return st, nil
		}
		st := r.factory(userID)
		restored, err := st.RestoreSession(ctx)
		if err != nil {
			return nil, err
		}
		if !restored {
			return nil, apperr.Unauthorized("Сессия не найдена, войдите заново")
		}
		if err := st.Sync(ctx); err != nil {
			log.Printf("⚠️ Синхронизация восстановленной сессии %s не удалась: %v", userID, err)
		}
		r.mu.Lock()
		r.stores[userID] = st
		r.mu.Unlock()
		log.Printf("✅ Сессия пользователя %s восстановлена", userID)
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.Store), nil
}

// Drop забывает хранилище пользователя после выхода
func (r *Registry) Drop(userID uuid.UUID) {
	r.mu.Lock()
	delete(r.stores, userID)
	r.mu.Unlock()
}

// Len число живых хранилищ
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}

func (r *Registry) live(userID uuid.UUID) (*store.Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.stores[userID]
	return st, ok
}

// Notify передаёт уведомление в живое хранилище адресата и обновляет его данные.
// Уведомления для пользователей без живой сессии пропускаются.
func (r *Registry) Notify(_ context.Context, n models.Notification) error {
	st, ok := r.live(n.UserID)
	if !ok {
		return nil
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		if err := st.ReceiveNotification(ctx, n); err != nil {
			log.Printf("⚠️ Уведомление %s не доставлено в сессию: %v", n.ID, err)
		}
		if err := st.Sync(ctx); err != nil {
			log.Printf("⚠️ Синхронизация адресата %s не удалась: %v", n.UserID, err)
		}
	}()
	return nil
}

// Wait дожидается фоновых доставок
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Counterpart возвращает собеседника по заявке из хранилища пользователя
func (r *Registry) Counterpart(userID, requestID uuid.UUID) (uuid.UUID, bool) {
	st, ok := r.live(userID)
	if !ok {
		return uuid.Nil, false
	}
	req, ok := st.GetSwapRequest(requestID)
	if !ok || !req.Involves(userID) {
		return uuid.Nil, false
	}
	return req.Counterpart(userID), true
}

// MarkRead отмечает переписку прочитанной в хранилище пользователя
func (r *Registry) MarkRead(ctx context.Context, userID, requestID uuid.UUID) error {
	st, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	_, err = st.MarkConversationRead(ctx, requestID)
	return err
}
