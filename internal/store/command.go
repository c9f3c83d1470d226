package store

import (
	"context"
	"errors"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
)

// rollbackStrategy определяет реакцию на отказ внешнего сервиса
type rollbackStrategy int

const (
	// restoreOnFailure восстанавливает сущности из журнала
	restoreOnFailure rollbackStrategy = iota
	// keepOnFailure оставляет оптимистичное изменение как есть
	keepOnFailure
	// customOnFailure вызывает command.onFailure, например чтобы пометить сообщения failed
	customOnFailure
)

// command двухфазная команда хранилища
type command struct {
	name string
	// failure сообщение для пользователя при отказе внешнего сервиса
	failure string
	// apply проверяет предусловия и применяет оптимистичное изменение.
	// Вызывается под блокировкой; при ошибке все изменения отменяются.
	apply func(sn *snapshot, j *journal) error
	// call обращается к внешнему сервису без блокировки. nil для локальных действий.
	call func(ctx context.Context) error
	// confirm фиксирует ответ сервиса под блокировкой
	confirm func(sn *snapshot, j *journal)
	// strategy стратегия при отказе сервиса
	strategy  rollbackStrategy
	onFailure func(sn *snapshot, j *journal, err error)
}

// run выполняет команду
func (s *Store) run(ctx context.Context, cmd command) error {
	ctx, span := tracer.Start(ctx, "store."+cmd.name)
	defer span.End()

	j := newJournal()

	s.mu.Lock()
	if err := cmd.apply(s.snap, j); err != nil {
		j.undo(s.snap, true)
		s.failLocked(span, err)
		s.mu.Unlock()
		return err
	}
	j.seal(s.snap)
	s.mu.Unlock()

	var callErr error
	if cmd.call != nil {
		callErr = cmd.call(ctx)
	}

	s.mu.Lock()
	if callErr != nil {
		err := transportError(cmd.failure, callErr)
		switch cmd.strategy {
		case restoreOnFailure:
			j.undo(s.snap, false)
		case customOnFailure:
			if cmd.onFailure != nil {
				cmd.onFailure(s.snap, j, err)
			}
		case keepOnFailure:
		}
		s.failLocked(span, err)
		s.mu.Unlock()
		log.Printf("❌ Ошибка действия %s: %v", cmd.name, callErr)
		return err
	}
	if cmd.confirm != nil {
		cmd.confirm(s.snap, j)
	}
	effects := s.collectEffectsLocked(j)
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("store.notifications", len(effects.outbox)))
	s.runEffects(ctx, effects)
	return nil
}

// transportError сохраняет доменную ошибку сервиса или оборачивает отказ как транспортный
func transportError(failure string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if failure == "" {
		failure = "Сервис временно недоступен"
	}
	return apperr.Transport(failure, err)
}

func (s *Store) failLocked(span trace.Span, err error) {
	s.snap.lastError = apperr.Message(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, s.snap.lastError)
	span.SetAttributes(attribute.String("store.error_kind", string(apperr.KindOf(err))))
}

// effects побочные эффекты подтверждённой команды
type effects struct {
	outbox     []models.Notification
	invalidate bool
	session    *models.SessionSnapshot
	clear      bool
	after      []func()
}

func (s *Store) collectEffectsLocked(j *journal) effects {
	e := effects{
		outbox:     j.outbox,
		invalidate: j.invalidateAnalytics,
		clear:      j.clearSession,
		after:      j.after,
	}
	if j.persistSession && s.snap.session.Authenticated {
		snap := s.sessionSnapshotLocked()
		e.session = &snap
	}
	return e
}

// runEffects выполняет побочные эффекты. Их ошибки не отменяют действие.
func (s *Store) runEffects(ctx context.Context, e effects) {
	for _, n := range e.outbox {
		if err := s.api.Notifier.Notify(ctx, n); err != nil {
			log.Printf("⚠️ Не удалось доставить уведомление %s: %v", n.Kind, err)
		}
	}
	if e.invalidate {
		if err := s.api.Analytics.Invalidate(ctx); err != nil {
			log.Printf("⚠️ Не удалось сбросить кэш аналитики: %v", err)
		}
	}
	if e.session != nil {
		if err := s.api.Session.SaveSession(ctx, *e.session); err != nil {
			log.Printf("⚠️ Не удалось сохранить сессию: %v", err)
		}
	}
	if e.clear {
		if err := s.api.Session.ClearSession(ctx); err != nil {
			log.Printf("⚠️ Не удалось очистить сессию: %v", err)
		}
	}
	for _, f := range e.after {
		f()
	}
}

func (s *Store) sessionSnapshotLocked() models.SessionSnapshot {
	u, _ := s.snap.users.get(s.snap.session.UserID)
	saved := append(s.snap.saved[:0:0], s.snap.saved...)
	return models.SessionSnapshot{
		User:         u,
		Token:        s.snap.session.Token,
		SavedItemIDs: saved,
		SavedAt:      s.now(),
	}
}
