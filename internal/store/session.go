package store

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/analytics"
	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/permissions"
)

// authenticate общая команда входа. При отказе сервиса сессия
// возвращается к состоянию до попытки входа.
func (s *Store) authenticate(ctx context.Context, name, failure string, login func(ctx context.Context) (models.User, string, error)) (models.User, error) {
	var (
		user  models.User
		token string
	)
	err := s.run(ctx, command{
		name:    name,
		failure: failure,
		apply: func(sn *snapshot, j *journal) error {
			j.session(sn)
			sn.session.Loading = true
			return nil
		},
		call: func(ctx context.Context) error {
			var err error
			user, token, err = login(ctx)
			return err
		},
		confirm: func(sn *snapshot, j *journal) {
			if user.Role == "" {
				user.Role = models.RoleUser
			}
			if user.Security.AccountStatus == "" {
				user.Security.AccountStatus = models.AccountActive
			}
			user.TrustScore = analytics.TrustScore(user, s.now())
			setSession(sn, user, token)
			j.persistSession = true
			log.Printf("✅ Пользователь %s вошёл в систему", user.ID)
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Login выполняет вход по email и паролю
func (s *Store) Login(ctx context.Context, creds models.Credentials) (models.User, error) {
	if err := s.checkInput(creds); err != nil {
		s.recordError(err)
		return models.User{}, err
	}
	return s.authenticate(ctx, "Login", "Не удалось выполнить вход", func(ctx context.Context) (models.User, string, error) {
		return s.api.Auth.Login(ctx, creds)
	})
}

// LoginTelegram выполняет вход по initData мини-приложения Telegram
func (s *Store) LoginTelegram(ctx context.Context, initData string) (models.User, error) {
	if initData == "" {
		err := apperr.Validation("Отсутствует initData")
		s.recordError(err)
		return models.User{}, err
	}
	return s.authenticate(ctx, "LoginTelegram", "Не удалось выполнить вход через Telegram", func(ctx context.Context) (models.User, string, error) {
		return s.api.Auth.LoginTelegram(ctx, initData)
	})
}

// Register регистрирует пользователя и сразу открывает сессию
func (s *Store) Register(ctx context.Context, reg models.Registration) (models.User, error) {
	if err := s.checkInput(reg); err != nil {
		s.recordError(err)
		return models.User{}, err
	}
	return s.authenticate(ctx, "Register", "Не удалось зарегистрироваться", func(ctx context.Context) (models.User, string, error) {
		return s.api.Auth.Register(ctx, reg)
	})
}

// Logout завершает сессию. Локальное состояние очищается сразу и не
// восстанавливается, даже если очистить сохранённую сессию не удалось.
func (s *Store) Logout(ctx context.Context) error {
	return s.run(ctx, command{
		name: "Logout",
		apply: func(sn *snapshot, j *journal) error {
			clearSession(sn)
			j.clearSession = true
			return nil
		},
		strategy: keepOnFailure,
	})
}

// RestoreSession восстанавливает сохранённую сессию. Возвращает false, если её нет.
func (s *Store) RestoreSession(ctx context.Context) (bool, error) {
	var saved *models.SessionSnapshot
	err := s.run(ctx, command{
		name:    "RestoreSession",
		failure: "Не удалось восстановить сессию",
		apply:   func(*snapshot, *journal) error { return nil },
		call: func(ctx context.Context) error {
			var err error
			saved, err = s.api.Session.LoadSession(ctx)
			return err
		},
		confirm: func(sn *snapshot, _ *journal) {
			if saved == nil || saved.User.ID == uuid.Nil {
				return
			}
			setSession(sn, saved.User, saved.Token)
			sn.saved = append([]uuid.UUID(nil), saved.SavedItemIDs...)
		},
		strategy: keepOnFailure,
	})
	if err != nil {
		return false, err
	}
	return saved != nil && saved.User.ID != uuid.Nil, nil
}

// updateUser общая команда изменения пользователя
func (s *Store) updateUser(ctx context.Context, name string, mutate func(sn *snapshot, j *journal) (models.User, error)) (models.User, error) {
	var updated models.User
	err := s.run(ctx, command{
		name:    name,
		failure: "Не удалось сохранить профиль",
		apply: func(sn *snapshot, j *journal) error {
			u, err := mutate(sn, j)
			if err != nil {
				return err
			}
			updated = u
			return nil
		},
		call: func(ctx context.Context) error {
			saved, err := s.api.Auth.UpdateUser(ctx, updated)
			if err != nil {
				return err
			}
			updated.UpdatedAt = saved.UpdatedAt
			return nil
		},
		confirm: func(sn *snapshot, j *journal) {
			if cur, ok := sn.users.get(updated.ID); ok && !updated.UpdatedAt.IsZero() {
				cur.UpdatedAt = updated.UpdatedAt
				sn.users.put(cur.ID, cur)
			}
			if updated.ID == sn.session.UserID {
				j.persistSession = true
			}
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return models.User{}, err
	}
	return updated, nil
}

// UpdateProfile меняет профиль текущего пользователя и пересчитывает рейтинг доверия
func (s *Store) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (models.User, error) {
	if err := s.checkInput(upd); err != nil {
		s.recordError(err)
		return models.User{}, err
	}
	return s.updateUser(ctx, "UpdateProfile", func(sn *snapshot, j *journal) (models.User, error) {
		u, err := requireUser(sn)
		if err != nil {
			return u, err
		}
		j.user(sn, u.ID)
		upd.Apply(&u)
		u.TrustScore = analytics.TrustScore(u, s.now())
		u.UpdatedAt = s.now()
		sn.users.put(u.ID, u)
		return u, nil
	})
}

// DeactivateAccount деактивирует аккаунт текущего пользователя и завершает сессию.
// Пользователь не удаляется.
func (s *Store) DeactivateAccount(ctx context.Context) error {
	_, err := s.updateUser(ctx, "DeactivateAccount", func(sn *snapshot, j *journal) (models.User, error) {
		u, err := requireUser(sn)
		if err != nil {
			return u, err
		}
		j.user(sn, u.ID)
		u.Security.AccountStatus = models.AccountDeactivated
		u.UpdatedAt = s.now()
		sn.users.put(u.ID, u)
		return u, nil
	})
	if err != nil {
		return err
	}
	return s.Logout(ctx)
}

// SetRole меняет роль пользователя. Требует права управления пользователями.
func (s *Store) SetRole(ctx context.Context, userID uuid.UUID, role models.Role) (models.User, error) {
	if !role.Valid() {
		err := apperr.Validation("Неизвестная роль")
		s.recordError(err)
		return models.User{}, err
	}
	return s.updateUser(ctx, "SetRole", func(sn *snapshot, j *journal) (models.User, error) {
		if _, err := requirePermission(sn, permissions.UserManage); err != nil {
			return models.User{}, err
		}
		target, ok := sn.users.get(userID)
		if !ok {
			return models.User{}, apperr.NotFound(msgUserNotFound)
		}
		j.user(sn, userID)
		target.Role = role
		target.UpdatedAt = s.now()
		sn.users.put(userID, target)
		if userID == sn.session.UserID {
			j.session(sn)
			sn.perms = permissions.Resolve(role)
		}
		return target, nil
	})
}

// recordError запоминает ошибку, найденную до запуска команды
func (s *Store) recordError(err error) {
	s.mu.Lock()
	s.snap.lastError = apperr.Message(err)
	s.mu.Unlock()
}
