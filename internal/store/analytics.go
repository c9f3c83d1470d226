package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/analytics"
	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/permissions"
)

// RefreshUserAnalytics пересчитывает значки и рейтинг доверия пользователя.
// uuid.Nil означает текущего пользователя, для чужого профиля нужно право
// просмотра всей аналитики.
func (s *Store) RefreshUserAnalytics(ctx context.Context, userID uuid.UUID) (models.User, error) {
	var (
		user  models.User
		dirty dirtySet
	)
	err := s.run(ctx, command{
		name:    "RefreshUserAnalytics",
		failure: "Не удалось обновить аналитику пользователя",
		apply: func(sn *snapshot, j *journal) error {
			me, err := requireUser(sn)
			if err != nil {
				return err
			}
			if userID == uuid.Nil {
				userID = me.ID
			}
			if userID != me.ID && !sn.perms.Has(permissions.AnalyticsViewAll) {
				return apperr.Unauthorized(msgForbidden)
			}
			if !sn.users.has(userID) {
				return apperr.NotFound(msgUserNotFound)
			}
			s.refreshDerivedLocked(sn, j, userID)
			user, _ = sn.users.get(userID)
			dirty = collectDirty(sn, j)
			return nil
		},
		call: func(ctx context.Context) error {
			return s.push(ctx, dirty)
		},
		confirm: func(sn *snapshot, j *journal) {
			if userID == sn.session.UserID {
				j.persistSession = true
			}
		},
		strategy: restoreOnFailure,
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// graph копирует пользователей и вещи для чистых вычислений вне блокировки
func (s *Store) graph() ([]models.User, []models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.users.values(), s.snap.items.values()
}

// Leaderboard возвращает экологическую таблицу лидеров.
// Таблица берётся из кэша аналитики, при промахе вычисляется из снимка.
func (s *Store) Leaderboard(ctx context.Context) []analytics.LeaderboardEntry {
	users, items := s.graph()
	return s.api.Analytics.LeaderboardOrCompute(ctx, func() []analytics.LeaderboardEntry {
		return analytics.Leaderboard(users, items)
	})
}

// ImpactReport собирает экологический отчёт пользователя. uuid.Nil означает текущего.
func (s *Store) ImpactReport(userID uuid.UUID) (analytics.ImpactReport, error) {
	s.mu.Lock()
	if userID == uuid.Nil {
		userID = s.snap.session.UserID
	}
	known := s.snap.users.has(userID)
	s.mu.Unlock()
	if !known {
		return analytics.ImpactReport{}, apperr.NotFound(msgUserNotFound)
	}
	users, items := s.graph()
	return analytics.Report(userID, users, items, s.now()), nil
}

// CommunityImpact возвращает суммарный эффект всех завершённых обменов
func (s *Store) CommunityImpact() models.EnvironmentalImpact {
	_, items := s.graph()
	return analytics.CommunityImpact(items)
}
