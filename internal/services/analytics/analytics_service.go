package analytics

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/middleware"
	"github.com/rajivgeraev/flippy-core/internal/services"
)

// AnalyticsService экологическая аналитика и таблица лидеров
type AnalyticsService struct{}

// NewAnalyticsService создает новый экземпляр AnalyticsService
func NewAnalyticsService() *AnalyticsService {
	return &AnalyticsService{}
}

// Leaderboard таблица лидеров
func (s *AnalyticsService) Leaderboard(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"leaderboard": middleware.Store(c).Leaderboard(c.Context())})
}

// CommunityImpact суммарный эффект сообщества
func (s *AnalyticsService) CommunityImpact(c fiber.Ctx) error {
	return c.JSON(middleware.Store(c).CommunityImpact())
}

// Impact отчёт пользователя. Без :id возвращается отчёт текущего.
func (s *AnalyticsService) Impact(c fiber.Ctx) error {
	userID, err := optionalID(c)
	if err != nil {
		return services.Fail(c, err)
	}
	report, err := middleware.Store(c).ImpactReport(userID)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(report)
}

// Refresh пересчитывает значки и рейтинг доверия
func (s *AnalyticsService) Refresh(c fiber.Ctx) error {
	userID, err := optionalID(c)
	if err != nil {
		return services.Fail(c, err)
	}
	user, err := middleware.Store(c).RefreshUserAnalytics(c.Context(), userID)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(user)
}

func optionalID(c fiber.Ctx) (uuid.UUID, error) {
	if c.Params("id") == "" {
		return uuid.Nil, nil
	}
	return services.ParamID(c, "id")
}
