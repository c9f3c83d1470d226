package analytics

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты аналитики
func (s *AnalyticsService) SetupRoutes(app *fiber.App, authMiddleware fiber.Handler) {
	api := app.Group("/api/analytics")
	api.Use(authMiddleware)

	api.Get("/leaderboard", s.Leaderboard)
	api.Get("/community", s.CommunityImpact)
	api.Get("/impact", s.Impact)
	api.Get("/impact/:id", s.Impact)
	api.Post("/refresh", s.Refresh)
	api.Post("/refresh/:id", s.Refresh)
}
