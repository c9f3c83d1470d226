package trade

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API обменов и отзывов
func (s *TradeService) SetupRoutes(app *fiber.App, authMiddleware fiber.Handler) {
	// Группа для API обменов
	api := app.Group("/api/trades")

	// Защищенные маршруты (требуют авторизации)
	api.Use(authMiddleware)

	// Маршрут для создания предложения обмена
	api.Post("/", s.CreateTrade)

	// Маршрут для получения списка предложений обмена
	api.Get("/", s.GetMyTrades)
	api.Get("/:id", s.GetTrade)

	// Маршрут для обновления статуса предложения обмена
	api.Put("/:id/status", s.UpdateTradeStatus)

	reviews := app.Group("/api/reviews")
	reviews.Use(authMiddleware)

	reviews.Post("/", s.CreateReview)
	reviews.Get("/pending", s.GetPendingReviews)
	reviews.Get("/user/:id", s.GetUserReviews)
	reviews.Post("/:id/response", s.RespondToReview)
	reviews.Post("/:id/moderate", s.ModerateReview)
	reviews.Post("/:id/flag", s.FlagReview)
}
