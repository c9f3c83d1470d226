package listing

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API объявлений
func (s *ListingService) SetupRoutes(app *fiber.App, authMiddleware fiber.Handler) {
	// Группа для API объявлений
	api := app.Group("/api/listings")

	// Защищенные маршруты (требуют авторизации)
	api.Use(authMiddleware)

	api.Get("/", s.GetListings)
	api.Post("/create", s.CreateListing)
	api.Get("/my", s.GetMyListings)

	// Истечение продвижения и срока публикации
	api.Get("/status-updates", s.GetStatusUpdates)
	api.Post("/status-updates/apply", s.ApplyStatusUpdates)

	api.Get("/:id", s.GetListing)
	api.Put("/:id", s.UpdateListing)
	api.Delete("/:id", s.DeleteListing)
	api.Post("/:id/boost", s.BoostListing)
	api.Delete("/:id/boost", s.UnboostListing)
	api.Post("/:id/renew", s.RenewListing)
	api.Post("/:id/view", s.ViewListing)
	api.Post("/:id/moderate", s.ModerateListing)
}
