package community

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты сообщества
func (s *CommunityService) SetupRoutes(app *fiber.App, authMiddleware fiber.Handler) {
	api := app.Group("/api/community")
	api.Use(authMiddleware)

	api.Get("/posts", s.GetPosts)
	api.Post("/posts", s.CreatePost)
	api.Post("/posts/:id/vote", s.VotePost)

	api.Get("/events", s.GetEvents)
	api.Post("/events", s.CreateEvent)
	api.Post("/events/:id/join", s.JoinEvent)
	api.Delete("/events/:id/join", s.LeaveEvent)
}
