package auth

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes регистрирует маршруты в Fiber
func (s *AuthService) SetupRoutes(app *fiber.App, authMiddleware fiber.Handler) {
	app.Post("/api/auth/telegram", s.TelegramAuthHandler)
	app.Post("/api/auth/login", s.LoginHandler)
	app.Post("/api/auth/register", s.RegisterHandler)

	// Защищенные маршруты
	protected := app.Group("/api")
	protected.Use(authMiddleware)

	protected.Post("/auth/logout", s.LogoutHandler)
	protected.Post("/sync", s.SyncHandler)

	protected.Get("/profile", s.ProfileHandler)
	protected.Put("/profile", s.UpdateProfileHandler)
	protected.Delete("/profile", s.DeactivateHandler)

	protected.Get("/users/:id", s.GetUserHandler)
	protected.Put("/users/:id/role", s.SetRoleHandler)

	protected.Get("/notifications", s.NotificationsHandler)
	protected.Post("/notifications/read-all", s.ReadAllNotificationsHandler)
	protected.Post("/notifications/:id/read", s.ReadNotificationHandler)
}
