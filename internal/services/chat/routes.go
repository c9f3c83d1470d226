package chat

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API чатов.
// Переписка привязана к заявке, поэтому :id это ID заявки.
func (s *ChatService) SetupRoutes(app *fiber.App, authMiddleware fiber.Handler) {
	// Группа для API чатов
	api := app.Group("/api/chats")

	// Защищенные маршруты (требуют авторизации)
	api.Use(authMiddleware)

	// Маршрут для получения всех чатов пользователя
	api.Get("/", s.GetChats)

	// Маршрут для получения сообщений чата
	api.Get("/:id/messages", s.GetChatMessages)

	// Маршрут для отправки сообщения
	api.Post("/:id/messages", s.SendMessage)
	api.Post("/:id/messages/:messageId/retry", s.RetryMessage)

	api.Post("/:id/read", s.MarkRead)
	api.Put("/:id/archive", s.Archive)
	api.Put("/:id/pin", s.Pin)
}
