package chat

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/flippy-core/internal/middleware"
	"github.com/rajivgeraev/flippy-core/internal/services"
)

// ChatService представляет сервис для работы с перепиской по заявкам
type ChatService struct{}

// NewChatService создает новый экземпляр ChatService
func NewChatService() *ChatService {
	return &ChatService{}
}

// GetChats возвращает список переписок пользователя.
// Архивные возвращаются только с ?archived=true.
func (s *ChatService) GetChats(c fiber.Ctx) error {
	includeArchived := c.Query("archived") == "true"
	return c.JSON(fiber.Map{"chats": middleware.Store(c).GetConversations(includeArchived)})
}

// GetChatMessages возвращает переписку по заявке
func (s *ChatService) GetChatMessages(c fiber.Ctx) error {
	requestID, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	conv, ok := middleware.Store(c).GetConversation(requestID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Переписка не найдена"})
	}
	return c.JSON(conv)
}

// SendMessage отправляет сообщение в переписку
func (s *ChatService) SendMessage(c fiber.Ctx) error {
	requestID, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	var payload struct {
		Text string `json:"text"`
	}
	if err := services.Body(c, &payload); err != nil {
		return services.Fail(c, err)
	}
	msg, err := middleware.Store(c).SendMessage(c.Context(), requestID, payload.Text)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// RetryMessage повторно отправляет неудавшееся сообщение
func (s *ChatService) RetryMessage(c fiber.Ctx) error {
	requestID, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	messageID, err := services.ParamID(c, "messageId")
	if err != nil {
		return services.Fail(c, err)
	}
	msg, err := middleware.Store(c).RetryMessage(c.Context(), requestID, messageID)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(msg)
}

// MarkRead отмечает переписку прочитанной
func (s *ChatService) MarkRead(c fiber.Ctx) error {
	requestID, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	changed, err := middleware.Store(c).MarkConversationRead(c.Context(), requestID)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(fiber.Map{"changed": changed})
}

// Archive переносит переписку в архив или возвращает из него
func (s *ChatService) Archive(c fiber.Ctx) error {
	requestID, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	var payload struct {
		Archived bool `json:"archived"`
	}
	if err := services.Body(c, &payload); err != nil {
		return services.Fail(c, err)
	}
	if err := middleware.Store(c).ArchiveConversation(c.Context(), requestID, payload.Archived); err != nil {
		return services.Fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Pin закрепляет переписку
func (s *ChatService) Pin(c fiber.Ctx) error {
	requestID, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	var payload struct {
		Pinned bool `json:"pinned"`
	}
	if err := services.Body(c, &payload); err != nil {
		return services.Fail(c, err)
	}
	if err := middleware.Store(c).PinConversation(c.Context(), requestID, payload.Pinned); err != nil {
		return services.Fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
