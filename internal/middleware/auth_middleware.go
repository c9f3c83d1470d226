package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/store"
)

const (
	localUserID = "userID"
	localStore  = "store"
)

// TokenValidator извлекает пользователя из JWT
type TokenValidator interface {
	ExtractUserID(token string) (uuid.UUID, error)
}

// StoreProvider возвращает хранилище вошедшего пользователя
type StoreProvider interface {
	Get(ctx context.Context, userID uuid.UUID) (*store.Store, error)
}

// AuthMiddleware создаёт middleware для проверки JWT.
// В контекст кладутся ID пользователя и его хранилище.
func AuthMiddleware(tokens TokenValidator, stores StoreProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		// Проверяем Bearer токен
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		userID, err := tokens.ExtractUserID(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		st, err := stores.Get(c.Context(), userID)
		if err != nil {
			status := apperr.HTTPStatus(err)
			if apperr.KindOf(err) == apperr.KindAuthorization {
				status = fiber.StatusUnauthorized
			}
			return c.Status(status).JSON(fiber.Map{
				"error": apperr.Message(err),
			})
		}

		c.Locals(localUserID, userID)
		c.Locals(localStore, st)
		return c.Next()
	}
}

// UserID возвращает ID пользователя из контекста запроса
func UserID(c fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(localUserID).(uuid.UUID)
	return id
}

// Store возвращает хранилище пользователя из контекста запроса
func Store(c fiber.Ctx) *store.Store {
	st, _ := c.Locals(localStore).(*store.Store)
	return st
}
