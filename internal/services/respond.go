// Package services содержит общие помощники HTTP-обработчиков.
package services

import (
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
)

// Fail отправляет ошибку действия в JSON с подходящим кодом
func Fail(c fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("❌ %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": apperr.Message(err),
		"kind":  apperr.KindOf(err),
	})
}

// ParamID разбирает UUID из параметра маршрута
func ParamID(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("Неверный формат ID")
	}
	return id, nil
}

// Body разбирает тело запроса
func Body(c fiber.Ctx, dst any) error {
	if err := c.Bind().Body(dst); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return apperr.Validation("Неверный формат данных")
	}
	return nil
}
