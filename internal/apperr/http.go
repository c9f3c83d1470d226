package apperr

import "github.com/gofiber/fiber/v3"

// HTTPStatus сопоставляет вид ошибки с HTTP-кодом ответа
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindAuthorization:
		return fiber.StatusForbidden
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	case KindTransport:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// HTTPStatus возвращает HTTP-код для произвольной ошибки
func HTTPStatus(err error) int {
	return KindOf(err).HTTPStatus()
}
