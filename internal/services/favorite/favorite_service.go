package favorite

import (
	"slices"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/middleware"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/services"
)

// FavoriteService представляет сервис для работы с избранным
type FavoriteService struct{}

// NewFavoriteService создает новый экземпляр FavoriteService
func NewFavoriteService() *FavoriteService {
	return &FavoriteService{}
}

// GetFavorites возвращает сохранённые объявления
func (s *FavoriteService) GetFavorites(c fiber.Ctx) error {
	items := middleware.Store(c).GetSavedItems()
	return c.JSON(fiber.Map{"favorites": items, "total": len(items)})
}

// AddToFavorites добавляет объявление в избранное
func (s *FavoriteService) AddToFavorites(c fiber.Ctx) error {
	var payload struct {
		ListingID string `json:"listing_id"`
	}
	if err := services.Body(c, &payload); err != nil {
		return services.Fail(c, err)
	}
	id, err := uuid.Parse(payload.ListingID)
	if err != nil {
		return services.Fail(c, apperr.Validation("Неверный формат ID объявления"))
	}
	if err := middleware.Store(c).SaveItem(c.Context(), id); err != nil {
		return services.Fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"listing_id": id, "is_favorite": true})
}

// RemoveFromFavorites удаляет объявление из избранного
func (s *FavoriteService) RemoveFromFavorites(c fiber.Ctx) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	if err := middleware.Store(c).UnsaveItem(c.Context(), id); err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(fiber.Map{"listing_id": id, "is_favorite": false})
}

// CheckFavorite проверяет, находится ли объявление в избранном
func (s *FavoriteService) CheckFavorite(c fiber.Ctx) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	saved := slices.ContainsFunc(middleware.Store(c).GetSavedItems(), func(item models.Item) bool {
		return item.ID == id
	})
	return c.JSON(fiber.Map{"listing_id": id, "is_favorite": saved})
}
