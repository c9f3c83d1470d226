package listing

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/middleware"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/services"
	"github.com/rajivgeraev/flippy-core/internal/store"
)

// ListingService представляет сервис для работы с объявлениями
type ListingService struct{}

// NewListingService создает новый экземпляр ListingService
func NewListingService() *ListingService {
	return &ListingService{}
}

// CreateListing обрабатывает создание нового объявления
func (s *ListingService) CreateListing(c fiber.Ctx) error {
	var req createRequest
	if err := services.Body(c, &req); err != nil {
		return services.Fail(c, err)
	}
	draft, err := req.draft()
	if err != nil {
		return services.Fail(c, err)
	}
	item, err := middleware.Store(c).CreateItem(c.Context(), draft)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

// GetListings список объявлений. ?status= фильтрует по статусу, ?boosted=true
// возвращает только продвигаемые.
func (s *ListingService) GetListings(c fiber.Ctx) error {
	st := middleware.Store(c)
	if c.Query("boosted") == "true" {
		return c.JSON(fiber.Map{"listings": st.GetBoostedItems()})
	}
	status := models.ItemStatus(c.Query("status", string(models.ItemAvailable)))
	return c.JSON(fiber.Map{"listings": st.GetItemsByStatus(status)})
}

// GetMyListings объявления текущего пользователя
func (s *ListingService) GetMyListings(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"listings": middleware.Store(c).GetUserItems(middleware.UserID(c))})
}

// GetListing возвращает объявление по ID
func (s *ListingService) GetListing(c fiber.Ctx) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	item, ok := middleware.Store(c).GetItem(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Объявление не найдено"})
	}
	return c.JSON(item)
}

// UpdateListing обновляет поля объявления
func (s *ListingService) UpdateListing(c fiber.Ctx) error {
	var upd models.ItemUpdate
	if err := services.Body(c, &upd); err != nil {
		return services.Fail(c, err)
	}
	return s.itemAction(c, func(st *store.Store, id uuid.UUID) (models.Item, error) {
		return st.UpdateItem(c.Context(), id, upd)
	})
}

// DeleteListing снимает объявление с публикации
func (s *ListingService) DeleteListing(c fiber.Ctx) error {
	return s.itemAction(c, func(st *store.Store, id uuid.UUID) (models.Item, error) {
		return st.RemoveItem(c.Context(), id)
	})
}

// BoostListing продвигает объявление
func (s *ListingService) BoostListing(c fiber.Ctx) error {
	return s.itemAction(c, func(st *store.Store, id uuid.UUID) (models.Item, error) {
		return st.BoostItem(c.Context(), id)
	})
}

// UnboostListing снимает продвижение
func (s *ListingService) UnboostListing(c fiber.Ctx) error {
	return s.itemAction(c, func(st *store.Store, id uuid.UUID) (models.Item, error) {
		return st.UnboostItem(c.Context(), id)
	})
}

// RenewListing продлевает срок публикации
func (s *ListingService) RenewListing(c fiber.Ctx) error {
	return s.itemAction(c, func(st *store.Store, id uuid.UUID) (models.Item, error) {
		return st.RenewItem(c.Context(), id)
	})
}

// ViewListing засчитывает просмотр
func (s *ListingService) ViewListing(c fiber.Ctx) error {
	return s.itemAction(c, func(st *store.Store, id uuid.UUID) (models.Item, error) {
		return st.ViewItem(c.Context(), id)
	})
}

// ModerateListing одобряет или отклоняет объявление
func (s *ListingService) ModerateListing(c fiber.Ctx) error {
	var req moderateRequest
	if err := services.Body(c, &req); err != nil {
		return services.Fail(c, err)
	}
	return s.itemAction(c, func(st *store.Store, id uuid.UUID) (models.Item, error) {
		return st.ModerateItem(c.Context(), id, req.Approve, req.Note)
	})
}

// GetStatusUpdates объявления, которым пора сменить состояние
func (s *ListingService) GetStatusUpdates(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"updates": middleware.Store(c).GetItemsNeedingStatusUpdate()})
}

// ApplyStatusUpdates применяет истечение продвижения и срока публикации
func (s *ListingService) ApplyStatusUpdates(c fiber.Ctx) error {
	applied, err := middleware.Store(c).ApplyStatusUpdates(c.Context())
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(fiber.Map{"applied": applied})
}

func (s *ListingService) itemAction(c fiber.Ctx, action func(*store.Store, uuid.UUID) (models.Item, error)) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	item, err := action(middleware.Store(c), id)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(item)
}
