package trade

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/flippy-core/internal/middleware"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/services"
)

// TradeService представляет сервис для работы с обменами и отзывами
type TradeService struct{}

// NewTradeService создает новый экземпляр TradeService
func NewTradeService() *TradeService {
	return &TradeService{}
}

// CreateTrade создает заявку на обмен
func (s *TradeService) CreateTrade(c fiber.Ctx) error {
	var proposal models.SwapProposal
	if err := services.Body(c, &proposal); err != nil {
		return services.Fail(c, err)
	}
	req, err := middleware.Store(c).CreateSwapRequest(c.Context(), proposal)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// GetMyTrades возвращает входящие и исходящие заявки
func (s *TradeService) GetMyTrades(c fiber.Ctx) error {
	return c.JSON(middleware.Store(c).GetSwapRequests())
}

// GetTrade возвращает заявку по ID
func (s *TradeService) GetTrade(c fiber.Ctx) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	req, ok := middleware.Store(c).GetSwapRequest(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Заявка не найдена"})
	}
	return c.JSON(req)
}

// UpdateTradeStatus принимает, отклоняет или отменяет заявку.
// Отмена доступна отправителю, ответ получателю.
func (s *TradeService) UpdateTradeStatus(c fiber.Ctx) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	var payload struct {
		Status models.SwapStatus `json:"status"`
	}
	if err := services.Body(c, &payload); err != nil {
		return services.Fail(c, err)
	}

	st := middleware.Store(c)
	var req models.SwapRequest
	if payload.Status == models.SwapCancelled {
		req, err = st.CancelSwapRequest(c.Context(), id)
	} else {
		req, err = st.RespondToSwapRequest(c.Context(), id, payload.Status)
	}
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(req)
}

// CreateReview оставляет отзыв о завершённом обмене
func (s *TradeService) CreateReview(c fiber.Ctx) error {
	var draft models.ReviewDraft
	if err := services.Body(c, &draft); err != nil {
		return services.Fail(c, err)
	}
	review, err := middleware.Store(c).CreateReview(c.Context(), draft)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(review)
}

// GetUserReviews видимые отзывы о пользователе
func (s *TradeService) GetUserReviews(c fiber.Ctx) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(fiber.Map{"reviews": middleware.Store(c).GetReviews(id)})
}

// GetPendingReviews отзывы, ожидающие модерации
func (s *TradeService) GetPendingReviews(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"reviews": middleware.Store(c).GetPendingReviews()})
}

// RespondToReview ответ автора объявления на отзыв
func (s *TradeService) RespondToReview(c fiber.Ctx) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	var payload struct {
		Response string `json:"response"`
	}
	if err := services.Body(c, &payload); err != nil {
		return services.Fail(c, err)
	}
	review, err := middleware.Store(c).RespondToReview(c.Context(), id, payload.Response)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(review)
}

// ModerateReview одобряет или отклоняет отзыв
func (s *TradeService) ModerateReview(c fiber.Ctx) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	var payload struct {
		Approve bool `json:"approve"`
	}
	if err := services.Body(c, &payload); err != nil {
		return services.Fail(c, err)
	}
	review, err := middleware.Store(c).ModerateReview(c.Context(), id, payload.Approve)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(review)
}

// FlagReview жалоба на отзыв
func (s *TradeService) FlagReview(c fiber.Ctx) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := services.Body(c, &payload); err != nil {
		return services.Fail(c, err)
	}
	review, err := middleware.Store(c).FlagReview(c.Context(), id, payload.Reason)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(review)
}
