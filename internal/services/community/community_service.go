package community

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/middleware"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/services"
	"github.com/rajivgeraev/flippy-core/internal/store"
)

// CommunityService посты и события сообщества
type CommunityService struct{}

// NewCommunityService создает новый экземпляр CommunityService
func NewCommunityService() *CommunityService {
	return &CommunityService{}
}

// GetPosts лента постов
func (s *CommunityService) GetPosts(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"posts": middleware.Store(c).GetPosts()})
}

// CreatePost публикует пост
func (s *CommunityService) CreatePost(c fiber.Ctx) error {
	var draft models.PostDraft
	if err := services.Body(c, &draft); err != nil {
		return services.Fail(c, err)
	}
	post, err := middleware.Store(c).CreatePost(c.Context(), draft)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// VotePost голос за пост: 1, -1 или 0 для снятия голоса
func (s *CommunityService) VotePost(c fiber.Ctx) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	var payload struct {
		Vote models.Vote `json:"vote"`
	}
	if err := services.Body(c, &payload); err != nil {
		return services.Fail(c, err)
	}
	post, err := middleware.Store(c).VotePost(c.Context(), id, payload.Vote)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(post)
}

// GetEvents список событий
func (s *CommunityService) GetEvents(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"events": middleware.Store(c).GetEvents()})
}

// CreateEvent создает событие
func (s *CommunityService) CreateEvent(c fiber.Ctx) error {
	var draft models.EventDraft
	if err := services.Body(c, &draft); err != nil {
		return services.Fail(c, err)
	}
	event, err := middleware.Store(c).CreateEvent(c.Context(), draft)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(event)
}

// JoinEvent записывает пользователя на событие
func (s *CommunityService) JoinEvent(c fiber.Ctx) error {
	return s.eventAction(c, (*store.Store).JoinEvent)
}

// LeaveEvent отменяет участие
func (s *CommunityService) LeaveEvent(c fiber.Ctx) error {
	return s.eventAction(c, (*store.Store).LeaveEvent)
}

func (s *CommunityService) eventAction(c fiber.Ctx, action func(*store.Store, context.Context, uuid.UUID) (models.CommunityEvent, error)) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	event, err := action(middleware.Store(c), c.Context(), id)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(event)
}
