package auth

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/middleware"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/services"
	"github.com/rajivgeraev/flippy-core/internal/store"
)

// Sessions хранилища пользователей, которыми управляет сервис входа
type Sessions interface {
	Anonymous() *store.Store
	Adopt(ctx context.Context, st *store.Store) (*store.Store, error)
	Drop(userID uuid.UUID)
}

// AuthService структура для обработки авторизации и профиля
type AuthService struct {
	sessions Sessions
}

// NewAuthService конструктор AuthService
func NewAuthService(sessions Sessions) *AuthService {
	return &AuthService{sessions: sessions}
}

// TelegramAuthHandler проверяет initData, создает сессию и возвращает JWT
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	var payload struct {
		InitData string `json:"init_data"`
	}
	if err := services.Body(c, &payload); err != nil {
		return services.Fail(c, err)
	}
	return s.authenticate(c, func(ctx context.Context, st *store.Store) (models.User, error) {
		return st.LoginTelegram(ctx, payload.InitData)
	})
}

// LoginHandler вход по email и паролю
func (s *AuthService) LoginHandler(c fiber.Ctx) error {
	var creds models.Credentials
	if err := services.Body(c, &creds); err != nil {
		return services.Fail(c, err)
	}
	return s.authenticate(c, func(ctx context.Context, st *store.Store) (models.User, error) {
		return st.Login(ctx, creds)
	})
}

// RegisterHandler регистрация нового пользователя
func (s *AuthService) RegisterHandler(c fiber.Ctx) error {
	var reg models.Registration
	if err := services.Body(c, &reg); err != nil {
		return services.Fail(c, err)
	}
	return s.authenticate(c, func(ctx context.Context, st *store.Store) (models.User, error) {
		return st.Register(ctx, reg)
	})
}

func (s *AuthService) authenticate(c fiber.Ctx, login func(context.Context, *store.Store) (models.User, error)) error {
	ctx := c.Context()
	st := s.sessions.Anonymous()
	user, err := login(ctx, st)
	if err != nil {
		return services.Fail(c, err)
	}
	if _, err := s.sessions.Adopt(ctx, st); err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(fiber.Map{
		"token":       st.Token(),
		"user":        user,
		"permissions": st.Permissions(),
	})
}

// LogoutHandler завершает сессию
func (s *AuthService) LogoutHandler(c fiber.Ctx) error {
	userID := middleware.UserID(c)
	if err := middleware.Store(c).Logout(c.Context()); err != nil {
		return services.Fail(c, err)
	}
	s.sessions.Drop(userID)
	return c.SendStatus(fiber.StatusNoContent)
}

// ProfileHandler возвращает текущего пользователя
func (s *AuthService) ProfileHandler(c fiber.Ctx) error {
	st := middleware.Store(c)
	user, _ := st.CurrentUser()
	return c.JSON(fiber.Map{
		"user":        user,
		"permissions": st.Permissions(),
		"unread":      st.UnreadNotificationCount(),
	})
}

// UpdateProfileHandler обновляет профиль
func (s *AuthService) UpdateProfileHandler(c fiber.Ctx) error {
	var upd models.ProfileUpdate
	if err := services.Body(c, &upd); err != nil {
		return services.Fail(c, err)
	}
	user, err := middleware.Store(c).UpdateProfile(c.Context(), upd)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(user)
}

// DeactivateHandler деактивирует аккаунт и завершает сессию
func (s *AuthService) DeactivateHandler(c fiber.Ctx) error {
	if err := middleware.Store(c).DeactivateAccount(c.Context()); err != nil {
		return services.Fail(c, err)
	}
	s.sessions.Drop(middleware.UserID(c))
	return c.SendStatus(fiber.StatusNoContent)
}

// SetRoleHandler меняет роль пользователя
func (s *AuthService) SetRoleHandler(c fiber.Ctx) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	var payload struct {
		Role models.Role `json:"role"`
	}
	if err := services.Body(c, &payload); err != nil {
		return services.Fail(c, err)
	}
	user, err := middleware.Store(c).SetRole(c.Context(), id, payload.Role)
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(user)
}

// GetUserHandler возвращает публичный профиль пользователя
func (s *AuthService) GetUserHandler(c fiber.Ctx) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	user, ok := middleware.Store(c).GetUser(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Пользователь не найден"})
	}
	return c.JSON(user)
}

// SyncHandler перезагружает данные сессии с сервера
func (s *AuthService) SyncHandler(c fiber.Ctx) error {
	if err := middleware.Store(c).Sync(c.Context()); err != nil {
		return services.Fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// NotificationsHandler список уведомлений
func (s *AuthService) NotificationsHandler(c fiber.Ctx) error {
	st := middleware.Store(c)
	return c.JSON(fiber.Map{
		"notifications": st.GetNotifications(),
		"unread":        st.UnreadNotificationCount(),
	})
}

// ReadNotificationHandler отмечает уведомление прочитанным
func (s *AuthService) ReadNotificationHandler(c fiber.Ctx) error {
	id, err := services.ParamID(c, "id")
	if err != nil {
		return services.Fail(c, err)
	}
	if err := middleware.Store(c).MarkNotificationRead(c.Context(), id); err != nil {
		return services.Fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ReadAllNotificationsHandler отмечает все уведомления прочитанными
func (s *AuthService) ReadAllNotificationsHandler(c fiber.Ctx) error {
	n, err := middleware.Store(c).MarkAllNotificationsRead(c.Context())
	if err != nil {
		return services.Fail(c, err)
	}
	return c.JSON(fiber.Map{"marked": n})
}
