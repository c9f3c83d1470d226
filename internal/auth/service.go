// Package auth выполняет вход пользователей и выдаёт JWT.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/rajivgeraev/flippy-core/internal/apperr"
	"github.com/rajivgeraev/flippy-core/internal/db"
	"github.com/rajivgeraev/flippy-core/internal/models"
	"github.com/rajivgeraev/flippy-core/internal/utils"
)

// InitDataTTL срок годности initData мини-приложения
const InitDataTTL = 24 * time.Hour

// UserStore хранилище учётных записей
type UserStore interface {
	Create(ctx context.Context, reg models.Registration) (models.User, error)
	Authenticate(ctx context.Context, email, password string) (models.User, error)
	UpsertTelegramUser(ctx context.Context, p db.TelegramProfile) (models.User, error)
	Update(ctx context.Context, user models.User) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// Service реализует вход по паролю и через Telegram
type Service struct {
	users    UserStore
	jwt      *utils.JWTService
	botToken string
}

// NewService создаёт сервис авторизации
func NewService(users UserStore, jwt *utils.JWTService, botToken string) *Service {
	return &Service{users: users, jwt: jwt, botToken: botToken}
}

// Login выполняет вход по email и паролю
func (s *Service) Login(ctx context.Context, creds models.Credentials) (models.User, string, error) {
	user, err := s.users.Authenticate(ctx, creds.Email, creds.Password)
	if err != nil {
		return models.User{}, "", err
	}
	return s.issue(user)
}

// Register создаёт пользователя и сразу выдаёт токен
func (s *Service) Register(ctx context.Context, reg models.Registration) (models.User, string, error) {
	user, err := s.users.Create(ctx, reg)
	if err != nil {
		return models.User{}, "", err
	}
	log.Printf("✅ Зарегистрирован пользователь %s", user.ID)
	return s.issue(user)
}

// LoginTelegram проверяет initData, создаёт или обновляет пользователя и выдаёт токен
func (s *Service) LoginTelegram(ctx context.Context, raw string) (models.User, string, error) {
	if err := initdata.Validate(raw, s.botToken, InitDataTTL); err != nil {
		log.Printf("⚠️ Недействительные данные Telegram: %v", err)
		return models.User{}, "", apperr.Unauthorized("Недействительные данные Telegram")
	}

	data, err := initdata.Parse(raw)
	if err != nil {
		return models.User{}, "", apperr.Validation("Не удалось разобрать initData")
	}

	rawUser, err := json.Marshal(data.User)
	if err != nil {
		return models.User{}, "", fmt.Errorf("encode telegram user: %w", err)
	}
	// Личный чат с ботом совпадает с ID пользователя Telegram
	user, err := s.users.UpsertTelegramUser(ctx, db.TelegramProfile{
		TelegramID:   data.User.ID,
		ChatID:       data.User.ID,
		Username:     data.User.Username,
		FirstName:    data.User.FirstName,
		LastName:     data.User.LastName,
		PhotoURL:     data.User.PhotoURL,
		IsPremium:    data.User.IsPremium,
		LanguageCode: data.User.LanguageCode,
		RawData:      rawUser,
	})
	if err != nil {
		return models.User{}, "", err
	}
	return s.issue(user)
}

// UpdateUser сохраняет изменения пользователя
func (s *Service) UpdateUser(ctx context.Context, user models.User) (models.User, error) {
	return s.users.Update(ctx, user)
}

// FetchUsers возвращает всех пользователей
func (s *Service) FetchUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

func (s *Service) issue(user models.User) (models.User, string, error) {
	token, err := s.jwt.GenerateToken(user.ID)
	if err != nil {
		return models.User{}, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}
