package models

import (
	"time"

	"github.com/google/uuid"
)

// Role определяет роль пользователя в системе
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid проверяет, что роль известна
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// AccountStatus состояние аккаунта. Пользователи никогда не удаляются физически.
type AccountStatus string

const (
	AccountActive      AccountStatus = "active"
	AccountSuspended   AccountStatus = "suspended"
	AccountDeactivated AccountStatus = "deactivated"
)

// BadgeType тип достижения за сэкономленный углерод
type BadgeType string

const (
	BadgeSeedling   BadgeType = "eco_seedling"
	BadgeSprout     BadgeType = "eco_sprout"
	BadgeTree       BadgeType = "eco_tree"
	BadgeForest     BadgeType = "eco_forest"
	BadgePlanetHero BadgeType = "eco_planet_hero"
)

// Badge выданное достижение
type Badge struct {
	Type     BadgeType `json:"type"`
	Name     string    `json:"name"`
	EarnedAt time.Time `json:"earned_at"`
}

// UserStats накопительная статистика пользователя
type UserStats struct {
	SuccessfulSwaps int     `json:"successful_swaps"`
	Rating          float64 `json:"rating"`
	ReviewCount     int     `json:"review_count"`
	EventsAttended  int     `json:"events_attended"`
}

// UserSecurity флаги верификации и статус аккаунта
type UserSecurity struct {
	EmailVerified bool          `json:"email_verified"`
	PhoneVerified bool          `json:"phone_verified"`
	AccountStatus AccountStatus `json:"account_status"`
}

// User представляет пользователя в системе
type User struct {
	ID         uuid.UUID    `json:"id"`
	Email      string       `json:"email,omitempty"`
	Username   string       `json:"username,omitempty"`
	FirstName  string       `json:"first_name,omitempty"`
	LastName   string       `json:"last_name,omitempty"`
	Phone      string       `json:"phone,omitempty"`
	Bio        string       `json:"bio,omitempty"`
	AvatarURL  string       `json:"avatar_url,omitempty"`
	Location   string       `json:"location,omitempty"`
	TelegramID int64        `json:"telegram_id,omitempty"`
	Role       Role         `json:"role"`
	TrustScore int          `json:"trust_score"`
	Badges     []Badge      `json:"badges"`
	Stats      UserStats    `json:"stats"`
	Security   UserSecurity `json:"security"`
	ItemIDs    []uuid.UUID  `json:"item_ids"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// DisplayName возвращает имя для отображения в рейтингах и уведомлениях
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// HasBadge проверяет, есть ли у пользователя достижение данного типа
func (u User) HasBadge(t BadgeType) bool {
	for _, b := range u.Badges {
		if b.Type == t {
			return true
		}
	}
	return false
}

// Active сообщает, может ли пользователь совершать действия
func (u User) Active() bool {
	return u.Security.AccountStatus == "" || u.Security.AccountStatus == AccountActive
}

// Clone возвращает глубокую копию пользователя
func (u User) Clone() User {
	u.Badges = append([]Badge(nil), u.Badges...)
	u.ItemIDs = append([]uuid.UUID(nil), u.ItemIDs...)
	return u
}

// ProfileUpdate изменяемые поля профиля. nil означает "не менять".
type ProfileUpdate struct {
	Username  *string `json:"username,omitempty" validate:"omitempty,min=3,max=32"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=64"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=64"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,e164"`
	Bio       *string `json:"bio,omitempty" validate:"omitempty,max=500"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Location  *string `json:"location,omitempty" validate:"omitempty,max=120"`
}

// Apply применяет изменения профиля к пользователю
func (p ProfileUpdate) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Phone != nil {
		if *p.Phone != u.Phone {
			u.Security.PhoneVerified = false
		}
		u.Phone = *p.Phone
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	if p.Location != nil {
		u.Location = *p.Location
	}
}

// Credentials данные для входа по email и паролю
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Registration данные для регистрации
type Registration struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Username  string `json:"username" validate:"required,min=3,max=32"`
	FirstName string `json:"first_name" validate:"max=64"`
	LastName  string `json:"last_name" validate:"max=64"`
}
