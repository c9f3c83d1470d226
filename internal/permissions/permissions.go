// Package permissions сопоставляет роли с возможностями.
//
// Набор прав однозначно вычисляется из роли. Хранилище пересчитывает его при каждой
// смене активного пользователя и никогда не сохраняет.
package permissions

import (
	"sort"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

// Permission отдельная возможность
type Permission string

const (
	ItemCreate       Permission = "item:create"
	ItemUpdateOwn    Permission = "item:update:own"
	ItemUpdateAny    Permission = "item:update:any"
	ItemBoost        Permission = "item:boost"
	ItemModerate     Permission = "item:moderate"
	SwapCreate       Permission = "swap:create"
	SwapRespond      Permission = "swap:respond"
	ChatSend         Permission = "chat:send"
	ReviewCreate     Permission = "review:create"
	ReviewModerate   Permission = "review:moderate"
	CommunityPost    Permission = "community:post"
	CommunityVote    Permission = "community:vote"
	EventCreate      Permission = "event:create"
	EventJoin        Permission = "event:join"
	AnalyticsViewAll Permission = "analytics:view_all"
	UserManage       Permission = "user:manage"
)

var userPermissions = []Permission{
	ItemCreate, ItemUpdateOwn, ItemBoost,
	SwapCreate, SwapRespond, ChatSend,
	ReviewCreate, CommunityPost, CommunityVote, EventJoin,
}

var moderatorPermissions = []Permission{
	ItemModerate, ReviewModerate, EventCreate, AnalyticsViewAll,
}

var adminPermissions = []Permission{
	ItemUpdateAny, UserManage,
}

// Set набор прав роли
type Set map[Permission]struct{}

// Resolve возвращает набор прав для роли. Неизвестная роль не получает прав.
func Resolve(role models.Role) Set {
	set := Set{}
	add := func(perms []Permission) {
		for _, p := range perms {
			set[p] = struct{}{}
		}
	}

	switch role {
	case models.RoleAdmin:
		add(adminPermissions)
		fallthrough
	case models.RoleModerator:
		add(moderatorPermissions)
		fallthrough
	case models.RoleUser:
		add(userPermissions)
	}
	return set
}

// Has проверяет наличие права
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// List возвращает отсортированный список прав
func (s Set) List() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasPermission проверяет право роли
func HasPermission(role models.Role, p Permission) bool {
	return Resolve(role).Has(p)
}

// Action действие над ресурсом
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionBoost    Action = "boost"
	ActionModerate Action = "moderate"
	ActionRespond  Action = "respond"
)

// ResourceKind тип ресурса
type ResourceKind string

const (
	ResourceItem   ResourceKind = "item"
	ResourceSwap   ResourceKind = "swap"
	ResourceReview ResourceKind = "review"
	ResourcePost   ResourceKind = "post"
	ResourceEvent  ResourceKind = "event"
	ResourceUser   ResourceKind = "user"
)

// Resource описывает ресурс и его владельца
type Resource struct {
	Kind    ResourceKind
	OwnerID uuid.UUID
}

// CanPerform проверяет, может ли пользователь с ролью role выполнить action над resource
func CanPerform(role models.Role, actorID uuid.UUID, action Action, resource Resource) bool {
	return Resolve(role).CanPerform(actorID, action, resource)
}

// CanPerform проверяет действие над ресурсом с учётом владения
func (s Set) CanPerform(actorID uuid.UUID, action Action, resource Resource) bool {
	owner := actorID != uuid.Nil && resource.OwnerID == actorID

	switch resource.Kind {
	case ResourceItem:
		switch action {
		case ActionCreate:
			return s.Has(ItemCreate)
		case ActionUpdate, ActionDelete:
			return (owner && s.Has(ItemUpdateOwn)) || s.Has(ItemUpdateAny)
		case ActionBoost:
			return owner && s.Has(ItemBoost)
		case ActionModerate:
			return s.Has(ItemModerate)
		}
	case ResourceSwap:
		switch action {
		case ActionCreate:
			return s.Has(SwapCreate)
		case ActionRespond:
			// для заявки OwnerID указывает на получателя
			return owner && s.Has(SwapRespond)
		}
	case ResourceReview:
		switch action {
		case ActionCreate:
			return s.Has(ReviewCreate)
		case ActionRespond:
			return owner
		case ActionModerate:
			return s.Has(ReviewModerate)
		}
	case ResourcePost:
		switch action {
		case ActionCreate:
			return s.Has(CommunityPost)
		case ActionDelete:
			return owner || s.Has(ReviewModerate)
		}
	case ResourceEvent:
		switch action {
		case ActionCreate:
			return s.Has(EventCreate)
		case ActionUpdate, ActionDelete:
			return owner || s.Has(UserManage)
		}
	case ResourceUser:
		switch action {
		case ActionUpdate:
			return owner || s.Has(UserManage)
		case ActionModerate:
			return s.Has(UserManage)
		}
	}
	return false
}
