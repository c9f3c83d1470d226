package models

import (
	"time"

	"github.com/google/uuid"
)

// Vote голос за пост сообщества
type Vote int

const (
	VoteNone Vote = 0
	VoteUp   Vote = 1
	VoteDown Vote = -1
)

// CommunityPost пост в ленте сообщества
type CommunityPost struct {
	ID        uuid.UUID          `json:"id"`
	AuthorID  uuid.UUID          `json:"author_id"`
	Title     string             `json:"title"`
	Body      string             `json:"body"`
	Upvotes   int                `json:"upvotes"`
	Downvotes int                `json:"downvotes"`
	Voters    map[uuid.UUID]Vote `json:"voters,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Clone возвращает копию поста
func (p CommunityPost) Clone() CommunityPost {
	voters := make(map[uuid.UUID]Vote, len(p.Voters))
	for k, v := range p.Voters {
		voters[k] = v
	}
	p.Voters = voters
	return p
}

// CommunityEvent событие сообщества (своп-вечеринка, субботник и т.п.)
type CommunityEvent struct {
	ID           uuid.UUID   `json:"id"`
	OrganizerID  uuid.UUID   `json:"organizer_id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Location     string      `json:"location"`
	StartsAt     time.Time   `json:"starts_at"`
	Capacity     int         `json:"capacity"`
	Participants []uuid.UUID `json:"participants"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Clone возвращает копию события
func (e CommunityEvent) Clone() CommunityEvent {
	e.Participants = append([]uuid.UUID(nil), e.Participants...)
	return e
}

// HasParticipant проверяет, записан ли пользователь на событие
func (e CommunityEvent) HasParticipant(userID uuid.UUID) bool {
	for _, id := range e.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// PostDraft данные для создания поста
type PostDraft struct {
	Title string `json:"title" validate:"required,min=3,max=200"`
	Body  string `json:"body" validate:"required,max=5000"`
}

// EventDraft данные для создания события
type EventDraft struct {
	Title       string    `json:"title" validate:"required,min=3,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	Location    string    `json:"location" validate:"max=200"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	Capacity    int       `json:"capacity" validate:"required,min=1,max=10000"`
}
