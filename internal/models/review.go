package models

import (
	"time"

	"github.com/google/uuid"
)

// ReviewStatus статус модерации отзыва
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
	ReviewHidden   ReviewStatus = "hidden"
)

// Review отзыв об участнике завершённого обмена
type Review struct {
	ID         uuid.UUID    `json:"id"`
	RequestID  uuid.UUID    `json:"request_id"`
	ReviewerID uuid.UUID    `json:"reviewer_id"`
	RevieweeID uuid.UUID    `json:"reviewee_id"`
	Rating     int          `json:"rating"`
	Comment    string       `json:"comment"`
	Response   string       `json:"response,omitempty"`
	Flags      []string     `json:"flags,omitempty"`
	FlaggedBy  []uuid.UUID  `json:"flagged_by,omitempty"`
	Status     ReviewStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Clone возвращает копию отзыва
func (r Review) Clone() Review {
	r.Flags = append([]string(nil), r.Flags...)
	r.FlaggedBy = append([]uuid.UUID(nil), r.FlaggedBy...)
	return r
}

// ReviewDraft данные для создания отзыва
type ReviewDraft struct {
	RequestID uuid.UUID `json:"request_id" validate:"required"`
	Rating    int       `json:"rating" validate:"required,min=1,max=5"`
	Comment   string    `json:"comment" validate:"max=1000"`
}
