package models

import (
	"time"

	"github.com/google/uuid"
)

// SwapStatus статус предложения обмена
type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapAccepted  SwapStatus = "accepted"
	SwapRejected  SwapStatus = "rejected"
	SwapCancelled SwapStatus = "cancelled"
)

// Terminal сообщает, что заявка уже обработана
func (s SwapStatus) Terminal() bool {
	return s != SwapPending
}

// SwapRequest представляет предложение об обмене
type SwapRequest struct {
	ID            uuid.UUID  `json:"id"`
	RequesterID   uuid.UUID  `json:"requester_id"`
	RecipientID   uuid.UUID  `json:"recipient_id"`
	TargetItemID  uuid.UUID  `json:"target_item_id"`
	OfferedItemID *uuid.UUID `json:"offered_item_id,omitempty"`
	Message       string     `json:"message"`
	Status        SwapStatus `json:"status"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Clone возвращает копию заявки
func (r SwapRequest) Clone() SwapRequest {
	if r.OfferedItemID != nil {
		id := *r.OfferedItemID
		r.OfferedItemID = &id
	}
	if r.RespondedAt != nil {
		t := *r.RespondedAt
		r.RespondedAt = &t
	}
	return r
}

// Involves сообщает, участвует ли пользователь в обмене
func (r SwapRequest) Involves(userID uuid.UUID) bool {
	return r.RequesterID == userID || r.RecipientID == userID
}

// Counterpart возвращает второго участника обмена
func (r SwapRequest) Counterpart(userID uuid.UUID) uuid.UUID {
	if r.RequesterID == userID {
		return r.RecipientID
	}
	return r.RequesterID
}

// SwapProposal данные для создания предложения обмена.
// Можно предложить существующую вещь (OfferedItemID) или создать новую (NewOfferedItem).
type SwapProposal struct {
	TargetItemID   uuid.UUID  `json:"target_item_id" validate:"required"`
	OfferedItemID  *uuid.UUID `json:"offered_item_id,omitempty"`
	NewOfferedItem *ItemDraft `json:"new_offered_item,omitempty"`
	Message        string     `json:"message" validate:"max=1000"`
}
