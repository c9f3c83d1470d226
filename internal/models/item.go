package models

import (
	"time"

	"github.com/google/uuid"
)

// ItemStatus статус объявления
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemAvailable ItemStatus = "available"
	ItemRequested ItemStatus = "requested"
	ItemSwapped   ItemStatus = "swapped"
	ItemRemoved   ItemStatus = "removed"
	ItemRejected  ItemStatus = "rejected"
)

// Terminal сообщает, что из статуса нет переходов
func (s ItemStatus) Terminal() bool {
	return s == ItemSwapped || s == ItemRemoved || s == ItemRejected
}

// Category категория вещи
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryFurniture   Category = "furniture"
	CategoryBooks       Category = "books"
	CategoryToys        Category = "toys"
	CategorySports      Category = "sports"
	CategoryHome        Category = "home"
	CategoryOther       Category = "other"
)

// Categories перечисляет все известные категории
var Categories = []Category{
	CategoryElectronics, CategoryClothing, CategoryFurniture, CategoryBooks,
	CategoryToys, CategorySports, CategoryHome, CategoryOther,
}

// Condition состояние вещи
type Condition string

const (
	ConditionNew         Condition = "new"
	ConditionExcellent   Condition = "excellent"
	ConditionGood        Condition = "good"
	ConditionFair        Condition = "fair"
	ConditionUsed        Condition = "used"
	ConditionNeedsRepair Condition = "needs_repair"
)

// EnvironmentalImpact экологический эффект обмена вещи.
// Кэшируется на объявлении и сбрасывается при смене категории или состояния.
type EnvironmentalImpact struct {
	CarbonSavedKg   int `json:"carbon_saved_kg"`
	WaterSavedL     int `json:"water_saved_l"`
	LandfillSavedKg int `json:"landfill_saved_kg"`
}

// ItemChange запись в журнале изменений объявления
type ItemChange struct {
	At      time.Time  `json:"at"`
	ActorID uuid.UUID  `json:"actor_id"`
	Action  string     `json:"action"`
	From    ItemStatus `json:"from,omitempty"`
	To      ItemStatus `json:"to,omitempty"`
	Note    string     `json:"note,omitempty"`
}

// Item представляет объявление о вещи для обмена
type Item struct {
	ID             uuid.UUID            `json:"id"`
	OwnerID        uuid.UUID            `json:"owner_id"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	Category       Category             `json:"category"`
	Condition      Condition            `json:"condition"`
	Images         []ItemImage          `json:"images"`
	Status         ItemStatus           `json:"status"`
	IsBoosted      bool                 `json:"is_boosted"`
	BoostExpiresAt *time.Time           `json:"boost_expires_at,omitempty"`
	ExpiresAt      time.Time            `json:"expires_at"`
	Views          int                  `json:"views"`
	Saves          int                  `json:"saves"`
	Requests       int                  `json:"requests"`
	History        []ItemChange         `json:"history"`
	Impact         *EnvironmentalImpact `json:"impact,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// Clone возвращает глубокую копию объявления
func (i Item) Clone() Item {
	i.Images = append([]ItemImage(nil), i.Images...)
	i.History = append([]ItemChange(nil), i.History...)
	if i.BoostExpiresAt != nil {
		t := *i.BoostExpiresAt
		i.BoostExpiresAt = &t
	}
	if i.Impact != nil {
		impact := *i.Impact
		i.Impact = &impact
	}
	return i
}

// ItemDraft данные для создания объявления
type ItemDraft struct {
	Title       string      `json:"title" validate:"required,min=3,max=120"`
	Description string      `json:"description" validate:"max=2000"`
	Category    Category    `json:"category" validate:"required,oneof=electronics clothing furniture books toys sports home other"`
	Condition   Condition   `json:"condition" validate:"required,oneof=new excellent good fair used needs_repair"`
	Images      []ItemImage `json:"images" validate:"max=10"`
}

// ItemUpdate изменяемые поля объявления. nil означает "не менять".
type ItemUpdate struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=3,max=120"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category    *Category  `json:"category,omitempty" validate:"omitempty,oneof=electronics clothing furniture books toys sports home other"`
	Condition   *Condition `json:"condition,omitempty" validate:"omitempty,oneof=new excellent good fair used needs_repair"`
}
