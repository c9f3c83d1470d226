// Package analytics вычисляет производные показатели: экологический эффект
// обменов, рейтинг доверия, достижения и таблицу лидеров.
//
// Все функции чистые: результат зависит только от аргументов, состояние
// не хранится и не изменяется.
package analytics

import (
	"math"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

// categoryFootprint средний след производства новой вещи категории
type categoryFootprint struct {
	CarbonKg   float64
	WaterL     float64
	LandfillKg float64
}

var footprints = map[models.Category]categoryFootprint{
	models.CategoryElectronics: {CarbonKg: 50, WaterL: 1200, LandfillKg: 2.5},
	models.CategoryClothing:    {CarbonKg: 15, WaterL: 2700, LandfillKg: 0.8},
	models.CategoryFurniture:   {CarbonKg: 45, WaterL: 600, LandfillKg: 20},
	models.CategoryBooks:       {CarbonKg: 3, WaterL: 40, LandfillKg: 0.5},
	models.CategoryToys:        {CarbonKg: 8, WaterL: 150, LandfillKg: 1},
	models.CategorySports:      {CarbonKg: 20, WaterL: 400, LandfillKg: 3},
	models.CategoryHome:        {CarbonKg: 25, WaterL: 350, LandfillKg: 4},
	models.CategoryOther:       {CarbonKg: 10, WaterL: 200, LandfillKg: 1.5},
}

var conditionMultipliers = map[models.Condition]float64{
	models.ConditionNew:         1.3,
	models.ConditionExcellent:   1.2,
	models.ConditionGood:        1.0,
	models.ConditionUsed:        0.9,
	models.ConditionFair:        0.8,
	models.ConditionNeedsRepair: 0.6,
}

// BaseCategorySavings возвращает базовую экономию углерода (кг) для категории.
// Неизвестные категории считаются как "other".
func BaseCategorySavings(c models.Category) float64 {
	return footprintOf(c).CarbonKg
}

// ConditionMultiplier возвращает множитель состояния вещи. Для неизвестного состояния 1.0.
func ConditionMultiplier(c models.Condition) float64 {
	if m, ok := conditionMultipliers[c]; ok {
		return m
	}
	return 1.0
}

func footprintOf(c models.Category) categoryFootprint {
	if fp, ok := footprints[c]; ok {
		return fp
	}
	return footprints[models.CategoryOther]
}

// ComputeImpact считает экологический эффект обмена вещи.
// Если на объявлении уже есть кэшированное значение, оно возвращается без изменений.
func ComputeImpact(item models.Item) models.EnvironmentalImpact {
	if item.Impact != nil {
		return *item.Impact
	}
	fp := footprintOf(item.Category)
	m := ConditionMultiplier(item.Condition)
	return models.EnvironmentalImpact{
		CarbonSavedKg:   int(math.Round(fp.CarbonKg * m)),
		WaterSavedL:     int(math.Round(fp.WaterL * m)),
		LandfillSavedKg: int(math.Round(fp.LandfillKg * m)),
	}
}

// CarbonSaved возвращает сэкономленный углерод (кг) для одной вещи
func CarbonSaved(item models.Item) int {
	return ComputeImpact(item).CarbonSavedKg
}

// UserImpact суммирует эффект по обменянным вещам пользователя.
// Необменянные вещи ничего не дают.
func UserImpact(userID uuid.UUID, items []models.Item) models.EnvironmentalImpact {
	var total models.EnvironmentalImpact
	for _, item := range items {
		if item.OwnerID != userID || item.Status != models.ItemSwapped {
			continue
		}
		addImpact(&total, ComputeImpact(item))
	}
	return total
}

// UserCarbonSaved возвращает сэкономленный пользователем углерод (кг)
func UserCarbonSaved(userID uuid.UUID, items []models.Item) int {
	return UserImpact(userID, items).CarbonSavedKg
}

// CommunityImpact суммирует эффект по всем обменянным вещам
func CommunityImpact(items []models.Item) models.EnvironmentalImpact {
	var total models.EnvironmentalImpact
	for _, item := range items {
		if item.Status == models.ItemSwapped {
			addImpact(&total, ComputeImpact(item))
		}
	}
	return total
}

// CommunityCarbonSaved возвращает углерод, сэкономленный всем сообществом
func CommunityCarbonSaved(items []models.Item) int {
	return CommunityImpact(items).CarbonSavedKg
}

func addImpact(total *models.EnvironmentalImpact, v models.EnvironmentalImpact) {
	total.CarbonSavedKg += v.CarbonSavedKg
	total.WaterSavedL += v.WaterSavedL
	total.LandfillSavedKg += v.LandfillSavedKg
}
