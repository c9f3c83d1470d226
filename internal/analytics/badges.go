package analytics

import (
	"time"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

// BadgeTier уровень достижения по сэкономленному углероду
type BadgeTier struct {
	Type        models.BadgeType `json:"type"`
	Name        string           `json:"name"`
	ThresholdKg int              `json:"threshold_kg"`
}

// BadgeTiers пять уровней в порядке возрастания порога
var BadgeTiers = []BadgeTier{
	{Type: models.BadgeSeedling, Name: "Эко-росток", ThresholdKg: 10},
	{Type: models.BadgeSprout, Name: "Эко-побег", ThresholdKg: 50},
	{Type: models.BadgeTree, Name: "Эко-дерево", ThresholdKg: 100},
	{Type: models.BadgeForest, Name: "Эко-лес", ThresholdKg: 250},
	{Type: models.BadgePlanetHero, Name: "Герой планеты", ThresholdKg: 500},
}

// EligibleBadges возвращает уровни, пороги которых достигнуты
func EligibleBadges(carbonKg int) []BadgeTier {
	var out []BadgeTier
	for _, tier := range BadgeTiers {
		if carbonKg >= tier.ThresholdKg {
			out = append(out, tier)
		}
	}
	return out
}

// MissingBadges возвращает достижения, на которые пользователь имеет право,
// но которых ещё нет в его наборе
func MissingBadges(u models.User, carbonKg int, now time.Time) []models.Badge {
	var out []models.Badge
	for _, tier := range EligibleBadges(carbonKg) {
		if u.HasBadge(tier.Type) {
			continue
		}
		out = append(out, models.Badge{Type: tier.Type, Name: tier.Name, EarnedAt: now})
	}
	return out
}

// AwardBadges добавляет пользователю недостающие достижения и возвращает новые.
// Повторный вызов ничего не дублирует.
func AwardBadges(u *models.User, carbonKg int, now time.Time) []models.Badge {
	awarded := MissingBadges(*u, carbonKg, now)
	u.Badges = append(u.Badges, awarded...)
	return awarded
}

// BadgeProgress прогресс до следующего уровня
type BadgeProgress struct {
	Next        BadgeTier `json:"next"`
	RemainingKg int       `json:"remaining_kg"`
	Percent     int       `json:"percent"`
}

// NextBadge возвращает прогресс до следующего уровня или nil, если все получены
func NextBadge(carbonKg int) *BadgeProgress {
	prev := 0
	for _, tier := range BadgeTiers {
		if carbonKg < tier.ThresholdKg {
			span := tier.ThresholdKg - prev
			done := carbonKg - prev
			if done < 0 {
				done = 0
			}
			return &BadgeProgress{
				Next:        tier,
				RemainingKg: tier.ThresholdKg - carbonKg,
				Percent:     done * 100 / span,
			}
		}
		prev = tier.ThresholdKg
	}
	return nil
}
