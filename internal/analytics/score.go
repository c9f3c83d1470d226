package analytics

import (
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

// Параметры экологического рейтинга. Как и веса доверия, подбираются вручную.
const (
	scoreCarbonWeight     = 60.0
	scoreCarbonCapKg      = 500.0
	scoreSwapsWeight      = 30.0
	scoreSwapsCap         = 20.0
	scoreConsistencyBonus = 10.0
)

// EnvironmentalScore вычисляет экологический рейтинг 0-100: вклад углерода
// (с потолком), вклад количества обменов (с потолком) и бонус за постоянство,
// который начисляется только при наличии хотя бы одного обмена.
func EnvironmentalScore(carbonKg, swaps int) int {
	score := scoreCarbonWeight*saturate(float64(carbonKg), scoreCarbonCapKg) +
		scoreSwapsWeight*saturate(float64(swaps), scoreSwapsCap)
	if swaps > 0 {
		score += scoreConsistencyBonus
	}
	return clampScore(score)
}

// ImpactReport сводный экологический отчёт. Всегда вычисляется заново
// из пользователей и вещей и никогда не сохраняется.
type ImpactReport struct {
	UserID       uuid.UUID                  `json:"user_id"`
	User         models.EnvironmentalImpact `json:"user"`
	Community    models.EnvironmentalImpact `json:"community"`
	SwappedItems int                        `json:"swapped_items"`
	Score        int                        `json:"score"`
	Badges       []models.Badge             `json:"badges"`
	NextBadge    *BadgeProgress             `json:"next_badge,omitempty"`
	Rank         int                        `json:"rank"`
	Leaderboard  []LeaderboardEntry         `json:"leaderboard"`
	GeneratedAt  time.Time                  `json:"generated_at"`
}

// Report собирает экологический отчёт для пользователя
func Report(userID uuid.UUID, users []models.User, items []models.Item, now time.Time) ImpactReport {
	report := ImpactReport{
		UserID:      userID,
		User:        UserImpact(userID, items),
		Community:   CommunityImpact(items),
		GeneratedAt: now,
	}
	for _, item := range items {
		if item.OwnerID == userID && item.Status == models.ItemSwapped {
			report.SwappedItems++
		}
	}

	swaps := 0
	for _, u := range users {
		if u.ID == userID {
			swaps = u.Stats.SuccessfulSwaps
			report.Badges = append([]models.Badge(nil), u.Badges...)
			break
		}
	}

	report.Score = EnvironmentalScore(report.User.CarbonSavedKg, swaps)
	report.NextBadge = NextBadge(report.User.CarbonSavedKg)
	report.Leaderboard = Leaderboard(users, items)
	report.Rank = RankOf(report.Leaderboard, userID)
	return report
}
