package analytics

import (
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

// LeaderboardEntry строка таблицы лидеров
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	Decoration  string    `json:"decoration"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	CarbonSaved int       `json:"carbon_saved_kg"`
	Swaps       int       `json:"swaps"`
}

var podium = [...]string{"🥇", "🥈", "🥉"}

// RankDecoration возвращает медаль для первых трёх мест и номер для остальных
func RankDecoration(rank int) string {
	if rank >= 1 && rank <= len(podium) {
		return podium[rank-1]
	}
	return strconv.Itoa(rank)
}

// Leaderboard ранжирует пользователей по убыванию сэкономленного углерода.
//
// В таблицу попадают только пользователи с экономией больше нуля.
// При равенстве сохраняется порядок пользователей во входном срезе
// (стабильная сортировка).
func Leaderboard(users []models.User, items []models.Item) []LeaderboardEntry {
	carbon := make(map[uuid.UUID]int, len(users))
	for _, item := range items {
		if item.Status == models.ItemSwapped {
			carbon[item.OwnerID] += CarbonSaved(item)
		}
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		saved := carbon[u.ID]
		if saved <= 0 {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			UserID:      u.ID,
			Name:        u.DisplayName(),
			CarbonSaved: saved,
			Swaps:       u.Stats.SuccessfulSwaps,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CarbonSaved > entries[j].CarbonSaved
	})

	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].Decoration = RankDecoration(i + 1)
	}
	return entries
}

// TopN возвращает первые n строк таблицы
func TopN(entries []LeaderboardEntry, n int) []LeaderboardEntry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}

// RankOf возвращает место пользователя или 0, если его нет в таблице
func RankOf(entries []LeaderboardEntry, userID uuid.UUID) int {
	for _, e := range entries {
		if e.UserID == userID {
			return e.Rank
		}
	}
	return 0
}
