package analytics

import (
	"math"
	"time"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

// TrustWeights веса компонентов рейтинга доверия. Сумма весов равна 100.
// Значения подобраны вручную и могут настраиваться.
type TrustWeights struct {
	Swaps         float64
	Rating        float64
	Reviews       float64
	Profile       float64
	Participation float64
	AccountAge    float64
	Verification  float64
}

// DefaultTrustWeights веса по умолчанию
var DefaultTrustWeights = TrustWeights{
	Swaps:         25,
	Rating:        20,
	Reviews:       10,
	Profile:       15,
	Participation: 10,
	AccountAge:    10,
	Verification:  10,
}

// Пороги насыщения компонентов
const (
	trustSwapsCap      = 20
	trustReviewsCap    = 20
	trustEventsCap     = 10
	trustAccountAgeCap = 365
	maxRating          = 5.0
)

// TrustBreakdown разложение рейтинга доверия по компонентам
type TrustBreakdown struct {
	Swaps         float64 `json:"swaps"`
	Rating        float64 `json:"rating"`
	Reviews       float64 `json:"reviews"`
	Profile       float64 `json:"profile"`
	Participation float64 `json:"participation"`
	AccountAge    float64 `json:"account_age"`
	Verification  float64 `json:"verification"`
	Total         int     `json:"total"`
}

// ProfileCompleteness возвращает долю заполненных необязательных полей профиля
func ProfileCompleteness(u models.User) float64 {
	fields := []string{u.Username, u.FirstName, u.LastName, u.Phone, u.Bio, u.AvatarURL, u.Location}
	filled := 0
	for _, f := range fields {
		if f != "" {
			filled++
		}
	}
	return float64(filled) / float64(len(fields))
}

// VerificationLevel возвращает уровень верификации: email и телефон дают по 0.5
func VerificationLevel(u models.User) float64 {
	level := 0.0
	if u.Security.EmailVerified {
		level += 0.5
	}
	if u.Security.PhoneVerified {
		level += 0.5
	}
	return level
}

// AccountAgeDays возвращает возраст аккаунта в полных днях
func AccountAgeDays(u models.User, now time.Time) int {
	if u.CreatedAt.IsZero() || now.Before(u.CreatedAt) {
		return 0
	}
	return int(now.Sub(u.CreatedAt).Hours() / 24)
}

// TrustScore вычисляет рейтинг доверия 0-100 с весами по умолчанию
func TrustScore(u models.User, now time.Time) int {
	return ComputeTrust(u, now, DefaultTrustWeights).Total
}

// ComputeTrust вычисляет рейтинг доверия с разложением по компонентам.
// Каждый компонент монотонно не убывает по своему фактору, итог ограничен [0, 100].
func ComputeTrust(u models.User, now time.Time, w TrustWeights) TrustBreakdown {
	b := TrustBreakdown{
		Swaps:         w.Swaps * saturate(float64(u.Stats.SuccessfulSwaps), trustSwapsCap),
		Rating:        w.Rating * saturate(u.Stats.Rating, maxRating),
		Reviews:       w.Reviews * saturate(float64(u.Stats.ReviewCount), trustReviewsCap),
		Profile:       w.Profile * ProfileCompleteness(u),
		Participation: w.Participation * saturate(float64(u.Stats.EventsAttended), trustEventsCap),
		AccountAge:    w.AccountAge * saturate(float64(AccountAgeDays(u, now)), trustAccountAgeCap),
		Verification:  w.Verification * VerificationLevel(u),
	}
	sum := b.Swaps + b.Rating + b.Reviews + b.Profile + b.Participation + b.AccountAge + b.Verification
	b.Total = clampScore(sum)
	return b
}

// saturate возвращает v/limit, ограниченное [0, 1]
func saturate(v, limit float64) float64 {
	if v <= 0 || limit <= 0 {
		return 0
	}
	if v >= limit {
		return 1
	}
	return v / limit
}

func clampScore(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}
