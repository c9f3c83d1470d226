package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/flippy-core/internal/models"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func swappedItem(owner uuid.UUID, cat models.Category, cond models.Condition) models.Item {
	return models.Item{
		ID:        uuid.New(),
		OwnerID:   owner,
		Category:  cat,
		Condition: cond,
		Status:    models.ItemSwapped,
	}
}

func TestCarbonSavedElectronicsExcellent(t *testing.T) {
	item := swappedItem(uuid.New(), models.CategoryElectronics, models.ConditionExcellent)
	want := int(math.Round(BaseCategorySavings(models.CategoryElectronics) * 1.2))
	if got := CarbonSaved(item); got != want {
		t.Fatalf("carbon saved = %d, want %d", got, want)
	}
}

func TestConditionMultipliers(t *testing.T) {
	cases := map[models.Condition]float64{
		models.ConditionExcellent:   1.2,
		models.ConditionGood:        1.0,
		models.ConditionFair:        0.8,
		models.ConditionNeedsRepair: 0.6,
		models.Condition("broken"):  1.0,
	}
	for cond, want := range cases {
		if got := ConditionMultiplier(cond); got != want {
			t.Fatalf("multiplier(%s) = %v, want %v", cond, got, want)
		}
	}
}

func TestCarbonSavedIsIdempotentAndPrefersCache(t *testing.T) {
	item := swappedItem(uuid.New(), models.CategoryFurniture, models.ConditionGood)
	first := CarbonSaved(item)
	if second := CarbonSaved(item); second != first {
		t.Fatalf("second call = %d, first = %d", second, first)
	}

	item.Impact = &models.EnvironmentalImpact{CarbonSavedKg: 7, WaterSavedL: 1, LandfillSavedKg: 2}
	if got := CarbonSaved(item); got != 7 {
		t.Fatalf("cached carbon = %d, want 7", got)
	}
	if got := ComputeImpact(item); got != *item.Impact {
		t.Fatalf("cached impact = %+v, want %+v", got, *item.Impact)
	}
}

func TestUserCarbonCountsOnlySwappedItems(t *testing.T) {
	owner := uuid.New()
	items := []models.Item{
		swappedItem(owner, models.CategoryBooks, models.ConditionGood),
		{ID: uuid.New(), OwnerID: owner, Category: models.CategoryElectronics, Condition: models.ConditionNew, Status: models.ItemAvailable},
		{ID: uuid.New(), OwnerID: owner, Category: models.CategoryElectronics, Condition: models.ConditionNew, Status: models.ItemRemoved},
		swappedItem(uuid.New(), models.CategoryToys, models.ConditionGood),
	}

	if got, want := UserCarbonSaved(owner, items), CarbonSaved(items[0]); got != want {
		t.Fatalf("user carbon = %d, want %d", got, want)
	}
	if got, want := CommunityCarbonSaved(items), CarbonSaved(items[0])+CarbonSaved(items[3]); got != want {
		t.Fatalf("community carbon = %d, want %d", got, want)
	}
}

func TestUserWithoutSwapsIsNotRanked(t *testing.T) {
	idle := models.User{ID: uuid.New(), FirstName: "Idle"}
	active := models.User{ID: uuid.New(), FirstName: "Active"}
	items := []models.Item{
		{ID: uuid.New(), OwnerID: idle.ID, Category: models.CategoryBooks, Condition: models.ConditionGood, Status: models.ItemAvailable},
		swappedItem(active.ID, models.CategoryBooks, models.ConditionGood),
	}

	if got := UserCarbonSaved(idle.ID, items); got != 0 {
		t.Fatalf("idle carbon = %d, want 0", got)
	}
	board := Leaderboard([]models.User{idle, active}, items)
	if RankOf(board, idle.ID) != 0 {
		t.Fatal("user without swaps must not appear in leaderboard")
	}
	if len(board) != 1 || board[0].UserID != active.ID {
		t.Fatalf("unexpected leaderboard %+v", board)
	}
}

func TestLeaderboardOrderingAndTies(t *testing.T) {
	users := []models.User{
		{ID: uuid.New(), FirstName: "A"},
		{ID: uuid.New(), FirstName: "B"},
		{ID: uuid.New(), FirstName: "C"},
		{ID: uuid.New(), FirstName: "D"},
		{ID: uuid.New(), FirstName: "E"},
	}
	items := []models.Item{
		swappedItem(users[0].ID, models.CategoryBooks, models.ConditionGood),
		swappedItem(users[1].ID, models.CategoryElectronics, models.ConditionGood),
		swappedItem(users[2].ID, models.CategoryElectronics, models.ConditionGood),
		swappedItem(users[4].ID, models.CategoryClothing, models.ConditionGood),
	}

	board := Leaderboard(users, items)
	wantOrder := []string{"B", "C", "E", "A"}
	if len(board) != len(wantOrder) {
		t.Fatalf("leaderboard size = %d, want %d", len(board), len(wantOrder))
	}
	for i, name := range wantOrder {
		if board[i].Name != name {
			t.Fatalf("position %d = %s, want %s", i+1, board[i].Name, name)
		}
		if board[i].Rank != i+1 {
			t.Fatalf("rank at %d = %d", i, board[i].Rank)
		}
	}
	for i := 1; i < len(board); i++ {
		if board[i].CarbonSaved > board[i-1].CarbonSaved {
			t.Fatalf("leaderboard not descending at %d", i)
		}
	}
	for _, e := range board {
		if e.CarbonSaved <= 0 {
			t.Fatalf("non-positive entry %+v", e)
		}
	}

	decorations := []string{"🥇", "🥈", "🥉", "4"}
	for i, want := range decorations {
		if board[i].Decoration != want {
			t.Fatalf("decoration %d = %q, want %q", i+1, board[i].Decoration, want)
		}
	}

	again := Leaderboard(users, items)
	for i := range board {
		if again[i].UserID != board[i].UserID {
			t.Fatal("leaderboard is not stable across recomputation")
		}
	}
}

func TestAwardBadgesIsIdempotent(t *testing.T) {
	u := models.User{ID: uuid.New()}

	first := AwardBadges(&u, 120, testNow)
	if len(first) != 3 {
		t.Fatalf("awarded %d badges, want 3", len(first))
	}
	second := AwardBadges(&u, 120, testNow.Add(time.Hour))
	if len(second) != 0 {
		t.Fatalf("second award returned %d badges, want 0", len(second))
	}

	seen := map[models.BadgeType]int{}
	for _, b := range u.Badges {
		seen[b.Type]++
	}
	for typ, n := range seen {
		if n != 1 {
			t.Fatalf("badge %s present %d times", typ, n)
		}
	}
	if !u.HasBadge(models.BadgeTree) || u.HasBadge(models.BadgeForest) {
		t.Fatalf("unexpected badges %+v", u.Badges)
	}
}

func TestBadgeTiersAscend(t *testing.T) {
	if len(BadgeTiers) != 5 {
		t.Fatalf("tiers = %d, want 5", len(BadgeTiers))
	}
	for i := 1; i < len(BadgeTiers); i++ {
		if BadgeTiers[i].ThresholdKg <= BadgeTiers[i-1].ThresholdKg {
			t.Fatalf("tier %d threshold does not ascend", i)
		}
	}
}

func TestNextBadge(t *testing.T) {
	p := NextBadge(120)
	if p == nil || p.Next.Type != models.BadgeForest {
		t.Fatalf("next badge = %+v, want forest", p)
	}
	if p.RemainingKg != 130 {
		t.Fatalf("remaining = %d, want 130", p.RemainingKg)
	}
	if p.Percent != 13 {
		t.Fatalf("percent = %d, want 13", p.Percent)
	}
	if NextBadge(0).Next.Type != models.BadgeSeedling {
		t.Fatal("first tier expected for zero carbon")
	}
	if NextBadge(10_000) != nil {
		t.Fatal("no next badge expected after the last tier")
	}
}

func TestTrustScoreIsMonotonicAndClamped(t *testing.T) {
	base := models.User{ID: uuid.New(), CreatedAt: testNow}
	baseScore := TrustScore(base, testNow)
	if baseScore != 0 {
		t.Fatalf("empty profile score = %d, want 0", baseScore)
	}

	bumps := map[string]func(u *models.User){
		"swaps":   func(u *models.User) { u.Stats.SuccessfulSwaps = 5 },
		"rating":  func(u *models.User) { u.Stats.Rating = 4.5 },
		"reviews": func(u *models.User) { u.Stats.ReviewCount = 4 },
		"profile": func(u *models.User) { u.Bio = "люблю обмены"; u.Location = "Москва" },
		"events":  func(u *models.User) { u.Stats.EventsAttended = 3 },
		"age":     func(u *models.User) { u.CreatedAt = testNow.AddDate(0, -6, 0) },
		"email":   func(u *models.User) { u.Security.EmailVerified = true },
	}
	for name, bump := range bumps {
		u := base
		bump(&u)
		if got := TrustScore(u, testNow); got <= baseScore {
			t.Fatalf("%s: score %d did not increase over %d", name, got, baseScore)
		}
	}

	maxed := models.User{
		ID: uuid.New(), Username: "max", FirstName: "M", LastName: "X", Phone: "+79990000000",
		Bio: "bio", AvatarURL: "https://example.com/a.png", Location: "Казань",
		Stats:     models.UserStats{SuccessfulSwaps: 500, Rating: 5, ReviewCount: 300, EventsAttended: 90},
		Security:  models.UserSecurity{EmailVerified: true, PhoneVerified: true},
		CreatedAt: testNow.AddDate(-5, 0, 0),
	}
	if got := TrustScore(maxed, testNow); got != 100 {
		t.Fatalf("maxed score = %d, want 100", got)
	}
}

func TestVerificationLevel(t *testing.T) {
	u := models.User{}
	u.Security.EmailVerified = true
	if got := VerificationLevel(u); got != 0.5 {
		t.Fatalf("email only = %v, want 0.5", got)
	}
	u.Security.PhoneVerified = true
	if got := VerificationLevel(u); got != 1 {
		t.Fatalf("both = %v, want 1", got)
	}
}

func TestEnvironmentalScore(t *testing.T) {
	if got := EnvironmentalScore(0, 0); got != 0 {
		t.Fatalf("empty score = %d, want 0", got)
	}
	if got := EnvironmentalScore(10_000, 1_000); got != 100 {
		t.Fatalf("capped score = %d, want 100", got)
	}
	withSwap := EnvironmentalScore(0, 1)
	if withSwap < int(scoreConsistencyBonus) {
		t.Fatalf("consistency bonus missing: %d", withSwap)
	}
	if EnvironmentalScore(200, 3) < EnvironmentalScore(100, 3) {
		t.Fatal("score must not decrease with more carbon")
	}
}

func TestReport(t *testing.T) {
	alice := models.User{ID: uuid.New(), FirstName: "Alice", Stats: models.UserStats{SuccessfulSwaps: 1}}
	bob := models.User{ID: uuid.New(), FirstName: "Bob"}
	items := []models.Item{
		swappedItem(alice.ID, models.CategoryElectronics, models.ConditionExcellent),
		swappedItem(bob.ID, models.CategoryBooks, models.ConditionGood),
	}

	r := Report(alice.ID, []models.User{alice, bob}, items, testNow)
	if r.User.CarbonSavedKg != CarbonSaved(items[0]) {
		t.Fatalf("user carbon = %d", r.User.CarbonSavedKg)
	}
	if r.Community.CarbonSavedKg != CarbonSaved(items[0])+CarbonSaved(items[1]) {
		t.Fatalf("community carbon = %d", r.Community.CarbonSavedKg)
	}
	if r.Rank != 1 || r.SwappedItems != 1 {
		t.Fatalf("rank = %d swapped = %d", r.Rank, r.SwappedItems)
	}
	if r.NextBadge == nil {
		t.Fatal("expected progress toward next badge")
	}
	if !r.GeneratedAt.Equal(testNow) {
		t.Fatalf("generated at %v", r.GeneratedAt)
	}
}
