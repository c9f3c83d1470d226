package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rajivgeraev/flippy-core/internal/analytics"
)

func newTestCache(t *testing.T, ttl time.Duration) (*LeaderboardCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, ttl), mr
}

func TestLeaderboardRoundTripAndExpiry(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	if _, ok, err := c.Leaderboard(ctx); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	entries := []analytics.LeaderboardEntry{
		{Rank: 1, Decoration: "🥇", UserID: uuid.New(), Name: "Анна", CarbonSaved: 60, Swaps: 2},
		{Rank: 2, Decoration: "🥈", UserID: uuid.New(), Name: "Борис", CarbonSaved: 15, Swaps: 1},
	}
	if err := c.StoreLeaderboard(ctx, entries); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, ok, err := c.Leaderboard(ctx)
	if err != nil || !ok {
		t.Fatalf("cached leaderboard: ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0].UserID != entries[0].UserID || got[1].Decoration != "🥈" {
		t.Fatalf("unexpected leaderboard %+v", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, _ := c.Leaderboard(ctx); ok {
		t.Fatal("expected leaderboard to expire")
	}
}

func TestInvalidateDropsAggregates(t *testing.T) {
	c, mr := newTestCache(t, 0)
	ctx := context.Background()

	if err := c.StoreCommunityCarbon(ctx, 123); err != nil {
		t.Fatalf("store community: %v", err)
	}
	if err := c.StoreLeaderboard(ctx, nil); err != nil {
		t.Fatalf("store leaderboard: %v", err)
	}
	if v, ok, err := c.CommunityCarbon(ctx); err != nil || !ok || v != 123 {
		t.Fatalf("community carbon = %d ok=%v err=%v", v, ok, err)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(leaderboardKey) || mr.Exists(communityKey) {
		t.Fatal("keys survived invalidation")
	}
}

func TestLeaderboardOrComputeCachesResult(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	calls := 0
	compute := func() []analytics.LeaderboardEntry {
		calls++
		return []analytics.LeaderboardEntry{{Rank: 1, Decoration: "🥇", UserID: uuid.New(), CarbonSaved: 10}}
	}

	first := c.LeaderboardOrCompute(ctx, compute)
	second := c.LeaderboardOrCompute(ctx, compute)
	if calls != 1 {
		t.Fatalf("compute called %d times, want 1", calls)
	}
	if first[0].UserID != second[0].UserID {
		t.Fatal("cached entry differs from computed one")
	}
}

func TestLeaderboardOrComputeFallsBackWhenRedisDown(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	mr.Close()

	calls := 0
	got := c.LeaderboardOrCompute(context.Background(), func() []analytics.LeaderboardEntry {
		calls++
		return []analytics.LeaderboardEntry{{Rank: 1}}
	})
	if calls != 1 || len(got) != 1 {
		t.Fatalf("calls=%d entries=%d", calls, len(got))
	}
}
