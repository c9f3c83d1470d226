// Package cache хранит вычисленную таблицу лидеров в Redis.
//
// Кэш не является источником истины: при промахе или недоступности Redis
// таблица пересчитывается из снимка хранилища.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rajivgeraev/flippy-core/internal/analytics"
)

const (
	leaderboardKey = "flippy:analytics:leaderboard"
	communityKey   = "flippy:analytics:community"
)

// DefaultTTL время жизни закэшированной таблицы
const DefaultTTL = 5 * time.Minute

// LeaderboardCache кэширует таблицу лидеров и общий эффект сообщества
type LeaderboardCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient создаёт клиента Redis по URL (redis://...) или по адресу host:port
func NewClient(addr string) *redis.Client {
	if addr == "" {
		addr = "localhost:6379"
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	return redis.NewClient(opts)
}

// New создаёт кэш. ttl <= 0 заменяется на DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LeaderboardCache{rdb: rdb, ttl: ttl}
}

// Ping проверяет доступность Redis
func (c *LeaderboardCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Leaderboard возвращает закэшированную таблицу. ok=false при промахе.
func (c *LeaderboardCache) Leaderboard(ctx context.Context) ([]analytics.LeaderboardEntry, bool, error) {
	raw, err := c.rdb.Get(ctx, leaderboardKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get leaderboard: %w", err)
	}

	var entries []analytics.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, false, fmt.Errorf("decode leaderboard: %w", err)
	}
	return entries, true, nil
}

// StoreLeaderboard сохраняет таблицу с TTL
func (c *LeaderboardCache) StoreLeaderboard(ctx context.Context, entries []analytics.LeaderboardEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	if err := c.rdb.Set(ctx, leaderboardKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set leaderboard: %w", err)
	}
	return nil
}

// CommunityCarbon возвращает закэшированный углерод сообщества
func (c *LeaderboardCache) CommunityCarbon(ctx context.Context) (int, bool, error) {
	v, err := c.rdb.Get(ctx, communityKey).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get community carbon: %w", err)
	}
	return v, true, nil
}

// StoreCommunityCarbon сохраняет углерод сообщества с TTL
func (c *LeaderboardCache) StoreCommunityCarbon(ctx context.Context, kg int) error {
	return c.rdb.Set(ctx, communityKey, kg, c.ttl).Err()
}

// Invalidate удаляет все закэшированные агрегаты.
// Вызывается после каждого завершённого обмена.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Del(ctx, leaderboardKey, communityKey).Err(); err != nil {
		return fmt.Errorf("invalidate analytics cache: %w", err)
	}
	return nil
}

// LeaderboardOrCompute возвращает таблицу из кэша или вычисляет и кэширует её.
// Ошибки Redis не прерывают запрос: таблица просто пересчитывается.
func (c *LeaderboardCache) LeaderboardOrCompute(ctx context.Context, compute func() []analytics.LeaderboardEntry) []analytics.LeaderboardEntry {
	entries, ok, err := c.Leaderboard(ctx)
	if err != nil {
		log.Printf("⚠️ Кэш таблицы лидеров недоступен: %v", err)
	}
	if ok {
		return entries
	}

	entries = compute()
	if err := c.StoreLeaderboard(ctx, entries); err != nil {
		log.Printf("⚠️ Не удалось сохранить таблицу лидеров в кэш: %v", err)
	}
	return entries
}
