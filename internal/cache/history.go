package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"converse-backend/internal/models"
)

// HistoryCache stores serialized history pages under a composite key of
// user id + pagination parameters. Invalidation is coarse: every page
// belonging to the user is dropped.
type HistoryCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewHistoryCache(redisClient *redis.Client, ttl time.Duration) *HistoryCache {
	return &HistoryCache{redis: redisClient, ttl: ttl}
}

func pageKey(userID uuid.UUID, page, limit int) string {
	return fmt.Sprintf("chat_history:%s:%d:%d", userID, page, limit)
}

// GetPage returns the cached page, or (nil, nil) on a miss.
func (c *HistoryCache) GetPage(ctx context.Context, userID uuid.UUID, page, limit int) (*models.HistoryPage, error) {
	data, err := c.redis.Get(ctx, pageKey(userID, page, limit)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p models.HistoryPage
	if err := json.Unmarshal(data, &p); err != nil {
		// Corrupt entry, treat as a miss
		c.redis.Del(ctx, pageKey(userID, page, limit))
		return nil, nil
	}
	return &p, nil
}

func (c *HistoryCache) SetPage(ctx context.Context, userID uuid.UUID, page, limit int, p *models.HistoryPage) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, pageKey(userID, page, limit), data, c.ttl).Err()
}

// InvalidateUser deletes all cached pages for a user. Idempotent; concurrent
// invalidations for the same user are harmless.
func (c *HistoryCache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	pattern := fmt.Sprintf("chat_history:%s:*", userID)
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
