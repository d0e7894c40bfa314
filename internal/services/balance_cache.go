package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rebatewise/backend/internal/models"
)

const balanceCacheTTL = 30 * time.Second

// BalanceCache keeps short-lived balance snapshots in Redis so the
// balance enquiry stays cheap under polling. Every mutating procedure
// invalidates the user's entry; a nil client disables caching entirely.
type BalanceCache struct {
	redis *redis.Client
}

func NewBalanceCache(redisClient *redis.Client) *BalanceCache {
	return &BalanceCache{redis: redisClient}
}

func (c *BalanceCache) key(userID string) string {
	return fmt.Sprintf("balance:%s", userID)
}

// Get returns the cached snapshot, or false on miss or disabled cache.
func (c *BalanceCache) Get(ctx context.Context, userID string) (models.BalanceSnapshot, bool) {
	if c.redis == nil {
		return models.BalanceSnapshot{}, false
	}
	data, err := c.redis.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		return models.BalanceSnapshot{}, false
	}
	var snapshot models.BalanceSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return models.BalanceSnapshot{}, false
	}
	return snapshot, true
}

// Set stores a snapshot. Failures are ignored: the cache is advisory.
func (c *BalanceCache) Set(ctx context.Context, snapshot models.BalanceSnapshot) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	c.redis.Set(ctx, c.key(snapshot.UserID), data, balanceCacheTTL)
}

// Invalidate drops the user's entry after a committed mutation.
func (c *BalanceCache) Invalidate(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	c.redis.Del(ctx, c.key(userID))
}
