package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Gated actions and their admission limits.
const (
	ActionBattleRequest = "battle_request"
	ActionFreeCheer     = "cheer_free"
	ActionPaidCheer     = "cheer_paid"

	BattleRequestDailyLimit = 10
	FreeCheerHourlyLimit    = 30
	PaidCheerHourlyLimit    = 60
)

// QuotaGate is the atomic check-and-increment admission control shared by
// every rate-limited action. Allow consumes one unit and reports whether the
// attempt is still within limit for the window.
type QuotaGate interface {
	Allow(ctx context.Context, action, actor string, limit int64, window time.Duration) (bool, error)
}

// RedisQuotaGate counts attempts in a per-window Redis key. INCR is atomic,
// so two concurrent attempts can never both observe the same pre-limit count.
type RedisQuotaGate struct {
	Client *redis.Client
}

func NewRedisQuotaGate(client *redis.Client) *RedisQuotaGate {
	return &RedisQuotaGate{Client: client}
}

func (g *RedisQuotaGate) Allow(ctx context.Context, action, actor string, limit int64, window time.Duration) (bool, error) {
	key := fmt.Sprintf("quota:%s:%s", action, actor)
	n, err := g.Client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		// First hit opens the window; the counter expires with it.
		if err := g.Client.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= limit, nil
}

// ConnectRedis opens and pings the quota store.
func ConnectRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}
