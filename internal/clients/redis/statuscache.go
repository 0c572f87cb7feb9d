package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/studyloop/adaptive-backend/internal/logger"
)

// StatusCache holds the serialized classification-status payload per user so
// the status endpoint stays cheap on every page load. All methods are safe on
// a nil receiver: with no Redis configured the pipeline simply recomputes.
type StatusCache interface {
	Get(ctx context.Context, userID string) ([]byte, bool)
	Set(ctx context.Context, userID string, payload []byte)
	Invalidate(ctx context.Context, userID string)
}

type statusCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewStatusCache(log *logger.Logger) (StatusCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &statusCache{
		log: log.With("service", "RedisStatusCache"),
		rdb: rdb,
		ttl: 30 * time.Second,
	}, nil
}

func statusKey(userID string) string {
	return "classification_status:" + userID
}

func (c *statusCache) Get(ctx context.Context, userID string) ([]byte, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, statusKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

func (c *statusCache) Set(ctx context.Context, userID string, payload []byte) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, statusKey(userID), payload, c.ttl).Err(); err != nil {
		c.log.Debug("status cache set failed", "error", err)
	}
}

func (c *statusCache) Invalidate(ctx context.Context, userID string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, statusKey(userID)).Err(); err != nil {
		c.log.Debug("status cache invalidate failed", "error", err)
	}
}
