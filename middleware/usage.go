package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// UsageLimiter caps the number of AI extraction calls a user may trigger per
// UTC day. Counters live in Redis and expire at midnight.
type UsageLimiter struct {
	logger      *zap.Logger
	redisClient *redis.Client
	dailyLimit  int
}

func NewUsageLimiter(logger *zap.Logger, redisClient *redis.Client, dailyLimit int) *UsageLimiter {
	return &UsageLimiter{
		logger:      logger,
		redisClient: redisClient,
		dailyLimit:  dailyLimit,
	}
}

func (u *UsageLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userID").(string)
		if !ok || userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		now := time.Now().UTC()
		key := fmt.Sprintf("ai_usage:%s:%s", userID, now.Format("2006-01-02"))

		count, err := u.redisClient.Incr(c.Context(), key).Result()
		if err != nil {
			u.logger.Error("failed to track ai usage",
				zap.String("user_id", userID),
				zap.Error(err))
			// Do not block the request on a counter failure.
			return c.Next()
		}

		if count == 1 {
			midnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
			u.redisClient.ExpireAt(c.Context(), key, midnight)
		}

		if count > int64(u.dailyLimit) {
			u.logger.Warn("daily ai usage limit reached",
				zap.String("user_id", userID),
				zap.Int64("count", count))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Daily AI usage limit reached",
				"code":  "USAGE_LIMIT_EXCEEDED",
			})
		}

		return c.Next()
	}
}
