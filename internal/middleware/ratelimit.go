package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when Redis cannot be reached.
type FailPolicy int

const (
	// FailOpen lets the request through.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

var errNoRateLimitStore = errors.New("rate limit store unavailable")

// RateLimiter counts requests per (rule, caller) in fixed Redis windows.
// A disabled limiter lets everything through; development and test run that way.
type RateLimiter struct {
	rdb     redis.Cmdable
	enabled bool
}

// NewRateLimiter returns a limiter backed by rdb. rdb may be nil when Redis is down.
func NewRateLimiter(rdb *redis.Client, enabled bool) *RateLimiter {
	l := &RateLimiter{enabled: enabled}
	if rdb != nil {
		l.rdb = rdb
	}
	return l
}

// Allow records one hit for id under rule and reports whether it is within limit.
func (l *RateLimiter) Allow(ctx context.Context, rule, id string, limit int, window time.Duration) (bool, error) {
	if l == nil || !l.enabled {
		return true, nil
	}
	if l.rdb == nil {
		return false, errNoRateLimitStore
	}

	key := fmt.Sprintf("rl:%s:%s", rule, id)
	hits, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if hits == 1 {
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	} else if ttl, err := l.rdb.TTL(ctx, key).Result(); err == nil && ttl < 0 {
		// A crash between INCR and EXPIRE would otherwise pin the counter forever.
		_ = l.rdb.Expire(ctx, key, window).Err()
	}
	return hits <= int64(limit), nil
}

// Limit returns a handler allowing limit requests per window for each caller,
// keyed by the authenticated user when there is one and by IP otherwise.
func (l *RateLimiter) Limit(rule string, limit int, window time.Duration) fiber.Handler {
	return l.LimitWithPolicy(rule, limit, window, FailOpen)
}

// LimitWithPolicy is Limit with an explicit behaviour for a missing Redis.
func (l *RateLimiter) LimitWithPolicy(rule string, limit int, window time.Duration, policy FailPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		id := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			id = "user:" + strconv.FormatUint(uint64(uid), 10)
		}

		allowed, err := l.Allow(ctx, rule, id, limit, window)
		if err != nil {
			if policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(ctx, "rate limit store unavailable, failing closed",
				slog.String("rule", rule),
				slog.String("path", c.Path()),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Rate limiting is temporarily unavailable",
			})
		}
		if !allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please slow down",
				"code":  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
