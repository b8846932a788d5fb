package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/language_school/internal/logging"
)

type Config struct {
	Limit  int
	Window time.Duration
	Prefix string
}

// FixedWindow counts requests per client IP and route in Redis.
// A nil client or a non-positive limit disables it; Redis errors let the request through.
func FixedWindow(rdb redis.Cmdable, cfg Config) echo.MiddlewareFunc {
	if rdb == nil || cfg.Limit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now()
			window := now.UnixNano() / int64(cfg.Window)
			key := fmt.Sprintf("%s:%s:%s:%d", cfg.Prefix, c.Path(), c.RealIP(), window)

			ctx := c.Request().Context()
			var incr *redis.IntCmd
			_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				incr = pipe.Incr(ctx, key)
				pipe.Expire(ctx, key, cfg.Window)
				return nil
			})
			if err != nil {
				logging.FromContext(ctx).Warn("ratelimit_unavailable", "key", key, "error", err)
				return next(c)
			}

			count := incr.Val()
			remaining := int64(cfg.Limit) - count
			if remaining < 0 {
				remaining = 0
			}
			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(cfg.Limit) {
				resetAt := time.Unix(0, (window+1)*int64(cfg.Window))
				secs := int(resetAt.Sub(now).Seconds()) + 1
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				logging.FromContext(ctx).Warn("rate_limited", "status", 429, "key", key)
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
			}
			return next(c)
		}
	}
}
