package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"taskmanager/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// InitRedisRateLimiter initializes a shared Redis client used by the middleware.
// Provide addr (host:port), password and db index. If connection fails, redisClient remains nil
// and limiters count in process memory instead.
func InitRedisRateLimiter(addr, password string, db int) bool {
	if addr == "" {
		return false
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory rate limiting", "addr", addr, "error", err)
		_ = client.Close()
		redisClient = nil
		return false
	}
	redisClient = client
	logger.Info("redis rate limiter connected", "addr", addr)
	return true
}

// CloseRedis releases the shared client.
func CloseRedis() {
	if redisClient != nil {
		_ = redisClient.Close()
		redisClient = nil
	}
}

// LimiterBackend names the counter store used by the rate limiters and
// pings Redis when it is configured.
func LimiterBackend(ctx context.Context) (string, error) {
	client := redisClient
	if client == nil {
		return "memory", nil
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return "redis", err
	}
	return "redis", nil
}

// RedisRateLimit implements a fixed-window rate limiter per client IP using
// Redis INCR/EXPIRE, falling back to process memory without Redis.
// key format: rl:<window_seconds>:<identifier>
func RedisRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return limit("rl", maxRequests, window, clientIP, newMemoryLimiter(window))
}

func clientIP(c *gin.Context) (string, bool) {
	return c.ClientIP(), true
}

// limit builds a fixed-window limiter. ident picks the counted identity;
// returning false rejects the request as unauthenticated. mem counts when
// Redis is not configured.
func limit(prefix string, maxRequests int, window time.Duration, ident func(*gin.Context) (string, bool), mem *memoryLimiter) gin.HandlerFunc {
	windowSeconds := strconv.FormatInt(int64(window.Seconds()), 10)

	return func(c *gin.Context) {
		id, ok := ident(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		key := prefix + ":" + windowSeconds + ":" + id

		var val int64
		if client := redisClient; client != nil {
			ctx := c.Request.Context()
			v, err := client.Incr(ctx, key).Result()
			if err != nil {
				// fail-open
				c.Header("X-RateLimit-Error", "redis-error")
				c.Next()
				return
			}
			if v == 1 {
				client.Expire(ctx, key, window)
			}
			val = v
		} else {
			val = mem.incr(key)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))

		endpoint := prefix + ":" + c.FullPath()
		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues(endpoint).Inc()
			c.Header("Retry-After", windowSeconds)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "rate limit exceeded"})
			return
		}

		RLRequests.WithLabelValues(endpoint).Inc()
		c.Next()
	}
}
