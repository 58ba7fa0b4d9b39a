// Package ratelimit implements rate limiting logic using Redis or local memory.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/RoseWrightdev/conference-authority/internal/v1/config"
	"github.com/RoseWrightdev/conference-authority/internal/v1/logging"
	"github.com/RoseWrightdev/conference-authority/internal/v1/metrics"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimiter enforces the per-participant-address issue-url rate limit.
type RateLimiter struct {
	issueURL    *limiter.Limiter
	store       limiter.Store
	redisClient *redis.Client
}

// NewRateLimiter creates a new RateLimiter instance. If redisClient is nil,
// the limiter falls back to an in-process memory store (single-instance
// mode); otherwise counts are shared across instances via Redis.
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	issueURLRate, err := limiter.NewRateFromFormatted(cfg.RateLimitIssueURL)
	if err != nil {
		return nil, fmt.Errorf("invalid issue-url rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "limiter:v1:",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "Rate limiter using Redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "Rate limiter using memory store (Redis disabled or unavailable)")
	}

	return &RateLimiter{
		issueURL:    limiter.New(store, issueURLRate),
		store:       store,
		redisClient: redisClient,
	}, nil
}

// Allow checks whether issue-url is allowed for participantAddress. On store
// failure, it fails open: availability wins over strict enforcement.
func (rl *RateLimiter) Allow(ctx context.Context, participantAddress string) (bool, error) {
	result, err := rl.issueURL.Get(ctx, participantAddress)
	if err != nil {
		logging.Error(ctx, "rate limiter store failed")
		return true, nil
	}

	if result.Reached {
		metrics.RateLimitExceededTotal.Inc()
		return false, nil
	}

	return true, nil
}

// Middleware returns a Gin middleware enforcing the issue-url rate limit,
// keyed by the participant address query parameter.
func (rl *RateLimiter) Middleware(participantAddressParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		participantAddress := c.Query(participantAddressParam)
		if participantAddress == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := rl.issueURL.Get(ctx, participantAddress)
		if err != nil {
			logging.Error(ctx, "rate limiter store failed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset, 10))

		if result.Reached {
			metrics.RateLimitExceededTotal.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests",
				"retry_after": result.Reset,
			})
			return
		}

		c.Next()
	}
}
