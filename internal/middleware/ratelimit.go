package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const rateLimitPrefix = "chatarchive:ratelimit"

// NewRateLimitStore keeps counters in Redis when a client is available so
// every API replica shares one budget; otherwise counters are per process.
func NewRateLimitStore(client redis.UniversalClient, logger *zap.Logger) limiter.Store {
	if client != nil {
		store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitPrefix})
		if err == nil {
			return store
		}
		logger.Warn("redis rate limit store unavailable, falling back to memory", zap.Error(err))
	}
	return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix})
}

// RateLimit throttles requests at rate, formatted like "300-M". Behind
// AuthMiddleware the budget is per calling app; on public routes such as
// the token exchange it is per client IP. An empty rate disables limiting.
func RateLimit(rate string, store limiter.Store) (gin.HandlerFunc, error) {
	if rate == "" {
		return func(c *gin.Context) { c.Next() }, nil
	}
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}

	return mgin.NewMiddleware(limiter.New(store, r),
		mgin.WithKeyGetter(rateLimitKey),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		}),
	), nil
}

func rateLimitKey(c *gin.Context) string {
	if id := GetAppID(c); id != uuid.Nil {
		return "app:" + id.String()
	}
	return "ip:" + c.ClientIP()
}
