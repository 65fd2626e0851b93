package api

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const rateLimitPrefix = "gym:ratelimit"

// NewLimiterStore picks the limiter backend. A redis store is only built when a client is
// supplied; any failure falls back to process memory.
func NewLimiterStore(storage string, client *redis.Client, logger logrus.FieldLogger) limiter.Store {
	if storage == "redis" && client != nil {
		store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitPrefix})
		if err == nil {
			return store
		}
		logger.WithError(err).Warn("failed to create redis store for rate limiting, falling back to memory")
	}
	return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix})
}

// NewRateLimiter builds middleware limiting requests per client IP to a formatted rate
// such as "5-M". Exceeding the rate yields a 429 in the API error format.
func NewRateLimiter(store limiter.Store, formatted string) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", formatted, err)
	}
	mw := stdlib.NewMiddleware(limiter.New(store, rate),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many verification attempts")
		}),
	)
	return mw.Handler, nil
}
