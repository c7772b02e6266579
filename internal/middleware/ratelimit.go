package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// DefaultLoginRate allows ten credential attempts per client IP per minute
const DefaultLoginRate = "10-M"

// RedisRateLimiter wraps the Redis client shared by rate limiting and session revocation
type RedisRateLimiter struct {
	client *redis.Client
}

// NewRedisRateLimiter connects to Redis at redisURL
func NewRedisRateLimiter(redisURL string) (*RedisRateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRateLimiter{client: client}, nil
}

// NewRedisRateLimiterFromClient wraps an existing client
func NewRedisRateLimiterFromClient(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

// Client returns the underlying Redis client
func (r *RedisRateLimiter) Client() *redis.Client {
	return r.client
}

// Close closes the Redis connection
func (r *RedisRateLimiter) Close() error {
	return r.client.Close()
}

// Ping checks if Redis is reachable
func (r *RedisRateLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// LoginRateLimit limits credential endpoints per client IP. rate uses the
// limiter format ("10-M", "100-H"); empty means DefaultLoginRate. The key is
// the peer host without its port; forwarding headers are trusted only when
// trustProxy is set. When the store is unreachable the request is rejected with 503.
func LoginRateLimit(redisLimiter *RedisRateLimiter, rate string, trustProxy bool, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		rate = DefaultLoginRate
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid login rate limit %q: %w", rate, err)
	}

	store, err := redisstore.NewStoreWithOptions(redisLimiter.client, limiter.StoreOptions{
		Prefix:   "login_limiter",
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit store: %w", err)
	}

	instance := limiter.New(store, parsed, limiter.WithTrustForwardHeader(trustProxy))
	mw := stdlibmw.NewMiddleware(instance,
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(parsed.Period.Seconds())))
			respondErrorJSON(w, r, http.StatusTooManyRequests, "rate_limited", "Too many attempts, please try again later", logger)
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("rate_limit_store_unavailable", zap.Error(err))
			respondErrorJSON(w, r, http.StatusServiceUnavailable, "rate_limit_unavailable", "Please try again shortly", logger)
		}),
	)
	return mw.Handler, nil
}
