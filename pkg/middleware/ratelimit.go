// Package middleware holds the HTTP middleware shared by the wizard API and
// the edge proxy.
package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/shashiranjanraj/lister/pkg/response"
)

// LimiterStore returns a Redis-backed store when client is non-nil so
// limits hold across instances, and an in-process store otherwise.
func LimiterStore(client *redis.Client) (limiter.Store, error) {
	if client == nil {
		return memory.NewStore(), nil
	}
	return sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "lister:limiter"})
}

// NewIPRateLimiter limits by client IP. rateFormatted is "100-M", "50-S" …;
// empty disables limiting.
func NewIPRateLimiter(rateFormatted string, store limiter.Store) (func(http.Handler) http.Handler, error) {
	if rateFormatted == "" {
		return noop, nil
	}
	rate, err := limiter.NewRateFromFormatted(rateFormatted)
	if err != nil {
		return nil, fmt.Errorf("rate limit %q: %w", rateFormatted, err)
	}
	mw := stdlib.NewMiddleware(limiter.New(store, rate),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			response.TooManyRequests(w)
		}),
	)
	return mw.Handler, nil
}

// NewUserRateLimiter limits by the user id set by Identity. Requests
// without one pass through.
func NewUserRateLimiter(rateFormatted string, store limiter.Store) (func(http.Handler) http.Handler, error) {
	if rateFormatted == "" {
		return noop, nil
	}
	rate, err := limiter.NewRateFromFormatted(rateFormatted)
	if err != nil {
		return nil, fmt.Errorf("rate limit %q: %w", rateFormatted, err)
	}
	instance := limiter.New(store, rate)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserID(r.Context())
			if user == "" {
				next.ServeHTTP(w, r)
				return
			}
			lctx, err := instance.Increment(r.Context(), "user:"+user, 1)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
			if lctx.Reached {
				response.TooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}

func noop(next http.Handler) http.Handler { return next }
