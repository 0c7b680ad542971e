package middleware

import (
	"log"
	"net/http"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// LoginRateLimit throttles credential endpoints per client IP. The store is
// in-process; a multi-instance deployment would swap in the redis store.
func LoginRateLimit(next http.HandlerFunc) http.HandlerFunc {
	rate, err := limiter.NewRateFromFormatted("10-M")
	if err != nil {
		log.Fatalf("rate limiter: %v", err)
	}

	instance := limiter.New(memory.NewStore(), rate)
	wrapped := stdlib.NewMiddleware(instance).Handler(next)

	return func(w http.ResponseWriter, r *http.Request) {
		wrapped.ServeHTTP(w, r)
	}
}
