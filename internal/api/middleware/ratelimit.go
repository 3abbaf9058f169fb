package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chat-service-backend/utils"
)

type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate allowed per client IP.
	RequestsPerSecond float64
	Burst             int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit throttles by client IP. Idle entries are evicted so the map
// does not grow with every IP ever seen.
func RateLimit(config RateLimitConfig) Middleware {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 10
	}
	if config.Burst <= 0 {
		config.Burst = 20
	}

	var mu sync.Mutex
	clients := make(map[string]*clientLimiter)

	go func() {
		for range time.Tick(time.Minute) {
			mu.Lock()
			for ip, client := range clients {
				if time.Since(client.lastSeen) > 3*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ip := utils.RealClientIP(r)

			mu.Lock()
			client, ok := clients[ip]
			if !ok {
				client = &clientLimiter{
					limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
				}
				clients[ip] = client
			}
			client.lastSeen = time.Now()
			allowed := client.limiter.Allow()
			mu.Unlock()

			if !allowed {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next(w, r)
		}
	}
}
