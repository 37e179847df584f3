package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Idle clients are evicted so dashboards polling once a day do not pin
// limiter state forever.
const (
	clientGCInterval = 5 * time.Minute
	clientIdleExpiry = 10 * time.Minute
)

type clientLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

var (
	mu      sync.Mutex
	clients = map[string]*clientLimiter{}
)

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit applies a per-client token bucket keyed by IP.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	gc := time.NewTicker(clientGCInterval)
	go func() {
		for range gc.C {
			mu.Lock()
			for ip, c := range clients {
				if time.Since(c.last) > clientIdleExpiry {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			mu.Lock()
			c, ok := clients[ip]
			if !ok {
				c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
				clients[ip] = c
			}
			c.last = time.Now()
			allow := c.limiter.Allow()
			mu.Unlock()
			if !allow {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
