package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether the client identified by key may make another
// request in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit returns middleware that bounds write bursts per client IP.
// Safe methods (GET, HEAD, OPTIONS) are never limited. When the limiter
// itself fails the request is let through.
func RateLimit(l Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			clientID := getClientIP(r)
			ok, err := l.Allow(r.Context(), clientID)
			if err != nil {
				logger.Warn("rate limiter unavailable, allowing request",
					slog.String("client", clientID),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				logger.Info("rate limit exceeded",
					slog.String("client", clientID),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "rate_limited",
					"message": "Rate limit exceeded. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// =========================================================================
// IN-MEMORY LIMITER
// =========================================================================

// MemoryLimiter is a fixed-window limiter for a single process.
type MemoryLimiter struct {
	clients  map[string]*clientLimit
	requests int
	window   time.Duration
	mu       sync.Mutex
	stop     chan struct{}
	once     sync.Once
}

type clientLimit struct {
	resetTime time.Time
	count     int
}

// NewMemoryLimiter allows `requests` requests per client per `window`.
// Call Close to stop the background cleanup.
func NewMemoryLimiter(requests int, window time.Duration) *MemoryLimiter {
	rl := &MemoryLimiter{
		clients:  make(map[string]*clientLimit),
		requests: requests,
		window:   window,
		stop:     make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Allow never fails.
func (rl *MemoryLimiter) Allow(_ context.Context, clientID string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UTC()

	client, exists := rl.clients[clientID]
	if !exists || now.After(client.resetTime) {
		rl.clients[clientID] = &clientLimit{
			count:     1,
			resetTime: now.Add(rl.window),
		}
		return true, nil
	}

	if client.count < rl.requests {
		client.count++
		return true, nil
	}

	return false, nil
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (rl *MemoryLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// cleanup removes expired client entries once per window.
func (rl *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now().UTC()
			for clientID, client := range rl.clients {
				if now.After(client.resetTime) {
					delete(rl.clients, clientID)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// =========================================================================
// REDIS LIMITER
// =========================================================================
//
// Shares one budget across every server instance. The counter key is
// created by the first INCR of a window and expires with it.

// RedisLimiter is a fixed-window limiter backed by Redis.
type RedisLimiter struct {
	client   *redis.Client
	requests int64
	window   time.Duration
}

// NewRedisLimiter connects to redisURL and pings it once.
func NewRedisLimiter(redisURL string, requests int, window time.Duration) (*RedisLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisLimiter{client: client, requests: int64(requests), window: window}, nil
}

func rateLimitKey(clientID string) string {
	return fmt.Sprintf("ratelimit:%s", clientID)
}

func (rl *RedisLimiter) Allow(ctx context.Context, clientID string) (bool, error) {
	key := rateLimitKey(clientID)

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}

	return incr.Val() <= rl.requests, nil
}

// Close closes the Redis connection.
func (rl *RedisLimiter) Close() error {
	return rl.client.Close()
}

// getClientIP keys the limiter on the connection address. Proxy headers are
// not read here: chi's RealIP runs first and has already folded them into
// RemoteAddr, and a client could rotate a raw header to reset its budget.
func getClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
