package webhook

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements per-IP token bucket rate limiting
type RateLimiter struct {
	visitors          map[string]*visitor
	maxRequestsPerMin int
	mu                sync.Mutex
	cleanupInterval   time.Duration
	idleTimeout       time.Duration
	stopCleanup       chan struct{}
	stopOnce          sync.Once
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxRequestsPerMinute int) *RateLimiter {
	if maxRequestsPerMinute <= 0 {
		maxRequestsPerMinute = 100
	}

	rl := &RateLimiter{
		visitors:          make(map[string]*visitor),
		maxRequestsPerMin: maxRequestsPerMinute,
		cleanupInterval:   5 * time.Minute,
		idleTimeout:       10 * time.Minute,
		stopCleanup:       make(chan struct{}),
	}

	go rl.startCleanup()

	return rl
}

func (rl *RateLimiter) visitor(ip string) *visitor {
	v, exists := rl.visitors[ip]
	if !exists {
		every := time.Minute / time.Duration(rl.maxRequestsPerMin)
		v = &visitor{limiter: rate.NewLimiter(rate.Every(every), rl.maxRequestsPerMin)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v
}

// CheckLimit checks if a request from the given IP is allowed
func (rl *RateLimiter) CheckLimit(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.visitor(ip).limiter.Allow()
}

// GetRetryAfter returns the number of seconds until the IP may send again
func (rl *RateLimiter) GetRetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		return 0
	}

	r := v.limiter.Reserve()
	delay := r.Delay()
	r.Cancel()

	return int(math.Ceil(delay.Seconds()))
}

// startCleanup periodically forgets idle IPs
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idleTimeout {
			delete(rl.visitors, ip)
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}
