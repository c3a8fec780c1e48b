package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterCheckLimit(t *testing.T) {
	rl := NewRateLimiter(5) // 5 requests per minute
	defer rl.Stop()

	ip := "192.168.1.1"

	// Burst equals the per-minute limit
	for i := 0; i < 5; i++ {
		assert.True(t, rl.CheckLimit(ip), "Request %d should be allowed", i+1)
	}

	assert.False(t, rl.CheckLimit(ip), "6th request should be denied")
}

func TestRateLimiterMultipleIPs(t *testing.T) {
	rl := NewRateLimiter(3)
	defer rl.Stop()

	ip1 := "192.168.1.1"
	ip2 := "192.168.1.2"

	for i := 0; i < 3; i++ {
		assert.True(t, rl.CheckLimit(ip1))
		assert.True(t, rl.CheckLimit(ip2))
	}

	assert.False(t, rl.CheckLimit(ip1))
	assert.False(t, rl.CheckLimit(ip2))
}

func TestRateLimiterGetRetryAfter(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Stop()

	ip := "10.0.0.1"
	assert.Equal(t, 0, rl.GetRetryAfter(ip), "unknown IPs can retry immediately")

	rl.CheckLimit(ip)
	rl.CheckLimit(ip)

	// One token refills every 30 seconds
	retryAfter := rl.GetRetryAfter(ip)
	assert.Greater(t, retryAfter, 0)
	assert.LessOrEqual(t, retryAfter, 30)

	// Asking does not consume a token
	assert.Equal(t, retryAfter, rl.GetRetryAfter(ip))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(10)
	defer rl.Stop()

	rl.CheckLimit("10.0.0.1")
	rl.CheckLimit("10.0.0.2")

	rl.cleanup(time.Now())
	assert.Len(t, rl.visitors, 2)

	rl.cleanup(time.Now().Add(time.Hour))
	assert.Empty(t, rl.visitors)
}

func TestRateLimiterStopTwice(t *testing.T) {
	rl := NewRateLimiter(1)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
