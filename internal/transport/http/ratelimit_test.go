package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := newRateLimiter(2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	now = now.Add(59 * time.Second)
	assert.False(t, rl.allow())

	now = now.Add(time.Second)
	assert.True(t, rl.allow())
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0)
	for range 1000 {
		assert.True(t, rl.allow())
	}

	var nilLimiter *rateLimiter
	assert.True(t, nilLimiter.allow())
}
