package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsBurstUpToCapacity(t *testing.T) {
	rl := NewRateLimiter(10, 3)
	start := time.Now()
	rl.Wait(1)
	rl.Wait(1)
	rl.Wait(1)
	assert.Less(t, time.Since(start), 50*time.Millisecond, "burst capacity should not block")
}

func TestRateLimiter_BlocksUntilRefill(t *testing.T) {
	rl := NewRateLimiter(100, 1) // 100 tokens/sec, burst 1
	rl.Wait(1)                   // drains the bucket

	start := time.Now()
	rl.Wait(1)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestRegistry_GetReturnsSameLimiterForSameService(t *testing.T) {
	reg := NewRegistry()
	a := reg.Get("tineye")
	b := reg.Get("tineye")
	assert.Same(t, a, b)
}

func TestRegistry_UnknownServiceGetsConservativeDefault(t *testing.T) {
	reg := NewRegistry()
	l := reg.Get("some_unlisted_service")
	assert.Equal(t, 1.0, l.rate)
	assert.Equal(t, 5.0, l.maxTokens)
}
