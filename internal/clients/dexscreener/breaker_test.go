package dexscreener

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b := newCircuitBreaker(5, 60*time.Second, 3)

	for i := 0; i < 4; i++ {
		require.True(t, b.allow())
		b.recordFailure()
	}
	require.True(t, b.allow(), "breaker should still be closed before threshold")
	b.recordFailure()

	assert.False(t, b.allow(), "breaker should be open immediately after threshold failures")
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	b := newCircuitBreaker(1, 20*time.Millisecond, 2)

	require.True(t, b.allow())
	b.recordFailure()
	assert.False(t, b.allow())

	time.Sleep(30 * time.Millisecond)

	assert.True(t, b.allow(), "breaker should admit a half-open probe after recovery timeout")
	b.recordSuccess()
	assert.True(t, b.allow())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := newCircuitBreaker(1, 10*time.Millisecond, 2)

	require.True(t, b.allow())
	b.recordFailure()
	time.Sleep(15 * time.Millisecond)

	require.True(t, b.allow(), "first half-open probe admitted")
	b.recordFailure()

	assert.False(t, b.allow(), "breaker should reopen on half-open failure")
}

func TestCircuitBreaker_HalfOpenCallsBounded(t *testing.T) {
	b := newCircuitBreaker(1, 10*time.Millisecond, 2)

	require.True(t, b.allow())
	b.recordFailure()
	time.Sleep(15 * time.Millisecond)

	require.True(t, b.allow())
	require.True(t, b.allow())
	assert.False(t, b.allow(), "third half-open probe should be rejected")
}
