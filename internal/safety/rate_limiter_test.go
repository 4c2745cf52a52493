package safety

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowDrainsBucket(t *testing.T) {
	rl := NewRateLimiter("test", 3, 1)

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow(), "bucket should be empty")
	assert.Equal(t, 0, rl.Tokens())
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter("test", 1, 1)
	require.True(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRateLimiter_WaitSucceedsWithTokens(t *testing.T) {
	rl := NewRateLimiter("test", 2, 1)

	assert.NoError(t, rl.Wait(context.Background()))
	assert.NoError(t, rl.Wait(context.Background()))
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter("test", 0, 0)
	assert.True(t, rl.Allow(), "zero config falls back to a usable bucket")
}
