package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_MemoryLimit(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	ctx := context.Background()

	require.NoError(t, c.AcquireMemory(ctx, 60))
	assert.Equal(t, int64(60), c.MemoryUsage())

	// Would exceed the hard limit.
	assert.False(t, c.TryAcquireMemory(50))
	assert.Equal(t, int64(60), c.MemoryUsage())

	assert.True(t, c.TryAcquireMemory(40))
	assert.Equal(t, int64(100), c.MemoryUsage())

	c.ReleaseMemory(100)
	assert.Zero(t, c.MemoryUsage())
}

func TestController_TrackingOnlyWithoutLimit(t *testing.T) {
	c := NewController(Config{})

	assert.True(t, c.TryAcquireMemory(1<<40))
	assert.Equal(t, int64(1<<40), c.MemoryUsage())
	c.ReleaseMemory(1 << 40)
}

func TestController_FlusherSlots(t *testing.T) {
	c := NewController(Config{MaxBackgroundFlushers: 1})

	require.True(t, c.TryAcquireFlusher())
	assert.False(t, c.TryAcquireFlusher(), "single slot must be exclusive")
	c.ReleaseFlusher()
	assert.True(t, c.TryAcquireFlusher())
	c.ReleaseFlusher()
}

func TestController_NilSafe(t *testing.T) {
	var c *Controller

	assert.NoError(t, c.AcquireMemory(context.Background(), 10))
	assert.True(t, c.TryAcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Zero(t, c.MemoryUsage())
	assert.NoError(t, c.AcquireFlusher(context.Background()))
	assert.True(t, c.TryAcquireFlusher())
	c.ReleaseFlusher()
	assert.NoError(t, c.AcquireFlushIO(context.Background(), 4096))
}
