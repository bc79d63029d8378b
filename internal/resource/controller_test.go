package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestController_MemoryBudget(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.True(t, c.TryAcquireMemory(60))
	require.False(t, c.TryAcquireMemory(50))
	require.Equal(t, int64(60), c.MemoryUsage())

	c.ReleaseMemory(60)
	require.True(t, c.TryAcquireMemory(100))
	c.ReleaseMemory(100)
	require.Equal(t, int64(0), c.MemoryUsage())

	require.True(t, c.TryAcquireMemory(0))
}

func TestController_DerivedBudget(t *testing.T) {
	c := NewController(Config{})

	require.True(t, c.TryAcquireMemory(1024))
	require.Equal(t, int64(1024), c.MemoryUsage())
	c.ReleaseMemory(1024)

	// Nobody has an exabyte to spare.
	require.False(t, c.TryAcquireMemory(1<<60))
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	require.True(t, c.TryAcquireMemory(1024))
	c.ReleaseMemory(1024)
	require.Equal(t, int64(0), c.MemoryUsage())
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20))
	require.Equal(t, 4, c.MaxParallelReads())
}

func TestController_AcquireIOLargerThanBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20, MaxParallelReads: 2})
	require.Equal(t, 2, c.MaxParallelReads())

	// 1.5x the burst: the first step drains the bucket, the second waits ~0.5s.
	start := time.Now()
	require.NoError(t, c.AcquireIO(context.Background(), 3<<19))
	require.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestController_AcquireIOCanceled(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1024})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, c.AcquireIO(ctx, 4096))
}

func TestAvailableSystemMemory(t *testing.T) {
	require.Positive(t, AvailableSystemMemory())
}
