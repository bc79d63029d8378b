// Package resource limits the memory and I/O bandwidth used by a reader.
package resource

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the budget for materialized matrices.
	// If 0, the budget is derived from the Go memory limit and free system memory.
	MemoryLimitBytes int64

	// IOLimitBytesPerSec caps read throughput. If 0, unlimited.
	IOLimitBytesPerSec int64

	// MaxParallelReads bounds concurrent block fetches of one request. If 0, defaults to 4.
	MaxParallelReads int
}

// Controller manages memory reservations and I/O pacing.
//
// A nil *Controller is valid and imposes no limits.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if derived from the runtime
	memUsed atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxParallelReads <= 0 {
		cfg.MaxParallelReads = 4
	}

	c := &Controller{cfg: cfg}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(min(cfg.IOLimitBytesPerSec, math.MaxInt32)))
	}

	return c
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns true if acquired, false if the reservation does not fit.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if bytes <= 0 {
		return true
	}
	if c == nil || c.memSem == nil {
		if bytes >= AvailableSystemMemory() {
			return false
		}
		if c != nil {
			c.memUsed.Add(bytes)
		}

		return true
	}

	if !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)

	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}

	return c.memUsed.Load()
}

// AcquireIO waits until the I/O limit allows reading bytes.
//
// Requests larger than the limiter's burst are paced in burst-sized steps.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}

	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}

	return nil
}

// MaxParallelReads returns the fan-out limit for multi-block reads.
func (c *Controller) MaxParallelReads() int {
	if c == nil {
		return 4
	}

	return c.cfg.MaxParallelReads
}

// AvailableSystemMemory estimates the bytes that can still be allocated: the
// headroom under the Go memory limit, further capped by free physical memory
// where the platform reports it.
func AvailableSystemMemory() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	available := int64(math.MaxInt64)
	if limit := debug.SetMemoryLimit(-1); limit != math.MaxInt64 {
		available = limit - int64(ms.HeapInuse) //nolint: gosec
	}
	if free, ok := freePhysicalMemory(); ok {
		available = min(available, free)
	}

	return max(available, 0)
}
