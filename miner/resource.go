package miner

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ResourceConfig bounds the resources of a mining run.
type ResourceConfig struct {
	// MaxCoordinatesInFlight caps the summed coordinate count of slides
	// being classified concurrently, bounding the aggregate working set.
	// 0 means unlimited.
	MaxCoordinatesInFlight int64

	// WriteBytesPerSec throttles shard write throughput.
	// 0 means unlimited.
	WriteBytesPerSec int64
}

// resourceController enforces a ResourceConfig. The zero-value methods on a
// nil controller are no-ops, so unbounded mining pays nothing.
type resourceController struct {
	coordSem     *semaphore.Weighted
	maxCoords    int64
	writeLimiter *rate.Limiter
}

func newResourceController(cfg *ResourceConfig) *resourceController {
	if cfg == nil {
		return nil
	}
	c := &resourceController{}
	if cfg.MaxCoordinatesInFlight > 0 {
		c.coordSem = semaphore.NewWeighted(cfg.MaxCoordinatesInFlight)
		c.maxCoords = cfg.MaxCoordinatesInFlight
	}
	if cfg.WriteBytesPerSec > 0 {
		c.writeLimiter = rate.NewLimiter(rate.Limit(cfg.WriteBytesPerSec), int(cfg.WriteBytesPerSec))
	}
	return c
}

// acquire reserves capacity for a slide's coordinate count, blocking until
// enough concurrent classifications finish. Slides larger than the cap
// still run, alone.
func (c *resourceController) acquire(ctx context.Context, coords int64) error {
	if c == nil || c.coordSem == nil || coords <= 0 {
		return nil
	}
	if coords > c.maxCoords {
		coords = c.maxCoords
	}
	return c.coordSem.Acquire(ctx, coords)
}

func (c *resourceController) release(coords int64) {
	if c == nil || c.coordSem == nil || coords <= 0 {
		return
	}
	if coords > c.maxCoords {
		coords = c.maxCoords
	}
	c.coordSem.Release(coords)
}

// waitWrite throttles an upcoming shard write of the given size, in chunks
// no larger than the limiter burst.
func (c *resourceController) waitWrite(ctx context.Context, bytes int) error {
	if c == nil || c.writeLimiter == nil || bytes <= 0 {
		return nil
	}
	burst := c.writeLimiter.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.writeLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
