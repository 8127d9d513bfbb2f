package filecache

import (
	"os"
	"time"
)

// flushLoop periodically flushes dirty pages of cached files in the
// background, throttled to FlushBytesPerSec when configured so flushing
// does not starve foreground I/O.
func (c *Cache) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()

	pageSize := os.Getpagesize()

	for {
		select {
		case <-c.flushCtx.Done():
			return
		case <-ticker.C:
			c.flushDirty(pageSize)
		}
	}
}

func (c *Cache) flushDirty(pageSize int) {
	for _, e := range c.snapshot() {
		if e.f == nil {
			continue
		}
		dirty := e.f.DirtyPages()
		if dirty == 0 {
			continue
		}

		if c.limiter != nil {
			n := int(dirty) * pageSize
			if n > c.limiter.Burst() {
				n = c.limiter.Burst()
			}
			if err := c.limiter.WaitN(c.flushCtx, n); err != nil {
				return // shutting down
			}
		}

		if err := e.f.SyncDirty(); err != nil {
			c.logger.Error("background flush failed",
				"path", e.f.Path(),
				"error", err,
			)
		}
	}
}
