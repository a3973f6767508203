// Package memguard enforces the memory ceiling of a crawl. Exceeding it is a
// resource error, which stops the supervisor instead of restarting.
package memguard

import (
	"context"
	"runtime"

	errs "eoscraper/pkg/errors"
	"eoscraper/pkg/logger"
)

// Reporter reports memory held outside the Go heap, such as the browser's
// JS heap
type Reporter interface {
	MemoryUsage(ctx context.Context) (int64, error)
}

// Usage is one memory reading in bytes
type Usage struct {
	Process  int64
	External int64
}

// Total returns the combined reading
func (u Usage) Total() int64 {
	return u.Process + u.External
}

// Guard compares current memory usage with a limit
type Guard struct {
	limit     int64
	reporters []Reporter
	readStats func() int64
	logger    logger.Logger
}

// New creates a guard with a limit in megabytes. A limit of zero disables
// the guard.
func New(limitMB int, log logger.Logger, reporters ...Reporter) *Guard {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Guard{
		limit:     int64(limitMB) * 1024 * 1024,
		reporters: reporters,
		readStats: processMemory,
		logger:    log,
	}
}

func processMemory() int64 {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return int64(mem.Sys)
}

// Sample reads current usage. Reporter failures are logged and skipped.
func (g *Guard) Sample(ctx context.Context) Usage {
	u := Usage{Process: g.readStats()}
	for _, r := range g.reporters {
		n, err := r.MemoryUsage(ctx)
		if err != nil {
			g.logger.WithError(err).Debug("Memory reporter failed")
			continue
		}
		u.External += n
	}
	return u
}

// Check returns a resource error when usage exceeds the limit
func (g *Guard) Check(ctx context.Context) error {
	if g == nil || g.limit <= 0 {
		return nil
	}
	u := g.Sample(ctx)
	if u.Total() > g.limit {
		g.logger.WarnWithFields("Memory ceiling exceeded", map[string]interface{}{
			"process_mb":  u.Process / 1024 / 1024,
			"external_mb": u.External / 1024 / 1024,
			"limit_mb":    g.limit / 1024 / 1024,
		})
		return errs.Resource("memory check", "usage %d MB exceeds limit %d MB",
			u.Total()/1024/1024, g.limit/1024/1024)
	}
	return nil
}
