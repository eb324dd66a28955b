package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector keeps process-local request counters and the latest compliance sweep totals.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64
	sweepsRun       uint64
	sweepsFailed    uint64

	mu          sync.Mutex
	outstanding map[string]int
}

func New() *Collector {
	return &Collector{outstanding: map[string]int{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordSweep stores the outstanding item count of the last sweep for tenantID.
func (c *Collector) RecordSweep(tenantID string, outstanding int, err error) {
	atomic.AddUint64(&c.sweepsRun, 1)
	if err != nil {
		atomic.AddUint64(&c.sweepsFailed, 1)
		return
	}
	c.mu.Lock()
	c.outstanding[tenantID] = outstanding
	c.mu.Unlock()
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	outstanding := 0
	for _, n := range c.outstanding {
		outstanding += n
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":          total,
		"errorsTotal":            errs,
		"rateLimitedTotal":       limited,
		"avgDurationMs":          avg,
		"totalDurationMs":        totalMs,
		"complianceSweepsTotal":  atomic.LoadUint64(&c.sweepsRun),
		"complianceSweepsFailed": atomic.LoadUint64(&c.sweepsFailed),
		"complianceOutstanding":  outstanding,
	}
}
