package metrics

import (
	"time"

	"github.com/nimbusfs/synccore/pkg/status"
)

// IdleCounter is the narrow view of an *apipool.Pool the Collector needs.
// Accepting this interface rather than a concrete pool type keeps this
// package free of a dependency on pkg/apipool, so apipool is in turn free
// to import pkg/metrics to drive its own component health — see
// UpdateComponent calls in apipool.Pool.dial.
type IdleCounter interface {
	IdleCount() int
}

// Collector periodically republishes pkg/status's snapshot and an API
// pool's idle-connection count into the Prometheus gauges in metrics.go, so a
// scrape always reflects state no more than one tick stale.
type Collector struct {
	pool   IdleCounter
	stopCh chan struct{}
}

// NewCollector creates a collector that samples pool on every tick.
func NewCollector(pool IdleCounter) *Collector {
	return &Collector{
		pool:   pool,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting on a 15 second tick, matching the teacher's
// cluster-metrics collection interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	snap := status.Current()

	if snap.Connected {
		PoolConnected.Set(1)
	} else {
		PoolConnected.Set(0)
	}
	if snap.LocalFull {
		LocalFull.Set(1)
	} else {
		LocalFull.Set(0)
	}
	QuotaUsedBytes.Set(float64(snap.QuotaUsed))
	QuotaTotalBytes.Set(float64(snap.QuotaTotal))

	if c.pool != nil {
		PoolIdleConnections.Set(float64(c.pool.IdleCount()))
	}
}
