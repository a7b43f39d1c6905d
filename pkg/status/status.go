// Package status tracks process-wide sync state: a lock-free snapshot of
// connection/transfer counters and quota, and a monotone shutdown flag that
// every long-running loop in the other packages polls cooperatively.
//
// Grounded on the teacher's pkg/metrics HealthChecker/ComponentHealth
// pattern, generalized from per-node cluster health to a single process's
// transfer status and read without locking: writers build a new immutable
// Snapshot and swap it in with atomic.Pointer, readers load it and never
// block a writer.
package status

import (
	"sync/atomic"
	"time"
)

// Snapshot is an immutable point-in-time view of process status. Callers
// must never mutate a Snapshot obtained from Current; build a new one via
// Update instead.
type Snapshot struct {
	Connected       bool
	BytesUploaded   int64
	BytesDownloaded int64
	QuotaUsed       int64
	QuotaTotal      int64
	LocalFull       bool
	UpdatedAt       time.Time
}

var current atomic.Pointer[Snapshot]

func init() {
	current.Store(&Snapshot{})
}

// Current returns the most recently published Snapshot.
func Current() Snapshot {
	return *current.Load()
}

// Update atomically replaces the published Snapshot with the result of
// applying mutate to a copy of the current one, and stamps UpdatedAt.
func Update(mutate func(s *Snapshot)) Snapshot {
	for {
		old := current.Load()
		next := *old
		mutate(&next)
		next.UpdatedAt = time.Now()
		if current.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// AddUploaded adds n bytes to the uploaded counter.
func AddUploaded(n int64) { Update(func(s *Snapshot) { s.BytesUploaded += n }) }

// AddDownloaded adds n bytes to the downloaded counter.
func AddDownloaded(n int64) { Update(func(s *Snapshot) { s.BytesDownloaded += n }) }

// SetConnected records whether the API connection pool currently has a
// live connection to the configured server.
func SetConnected(connected bool) { Update(func(s *Snapshot) { s.Connected = connected }) }

// SetQuota records the account's used/total storage quota in bytes.
func SetQuota(used, total int64) {
	Update(func(s *Snapshot) {
		s.QuotaUsed = used
		s.QuotaTotal = total
	})
}

// SetLocalFull records that the account is over quota and uploads should
// stop until it is no longer over quota.
func SetLocalFull(full bool) { Update(func(s *Snapshot) { s.LocalFull = full }) }

// ShutdownFlag is a monotone, process-wide stop signal: once raised it is
// never lowered. Every byte-metered loop in pkg/xfer polls it between
// iterations and aborts early if set.
type ShutdownFlag struct {
	flag atomic.Bool
}

// Raise sets the shutdown flag. Safe to call more than once or from
// multiple goroutines.
func (f *ShutdownFlag) Raise() { f.flag.Store(true) }

// IsSet reports whether the flag has been raised.
func (f *ShutdownFlag) IsSet() bool { return f.flag.Load() }

// Shutdown is the process-wide shutdown flag instance.
var Shutdown ShutdownFlag
