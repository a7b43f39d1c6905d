// Package syncmodel holds the data types the transfer layer exchanges with
// the API: non-overlapping download/upload range descriptors and an
// in-process advisory file-lock registry, matching original_source's
// psync_range_list_t / psync_upload_range_list_t and the per-file locking
// scheme described in pnetlibs.h.
package syncmodel

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// RangeKind distinguishes a byte range fetched fresh from the network from
// one copied out of an already-downloaded file, matching
// PSYNC_RANGE_TRANSFER / PSYNC_RANGE_COPY.
type RangeKind uint8

const (
	RangeTransfer RangeKind = iota
	RangeCopy
)

// RangeDescriptor is one entry of a download's range list: either a byte
// span to fetch over the wire, or a byte span to copy out of an existing
// local file.
type RangeDescriptor struct {
	Off      uint64
	Len      uint64
	Kind     RangeKind
	Filename string // only meaningful when Kind == RangeCopy
}

// UploadRangeKind distinguishes the three ways an upload range can be
// satisfied, matching PSYNC_URANGE_UPLOAD / COPY_FILE / COPY_UPLOAD.
type UploadRangeKind uint8

const (
	UploadRangeTransfer UploadRangeKind = iota
	UploadRangeCopyFile
	UploadRangeCopyUpload
)

// UploadRangeDescriptor is one entry of an upload's range list.
type UploadRangeDescriptor struct {
	UploadOffset uint64
	Off          uint64
	Len          uint64
	Kind         UploadRangeKind

	// UploadID is set when Kind == UploadRangeCopyUpload: the partial
	// upload session this range is copied from.
	UploadID string
	// FileID and Hash are set when Kind == UploadRangeCopyFile: the
	// existing remote file this range is copied from.
	FileID uint64
	Hash   string
}

// ValidateRanges checks that descriptors are ordered, non-overlapping, and
// together cover [0, filesize) exactly with no gaps, the invariant the
// transfer layer depends on when splicing ranges back into a single file.
func ValidateRanges(ranges []RangeDescriptor, filesize uint64) error {
	var prevEnd uint64
	for i, r := range ranges {
		if r.Off < prevEnd {
			return fmt.Errorf("syncmodel: range %d overlaps previous (off=%d < prevEnd=%d)", i, r.Off, prevEnd)
		}
		if r.Off > prevEnd {
			return fmt.Errorf("syncmodel: range %d leaves a gap (off=%d > prevEnd=%d)", i, r.Off, prevEnd)
		}
		prevEnd = r.Off + r.Len
	}
	if prevEnd != filesize {
		return fmt.Errorf("syncmodel: ranges cover [0, %d), want [0, %d)", prevEnd, filesize)
	}
	return nil
}

// FileLock is an advisory, in-process exclusive lock on a normalized file
// path. It carries no OS-level file locking semantics; it only serializes
// this process's own goroutines against concurrent sync operations on the
// same path.
type FileLock struct {
	path string
	id   string
}

// Path returns the normalized path this lock guards.
func (l *FileLock) Path() string { return l.path }

// LockRegistry is a registry of currently-held FileLocks, keyed by
// normalized path, matching the original client's psync_lock_file /
// psync_unlock_file pair but expressed as an explicit registry rather than
// a global table of opaque handles.
type LockRegistry struct {
	mu    sync.Mutex
	held  map[string]*FileLock
	avail map[string]*sync.Cond
}

// NewLockRegistry returns an empty registry.
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{
		held:  make(map[string]*FileLock),
		avail: make(map[string]*sync.Cond),
	}
}

func normalize(path string) string {
	return filepath.Clean(path)
}

// Lock blocks until path is free, then marks it held and returns the
// FileLock handle. Unlock must be called exactly once to release it.
func (r *LockRegistry) Lock(path string) *FileLock {
	key := normalize(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if _, busy := r.held[key]; !busy {
			break
		}
		cond, ok := r.avail[key]
		if !ok {
			cond = sync.NewCond(&r.mu)
			r.avail[key] = cond
		}
		cond.Wait()
	}
	lock := &FileLock{path: key, id: uuid.NewString()}
	r.held[key] = lock
	return lock
}

// TryLock attempts to lock path without blocking, returning nil if it is
// already held.
func (r *LockRegistry) TryLock(path string) *FileLock {
	key := normalize(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.held[key]; busy {
		return nil
	}
	lock := &FileLock{path: key, id: uuid.NewString()}
	r.held[key] = lock
	return lock
}

// Unlock releases lock and wakes one waiter for the same path, if any.
func (r *LockRegistry) Unlock(lock *FileLock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if held, ok := r.held[lock.path]; !ok || held.id != lock.id {
		return
	}
	delete(r.held, lock.path)
	if cond, ok := r.avail[lock.path]; ok {
		cond.Signal()
	}
}
