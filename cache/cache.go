// Package cache is the content-addressed result store for the pipeline.
// Entries are immutable once written: a Put for a fingerprint that is
// already present is a no-op, never an overwrite, so two racing
// computations of the same input cannot clobber each other.
package cache

import (
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache: store closed")

// Entry is one cached transform result.
type Entry struct {
	Fingerprint Fingerprint
	Result      string
	CreatedAt   time.Time
	Hits        uint64
}

// Store maps fingerprints to previously computed results.
//
// Get is a pure lookup and never triggers computation. Put is
// first-writer-wins. Implementations must be safe for concurrent use.
type Store interface {
	Get(fp Fingerprint) (Entry, bool, error)
	Put(fp Fingerprint, result string) error
	Len() int
	Close() error
}
