// Package store provides whole-snapshot persistence for the registry and the
// call log. A snapshot is one JSON document read and written atomically;
// partial writes are never visible to readers.
//
// Stores hold no locks of their own. Each store is owned by exactly one
// service, and that service serializes writes (single-writer discipline).
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrPersistence marks the one error class treated as fatal to the current
// request: the backing store could not be read or written. Callers should
// fail loudly rather than silently lose data.
var ErrPersistence = errors.New("store: persistence failure")

// Snapshot reads and writes one JSON document as a unit.
//
// Load on a snapshot that does not exist yet leaves v untouched and returns
// nil; a fresh install starts from zero values.
type Snapshot interface {
	Load(ctx context.Context, v any) error
	Save(ctx context.Context, v any) error
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}
