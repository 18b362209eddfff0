package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup by id or external id matches nothing.
// A remote delete/update hitting an unknown external id is treated as already
// resolved, so callers on the sync path log it at debug level and move on.
var ErrNotFound = errors.New("event not found")

// ValidationError rejects a malformed mutation before it reaches the store.
// It is the only error class that blocks a local mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SyncError wraps a remote-call failure. It is always recoverable: local
// state is unaffected and the next scheduled cycle is the retry path.
type SyncError struct {
	Op  string // "pull", "push-create", "push-update", "push-delete"
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s failed: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
