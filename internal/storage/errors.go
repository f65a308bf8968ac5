// Package storage is the gateway to the semi-trusted backend. It stores and
// returns opaque rows keyed by row id and never interprets field semantics;
// every cryptographic guarantee is enforced by the layers above it.
package storage

import "errors"

// ErrUnavailable is returned when the backend cannot be reached or fails an
// operation. It is propagated as-is; the core performs no silent retry of
// writes that may have partially applied.
var ErrUnavailable = errors.New("storage unavailable")

// ErrNotFound is returned when a row or account does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert hits a unique index, which can
// happen even after a pre-check when two writers race.
var ErrDuplicate = errors.New("duplicate key")
