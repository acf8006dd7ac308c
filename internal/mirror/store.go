package mirror

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Document is the denormalized projection stored in the secondary store.
type Document map[string]any

// Store is a keyed document store supporting upsert by id.
type Store interface {
	// Upsert replaces or creates the document keyed by id in collection.
	// A stored document with a higher version is left in place and the call
	// still succeeds.
	Upsert(ctx context.Context, collection string, id, version int64, doc Document) error
	Close(ctx context.Context) error
}

// NopStore accepts every write. Used when mirroring is disabled.
type NopStore struct{}

func (NopStore) Upsert(context.Context, string, int64, int64, Document) error { return nil }

func (NopStore) Close(context.Context) error { return nil }

// Error types reported in sync failure diagnostics.
const (
	ErrTypeTimeout         = "timeout"
	ErrTypeServerSelection = "server_selection"
	ErrTypeConnection      = "connection"
	ErrTypeDriver          = "driver"
	ErrTypePanic           = "panic"
	ErrTypeUnexpected      = "unexpected"
)

// ErrUnavailable is returned by stores that could not reach any server.
var ErrUnavailable = errors.New("secondary store unavailable")

// DriverError wraps an error reported by the store's client library.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *DriverError) Unwrap() error { return e.Err }

// panicError carries a recovered panic from a store call.
type panicError struct{ value any }

func (e panicError) Error() string { return fmt.Sprintf("store panic: %v", e.value) }

// Classify maps a store failure to one of the ErrType* labels.
func Classify(err error) string {
	var pe panicError
	var de *DriverError
	var ne net.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return ErrTypePanic
	case errors.Is(err, ErrUnavailable):
		return ErrTypeServerSelection
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTypeTimeout
	case errors.As(err, &ne) && ne.Timeout():
		return ErrTypeTimeout
	case errors.As(err, &ne):
		return ErrTypeConnection
	case errors.As(err, &de):
		return ErrTypeDriver
	default:
		return ErrTypeUnexpected
	}
}
