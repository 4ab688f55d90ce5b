// Package kvstore implements an expiring key/value store on top of a plain
// string key/value surface.
//
// Entries are written as a JSON envelope {"value": ..., "expires": <epoch ms>}.
// Expiry is lazy: nothing sweeps the surface, a read of an expired entry
// deletes it and reports it as missing. Records that are not envelopes
// (legacy plain strings) are returned unchanged.
//
// Surfaces:
//
//	MemorySurface  in-process map, used for session data and tests
//	SQLiteSurface  single-file persistent surface (modernc.org/sqlite)
//	RedisSurface   shared surface with a key prefix (go-redis/v9)
package kvstore

import (
	"context"
	"errors"
)

// ErrStorageUnavailable wraps every failure reported by a Surface.
var ErrStorageUnavailable = errors.New("kvstore: storage unavailable")

// ErrClosed is returned by surfaces used after Close.
var ErrClosed = errors.New("kvstore: surface closed")

// Surface is a synchronous string key/value surface with no expiry of its own.
// Implementations must be safe for concurrent use.
type Surface interface {
	// Get returns the stored string and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases resources held by the surface.
	Close() error
}

// Lister is implemented by surfaces that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}
