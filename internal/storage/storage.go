package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/teryt-cache/internal/codec"
)

// ErrNotInitialized indicates a table that was never created. Callers
// recover by running a full catalog load, which creates the table.
var ErrNotInitialized = errors.New("table not initialized")

// ErrKeyNotFound indicates a missing key. For point lookups absence is
// a normal outcome; callers branch on this sentinel rather than
// treating it as a failure.
var ErrKeyNotFound = errors.New("key not found")

// Driver opens and creates named key-value tables. Implementations are
// durable: the embedded driver is file-backed and process-local, the
// remote driver is network-backed with managed write throughput.
type Driver interface {
	// Table opens an existing table. It fails with ErrNotInitialized
	// when no table with that name exists.
	Table(ctx context.Context, name string, c codec.Codec) (Table, error)
	// Create destroys any previous table with that name and returns a
	// fresh, empty one.
	Create(ctx context.Context, name string, c codec.Codec) (Table, error)
	// GetOrCreate opens the named table, creating an empty one when it
	// does not exist yet. Existing contents are kept.
	GetOrCreate(ctx context.Context, name string, c codec.Codec) (Table, error)
}

// Table is a single keyed store of codec-serialized records.
type Table interface {
	// Get decodes the record stored under key into out. It fails with
	// ErrKeyNotFound when the key is absent.
	Get(ctx context.Context, key string, out any) error
	// Put stores a record under key, replacing any previous value.
	Put(ctx context.Context, key string, v any) error
	// Delete removes the record stored under key. It fails with
	// ErrKeyNotFound when the key is absent.
	Delete(ctx context.Context, key string) error
	// Keys lists every key in the table.
	Keys(ctx context.Context) ([]string, error)
	// Reload stores every entry of contents. Implementations may batch
	// the writes and temporarily raise write throughput.
	Reload(ctx context.Context, contents map[string]any) error
}
