// Package cache tracks per-catalog readiness and staleness on top of a
// storage driver.
//
// The manager owns the reserved "meta" table. Each regular table has a
// metadata record there holding its status, version, and last-update
// time; a table is queryable only once it has been marked ready, and
// readers must consult the metadata before trusting table contents.
// Writers commit metadata last, so a partially loaded table is never
// observable as ready.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/teryt-cache/internal/codec"
	"github.com/louisbranch/teryt-cache/internal/storage"
)

// MetaTable is the reserved table name holding cache metadata. It can
// never be used as a regular cache name.
const MetaTable = "meta"

// ErrReservedName indicates an attempt to use the reserved metadata
// table name as a regular cache name.
var ErrReservedName = errors.New("reserved cache name")

// ExpiredError indicates a cache that exists but is older than the
// requested version. The sync engine recovers by replaying the delta
// between the stored and requested versions.
type ExpiredError struct {
	Name      string
	Stored    int64
	Requested int64
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("cache %s expired: stored version %d < requested %d", e.Name, e.Stored, e.Requested)
}

// Status describes the lifecycle state of a cache.
type Status string

const (
	// StatusCreating marks a cache whose full load has started but not
	// committed. It is not queryable.
	StatusCreating Status = "creating"
	// StatusReady marks a cache whose contents match its version.
	StatusReady Status = "ready"
)

// Meta is the per-cache metadata record.
type Meta struct {
	Status    Status `json:"status"`
	Version   int64  `json:"version,omitempty"`
	UpdatedAt int64  `json:"updated"`
}

// Manager is the process-wide registry of named caches.
type Manager struct {
	driver storage.Driver
	meta   storage.Table
	clock  func() time.Time
}

// NewManager creates a manager on top of a storage driver, opening the
// reserved metadata table (creating it when absent).
func NewManager(ctx context.Context, driver storage.Driver) (*Manager, error) {
	if driver == nil {
		return nil, errors.New("storage driver is required")
	}
	meta, err := driver.GetOrCreate(ctx, MetaTable, codec.JSON{})
	if err != nil {
		return nil, fmt.Errorf("open cache metadata: %w", err)
	}
	return &Manager{driver: driver, meta: meta, clock: time.Now}, nil
}

// Get opens the named cache for reading.
//
// It fails with storage.ErrNotInitialized when the cache was never
// created or has not been marked ready, and with *ExpiredError when
// minVersion is non-zero and the stored version is older. It has no
// side effects.
func (m *Manager) Get(ctx context.Context, name string, c codec.Codec, minVersion int64) (storage.Table, error) {
	if name == MetaTable {
		return nil, fmt.Errorf("%s: %w", name, ErrReservedName)
	}

	var meta Meta
	if err := m.meta.Get(ctx, name, &meta); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, fmt.Errorf("cache %s: %w", name, storage.ErrNotInitialized)
		}
		return nil, fmt.Errorf("read metadata for %s: %w", name, err)
	}
	if meta.Status != StatusReady {
		return nil, fmt.Errorf("cache %s (status %s): %w", name, meta.Status, storage.ErrNotInitialized)
	}
	if minVersion != 0 && meta.Version < minVersion {
		return nil, &ExpiredError{Name: name, Stored: meta.Version, Requested: minVersion}
	}
	return m.driver.Table(ctx, name, c)
}

// Create registers the named cache as creating and returns a fresh,
// empty table, dropping any prior contents. The cache stays invisible
// to readers until MarkReady commits it.
func (m *Manager) Create(ctx context.Context, name string, c codec.Codec) (storage.Table, error) {
	if name == MetaTable {
		return nil, fmt.Errorf("%s: %w", name, ErrReservedName)
	}
	if err := m.meta.Put(ctx, name, Meta{Status: StatusCreating}); err != nil {
		return nil, fmt.Errorf("register cache %s: %w", name, err)
	}
	return m.driver.Create(ctx, name, c)
}

// MarkReady commits the named cache at the given version, making it
// visible to readers. It requires an existing metadata entry and is
// the single commit point after any data load.
func (m *Manager) MarkReady(ctx context.Context, name string, version int64) error {
	var meta Meta
	if err := m.meta.Get(ctx, name, &meta); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return fmt.Errorf("cache %s: %w", name, storage.ErrNotInitialized)
		}
		return fmt.Errorf("read metadata for %s: %w", name, err)
	}
	meta.Status = StatusReady
	meta.Version = version
	meta.UpdatedAt = m.clock().Unix()
	if err := m.meta.Put(ctx, name, meta); err != nil {
		return fmt.Errorf("commit metadata for %s: %w", name, err)
	}
	return nil
}

// Version reports the stored version of the named cache, or -1 when it
// is unknown. It never fails.
func (m *Manager) Version(ctx context.Context, name string) int64 {
	var meta Meta
	if err := m.meta.Get(ctx, name, &meta); err != nil {
		return -1
	}
	if meta.Version == 0 {
		return -1
	}
	return meta.Version
}
