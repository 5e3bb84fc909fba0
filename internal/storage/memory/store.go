// Package memory implements an in-process storage driver. It backs
// unit tests for the cache manager and sync engine; payloads still go
// through the table codec so serialization behavior matches the
// durable drivers.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/louisbranch/teryt-cache/internal/codec"
	"github.com/louisbranch/teryt-cache/internal/storage"
)

// Driver provides a map-backed storage driver.
type Driver struct {
	mu     sync.Mutex
	tables map[string]map[string][]byte
}

// New creates an empty in-memory driver.
func New() *Driver {
	return &Driver{tables: make(map[string]map[string][]byte)}
}

// Table opens an existing table. It fails with ErrNotInitialized when
// no table with that name exists.
func (d *Driver) Table(ctx context.Context, name string, c codec.Codec) (storage.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tables[name]; !ok {
		return nil, fmt.Errorf("table %s: %w", name, storage.ErrNotInitialized)
	}
	return &table{driver: d, name: name, codec: c}, nil
}

// Create destroys any previous table with that name and returns a
// fresh, empty one.
func (d *Driver) Create(ctx context.Context, name string, c codec.Codec) (storage.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[name] = make(map[string][]byte)
	return &table{driver: d, name: name, codec: c}, nil
}

// GetOrCreate opens the named table, creating an empty one when it
// does not exist yet.
func (d *Driver) GetOrCreate(ctx context.Context, name string, c codec.Codec) (storage.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tables[name]; !ok {
		d.tables[name] = make(map[string][]byte)
	}
	return &table{driver: d, name: name, codec: c}, nil
}

type table struct {
	driver *Driver
	name   string
	codec  codec.Codec
}

func (t *table) contents() (map[string][]byte, error) {
	rows, ok := t.driver.tables[t.name]
	if !ok {
		return nil, fmt.Errorf("table %s: %w", t.name, storage.ErrNotInitialized)
	}
	return rows, nil
}

func (t *table) Get(ctx context.Context, key string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.driver.mu.Lock()
	defer t.driver.mu.Unlock()
	rows, err := t.contents()
	if err != nil {
		return err
	}
	payload, ok := rows[key]
	if !ok {
		return fmt.Errorf("%s[%s]: %w", t.name, key, storage.ErrKeyNotFound)
	}
	return t.codec.Unmarshal(payload, out)
}

func (t *table) Put(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := t.codec.Marshal(v)
	if err != nil {
		return err
	}
	t.driver.mu.Lock()
	defer t.driver.mu.Unlock()
	rows, err := t.contents()
	if err != nil {
		return err
	}
	rows[key] = payload
	return nil
}

func (t *table) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.driver.mu.Lock()
	defer t.driver.mu.Unlock()
	rows, err := t.contents()
	if err != nil {
		return err
	}
	if _, ok := rows[key]; !ok {
		return fmt.Errorf("%s[%s]: %w", t.name, key, storage.ErrKeyNotFound)
	}
	delete(rows, key)
	return nil
}

func (t *table) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.driver.mu.Lock()
	defer t.driver.mu.Unlock()
	rows, err := t.contents()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (t *table) Reload(ctx context.Context, contents map[string]any) error {
	for key, v := range contents {
		if err := t.Put(ctx, key, v); err != nil {
			return err
		}
	}
	return nil
}
